package nl2sql

import (
	"context"
	"log/slog"

	"github.com/sqlrag/sqlrag/internal/llm"
)

// Failure is what a critic sees of one failed attempt.
type Failure struct {
	Question string
	SQL      string
	Error    string
	Schema   string
	Dialect  string
}

// Feedback is the user turn appended after a failed attempt. Critique is
// empty when no diagnosis was produced.
type Feedback struct {
	Critique string
	Message  string
}

type Critic interface {
	Review(ctx context.Context, f Failure) Feedback
}

// ModelCritic asks the model for a one-sentence diagnosis. A failed call
// degrades to a fixed advice string and never aborts the session.
type ModelCritic struct {
	model  llm.Client
	logger *slog.Logger
}

func NewModelCritic(model llm.Client, logger *slog.Logger) *ModelCritic {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCritic{model: model, logger: logger}
}

func (c *ModelCritic) Review(ctx context.Context, f Failure) Feedback {
	critique, err := c.model.Complete(ctx, llm.Request{
		Purpose:  "critique",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: critiquePrompt(f)}},
	})
	if err != nil || critique == "" {
		if err != nil {
			c.logger.WarnContext(ctx, "query critic failed", slog.Any("error", err))
		}
		critique = critiqueFallback
	}
	c.logger.InfoContext(ctx, "critic feedback", slog.String("critique", truncate(critique, 100)))
	return Feedback{Critique: critique, Message: critiqueFeedback(f.Error, critique)}
}

// NoCritic feeds the raw error back without a diagnosis call.
type NoCritic struct{}

func (NoCritic) Review(_ context.Context, f Failure) Feedback {
	return Feedback{Message: basicFeedback(f.Error)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
