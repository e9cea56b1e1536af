// Package nl2sql turns a question into an executed read-only query: it
// retrieves schema context, asks the model for SQL, runs it, and feeds
// failures back for a bounded number of repair attempts.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sqlrag/sqlrag/internal/llm"
	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/query"
	"github.com/sqlrag/sqlrag/internal/retriever"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/validation"
)

const DefaultMaxAttempts = 3

// ErrNoAnswer means every attempt failed. It is distinct from a successful
// query that returned zero rows.
var ErrNoAnswer = errors.New("no answer after maximum attempts")

// ModelError aborts a session when the generation call itself fails.
type ModelError struct {
	Attempt int
	Err     error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

type Attempt struct {
	Number   int          `json:"number"`
	SQL      string       `json:"sql"`
	Result   query.Result `json:"result"`
	Critique string       `json:"critique,omitempty"`
}

// Session is the record of one question. Result is set only on success.
type Session struct {
	ID        string            `json:"session_id"`
	Question  string            `json:"question"`
	Dialect   string            `json:"dialect"`
	Mode      retriever.Mode    `json:"retrieval_mode"`
	Schema    []schema.Document `json:"schema"`
	Attempts  []Attempt         `json:"attempts"`
	Result    *query.Result     `json:"result,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"-"`
}

func (s Session) SQL() string {
	if s.Result == nil {
		return ""
	}
	return s.Result.SQL
}

type Config struct {
	// Dialect is the name the prompts use for the target database.
	Dialect           string
	MaxAttempts       int
	MaxQuestionLength int
}

type Agent struct {
	retriever         retriever.Retriever
	runner            query.Runner
	model             llm.Client
	critic            Critic
	dialect           string
	maxAttempts       int
	maxQuestionLength int
	logger            *slog.Logger
}

// NewAgent wires one pipeline. A nil critic selects NoCritic.
func NewAgent(cfg Config, r retriever.Retriever, runner query.Runner, model llm.Client, critic Critic, logger *slog.Logger) (*Agent, error) {
	if r == nil || runner == nil || model == nil {
		return nil, fmt.Errorf("retriever, runner and model are required")
	}
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("dialect is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if critic == nil {
		critic = NoCritic{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		retriever:         r,
		runner:            runner,
		model:             model,
		critic:            critic,
		dialect:           cfg.Dialect,
		maxAttempts:       cfg.MaxAttempts,
		maxQuestionLength: cfg.MaxQuestionLength,
		logger:            logger,
	}, nil
}

// Run answers one question. The returned session is populated as far as the
// run got, also when an error is returned. Errors are a
// *validation.InputError, a retrieval failure, a *ModelError, or ErrNoAnswer.
func (a *Agent) Run(ctx context.Context, question string) (session Session, err error) {
	session = Session{
		ID:        uuid.NewString(),
		Dialect:   a.dialect,
		Mode:      a.retriever.Mode(),
		StartedAt: time.Now().UTC(),
		Attempts:  []Attempt{},
	}
	ctx = observability.ContextWithSessionID(ctx, session.ID)
	logger := a.logger.With(slog.String("session_id", session.ID))

	outcome := "error"
	defer func() {
		session.Duration = time.Since(session.StartedAt)
		observability.ObserveSession(outcome, len(session.Attempts))
	}()

	q, err := validation.Question(question, a.maxQuestionLength)
	if err != nil {
		outcome = "invalid_input"
		logger.WarnContext(ctx, "question rejected", slog.String("reason", err.Error()))
		return session, err
	}
	session.Question = q
	logger.InfoContext(ctx, "agent starting", slog.String("question", truncate(q, 100)), slog.String("dialect", a.dialect))

	docs, err := a.retriever.Retrieve(ctx, q)
	if err != nil {
		logger.ErrorContext(ctx, "schema retrieval failed", slog.Any("error", err))
		return session, fmt.Errorf("retrieve schema: %w", err)
	}
	session.Schema = docs
	schemaContext := retriever.Context(docs)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(a.dialect, schemaContext)},
		{Role: llm.RoleUser, Content: q},
	}

	for n := 1; n <= a.maxAttempts; n++ {
		logger.InfoContext(ctx, "generating sql", slog.Int("attempt", n), slog.Int("max_attempts", a.maxAttempts))
		sqlText, err := a.model.Complete(ctx, llm.Request{
			Purpose:     "generate",
			Messages:    messages,
			Temperature: generationTemperature,
		})
		if err != nil {
			outcome = "model_error"
			logger.ErrorContext(ctx, "model call failed", slog.Int("attempt", n), slog.Any("error", err))
			return session, &ModelError{Attempt: n, Err: err}
		}

		result := a.runner.Execute(ctx, sqlText)
		attempt := Attempt{Number: n, SQL: sqlText, Result: result}
		if result.Success {
			observability.IncrementAttempt("success")
			session.Attempts = append(session.Attempts, attempt)
			session.Result = &result
			outcome = "success"
			logger.InfoContext(ctx, "agent succeeded", slog.Int("attempt", n), slog.Int("rows", result.RowCount()))
			return session, nil
		}

		observability.IncrementAttempt("failure")
		logger.WarnContext(ctx, "attempt failed", slog.Int("attempt", n), slog.String("error", result.Error))
		if n < a.maxAttempts {
			feedback := a.critic.Review(ctx, Failure{
				Question: q,
				SQL:      sqlText,
				Error:    result.Error,
				Schema:   schemaContext,
				Dialect:  a.dialect,
			})
			attempt.Critique = feedback.Critique
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: sqlText},
				llm.Message{Role: llm.RoleUser, Content: feedback.Message},
			)
		}
		session.Attempts = append(session.Attempts, attempt)
	}

	outcome = "no_answer"
	logger.ErrorContext(ctx, "agent exhausted attempts", slog.Int("attempts", a.maxAttempts))
	return session, ErrNoAnswer
}
