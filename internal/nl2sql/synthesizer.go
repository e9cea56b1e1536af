package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlrag/sqlrag/internal/llm"
	"github.com/sqlrag/sqlrag/internal/query"
)

// Synthesizer turns a successful result into a short prose answer.
type Synthesizer struct {
	model  llm.Client
	logger *slog.Logger
}

func NewSynthesizer(model llm.Client, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{model: model, logger: logger}
}

// Answer never fails. Failed or empty results get a fixed reply without a
// model call; a failed model call falls back to a count-based reply.
func (s *Synthesizer) Answer(ctx context.Context, question string, result query.Result) string {
	if !result.Success || result.RowCount() == 0 {
		return noDataAnswer
	}
	answer, err := s.model.Complete(ctx, llm.Request{
		Purpose:     "synthesize",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: synthesisPrompt(question, FormatTable(result))}},
		Temperature: synthesisTemperature,
	})
	if err != nil || answer == "" {
		if err != nil {
			s.logger.WarnContext(ctx, "answer synthesis failed", slog.Any("error", err))
		}
		return fmt.Sprintf("I found %d results, but couldn't summarize them.", result.RowCount())
	}
	return answer
}

// FormatTable renders the column header and at most the first ten rows,
// noting how many rows were left out.
func FormatTable(result query.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(result.Columns, ", "))
	for i, row := range result.Rows {
		if i == synthesisRowLimit {
			break
		}
		b.WriteString(formatRow(row))
		b.WriteByte('\n')
	}
	if extra := result.RowCount() - synthesisRowLimit; extra > 0 {
		fmt.Fprintf(&b, "... and %d more rows\n", extra)
	}
	return b.String()
}

func formatRow(row []any) string {
	cells := make([]string, len(row))
	for i, value := range row {
		switch typed := value.(type) {
		case nil:
			cells[i] = "NULL"
		case string:
			cells[i] = "'" + typed + "'"
		default:
			cells[i] = fmt.Sprint(typed)
		}
	}
	return "(" + strings.Join(cells, ", ") + ")"
}
