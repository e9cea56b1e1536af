package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/safety"
)

type Validator interface {
	Check(sql string) safety.Verdict
}

// Executor cleans, validates and runs SQL. Each call checks out its own
// connection from the pool and returns it when done, so concurrent calls
// never share a connection.
type Executor struct {
	db        *sql.DB
	validator Validator
	logger    *slog.Logger
}

func NewExecutor(db *sql.DB, validator Validator, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{db: db, validator: validator, logger: logger}
}

func (e *Executor) Execute(ctx context.Context, rawSQL string) Result {
	start := time.Now()
	cleaned := CleanSQL(rawSQL)

	verdict := e.validator.Check(cleaned)
	if !verdict.Allowed {
		observability.IncrementSafetyRejection(string(verdict.Class))
		e.logger.WarnContext(ctx, "sql rejected",
			slog.String("class", string(verdict.Class)),
			slog.String("reason", verdict.Reason),
			slog.String("sql", cleaned),
		)
		return Result{Error: verdict.Reason, Class: verdict.Class, SQL: cleaned, Duration: time.Since(start)}
	}

	columns, rows, err := e.run(ctx, stripTrailingSemicolons(cleaned))
	elapsed := time.Since(start)
	observability.ObserveQuery(err == nil, elapsed)
	if err != nil {
		e.logger.WarnContext(ctx, "sql execution failed",
			slog.String("sql", cleaned),
			slog.Any("error", err),
		)
		return Result{Error: SanitizeError(err), SQL: cleaned, Duration: elapsed}
	}

	e.logger.DebugContext(ctx, "sql executed",
		slog.Int("rows", len(rows)),
		slog.String("duration", elapsed.String()),
	)
	return Result{Success: true, Columns: columns, Rows: rows, SQL: cleaned, Duration: elapsed}
}

func (e *Executor) run(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

// normalizeValues turns driver byte slices into strings so rows render as
// text in prompts and JSON.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
