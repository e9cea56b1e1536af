// Package query runs validated read-only SQL against the analytical
// database and reports the outcome as a value, never as a Go error.
package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sqlrag/sqlrag/internal/safety"
)

// Result is the outcome of one execution. On success Columns and Rows are
// set and Error is empty; on failure only Error is meaningful and carries a
// user-safe message.
type Result struct {
	Success  bool
	Columns  []string
	Rows     [][]any
	Error    string
	Class    safety.Class
	SQL      string
	Duration time.Duration
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{Success: false, Error: r.Error})
	}
	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := r.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return json.Marshal(struct {
		Success bool     `json:"success"`
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	}{Success: true, Columns: columns, Data: rows})
}

// Runner executes raw model output or user SQL.
type Runner interface {
	Execute(ctx context.Context, rawSQL string) Result
}
