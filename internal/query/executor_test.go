package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/sqlrag/sqlrag/internal/dialect"
	"github.com/sqlrag/sqlrag/internal/safety"
)

func TestCleanSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT * FROM users\n```": "SELECT * FROM users",
		"```\nSELECT 1\n```":               "SELECT 1",
		"  SELECT 1  ":                     "SELECT 1",
		`SELECT name\nFROM users`:          "SELECT name\nFROM users",
		"```sql SELECT id FROM orders```":  "SELECT id FROM orders",
		"Here:\n```sql\nSELECT 2\n```\n":   "Here:\nSELECT 2",
		"":                                 "",
	}
	for raw, want := range cases {
		if got := CleanSQL(raw); got != want {
			t.Fatalf("CleanSQL(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCleanSQLIsIdempotentOnPlainSQL(t *testing.T) {
	plain := "SELECT u.name, COUNT(*) FROM users u GROUP BY u.name"
	if got := CleanSQL(CleanSQL(plain)); got != plain {
		t.Fatalf("CleanSQL twice = %q", got)
	}
	if got := CleanSQL("```sql\n" + plain + "\n```"); got != plain {
		t.Fatalf("CleanSQL(fenced) = %q", got)
	}
}

func TestSanitizeError(t *testing.T) {
	cases := map[string]string{
		`near "FRM": syntax error`:             "Invalid SQL syntax. Please check your query.",
		"no such table: missing":               "Referenced table does not exist in the database.",
		"no such column: nope":                 "Referenced column does not exist.",
		"ambiguous column name: id":            "Ambiguous column reference. Please specify table name.",
		"canceling statement due to Timeout":   "Query took too long to execute. Please simplify your query.",
		"password authentication failed for x": "An error occurred while processing your request. Please try again.",
	}
	for raw, want := range cases {
		if got := SanitizeError(errors.New(raw)); got != want {
			t.Fatalf("SanitizeError(%q) = %q, want %q", raw, got, want)
		}
	}
	if got := SanitizeError(nil); got != "" {
		t.Fatalf("SanitizeError(nil) = %q", got)
	}
}

func TestExecuteFencedCount(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.Execute(context.Background(), "```sql\nSELECT COUNT(*) FROM users\n```")
	if !result.Success {
		t.Fatalf("Execute() error = %s", result.Error)
	}
	if !reflect.DeepEqual(result.Columns, []string{"COUNT(*)"}) {
		t.Fatalf("columns = %v", result.Columns)
	}
	if !reflect.DeepEqual(result.Rows, [][]any{{int64(2)}}) {
		t.Fatalf("rows = %v", result.Rows)
	}
	if result.SQL != "SELECT COUNT(*) FROM users" {
		t.Fatalf("sql = %q", result.SQL)
	}
}

func TestExecuteRejectsDropAndLeavesTableIntact(t *testing.T) {
	exec := newTestExecutor(t)

	for _, attempt := range []string{"DROP TABLE users", "SELECT * FROM users; DROP TABLE users;"} {
		result := exec.Execute(context.Background(), attempt)
		if result.Success {
			t.Fatalf("Execute(%q) succeeded", attempt)
		}
		if result.Class != safety.ClassSafetyViolation {
			t.Fatalf("Execute(%q) class = %q", attempt, result.Class)
		}
		if result.Error != "Safety Alert: Modification operations are not allowed. Only SELECT queries permitted." {
			t.Fatalf("Execute(%q) error = %q", attempt, result.Error)
		}
	}

	check := exec.Execute(context.Background(), "SELECT name FROM users ORDER BY id")
	if !check.Success {
		t.Fatalf("users table gone: %s", check.Error)
	}
	if !reflect.DeepEqual(check.Rows, [][]any{{"Alice"}, {"Bob"}}) {
		t.Fatalf("rows = %v", check.Rows)
	}
}

func TestExecuteRunsTargetDialectReads(t *testing.T) {
	exec := newTestExecutor(t)
	cases := map[string][][]any{
		`SELECT "name" FROM "users" ORDER BY "id"`:                                   {{"Alice"}, {"Bob"}},
		"WITH named AS (SELECT name FROM users WHERE id = 2) SELECT name FROM named": {{"Bob"}},
		"SELECT CAST(id AS REAL) FROM users ORDER BY id":                             {{1.0}, {2.0}},
		"SELECT name, ROW_NUMBER() OVER (ORDER BY id DESC) AS rn FROM users ORDER BY rn": {
			{"Bob", int64(1)}, {"Alice", int64(2)},
		},
	}
	for sqlText, want := range cases {
		result := exec.Execute(context.Background(), sqlText)
		if !result.Success {
			t.Fatalf("Execute(%q) error = %s (class %q)", sqlText, result.Error, result.Class)
		}
		if !reflect.DeepEqual(result.Rows, want) {
			t.Fatalf("Execute(%q) rows = %v, want %v", sqlText, result.Rows, want)
		}
	}
}

func TestExecuteRejectsSyntaxErrorsBeforeRunning(t *testing.T) {
	exec := newTestExecutor(t)
	result := exec.Execute(context.Background(), "SELEC name FROM users")
	if result.Success || result.Class != safety.ClassSyntaxError {
		t.Fatalf("Execute() = %+v, want syntax error", result)
	}
}

func TestExecuteSanitizesDriverErrors(t *testing.T) {
	exec := newTestExecutor(t)
	cases := map[string]string{
		"SELECT * FROM missing":        "Referenced table does not exist in the database.",
		"SELECT nope FROM users":       "Referenced column does not exist.",
		"SELECT id FROM users, orders": "Ambiguous column reference. Please specify table name.",
	}
	for sqlText, want := range cases {
		result := exec.Execute(context.Background(), sqlText)
		if result.Success {
			t.Fatalf("Execute(%q) succeeded", sqlText)
		}
		if result.Error != want {
			t.Fatalf("Execute(%q) error = %q, want %q", sqlText, result.Error, want)
		}
		if result.Class != "" {
			t.Fatalf("Execute(%q) class = %q, want none", sqlText, result.Class)
		}
	}
}

func TestExecuteEmptyResult(t *testing.T) {
	exec := newTestExecutor(t)
	result := exec.Execute(context.Background(), `SELECT name FROM users WHERE id < 0;`)
	if !result.Success {
		t.Fatalf("Execute() error = %s", result.Error)
	}
	if !reflect.DeepEqual(result.Columns, []string{"name"}) {
		t.Fatalf("columns = %v", result.Columns)
	}
	if result.Rows == nil || result.RowCount() != 0 {
		t.Fatalf("rows = %#v, want empty non-nil", result.Rows)
	}
}

func TestExecuteEscapedNewlines(t *testing.T) {
	exec := newTestExecutor(t)
	result := exec.Execute(context.Background(), `SELECT name\nFROM users\nWHERE id = 1`)
	if !result.Success {
		t.Fatalf("Execute() error = %s", result.Error)
	}
	if !reflect.DeepEqual(result.Rows, [][]any{{"Alice"}}) {
		t.Fatalf("rows = %v", result.Rows)
	}
}

func TestResultJSONShape(t *testing.T) {
	cases := []struct {
		result Result
		want   string
	}{
		{Result{Success: true, Columns: []string{"n"}, Rows: [][]any{{1}}}, `{"success":true,"columns":["n"],"data":[[1]]}`},
		{Result{Success: true}, `{"success":true,"columns":[],"data":[]}`},
		{Result{Error: "Referenced column does not exist.", Columns: []string{"x"}}, `{"success":false,"error":"Referenced column does not exist."}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.result)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		if string(raw) != tc.want {
			t.Fatalf("json = %s, want %s", raw, tc.want)
		}
	}
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "exec.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER);
INSERT INTO users (id, name) VALUES (1, 'Alice'), (2, 'Bob');`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, err := dialect.For(dialect.SQLite)
	if err != nil {
		t.Fatalf("dialect.For() error = %v", err)
	}
	return NewExecutor(db, safety.NewValidator(d), nil)
}
