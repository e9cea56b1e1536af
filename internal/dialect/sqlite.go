package dialect

import (
	"context"
	"fmt"
	"strings"
)

type sqliteDialect struct{}

func (sqliteDialect) Kind() Kind   { return SQLite }
func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) Placeholder(int) string { return "?" }

// ExtractSchema returns the stored CREATE TABLE text of every user table.
// Tables without stored DDL are skipped.
func (sqliteDialect) ExtractSchema(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sqlite tables: %w", err)
	}
	stmts, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan sqlite tables: %w", err)
	}
	return stmts, nil
}

func (sqliteDialect) ReferencedTables(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT "table" FROM pragma_foreign_key_list(?) ORDER BY "table"`, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	tables, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan foreign keys of %s: %w", table, err)
	}
	return tables, nil
}
