package dialect

import (
	"context"
	"fmt"
	"strings"
)

type mysqlDialect struct{}

func (mysqlDialect) Kind() Kind   { return MySQL }
func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

const mysqlReferencedTablesSQL = `SELECT DISTINCT REFERENCED_TABLE_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE()
  AND TABLE_NAME = ?
  AND REFERENCED_TABLE_NAME IS NOT NULL
  AND REFERENCED_TABLE_NAME <> TABLE_NAME
ORDER BY REFERENCED_TABLE_NAME`

func (d mysqlDialect) ExtractSchema(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("list mysql tables: %w", err)
	}
	tables, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan mysql tables: %w", err)
	}

	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		ddl, err := d.showCreateTable(ctx, q, table)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, ddl)
	}
	return stmts, nil
}

func (d mysqlDialect) showCreateTable(ctx context.Context, q Querier, table string) (string, error) {
	rows, err := q.QueryContext(ctx, "SHOW CREATE TABLE "+d.QuoteIdent(table))
	if err != nil {
		return "", fmt.Errorf("describe mysql table %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("describe mysql table %s: %w", table, err)
		}
		return "", fmt.Errorf("describe mysql table %s: no rows", table)
	}
	var name, ddl string
	if err := rows.Scan(&name, &ddl); err != nil {
		return "", fmt.Errorf("scan mysql table %s: %w", table, err)
	}
	return ddl, rows.Err()
}

func (mysqlDialect) ReferencedTables(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, mysqlReferencedTablesSQL, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	tables, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan foreign keys of %s: %w", table, err)
	}
	return tables, nil
}
