package dialect

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type postgresDialect struct{}

func (postgresDialect) Kind() Kind   { return PostgreSQL }
func (postgresDialect) Name() string { return "postgresql" }

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) Placeholder(position int) string { return "$" + strconv.Itoa(position) }

const postgresListTablesSQL = `SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public'
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

// The catalog keeps no DDL text, so a CREATE TABLE statement is synthesized
// from information_schema.columns in ordinal order.
const postgresCreateTableSQL = `SELECT 'CREATE TABLE ' || $1::text || ' (' ||
  string_agg(
    column_name || ' ' ||
    CASE
      WHEN data_type = 'character varying' THEN 'VARCHAR(' || character_maximum_length || ')'
      WHEN data_type = 'numeric' THEN 'DECIMAL(' || numeric_precision || ',' || numeric_scale || ')'
      WHEN data_type = 'integer' THEN 'INTEGER'
      WHEN data_type = 'timestamp without time zone' THEN 'TIMESTAMP'
      ELSE UPPER(data_type)
    END ||
    CASE WHEN is_nullable = 'NO' THEN ' NOT NULL' ELSE '' END,
    ', ' ORDER BY ordinal_position
  ) || ');'
FROM information_schema.columns
WHERE table_schema = 'public'
  AND table_name = $1::text`

const postgresReferencedTablesSQL = `SELECT DISTINCT ccu.table_name
FROM information_schema.table_constraints tc
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name
 AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = 'public'
  AND tc.table_name = $1::text
  AND ccu.table_name <> $1::text
ORDER BY ccu.table_name`

func (postgresDialect) ExtractSchema(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, postgresListTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list postgresql tables: %w", err)
	}
	tables, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan postgresql tables: %w", err)
	}

	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		rows, err := q.QueryContext(ctx, postgresCreateTableSQL, table)
		if err != nil {
			return nil, fmt.Errorf("describe postgresql table %s: %w", table, err)
		}
		ddl, err := scanStrings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan postgresql table %s: %w", table, err)
		}
		stmts = append(stmts, ddl...)
	}
	return stmts, nil
}

func (postgresDialect) ReferencedTables(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, postgresReferencedTablesSQL, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	tables, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan foreign keys of %s: %w", table, err)
	}
	return tables, nil
}
