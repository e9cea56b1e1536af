package safety

import (
	"errors"
	"strings"
	"testing"

	"github.com/sqlrag/sqlrag/internal/dialect"
)

func newValidatorFor(t *testing.T, kind dialect.Kind) *Validator {
	t.Helper()
	d, err := dialect.For(kind)
	if err != nil {
		t.Fatalf("dialect.For(%s) error = %v", kind, err)
	}
	return NewValidator(d)
}

var allDialects = []dialect.Kind{dialect.SQLite, dialect.PostgreSQL, dialect.MySQL}

func TestCheckAllowsReadQueries(t *testing.T) {
	queries := []string{
		"SELECT * FROM users",
		"select name, email from users where id = 1;",
		"SELECT COUNT(*) FROM orders",
		"SELECT u.name, SUM(o.total_amount) AS total FROM users u JOIN orders o ON o.user_id = u.id GROUP BY u.name ORDER BY total DESC LIMIT 5",
		"SELECT name FROM products WHERE id IN (SELECT product_id FROM order_items WHERE quantity > 2)",
		"SELECT id FROM users UNION SELECT user_id FROM orders",
		"SELECT name, CASE WHEN total > 100 THEN 'big' ELSE 'small' END FROM orders LIMIT 10 OFFSET 5",
		"WITH t AS (SELECT 1 AS x) SELECT x FROM t",
		"SELECT user_id, ROW_NUMBER() OVER (ORDER BY total DESC) AS rn FROM orders",
		"```sql\nSELECT * FROM users\n```",
	}
	for _, kind := range allDialects {
		v := newValidatorFor(t, kind)
		for _, sql := range queries {
			verdict := v.Check(sql)
			if !verdict.Allowed {
				t.Fatalf("%s: Check(%q) = %+v, want allowed", kind, sql, verdict)
			}
			if err := verdict.Err(); err != nil {
				t.Fatalf("%s: Err() = %v", kind, err)
			}
		}
	}
}

func TestCheckAllowsDialectSpecificReads(t *testing.T) {
	cases := map[dialect.Kind][]string{
		dialect.SQLite: {
			`SELECT "name" FROM "users"`,
			"SELECT CAST(total AS REAL) FROM orders",
			"SELECT CAST(total AS INTEGER) FROM orders",
			"SELECT name FROM users ORDER BY name NULLS LAST",
			"SELECT strftime('%Y', created_at) AS year, COUNT(*) FROM orders GROUP BY year",
			"SELECT * FROM orders WHERE created_at >= date('now', '-30 days')",
			"SELECT `name` FROM [users] LIMIT 5, 10",
			"SELECT name FROM users WHERE name GLOB 'A*'",
			"SELECT 1; SELECT 2;",
		},
		dialect.PostgreSQL: {
			`SELECT "name" FROM "users"`,
			"SELECT CAST(total AS REAL) FROM orders",
			"SELECT CAST(total AS INTEGER) FROM orders",
			"SELECT EXTRACT(YEAR FROM created_at) FROM orders",
			"SELECT name FROM users ORDER BY name NULLS LAST",
			"SELECT * FROM orders WHERE created_at >= CURRENT_DATE - INTERVAL '30 days'",
			"SELECT DISTINCT ON (user_id) user_id, total FROM orders ORDER BY user_id, total DESC",
			"SELECT created_at::timestamp with time zone, total::double precision FROM orders",
			"SELECT order_date::date, total_amount::numeric(10,2) FROM orders WHERE status ILIKE 'pend%'",
			"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 5) SELECT i FROM n",
			"SHOW search_path",
		},
		dialect.MySQL: {
			"SELECT `name` FROM `users`",
			"SELECT EXTRACT(YEAR FROM created_at) FROM orders",
			"SELECT CAST(total AS DECIMAL(10,2)) FROM orders",
			"SELECT * FROM orders WHERE created_at >= DATE_SUB(CURDATE(), INTERVAL 30 DAY)",
			"SELECT name FROM users LIMIT 5, 10",
			"SHOW TABLES",
		},
	}
	for kind, queries := range cases {
		v := newValidatorFor(t, kind)
		for _, sql := range queries {
			if verdict := v.Check(sql); !verdict.Allowed {
				t.Fatalf("%s: Check(%q) = %+v, want allowed", kind, sql, verdict)
			}
		}
	}
}

func TestCheckUsesTargetGrammar(t *testing.T) {
	cases := []struct {
		kind dialect.Kind
		sql  string
	}{
		// MySQL reads double quotes as string literals.
		{dialect.MySQL, `SELECT name FROM "users"`},
		{dialect.MySQL, "SELECT name FROM users ORDER BY name NULLS LAST"},
		{dialect.PostgreSQL, "SELECT `name` FROM users"},
		{dialect.PostgreSQL, "SELECT name FROM users LIMIT 5, 10"},
		{dialect.SQLite, "SELECT DISTINCT ON (user_id) user_id FROM orders"},
	}
	for _, tc := range cases {
		verdict := newValidatorFor(t, tc.kind).Check(tc.sql)
		if verdict.Class != ClassSyntaxError {
			t.Fatalf("%s: Check(%q) = %+v, want syntax error", tc.kind, tc.sql, verdict)
		}
	}
}

func TestCheckLexicalLayer(t *testing.T) {
	v := newValidatorFor(t, dialect.SQLite)
	for _, sql := range []string{
		"DROP TABLE users",
		"delete from users",
		"UPDATE users SET name = 'x'",
		"insert into users values (1)",
		"SELECT * FROM users; DROP TABLE users;",
		"SELECT update_count FROM stats",
		"SELECT 1 -- drop everything",
		"```sql\nDrop table users\n```",
	} {
		verdict := v.Check(sql)
		if verdict.Allowed || verdict.Class != ClassSafetyViolation {
			t.Fatalf("Check(%q) = %+v, want safety violation", sql, verdict)
		}
		if verdict.Reason != "Safety Alert: Modification operations are not allowed. Only SELECT queries permitted." {
			t.Fatalf("Check(%q) reason = %q", sql, verdict.Reason)
		}
		if !errors.Is(verdict.Err(), ErrSafetyViolation) {
			t.Fatalf("Check(%q) Err() = %v, want ErrSafetyViolation", sql, verdict.Err())
		}
	}

	if verdict := lexical("SELECT name FROM users"); !verdict.Allowed {
		t.Fatalf("lexical(select) = %+v, want allowed", verdict)
	}
}

func TestStructuralRejectsWritesWithoutLexicalHelp(t *testing.T) {
	statements := []string{
		"DROP TABLE users",
		"DELETE FROM users WHERE id = 1",
		"INSERT INTO users (name) VALUES ('x')",
		"UPDATE users SET name = 'x'",
		"SELECT * FROM users; DROP TABLE users;",
	}
	for _, kind := range allDialects {
		v := newValidatorFor(t, kind)
		for _, sql := range statements {
			verdict := v.structural(sql)
			if verdict.Allowed || verdict.Class != ClassSafetyViolation {
				t.Fatalf("%s: structural(%q) = %+v, want safety violation", kind, sql, verdict)
			}
			if verdict.Reason != "Safety Violation: AST detected a modification command." {
				t.Fatalf("%s: structural(%q) reason = %q", kind, sql, verdict.Reason)
			}
		}
	}
}

func TestStructuralRejectsNestedWrites(t *testing.T) {
	v := newValidatorFor(t, dialect.PostgreSQL)
	for _, sql := range []string{
		"WITH gone AS (DELETE FROM users RETURNING id) SELECT id FROM gone",
		"SELECT * INTO backup FROM users",
		"SELECT * FROM users FOR UPDATE",
	} {
		if verdict := v.structural(sql); verdict.Class != ClassSafetyViolation {
			t.Fatalf("structural(%q) = %+v, want safety violation", sql, verdict)
		}
	}
}

func TestCheckStructuralLayer(t *testing.T) {
	cases := map[dialect.Kind][]string{
		dialect.SQLite: {
			"CREATE TABLE evil (id INT)",
			"ALTER TABLE users ADD COLUMN evil INT",
			"REPLACE INTO users (id) VALUES (1)",
			"SELECT 1; CREATE TABLE evil (id INT)",
			"CREATE VIEW v AS SELECT 1",
			"PRAGMA writable_schema = 1",
			"ATTACH DATABASE 'other.db' AS other",
		},
		dialect.PostgreSQL: {
			"CREATE TABLE evil (id INT)",
			"ALTER TABLE users ADD COLUMN evil INT",
			"TRUNCATE TABLE users",
			"SELECT 1; CREATE TABLE evil (id INT)",
			"SET search_path = evil",
			"COPY users TO '/tmp/users.csv'",
		},
		dialect.MySQL: {
			"CREATE TABLE evil (id INT)",
			"ALTER TABLE users ADD COLUMN evil INT",
			"TRUNCATE TABLE users",
			"REPLACE INTO users (id) VALUES (1)",
			"CREATE DATABASE evil",
			"SELECT 1; CREATE TABLE evil (id INT)",
			"SET autocommit = 0",
			"SELECT * FROM users INTO OUTFILE '/tmp/users.csv'",
		},
	}
	for kind, statements := range cases {
		v := newValidatorFor(t, kind)
		for _, sql := range statements {
			verdict := v.Check(sql)
			if verdict.Allowed || verdict.Class != ClassSafetyViolation {
				t.Fatalf("%s: Check(%q) = %+v, want safety violation", kind, sql, verdict)
			}
			if verdict.Reason != "Safety Violation: AST detected a modification command." {
				t.Fatalf("%s: Check(%q) reason = %q", kind, sql, verdict.Reason)
			}
		}
	}
}

func TestCheckSyntaxErrorsAreDistinct(t *testing.T) {
	for _, kind := range allDialects {
		v := newValidatorFor(t, kind)
		for _, sql := range []string{
			"SELEC * FROM users",
			"SELECT * FROM",
			"",
			"   ;  ",
			"```sql\n```",
		} {
			verdict := v.Check(sql)
			if verdict.Allowed || verdict.Class != ClassSyntaxError {
				t.Fatalf("%s: Check(%q) = %+v, want syntax error", kind, sql, verdict)
			}
			if !strings.HasPrefix(verdict.Reason, "Syntax Error: ") {
				t.Fatalf("%s: Check(%q) reason = %q", kind, sql, verdict.Reason)
			}
			if err := verdict.Err(); !errors.Is(err, ErrSyntax) || errors.Is(err, ErrSafetyViolation) {
				t.Fatalf("%s: Check(%q) Err() = %v, want ErrSyntax only", kind, sql, err)
			}
		}
	}
}
