package dialect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ClassifyStatements compiles each statement with SQLite itself against an
// empty in-memory database. Compiling never runs anything. The authorizer
// hook reports what each statement would touch.
func (sqliteDialect) ClassifyStatements(sql string) ([]StatementKind, error) {
	kinds := make([]StatementKind, 0, 1)
	for _, stmt := range splitSQLiteStatements(sql) {
		kind, err := sqliteCompiler.classify(stmt)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

var sqliteCompiler = &sqliteClassifier{}

type sqliteClassifier struct {
	once    sync.Once
	initErr error

	mu      sync.Mutex
	conn    *sqlite3.Conn
	actions []sqlite3.AuthorizerActionCode
}

func (c *sqliteClassifier) open() error {
	c.once.Do(func() {
		conn, err := sqlite3.Open(":memory:")
		if err != nil {
			c.initErr = fmt.Errorf("open sqlite compiler: %w", err)
			return
		}
		if err := conn.SetAuthorizer(c.record); err != nil {
			_ = conn.Close()
			c.initErr = fmt.Errorf("install sqlite authorizer: %w", err)
			return
		}
		c.conn = conn
	})
	return c.initErr
}

func (c *sqliteClassifier) record(action sqlite3.AuthorizerActionCode, _, _, _, _ string) sqlite3.AuthorizerReturnCode {
	c.actions = append(c.actions, action)
	return sqlite3.AUTH_OK
}

func (c *sqliteClassifier) classify(stmt string) (StatementKind, error) {
	if err := c.open(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actions = c.actions[:0]
	prepared, _, err := c.conn.Prepare(stmt)
	if err != nil {
		// The database is empty, so every table lookup fails. Such errors
		// are raised only after the whole statement was parsed.
		if !unresolvedName(err) {
			return "", &SyntaxError{Dialect: SQLite, Msg: sqliteMessage(err)}
		}
		return kindFromActions(c.actions), nil
	}
	if prepared == nil {
		return StatementOther, nil
	}
	defer func() { _ = prepared.Close() }()

	kind := kindFromActions(c.actions)
	if kind == StatementRead && !prepared.ReadOnly() {
		return StatementWrite, nil
	}
	return kind, nil
}

// kindFromActions fails closed: a statement is a read only when SQLite
// started compiling a SELECT and asked for nothing beyond reads.
func kindFromActions(actions []sqlite3.AuthorizerActionCode) StatementKind {
	selected := false
	kind := StatementRead
	for _, action := range actions {
		switch action {
		case sqlite3.AUTH_SELECT:
			selected = true
		case sqlite3.AUTH_READ, sqlite3.AUTH_FUNCTION, sqlite3.AUTH_RECURSIVE:
		case sqlite3.AUTH_INSERT, sqlite3.AUTH_UPDATE, sqlite3.AUTH_DELETE:
			if kind == StatementRead {
				kind = StatementWrite
			}
		case sqlite3.AUTH_CREATE_INDEX, sqlite3.AUTH_CREATE_TABLE, sqlite3.AUTH_CREATE_TEMP_INDEX,
			sqlite3.AUTH_CREATE_TEMP_TABLE, sqlite3.AUTH_CREATE_TEMP_TRIGGER, sqlite3.AUTH_CREATE_TEMP_VIEW,
			sqlite3.AUTH_CREATE_TRIGGER, sqlite3.AUTH_CREATE_VIEW, sqlite3.AUTH_CREATE_VTABLE,
			sqlite3.AUTH_DROP_INDEX, sqlite3.AUTH_DROP_TABLE, sqlite3.AUTH_DROP_TEMP_INDEX,
			sqlite3.AUTH_DROP_TEMP_TABLE, sqlite3.AUTH_DROP_TEMP_TRIGGER, sqlite3.AUTH_DROP_TEMP_VIEW,
			sqlite3.AUTH_DROP_TRIGGER, sqlite3.AUTH_DROP_VIEW, sqlite3.AUTH_DROP_VTABLE,
			sqlite3.AUTH_ALTER_TABLE, sqlite3.AUTH_REINDEX, sqlite3.AUTH_ANALYZE:
			// Creating a table also inserts into sqlite_schema.
			kind = StatementSchema
		default:
			if kind == StatementRead {
				kind = StatementOther
			}
		}
	}
	if kind == StatementRead && !selected {
		return StatementOther
	}
	return kind
}

func unresolvedName(err error) bool {
	msg := sqliteMessage(err)
	for _, prefix := range []string{"no such table", "no such column", "no such function", "no such collation"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// sqliteMessage drops the result-code prefix the driver puts on errors.
func sqliteMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "SQL logic error: "); ok {
		return rest
	}
	return msg
}

// splitSQLiteStatements cuts text at semicolons outside of quotes, bracketed
// identifiers and comments. Pieces holding only whitespace or comments are
// dropped.
func splitSQLiteStatements(sql string) []string {
	var (
		out     []string
		start   int
		content bool
	)
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
			content = true
		case c == '[':
			if end := strings.IndexByte(sql[i:], ']'); end >= 0 {
				i += end
			} else {
				i = len(sql)
			}
			content = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			if end := strings.IndexByte(sql[i:], '\n'); end >= 0 {
				i += end
			} else {
				i = len(sql)
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(sql)
			}
		case c == ';':
			if content {
				out = append(out, sql[start:i+1])
			}
			start, content = i+1, false
		case c != ' ' && c != '\t' && c != '\r' && c != '\n':
			content = true
		}
	}
	if content {
		out = append(out, sql[start:])
	}
	return out
}

// skipQuoted returns the index of the quote closing the literal opened at
// i. A doubled quote is an escaped one.
func skipQuoted(sql string, i int, quote byte) int {
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == quote {
			j++
			continue
		}
		return j
	}
	return len(sql)
}
