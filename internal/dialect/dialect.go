// Package dialect resolves the closed set of supported SQL backends into a
// single value carrying connection details and backend-specific catalog
// queries. It is resolved once at startup and passed explicitly.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type Kind string

const (
	SQLite     Kind = "sqlite"
	PostgreSQL Kind = "postgresql"
	MySQL      Kind = "mysql"
)

const (
	defaultPostgresPort = 5432
	defaultMySQLPort    = 3306
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case SQLite:
		return SQLite, nil
	case PostgreSQL, "postgres":
		return PostgreSQL, nil
	case MySQL:
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", raw)
	}
}

// Querier is satisfied by *sql.DB and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect is the backend-specific behavior needed by schema extraction,
// foreign-key lookup and statement classification.
type Dialect interface {
	Kind() Kind
	// Name is the dialect name used inside prompts.
	Name() string
	QuoteIdent(name string) string
	Placeholder(position int) string
	ExtractSchema(ctx context.Context, q Querier) ([]string, error)
	ReferencedTables(ctx context.Context, q Querier, table string) ([]string, error)
	// ClassifyStatements parses sql with the backend's own grammar and
	// returns one kind per statement. Text the grammar rejects yields a
	// *SyntaxError.
	ClassifyStatements(sql string) ([]StatementKind, error)
}

// StatementKind is the coarse class of one parsed statement.
type StatementKind string

const (
	StatementRead   StatementKind = "read"
	StatementWrite  StatementKind = "write"
	StatementSchema StatementKind = "schema"
	// StatementOther covers session, transaction and admin statements, and
	// anything the parser could not place.
	StatementOther StatementKind = "other"
)

type SyntaxError struct {
	Dialect Kind
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Dialect, e.Msg)
}

func For(kind Kind) (Dialect, error) {
	switch kind {
	case SQLite:
		return sqliteDialect{}, nil
	case PostgreSQL:
		return postgresDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", kind)
	}
}

// Target identifies one database. Path applies to SQLite only.
type Target struct {
	Kind     Kind
	Path     string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

func (t Target) Dialect() (Dialect, error) {
	return For(t.Kind)
}

func (t Target) port() int {
	if t.Port > 0 {
		return t.Port
	}
	switch t.Kind {
	case PostgreSQL:
		return defaultPostgresPort
	case MySQL:
		return defaultMySQLPort
	default:
		return 0
	}
}

func (t Target) user() string {
	if t.User != "" {
		return t.User
	}
	switch t.Kind {
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "root"
	default:
		return ""
	}
}

// ConnectionString renders the canonical, driver-independent form of the
// target. The output is stable and parsed back by ParseConnectionString.
func (t Target) ConnectionString() string {
	switch t.Kind {
	case SQLite:
		return "sqlite:///" + t.Path
	case PostgreSQL:
		return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", t.user(), t.Password, t.Host, t.port(), t.Name)
	case MySQL:
		return fmt.Sprintf("mysql+pymysql://%s:%s@%s:%d/%s", t.user(), t.Password, t.Host, t.port(), t.Name)
	default:
		return ""
	}
}

func ParseConnectionString(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if path, ok := strings.CutPrefix(raw, "sqlite:///"); ok {
		if path == "" {
			return Target{}, fmt.Errorf("sqlite connection string has no path")
		}
		return Target{Kind: SQLite, Path: path}, nil
	}

	var kind Kind
	var rest string
	switch {
	case strings.HasPrefix(raw, "postgresql://"):
		kind, rest = PostgreSQL, strings.TrimPrefix(raw, "postgresql://")
	case strings.HasPrefix(raw, "mysql+pymysql://"):
		kind, rest = MySQL, strings.TrimPrefix(raw, "mysql+pymysql://")
	default:
		return Target{}, fmt.Errorf("unrecognized connection string scheme")
	}

	at := strings.LastIndex(rest, "@")
	slash := strings.LastIndex(rest, "/")
	if at < 0 || slash < at {
		return Target{}, fmt.Errorf("malformed %s connection string", kind)
	}
	credentials, hostPort, name := rest[:at], rest[at+1:slash], rest[slash+1:]
	user, password, _ := strings.Cut(credentials, ":")
	host, portRaw, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Target{}, fmt.Errorf("malformed %s host: %w", kind, err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		return Target{}, fmt.Errorf("malformed %s port: %w", kind, err)
	}
	return Target{Kind: kind, Host: host, Port: port, Name: name, User: user, Password: password}, nil
}

// DriverName is the database/sql driver registered for the target kind.
func (t Target) DriverName() string {
	switch t.Kind {
	case SQLite:
		return "sqlite"
	case PostgreSQL:
		return "pgx"
	case MySQL:
		return "mysql"
	default:
		return ""
	}
}

// DriverDSN renders the DSN understood by the Go driver for the target.
func (t Target) DriverDSN() string {
	switch t.Kind {
	case SQLite:
		return t.Path
	case PostgreSQL:
		u := url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(t.user(), t.Password),
			Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.port())),
			Path:   "/" + t.Name,
		}
		return u.String()
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = t.user()
		cfg.Passwd = t.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(t.Host, strconv.Itoa(t.port()))
		cfg.DBName = t.Name
		cfg.ParseTime = true
		return cfg.FormatDSN()
	default:
		return ""
	}
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		if value.Valid {
			out = append(out, value.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
