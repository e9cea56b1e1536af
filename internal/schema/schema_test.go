package schema

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "modernc.org/sqlite"

	"github.com/sqlrag/sqlrag/internal/dialect"
)

func TestTableIdentifier(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"CREATE TABLE users (id INTEGER)", "users"},
		{"create table if not exists orders(id int)", "orders"},
		{`CREATE TABLE "order_items" (order_id INTEGER)`, "order_items"},
		{"CREATE TABLE `products` (\n `id` int\n)", "products"},
		{"CREATE   TABLE\n  public.events (id int)", "public.events"},
		{"CREATE VIEW v AS SELECT 1", "table_4"},
		{"", "table_4"},
	}
	for _, tc := range cases {
		if got := TableIdentifier(tc.sql, 4); got != tc.want {
			t.Fatalf("TableIdentifier(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}

func TestDocumentsPreserveOrderAndFallback(t *testing.T) {
	docs := Documents([]string{"CREATE TABLE a (x int)", "garbage", "CREATE TABLE c (y int)"})
	if ids := IDs(docs); !reflect.DeepEqual(ids, []string{"a", "table_1", "c"}) {
		t.Fatalf("ids = %v", ids)
	}
	if docs[1].SQL != "garbage" {
		t.Fatalf("docs[1].SQL = %q", docs[1].SQL)
	}
}

func TestStoreExtractSQLite(t *testing.T) {
	db := openSQLite(t)
	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));`); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	store := NewStore(db, mustDialect(t, dialect.SQLite))

	first, err := store.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ids := IDs(first); !reflect.DeepEqual(ids, []string{"orders", "users"}) {
		t.Fatalf("ids = %v", ids)
	}

	second, err := store.Extract(context.Background())
	if err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extracts differ: %+v vs %+v", first, second)
	}

	refs, err := store.ReferencedTables(context.Background(), "orders")
	if err != nil {
		t.Fatalf("ReferencedTables() error = %v", err)
	}
	if !reflect.DeepEqual(refs, []string{"users"}) {
		t.Fatalf("refs = %v", refs)
	}
}

func TestStoreExtractEmptyDatabase(t *testing.T) {
	docs, err := NewStore(openSQLite(t), mustDialect(t, dialect.SQLite)).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs = %+v, want none", docs)
	}
}

func TestStoreCachesReferencedTables(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.KEY_COLUMN_USAGE")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"REFERENCED_TABLE_NAME"}).AddRow("users"))

	store := NewStore(db, mustDialect(t, dialect.MySQL), WithForeignKeyCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		refs, err := store.ReferencedTables(context.Background(), "orders")
		if err != nil {
			t.Fatalf("ReferencedTables() #%d error = %v", i, err)
		}
		if !reflect.DeepEqual(refs, []string{"users"}) {
			t.Fatalf("refs = %v", refs)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestStoreDoesNotCacheErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.KEY_COLUMN_USAGE")).
		WithArgs("orders").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.KEY_COLUMN_USAGE")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"REFERENCED_TABLE_NAME"}).AddRow("users"))

	store := NewStore(db, mustDialect(t, dialect.MySQL))

	if _, err := store.ReferencedTables(context.Background(), "orders"); err == nil {
		t.Fatalf("expected first lookup to fail")
	}
	refs, err := store.ReferencedTables(context.Background(), "orders")
	if err != nil {
		t.Fatalf("ReferencedTables() error = %v", err)
	}
	if !reflect.DeepEqual(refs, []string{"users"}) {
		t.Fatalf("refs = %v", refs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func mustDialect(t *testing.T, kind dialect.Kind) dialect.Dialect {
	t.Helper()
	d, err := dialect.For(kind)
	if err != nil {
		t.Fatalf("dialect.For(%s) error = %v", kind, err)
	}
	return d
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
