package bleveindex

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

var docs = []schema.Document{
	{ID: "users", SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT UNIQUE, signup_date DATE)"},
	{ID: "products", SQL: "CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, category TEXT, price DECIMAL(10,2), stock_level INTEGER)"},
	{ID: "orders", SQL: "CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, order_date DATE, status TEXT, total_amount DECIMAL(10,2))"},
}

func openIndex(t *testing.T, dir string) *Index {
	t.Helper()
	ix, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", dir, err)
	}
	return ix
}

func TestPersistentRebuildQueryAndReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix := openIndex(t, dir)
	if _, err := ix.Query(ctx, "users", 2); !errors.Is(err, vectorindex.ErrCollectionNotFound) {
		t.Fatalf("Query() before rebuild error = %v", err)
	}

	if err := ix.Rebuild(ctx, docs); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	hits, err := ix.Query(ctx, "what is the email of each user in users", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) == 0 || hits[0].Document.ID != "users" {
		t.Fatalf("hits = %+v, want users first", hits)
	}
	if !strings.Contains(hits[0].Document.SQL, "email TEXT UNIQUE") {
		t.Fatalf("stored sql = %q", hits[0].Document.SQL)
	}

	count, err := ix.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v", count, err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openIndex(t, dir)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Get(ctx, []string{"orders", "nope", "products"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ids := schema.IDs(got); !reflect.DeepEqual(ids, []string{"orders", "products"}) {
		t.Fatalf("ids = %v", ids)
	}
	if got[0].SQL != docs[2].SQL {
		t.Fatalf("orders sql = %q", got[0].SQL)
	}
}

func TestRebuildDropsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	ix := openIndex(t, t.TempDir())
	t.Cleanup(func() { _ = ix.Close() })

	for _, batch := range [][]schema.Document{docs, docs[1:2]} {
		if err := ix.Rebuild(ctx, batch); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
	}

	count, err := ix.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("Count() = %d, %v, want 1", count, err)
	}
	got, err := ix.Get(ctx, []string{"users"})
	if err != nil || len(got) != 0 {
		t.Fatalf("Get(users) = %v, %v, want empty", got, err)
	}
}

func TestMemOnlyIndex(t *testing.T) {
	ctx := context.Background()
	ix := openIndex(t, "")
	t.Cleanup(func() { _ = ix.Close() })

	if err := ix.Rebuild(ctx, docs); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	hits, err := ix.Query(ctx, "product category price", 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Document.ID != "products" {
		t.Fatalf("hits = %+v, want products", hits)
	}

	got, err := ix.Get(ctx, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("Get(nil) = %v, %v", got, err)
	}
}
