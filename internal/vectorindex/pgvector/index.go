// Package pgvector stores schema document embeddings in a PostgreSQL table
// using the vector extension, ranked by cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/sqlrag/sqlrag/internal/embedding"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

const undefinedTable = "42P01"

type Index struct {
	db       *sql.DB
	embedder embedding.Embedder
}

var _ vectorindex.Index = (*Index)(nil)

func New(db *sql.DB, embedder embedding.Embedder) *Index {
	return &Index{db: db, embedder: embedder}
}

// Rebuild drops and recreates the collection table inside one transaction,
// so concurrent readers see either the old or the new collection.
func (ix *Index) Rebuild(ctx context.Context, docs []schema.Document) error {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.SQL
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed schema documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	if _, err := ix.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+vectorindex.CollectionName); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+vectorindex.CollectionName+` (
  id TEXT PRIMARY KEY,
  sql TEXT NOT NULL,
  embedding vector NOT NULL
)`); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	for i, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+vectorindex.CollectionName+` (id, sql, embedding) VALUES ($1, $2, $3)`,
			doc.ID, doc.SQL, pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild tx: %w", err)
	}
	return nil
}

func (ix *Index) Query(ctx context.Context, text string, k int) ([]vectorindex.Hit, error) {
	if k <= 0 {
		return []vectorindex.Hit{}, nil
	}
	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, sql, embedding <=> $1 AS distance FROM `+vectorindex.CollectionName+` ORDER BY distance LIMIT $2`,
		pgvector.NewVector(vectors[0]), k,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	hits := make([]vectorindex.Hit, 0, k)
	for rows.Next() {
		var doc schema.Document
		var distance float64
		if err := rows.Scan(&doc.ID, &doc.SQL, &distance); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, vectorindex.Hit{Document: doc, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

func (ix *Index) Get(ctx context.Context, ids []string) ([]schema.Document, error) {
	if len(ids) == 0 {
		return []schema.Document{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, sql FROM `+vectorindex.CollectionName+` WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	found := make(map[string]string, len(ids))
	for rows.Next() {
		var id, sqlText string
		if err := rows.Scan(&id, &sqlText); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		found[id] = sqlText
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	docs := make([]schema.Document, 0, len(found))
	for _, id := range ids {
		if sqlText, ok := found[id]; ok {
			docs = append(docs, schema.Document{ID: id, SQL: sqlText})
		}
	}
	return docs, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+vectorindex.CollectionName).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return vectorindex.ErrCollectionNotFound
	}
	return fmt.Errorf("query vector index: %w", err)
}
