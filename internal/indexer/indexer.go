// Package indexer rebuilds the schema index from the live database.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

type SchemaSource interface {
	Extract(ctx context.Context) ([]schema.Document, error)
}

type Report struct {
	Tables   []string      `json:"tables"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"-"`
}

// Indexer serializes rebuilds within the process. Readers are not blocked
// and may see ErrCollectionNotFound while a backend recreates its
// collection.
type Indexer struct {
	source SchemaSource
	index  vectorindex.Index
	logger *slog.Logger
	mu     sync.Mutex
}

func New(source SchemaSource, index vectorindex.Index, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{source: source, index: index, logger: logger}
}

func (ix *Indexer) Rebuild(ctx context.Context) (Report, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	docs, err := ix.source.Extract(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("extract schema: %w", err)
	}
	if err := ix.index.Rebuild(ctx, docs); err != nil {
		return Report{}, fmt.Errorf("rebuild index: %w", err)
	}
	observability.SetIndexedDocuments(len(docs))

	report := Report{Tables: schema.IDs(docs), Count: len(docs), Duration: time.Since(start)}
	ix.logger.InfoContext(ctx, "schema index rebuilt",
		slog.Int("documents", report.Count),
		slog.Any("tables", report.Tables),
		slog.String("duration", report.Duration.String()),
	)
	return report, nil
}

// Ready reports whether the index holds a collection.
func (ix *Indexer) Ready(ctx context.Context) error {
	if _, err := ix.index.Count(ctx); err != nil {
		return err
	}
	return nil
}
