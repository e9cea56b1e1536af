// Package bleveindex keeps schema documents in a bleve full-text index on disk.
// Ranking is lexical (tf-idf) rather than embedding based, so it
// works without any embedding service.
package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

const sqlField = "sql"

// Index stores the collection under <path>/schema_index. An empty path keeps
// the index in memory only.
type Index struct {
	path string

	mu    sync.RWMutex
	index bleve.Index
}

var _ vectorindex.Index = (*Index)(nil)

// Open attaches to an existing collection at path if there is one, so a
// restarted process can answer questions before the next rebuild.
func Open(path string) (*Index, error) {
	ix := &Index{path: path}
	if path == "" {
		return ix, nil
	}
	existing, err := bleve.Open(ix.collectionPath())
	switch {
	case err == nil:
		ix.index = existing
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
	default:
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return ix, nil
}

func (ix *Index) collectionPath() string {
	return ix.path + string(os.PathSeparator) + vectorindex.CollectionName
}

func (ix *Index) Rebuild(_ context.Context, docs []schema.Document) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.index != nil {
		if err := ix.index.Close(); err != nil {
			return fmt.Errorf("close bleve index: %w", err)
		}
		ix.index = nil
	}

	var (
		fresh bleve.Index
		err   error
	)
	if ix.path == "" {
		fresh, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		if err := os.RemoveAll(ix.collectionPath()); err != nil {
			return fmt.Errorf("drop bleve collection: %w", err)
		}
		if err := os.MkdirAll(ix.path, 0o755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
		fresh, err = bleve.New(ix.collectionPath(), bleve.NewIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create bleve collection: %w", err)
	}

	batch := fresh.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, map[string]any{"table": doc.ID, sqlField: doc.SQL}); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("write bleve batch: %w", err)
	}
	ix.index = fresh
	return nil
}

func (ix *Index) Query(_ context.Context, text string, k int) ([]vectorindex.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.index == nil {
		return nil, vectorindex.ErrCollectionNotFound
	}
	if k <= 0 {
		return []vectorindex.Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(text), k, 0, false)
	req.Fields = []string{sqlField}
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search bleve index: %w", err)
	}
	hits := make([]vectorindex.Hit, 0, len(res.Hits))
	for _, match := range res.Hits {
		sql, _ := match.Fields[sqlField].(string)
		hits = append(hits, vectorindex.Hit{Document: schema.Document{ID: match.ID, SQL: sql}, Score: match.Score})
	}
	return hits, nil
}

func (ix *Index) Get(_ context.Context, ids []string) ([]schema.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.index == nil {
		return nil, vectorindex.ErrCollectionNotFound
	}
	if len(ids) == 0 {
		return []schema.Document{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = []string{sqlField}
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bleve documents: %w", err)
	}
	found := make(map[string]string, len(res.Hits))
	for _, match := range res.Hits {
		sql, _ := match.Fields[sqlField].(string)
		found[match.ID] = sql
	}
	docs := make([]schema.Document, 0, len(found))
	for _, id := range ids {
		if sql, ok := found[id]; ok {
			docs = append(docs, schema.Document{ID: id, SQL: sql})
		}
	}
	return docs, nil
}

func (ix *Index) Count(context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.index == nil {
		return 0, vectorindex.ErrCollectionNotFound
	}
	n, err := ix.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count bleve documents: %w", err)
	}
	return int(n), nil
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.index == nil {
		return nil
	}
	err := ix.index.Close()
	ix.index = nil
	return err
}
