// Package memory is an in-process embedding index using cosine similarity.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sqlrag/sqlrag/internal/embedding"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

type entry struct {
	doc    schema.Document
	vector []float32
}

type Index struct {
	embedder embedding.Embedder

	mu      sync.RWMutex
	built   bool
	entries []entry
	byID    map[string]int
}

var _ vectorindex.Index = (*Index)(nil)

func New(embedder embedding.Embedder) *Index {
	return &Index{embedder: embedder}
}

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

	entries := make([]entry, len(docs))
	byID := make(map[string]int, len(docs))
	for i, doc := range docs {
		entries[i] = entry{doc: doc, vector: vectors[i]}
		byID[doc.ID] = i
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.byID = byID
	ix.built = true
	ix.mu.Unlock()
	return nil
}

func (ix *Index) Query(ctx context.Context, text string, k int) ([]vectorindex.Hit, error) {
	ix.mu.RLock()
	built, entries := ix.built, ix.entries
	ix.mu.RUnlock()
	if !built {
		return nil, vectorindex.ErrCollectionNotFound
	}
	if k <= 0 || len(entries) == 0 {
		return []vectorindex.Hit{}, nil
	}

	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}

	hits := make([]vectorindex.Hit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, vectorindex.Hit{Document: e.doc, Score: cosine(vectors[0], e.vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *Index) Get(_ context.Context, ids []string) ([]schema.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return nil, vectorindex.ErrCollectionNotFound
	}
	docs := make([]schema.Document, 0, len(ids))
	for _, id := range ids {
		if i, ok := ix.byID[id]; ok {
			docs = append(docs, ix.entries[i].doc)
		}
	}
	return docs, nil
}

func (ix *Index) Count(context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return 0, vectorindex.ErrCollectionNotFound
	}
	return len(ix.entries), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
