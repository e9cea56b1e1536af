// Package vectorindex stores schema documents for similarity retrieval.
// Backends live in subpackages; all share the fixed collection name and the
// drop-then-recreate rebuild contract.
package vectorindex

import (
	"context"
	"errors"

	"github.com/sqlrag/sqlrag/internal/schema"
)

// CollectionName is the name every backend stores documents under.
const CollectionName = "schema_index"

// ErrCollectionNotFound is returned by queries issued before the first
// rebuild, or while a rebuild has dropped the collection.
var ErrCollectionNotFound = errors.New("vector index collection not found")

type Hit struct {
	Document schema.Document
	Score    float64
}

type Index interface {
	// Rebuild discards any existing collection and stores docs under their
	// IDs. After it returns the index contains exactly docs.
	Rebuild(ctx context.Context, docs []schema.Document) error
	// Query returns at most k documents ranked by similarity to text.
	Query(ctx context.Context, text string, k int) ([]Hit, error)
	// Get fetches documents by ID, in the order given. Unknown IDs are
	// skipped; an empty ID list yields an empty result.
	Get(ctx context.Context, ids []string) ([]schema.Document, error)
	Count(ctx context.Context) (int, error)
}

func Documents(hits []Hit) []schema.Document {
	docs := make([]schema.Document, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, hit.Document)
	}
	return docs
}
