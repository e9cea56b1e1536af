// Package retriever assembles the schema context supplied to the model for
// one question.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

type Mode string

const (
	ModePlain Mode = "plain"
	ModeSmart Mode = "smart"
)

const (
	DefaultPlainK = 3
	DefaultSmartK = 2
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePlain:
		return ModePlain, nil
	case ModeSmart:
		return ModeSmart, nil
	default:
		return "", fmt.Errorf("unsupported retrieval mode %q", raw)
	}
}

type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]schema.Document, error)
	Mode() Mode
}

// ForeignKeySource lists the tables one table references.
type ForeignKeySource interface {
	ReferencedTables(ctx context.Context, table string) ([]string, error)
}

// New builds the retriever for mode. A non-positive k selects the mode's
// default.
func New(mode Mode, k int, index vectorindex.Index, fks ForeignKeySource, logger *slog.Logger) (Retriever, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case ModePlain:
		if k <= 0 {
			k = DefaultPlainK
		}
		return &Plain{K: k, Index: index}, nil
	case ModeSmart:
		if k <= 0 {
			k = DefaultSmartK
		}
		if fks == nil {
			return nil, fmt.Errorf("smart retrieval requires a foreign key source")
		}
		return &Smart{K: k, Index: index, ForeignKeys: fks, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported retrieval mode %q", mode)
	}
}

// Plain returns the top K documents in similarity order.
type Plain struct {
	K     int
	Index vectorindex.Index
}

func (p *Plain) Mode() Mode { return ModePlain }

func (p *Plain) Retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	hits, err := p.Index.Query(ctx, question, p.K)
	if err != nil {
		return nil, fmt.Errorf("query schema index: %w", err)
	}
	docs := vectorindex.Documents(hits)
	observability.ObserveRetrieval(string(ModePlain), len(docs))
	return docs, nil
}

// Smart expands the top K matches with the tables they reference through
// foreign keys. Expansion is one hop: a neighbour's own references are not
// followed.
type Smart struct {
	K           int
	Index       vectorindex.Index
	ForeignKeys ForeignKeySource
	Logger      *slog.Logger
}

func (s *Smart) Mode() Mode { return ModeSmart }

func (s *Smart) Retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	hits, err := s.Index.Query(ctx, question, s.K)
	if err != nil {
		return nil, fmt.Errorf("query schema index: %w", err)
	}
	if len(hits) == 0 {
		observability.ObserveRetrieval(string(ModeSmart), 0)
		return []schema.Document{}, nil
	}

	seen := make(map[string]struct{}, len(hits))
	ids := make([]string, 0, len(hits))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, hit := range hits {
		add(hit.Document.ID)
	}
	for _, hit := range hits {
		neighbours, err := s.ForeignKeys.ReferencedTables(ctx, hit.Document.ID)
		if err != nil {
			s.logger().WarnContext(ctx, "foreign key lookup failed",
				slog.String("table", hit.Document.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, table := range neighbours {
			add(table)
		}
	}

	docs, err := s.Index.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch schema documents: %w", err)
	}
	s.logger().DebugContext(ctx, "smart retrieval expanded context",
		slog.Int("matched", len(hits)),
		slog.Int("documents", len(docs)),
	)
	observability.ObserveRetrieval(string(ModeSmart), len(docs))
	return docs, nil
}

func (s *Smart) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Context renders documents as the schema block of the system prompt.
func Context(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.SQL)
	}
	return strings.Join(parts, "\n\n")
}
