package schema

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sqlrag/sqlrag/internal/dialect"
)

// Store reads table definitions and foreign-key edges from the analytical
// database through its dialect.
type Store struct {
	db      dialect.Querier
	dialect dialect.Dialect
	fkCache *cache.Cache
	logger  *slog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithForeignKeyCacheTTL controls how long referenced-table lookups are
// reused. A non-positive TTL disables caching.
func WithForeignKeyCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl <= 0 {
			s.fkCache = nil
			return
		}
		s.fkCache = cache.New(ttl, 2*ttl)
	}
}

func NewStore(db dialect.Querier, d dialect.Dialect, opts ...StoreOption) *Store {
	s := &Store{
		db:      db,
		dialect: d,
		fkCache: cache.New(5*time.Minute, 10*time.Minute),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Extract returns one document per table in deterministic order. An empty
// database yields an empty slice.
func (s *Store) Extract(ctx context.Context) ([]Document, error) {
	stmts, err := s.dialect.ExtractSchema(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("extract schema: %w", err)
	}
	if s.fkCache != nil {
		s.fkCache.Flush()
	}
	docs := Documents(stmts)
	s.logger.InfoContext(ctx, "schema extracted", slog.String("dialect", s.dialect.Name()), slog.Int("tables", len(docs)))
	return docs, nil
}

// ReferencedTables lists the tables the given table references through
// foreign keys, one hop only.
func (s *Store) ReferencedTables(ctx context.Context, table string) ([]string, error) {
	if s.fkCache != nil {
		if cached, ok := s.fkCache.Get(table); ok {
			return cached.([]string), nil
		}
	}
	tables, err := s.dialect.ReferencedTables(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	if s.fkCache != nil {
		s.fkCache.Set(table, tables, cache.DefaultExpiration)
	}
	return tables, nil
}
