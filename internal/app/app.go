// Package app assembles the runtime graph from configuration. Both binaries
// build one App at startup and pass its parts down explicitly.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sqlrag/sqlrag/internal/api"
	"github.com/sqlrag/sqlrag/internal/config"
	"github.com/sqlrag/sqlrag/internal/database"
	"github.com/sqlrag/sqlrag/internal/dialect"
	"github.com/sqlrag/sqlrag/internal/embedding"
	"github.com/sqlrag/sqlrag/internal/export"
	"github.com/sqlrag/sqlrag/internal/indexer"
	"github.com/sqlrag/sqlrag/internal/llm"
	"github.com/sqlrag/sqlrag/internal/nl2sql"
	"github.com/sqlrag/sqlrag/internal/query"
	"github.com/sqlrag/sqlrag/internal/ratelimit"
	"github.com/sqlrag/sqlrag/internal/retriever"
	"github.com/sqlrag/sqlrag/internal/safety"
	"github.com/sqlrag/sqlrag/internal/schema"
	s3store "github.com/sqlrag/sqlrag/internal/storage/s3"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
	"github.com/sqlrag/sqlrag/internal/vectorindex/bleveindex"
	"github.com/sqlrag/sqlrag/internal/vectorindex/memory"
	"github.com/sqlrag/sqlrag/internal/vectorindex/pgvector"
)

const hashingDimensions = 256

// Options override parts of the graph that normally come from config.
type Options struct {
	// DB skips opening the configured database.
	DB *sql.DB
	// Model replaces the OpenAI-compatible client. It is still rate limited
	// and instrumented.
	Model    llm.Client
	Embedder embedding.Embedder
	// WithoutAgent builds only the database side (schema, index, executor),
	// for commands that never call the model.
	WithoutAgent bool
}

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	DB          *sql.DB
	Target      dialect.Target
	Dialect     dialect.Dialect
	Schema      *schema.Store
	Index       vectorindex.Index
	Indexer     *indexer.Indexer
	Runner      *query.Executor
	Agent       *nl2sql.Agent
	Synthesizer *nl2sql.Synthesizer
	Exports     *export.Service
	Limiter     *ratelimit.Limiter

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config
	kind, err := dialect.ParseKind(cfg.Database.Type)
	if err != nil {
		return err
	}
	a.Target = TargetFromConfig(kind, cfg.Database)
	a.Dialect, err = a.Target.Dialect()
	if err != nil {
		return err
	}

	a.DB = opts.DB
	if a.DB == nil {
		a.DB, err = database.Open(ctx, database.Config{
			Target:          a.Target,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.DB.Close)
	}

	a.Schema = schema.NewStore(a.DB, a.Dialect,
		schema.WithLogger(a.Logger),
		schema.WithForeignKeyCacheTTL(cfg.Index.ForeignKeyCache),
	)

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = a.newEmbedder()
		if err != nil {
			return err
		}
	}
	if err := a.openIndex(ctx, embedder); err != nil {
		return err
	}
	a.Indexer = indexer.New(a.Schema, a.Index, a.Logger)
	a.Runner = query.NewExecutor(a.DB, safety.NewValidator(a.Dialect), a.Logger)

	if cfg.Export.Enabled {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return fmt.Errorf("initialize object store: %w", err)
		}
		a.Exports = export.NewService(store, a.Logger)
	}

	if opts.WithoutAgent {
		return nil
	}
	return a.buildAgent(opts.Model)
}

func (a *App) buildAgent(model llm.Client) error {
	cfg := a.Config
	if model == nil {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			return fmt.Errorf("initialize language model client: %w", err)
		}
		model = client
	}
	if cfg.AI.RateLimitPerMinute > 0 {
		a.Limiter = ratelimit.PerMinute(cfg.AI.RateLimitPerMinute)
	}
	var waiter llm.Waiter
	if a.Limiter != nil {
		waiter = a.Limiter
	}
	model = llm.WithRateLimit(llm.WithMetrics(model), waiter, a.Logger)

	mode, err := retriever.ParseMode(cfg.Agent.RetrievalMode)
	if err != nil {
		return err
	}
	r, err := retriever.New(mode, cfg.Agent.TopK, a.Index, a.Schema, a.Logger)
	if err != nil {
		return err
	}

	var critic nl2sql.Critic
	if cfg.Agent.Critique {
		critic = nl2sql.NewModelCritic(model, a.Logger)
	}
	a.Agent, err = nl2sql.NewAgent(nl2sql.Config{
		Dialect:           a.Dialect.Name(),
		MaxAttempts:       cfg.Agent.MaxAttempts,
		MaxQuestionLength: cfg.Agent.MaxQuestionLength,
	}, r, a.Runner, model, critic, a.Logger)
	if err != nil {
		return err
	}
	a.Synthesizer = nl2sql.NewSynthesizer(model, a.Logger)
	return nil
}

// newEmbedder falls back to the hashing embedder when no model API key is
// configured, so the memory and pgvector backends work offline.
func (a *App) newEmbedder() (embedding.Embedder, error) {
	cfg := a.Config
	if cfg.Index.Backend == "bleve" {
		return nil, nil
	}
	if cfg.AI.APIKey == "" {
		a.Logger.Warn("no model api key configured, using hashing embedder", slog.String("backend", cfg.Index.Backend))
		return embedding.NewHashing(hashingDimensions), nil
	}
	e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.EmbeddingModel,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	return e, nil
}

func (a *App) openIndex(ctx context.Context, embedder embedding.Embedder) error {
	cfg := a.Config
	switch cfg.Index.Backend {
	case "memory":
		a.Index = memory.New(embedder)
	case "bleve":
		ix, err := bleveindex.Open(cfg.Index.Path)
		if err != nil {
			return fmt.Errorf("open bleve index: %w", err)
		}
		a.closers = append(a.closers, ix.Close)
		a.Index = ix
	case "pgvector":
		target, err := dialect.ParseConnectionString(cfg.Index.DSN)
		if err != nil {
			return fmt.Errorf("parse SQLRAG_INDEX_DSN: %w", err)
		}
		if target.Kind != dialect.PostgreSQL {
			return fmt.Errorf("pgvector index requires a postgresql dsn")
		}
		db, err := database.Open(ctx, database.Config{Target: target, MaxOpenConns: 4})
		if err != nil {
			return fmt.Errorf("open pgvector db: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Index = pgvector.New(db, embedder)
	default:
		return fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
	return nil
}

// Prepare rebuilds the index when configured to, or when it has never been
// built.
func (a *App) Prepare(ctx context.Context) error {
	if !a.Config.Index.RebuildOnStart {
		if err := a.Indexer.Ready(ctx); err == nil {
			return nil
		}
	}
	_, err := a.Indexer.Rebuild(ctx)
	return err
}

// APIDependencies exposes the graph to the HTTP layer.
func (a *App) APIDependencies(ui http.Handler) api.Dependencies {
	deps := api.Dependencies{
		Logger:  a.Logger,
		Dialect: a.Dialect.Name(),
		Runner:  a.Runner,
		Schema:  a.Schema,
		Indexer: a.Indexer,
		UI:      ui,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(a.DB.PingContext),
			api.CheckIndex(a.Indexer.Ready),
			api.CheckObjectStoreConfig(a.Config),
		),
		DependencyTimeout: time.Second,
		AskTimeout:        a.Config.AI.Timeout * time.Duration(2*a.Config.Agent.MaxAttempts+1),
	}
	if a.Agent != nil {
		deps.Agent = a.Agent
		deps.Answerer = a.Synthesizer
	}
	if a.Exports != nil {
		deps.Exports = a.Exports
	}
	return deps
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func TargetFromConfig(kind dialect.Kind, db config.DatabaseConfig) dialect.Target {
	return dialect.Target{
		Kind:     kind,
		Path:     db.Path,
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.Name,
		User:     db.User,
		Password: db.Password,
	}
}
