package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlrag/sqlrag/internal/config"
	"github.com/sqlrag/sqlrag/internal/export"
	"github.com/sqlrag/sqlrag/internal/indexer"
	"github.com/sqlrag/sqlrag/internal/nl2sql"
	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/query"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

type Asker interface {
	Run(ctx context.Context, question string) (nl2sql.Session, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, result query.Result) string
}

type SchemaSource interface {
	Extract(ctx context.Context) ([]schema.Document, error)
}

type IndexRebuilder interface {
	Rebuild(ctx context.Context) (indexer.Report, error)
}

type Exporter interface {
	Write(ctx context.Context, question string, result query.Result) (export.Export, error)
	Open(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error)
	Delete(ctx context.Context, id string) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	// AskTimeout bounds one whole question session. Zero means no deadline
	// beyond the request context.
	AskTimeout time.Duration
	Dialect    string
	Agent      Asker
	Answerer   Answerer
	Runner     query.Runner
	Schema     SchemaSource
	Indexer    IndexRebuilder
	Exports    Exporter
	UI         http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(cfg, deps, w, r)
	})
	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	mux.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("POST /v1/index/rebuild", func(w http.ResponseWriter, r *http.Request) {
		handleIndexRebuild(deps, w, r)
	})
	mux.HandleFunc("GET /v1/exports/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetExport(deps, w, r)
	})
	mux.HandleFunc("DELETE /v1/exports/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteExport(deps, w, r)
	})
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckDatabase(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("database is not configured")
		}
		return ping(ctx)
	}
}

// CheckIndex fails until the schema index holds a collection.
func CheckIndex(ready func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ready == nil {
			return errors.New("schema index is not configured")
		}
		if err := ready(ctx); err != nil {
			return errors.New("schema index is not built: " + err.Error())
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Export.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
