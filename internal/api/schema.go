package api

import (
	"net/http"

	"github.com/sqlrag/sqlrag/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	docs, err := deps.Schema.Extract(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to load schema", true, nil)
		return
	}
	if docs == nil {
		docs = []schema.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect": deps.Dialect,
		"tables":  docs,
	})
}

func handleIndexRebuild(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Indexer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INDEX_NOT_CONFIGURED", "schema indexing is not configured", false, nil)
		return
	}
	report, err := deps.Indexer.Rebuild(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "INDEX_REBUILD_FAILED", "failed to rebuild schema index", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "rebuilt",
		"tables":      report.Tables,
		"count":       report.Count,
		"duration_ms": report.Duration.Milliseconds(),
	})
}
