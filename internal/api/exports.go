package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sqlrag/sqlrag/internal/export"
)

func handleGetExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}
	id := r.PathValue("id")
	body, info, err := deps.Exports.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, export.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export not found", false, map[string]any{"export_id": id})
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FETCH_FAILED", "failed to fetch export", true, nil)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.parquet"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func handleDeleteExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}
	id := r.PathValue("id")
	if err := deps.Exports.Delete(r.Context(), id); err != nil {
		if errors.Is(err, export.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export not found", false, map[string]any{"export_id": id})
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_DELETE_FAILED", "failed to delete export", true, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
