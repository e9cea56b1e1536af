package api

import (
	"net/http"

	"github.com/sqlrag/sqlrag/internal/safety"
	"github.com/sqlrag/sqlrag/internal/validation"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

// handleQuery runs caller-supplied SQL through the same cleaning, safety
// checks and sanitization as model output.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Runner == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query execution is not configured", false, nil)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	sqlText, err := validation.SQLQuery(req.SQL)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", err.Error(), false, nil)
		return
	}

	result := deps.Runner.Execute(r.Context(), sqlText)
	switch {
	case result.Success:
		writeJSON(w, http.StatusOK, result)
	case result.Class == safety.ClassSafetyViolation:
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", result.Error, false, map[string]any{"class": string(result.Class)})
	case result.Class == safety.ClassSyntaxError:
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_SYNTAX_ERROR", result.Error, false, map[string]any{"class": string(result.Class)})
	default:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_FAILED", result.Error, false, nil)
	}
}
