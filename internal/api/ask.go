package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sqlrag/sqlrag/internal/config"
	"github.com/sqlrag/sqlrag/internal/export"
	"github.com/sqlrag/sqlrag/internal/nl2sql"
	"github.com/sqlrag/sqlrag/internal/query"
	"github.com/sqlrag/sqlrag/internal/schema"
	"github.com/sqlrag/sqlrag/internal/validation"
	"github.com/sqlrag/sqlrag/internal/vectorindex"
)

type askRequest struct {
	Question   string `json:"question"`
	Synthesize *bool  `json:"synthesize"`
	Export     bool   `json:"export"`
}

type askResponse struct {
	SessionID     string           `json:"session_id"`
	Question      string           `json:"question"`
	Dialect       string           `json:"dialect"`
	RetrievalMode string           `json:"retrieval_mode"`
	Tables        []string         `json:"tables"`
	SQL           string           `json:"sql"`
	Result        query.Result     `json:"result"`
	Attempts      []nl2sql.Attempt `json:"attempts"`
	Answer        string           `json:"answer,omitempty"`
	Export        *export.Export   `json:"export,omitempty"`
}

func handleAsk(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if req.Export && deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}

	ctx := r.Context()
	if deps.AskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.AskTimeout)
		defer cancel()
	}

	session, err := deps.Agent.Run(ctx, req.Question)
	if err != nil {
		writeAskError(r.Context(), deps, w, session, err)
		return
	}

	resp := askResponse{
		SessionID:     session.ID,
		Question:      session.Question,
		Dialect:       session.Dialect,
		RetrievalMode: string(session.Mode),
		Tables:        schema.IDs(session.Schema),
		SQL:           session.SQL(),
		Result:        *session.Result,
		Attempts:      session.Attempts,
	}

	synthesize := cfg.Agent.Synthesize
	if req.Synthesize != nil {
		synthesize = *req.Synthesize
	}
	if synthesize && deps.Answerer != nil {
		resp.Answer = deps.Answerer.Answer(ctx, session.Question, *session.Result)
	}

	if req.Export {
		exp, err := deps.Exports.Write(ctx, session.Question, *session.Result)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to export result", true, map[string]any{"details": err.Error(), "session_id": session.ID})
			return
		}
		resp.Export = &exp
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeAskError(ctx context.Context, deps Dependencies, w http.ResponseWriter, session nl2sql.Session, err error) {
	var modelErr *nl2sql.ModelError
	switch {
	case validation.IsInputError(err):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_QUESTION", err.Error(), false, nil)
	case errors.Is(err, nl2sql.ErrNoAnswer):
		writeError(ctx, w, http.StatusUnprocessableEntity, "NO_ANSWER", "could not produce a working query for this question", true, map[string]any{
			"session_id": session.ID,
			"attempts":   session.Attempts,
		})
	case errors.As(err, &modelErr):
		writeError(ctx, w, http.StatusBadGateway, "MODEL_UNAVAILABLE", "language model call failed", true, map[string]any{"session_id": session.ID})
	case errors.Is(err, vectorindex.ErrCollectionNotFound):
		writeError(ctx, w, http.StatusServiceUnavailable, "INDEX_NOT_READY", "schema index is not built yet", true, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "ASK_TIMEOUT", "question took too long to answer", true, map[string]any{"session_id": session.ID})
	default:
		if deps.Logger != nil {
			deps.Logger.ErrorContext(ctx, "ask failed", slog.String("session_id", session.ID), slog.Any("error", err))
		}
		writeError(ctx, w, http.StatusInternalServerError, "ASK_FAILED", "failed to answer question", true, nil)
	}
}
