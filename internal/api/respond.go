package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"acornbox/internal/apperr"
	"acornbox/internal/auth"
	"acornbox/internal/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", "err", err)
	}
}

// writeError maps err onto its client-facing status. Errors outside the
// taxonomy are logged here and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.StatusFor(kind)
	msg := err.Error()
	if kind == apperr.KindInternal || kind == apperr.KindIntegrity {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: string(kind), Message: msg})
}

func principal(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid message id")
	}
	return id, nil
}

// pagination reads page and limit from the query. Absent values take the
// defaults; a limit above the configured maximum is clamped.
func (a *API) pagination(r *http.Request) (page, limit int, err error) {
	page, err = positiveQueryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err = positiveQueryInt(r, "limit", a.Cfg.Limits.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if limit > a.Cfg.Limits.MaxPageSize {
		limit = a.Cfg.Limits.MaxPageSize
	}
	return page, limit, nil
}

func positiveQueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("%s must be a positive integer", key)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("bad request body: %v", err)
	}
	return nil
}
