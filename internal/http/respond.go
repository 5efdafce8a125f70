package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/filters"
	"financas/internal/log"
	"financas/internal/services"
)

// maxBodyBytes bounds request bodies; no endpoint accepts large
// payloads except memories import, which stays well under this.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// decodeJSON reads and decodes a request body, rejecting unknown fields
// so client typos surface as errors instead of silent no-ops.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// respondError maps service errors to HTTP status codes. Unrecognized
// errors become a 500 and are logged with the request ID.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := core.AsValidation(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Fields: ve.Fields})
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, filters.ErrFilterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrDuplicateEmail),
		errors.Is(err, services.ErrGoalCompletedImmutable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrCategoryNotOwned),
		errors.Is(err, core.ErrCategoryKindMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		requestID, _ := r.Context().Value(ctxRequestID).(string)
		s.logger.ErrorContext(r.Context(), "Request failed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
