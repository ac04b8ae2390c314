package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/errandly/backend/internal/domain"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

// writeError maps a service error onto an HTTP status and JSON body.
// Unrecognized errors become an opaque 500; the detail goes to the log,
// not the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: errorDetail{Code: "validation_error", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: errorDetail{Code: "unauthorized", Message: "unauthorized"},
		})
	case errors.Is(err, domain.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errorResponse{
			Error: errorDetail{Code: "conflict", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{
			Error: errorDetail{Code: "not_found", Message: "not found"},
		})
	default:
		s.log.Error("internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorDetail{Code: "internal_error", Message: "internal server error"},
		})
	}
}

// badRequest rejects a request before it reaches the service layer
// (missing or malformed body, unparseable parameters).
func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: errorDetail{Code: "bad_request", Message: message},
	})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
// Returns false after writing the error response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.badRequest(w, "invalid request body")
		return false
	}
	return true
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.RequestService.Create: validation error: radius must be..."
// becomes "radius must be...".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []string{"validation error: ", "conflict: "} {
		if i := strings.LastIndex(msg, marker); i >= 0 {
			return msg[i+len(marker):]
		}
	}
	return msg
}
