package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"tandem/domain"
	"tandem/errors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

// writeError answers with the public side of err. Server faults are logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	writeJSON(w, s.log, status, errorBody{Error: errors.PublicMessage(err)})
}

// decodeBody reads one JSON object of the declared shape and checks its tags.
// Unknown fields, trailing data and oversized bodies are all validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrValidation, decodeProblem(err))
	}
	if dec.More() {
		return fmt.Errorf("%w: malformed body: trailing data", errors.ErrValidation)
	}
	return domain.Validate(v)
}

// decodeProblem names what was wrong with a body without echoing decoder internals.
func decodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &typeErr) && typeErr.Field != "":
		return typeErr.Field + ": wrong type"
	case stderrors.As(err, &tooLarge):
		return "body too large"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "malformed body"
	}
}
