package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "status", status, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorBody{Status: status, Message: message})
}

// queryError is a rejected request parameter.
type queryError struct {
	msg string
}

func (e *queryError) Error() string {
	return e.msg
}

func invalid(format string, args ...any) error {
	return &queryError{msg: fmt.Sprintf(format, args...)}
}

// positiveInt parses an optional positive integer. Absent values yield 0.
// A non-zero limit caps the accepted value.
func positiveInt(raw, name string, limit int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalid("%s must be a positive integer", name)
	}
	if limit > 0 && n > limit {
		return 0, invalid("%s must be at most %d", name, limit)
	}
	return n, nil
}

// minLength checks a required text parameter.
func minLength(raw, name string, n int) error {
	if raw == "" {
		return invalid("%s is required", name)
	}
	if len([]rune(raw)) < n {
		return invalid("%s must be at least %d characters", name, n)
	}
	return nil
}

// decodeBody reads a bounded JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, 64<<10)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("request body is required")
		}
		return invalid("malformed JSON body")
	}
	return nil
}

func isQueryError(err error) bool {
	var qe *queryError
	return errors.As(err, &qe)
}
