// Package api implements the HTTP surface of the gateway.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/winston-domains/winston/internal/gateway"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteRaw writes an already-serialized JSON body. Used for idempotent
// replays, which must return the stored response byte for byte.
func WriteRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// ErrorResponse is the error envelope: {error, message, details?, status}.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Status  int            `json:"status"`
}

// WriteError maps any error onto the envelope via the gateway taxonomy.
func WriteError(w http.ResponseWriter, err error) {
	gerr := gateway.Classify(err)
	WriteJSON(w, gerr.HTTPStatus(), ErrorResponse{
		Error:   gerr.Kind,
		Message: gerr.Message,
		Details: gerr.Details,
		Status:  gerr.HTTPStatus(),
	})
}

// decodeJSON decodes a request body, mapping malformed input to
// ValidationError.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return gateway.E(gateway.KindValidationError, "request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return gateway.E(gateway.KindValidationError, "request body exceeds %d bytes", maxErr.Limit)
		}
		return gateway.E(gateway.KindValidationError, "invalid JSON body")
	}
	return nil
}
