// Package response writes the JSON bodies served by the HTTP API.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON marshals payload and writes it with the given status code. The
// payload is encoded before any byte reaches the wire, so an encoding
// failure can still be reported as a 500 instead of a truncated body.
func JSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if payload == nil {
		w.WriteHeader(statusCode)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"` + ErrCodeInternalServer + `","message":"failed to encode response"}}`))
		return
	}

	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
