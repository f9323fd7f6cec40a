// Package httpx renders API responses. Errors follow RFC7807 problem details.
package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxBodyBytes caps request bodies. Posting payloads are a few hundred
// bytes; anything near this limit is abuse.
const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC7807 error body returned by every handler.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with the given status. The payload is encoded into a
// buffer first so an encode failure becomes a clean 500 instead of a
// torn body after the header has gone out.
func JSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Problem writes an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON reads the request body into target, bounded by maxBodyBytes.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
