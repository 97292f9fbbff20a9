// Package api provides the response writers shared by HTTP handlers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes data as JSON with the given status. A nil data writes no body.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, contentTypeJSON, func() {
		if data != nil {
			json.NewEncoder(w).Encode(data)
		}
	})
}

// Error writes {"error": message} with the given status.
func Error(w http.ResponseWriter, statusCode int, message string) {
	Success(w, statusCode, ErrorResponse{Error: message})
}

// Text writes a plain text body.
func Text(w http.ResponseWriter, statusCode int, body string) {
	write(w, statusCode, contentTypeText, func() {
		w.Write([]byte(body))
	})
}

// HTML writes a rendered page.
func HTML(w http.ResponseWriter, statusCode int, page []byte) {
	write(w, statusCode, contentTypeHTML, func() {
		w.Write(page)
	})
}

func write(w http.ResponseWriter, statusCode int, contentType string, body func()) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	body()
}

// PrefersText reports whether the Accept header lists text/plain ahead of
// application/json. Wildcards and missing headers get JSON.
func PrefersText(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	text := strings.Index(accept, "text/plain")
	if text < 0 {
		return false
	}
	jsonIdx := strings.Index(accept, contentTypeJSON)
	return jsonIdx < 0 || text < jsonIdx
}
