package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline attaches a timeout to the request context. Handlers observe it
// and answer themselves; nothing is written from another goroutine.
// A non-positive timeout leaves the request untouched.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
