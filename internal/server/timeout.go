package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware puts a deadline on the request context.
// Dispatchers and handlers observe it cooperatively through r.Context();
// nothing is forcibly terminated. A non-positive timeout disables the deadline.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
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
