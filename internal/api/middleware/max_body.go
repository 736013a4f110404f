package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
)

// MaxBodyBytes caps request bodies at limit bytes. Bodies that declare a
// larger Content-Length are rejected up front; others fail on read with
// *http.MaxBytesError. A non-positive limit disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	message := fmt.Sprintf("request body exceeds %d bytes", limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, message)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
