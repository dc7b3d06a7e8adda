package http

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyMiddleware rejects requests whose X-Api-Key header does not match the
// configured key. Comparison is constant-time so the key cannot be probed
// byte by byte.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Api-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				errorUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
