package httpapi

import (
	"crypto/subtle"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header is absent or does not
// match key.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, ok := r.Header[http.CanonicalHeaderKey(apiKeyHeader)]
			if !ok || len(values) == 0 {
				writeDetail(w, http.StatusForbidden, "Could not validate API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(values[0]), want) != 1 {
				writeDetail(w, http.StatusForbidden, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
