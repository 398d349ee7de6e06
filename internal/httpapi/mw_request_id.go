package httpapi

import (
	"context"
	"crypto/rand"
	"net/http"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRequestID returns 8 random alphanumerics.
func newRequestID() string {
	var rnd [8]byte
	_, _ = rand.Read(rnd[:])
	id := make([]byte, len(rnd))
	for i, v := range rnd {
		id[i] = idAlphabet[int(v)%len(idAlphabet)]
	}
	return string(id)
}

// validRequestID accepts caller-supplied ids of up to 64 URL-safe bytes so
// they can be echoed in headers and logs unchanged.
func validRequestID(rid string) bool {
	if rid == "" || len(rid) > 64 {
		return false
	}
	for i := 0; i < len(rid); i++ {
		c := rid[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// RequestID propagates X-Request-ID, generating one when the caller sent
// none or an unusable one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if !validRequestID(rid) {
			rid = newRequestID()
		}
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))
	})
}

// RequestIDFrom returns the id RequestID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}
