package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AccessLog logs one line per request with its status and duration. Health
// probes log at debug so they do not drown the request log.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ev := log.Info()
			switch {
			case status >= 500:
				ev = log.Error()
			case r.URL.Path == "/healthcheck" && status == http.StatusOK:
				ev = log.Debug()
			}
			ev.Str("rid", RequestIDFrom(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("dur", time.Since(start)).
				Msg("request completed")
		})
	}
}
