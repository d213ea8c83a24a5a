// Package middleware provides HTTP middleware for the pagebrew dev server.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

// RequestLogger logs method, path, status, size and duration of every request
// at debug level, and failed requests at warn. Long-lived live reload streams
// are logged when they end.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelDebug
			if status >= http.StatusBadRequest && status != http.StatusNotFound {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "HTTP request",
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				logfields.Status(status),
				slog.Int("bytes", ww.BytesWritten()),
				logfields.RequestID(chimw.GetReqID(r.Context())),
				logfields.Since(start))
		})
	}
}

// IsHTMLPath reports whether a request path is expected to serve an HTML page.
func IsHTMLPath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html")
}
