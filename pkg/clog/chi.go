package clog

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// AccessLogOption configures SlogChiMiddleware.
type AccessLogOption func(*accessLog)

type accessLog struct {
	skipPaths []string
}

// SkipPaths suppresses the access log of requests to paths. The request
// still gets an attribute context.
func SkipPaths(paths ...string) AccessLogOption {
	return func(l *accessLog) {
		l.skipPaths = append(l.skipPaths, paths...)
	}
}

// SlogChiMiddleware gives every request an attribute context and logs one
// access record when the request is done, at a level picked from the status.
func SlogChiMiddleware(opts ...AccessLogOption) func(http.Handler) http.Handler {
	var cfg accessLog
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ContextWithSlog(r.Context())
			AddAttributes(ctx, map[string]any{
				MethodKey: r.Method,
				PathKey:   r.URL.Path,
				"proto":   r.Proto,
			})
			next.ServeHTTP(ww, r.WithContext(ctx))
			if slices.Contains(cfg.skipPaths, r.URL.Path) {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			AddAttributes(ctx, map[string]any{
				StatusKey:       status,
				"bytes_written": ww.BytesWritten(),
				"duration":      time.Since(start),
			})
			slog.Log(ctx, HTTPStatusToLevel(status), http.StatusText(status))
		})
	}
}

// HTTPStatusToLevel picks the access log level of a response status.
// Client disconnects (499) are not warnings.
func HTTPStatusToLevel(status int) slog.Level {
	switch {
	case status == 499, status >= 100 && status < 400:
		return slog.LevelInfo
	case status >= 400 && status < 500:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
