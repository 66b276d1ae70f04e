package middleware

import (
	"net/http"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger writes one access log line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			}
			if userID, ok := GetUserIDFromContext(r.Context()); ok {
				fields = append(fields, "user_id", userID)
			}

			switch {
			case ww.Status() >= 500:
				log.Error("request failed", fields...)
			case ww.Status() >= 400:
				log.Warn("request rejected", fields...)
			default:
				log.Info("request served", fields...)
			}
		})
	}
}
