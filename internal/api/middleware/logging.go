package middleware

import (
	"net/http"
	"time"

	"pointflow/pkg/logger"
)

func LoggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			rw := wrapResponseWriter(w)
			next.ServeHTTP(rw, r)

			fields := map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"pattern":  r.Pattern,
				"status":   rw.statusCode,
				"duration": time.Since(startTime).String(),
			}

			if rw.statusCode >= http.StatusInternalServerError {
				log.ErrorContext(r.Context(), "HTTP request failed", fields)
				return
			}
			log.InfoContext(r.Context(), "HTTP request served", fields)
		})
	}
}
