package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request through logrus and stores a request-scoped
// logger in the context. It must run after chi's RequestID middleware.
func RequestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := log.WithFields(logrus.Fields{
				logger.FieldRequestID: middleware.GetReqID(r.Context()),
				"method":              r.Method,
				"path":                r.URL.Path,
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := entry.WithFields(logrus.Fields{
				logger.FieldStatus:     status,
				logger.FieldDurationMs: time.Since(start).Milliseconds(),
				"bytes":                ww.BytesWritten(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				fields.Error("Request failed")
			case strings.HasSuffix(r.URL.Path, "/health") || r.URL.Path == "/metrics":
				fields.Debug("Request handled")
			default:
				fields.Info("Request handled")
			}
		})
	}
}
