package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

// RequestID returns the id assigned by Logging, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// responseWriter captures the status code and body size
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	size        int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += int64(size)
	return size, err
}

// Logging assigns a request id, echoes it in the response and logs the
// request on both ends. Provisioning requests run for minutes, so the start
// line is logged too.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		log := logger.WithComponent("http").With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		log.Info().
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Request started")

		rw := newResponseWriter(w)
		defer func() {
			duration := time.Since(start)

			logEvent := log.Info()
			switch {
			case rw.status >= 500:
				logEvent = log.Error()
			case rw.status >= 400:
				logEvent = log.Warn()
			}

			logEvent.
				Int("status", rw.status).
				Int64("size", rw.size).
				Dur("duration", duration).
				Msg("Request completed")
		}()

		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
