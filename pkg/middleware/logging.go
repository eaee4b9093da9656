package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/AddressBook/pkg/logger"
)

// CorrelationIDHeader carries the request correlation ID in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

const maxCorrelationIDLen = 128

// RequestLogging assigns each request a correlation ID, echoes it in the
// response and writes one access log line when the handler returns. 5xx
// responses are logged at error level.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := correlationID(r)
			w.Header().Set(CorrelationIDHeader, id)

			ctx := logger.WithCorrelationID(r.Context(), id)
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			level := slog.LevelInfo
			if sw.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			l.LogAttrs(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", sw.statusCode),
				slog.Int("bytes", sw.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", id),
			)
		})
	}
}

// correlationID reuses a caller-supplied ID when it is short printable ASCII
// and mints a UUID otherwise, so the value is safe to echo and log.
func correlationID(r *http.Request) string {
	id := r.Header.Get(CorrelationIDHeader)
	if id == "" || len(id) > maxCorrelationIDLen {
		return uuid.NewString()
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return uuid.NewString()
		}
	}
	return id
}
