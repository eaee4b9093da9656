package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/AddressBook/pkg/logger"
)

// RequestLogger stores a per-request logger in the context carrying the
// correlation and trace identifiers plus the request method and path.
// Handlers fetch it with logger.FromContext. It must run after Tracing and
// RequestLogging; Auth later adds the token subject to the same logger.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.WithContext(ctx, base).With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, l)))
		})
	}
}
