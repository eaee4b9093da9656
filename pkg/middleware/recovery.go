package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
	"github.com/utafrali/AddressBook/pkg/httputil"
)

// Recovery turns a handler panic into a 500 error envelope and logs the
// stack. If the handler already started its response, the connection is
// left as is. http.ErrAbortHandler is re-raised for net/http.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", sw.wroteHeader),
					slog.String("stack", string(debug.Stack())),
				)
				if !sw.wroteHeader {
					httputil.WriteErrorCode(w, r, http.StatusInternalServerError,
						apperrors.CodeInternal, apperrors.InternalMessage)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
