package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/utafrali/AddressBook/pkg/httputil"
	"github.com/utafrali/AddressBook/pkg/logger"
)

type contextKeyType string

const scopeKey contextKeyType = "scope"

// Claims represents the token claims extracted by the auth middleware.
// Scope is a space-separated list.
type Claims struct {
	Subject string `json:"sub"`
	Scope   string `json:"scope"`
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth middleware validates bearer tokens and injects the claims into context.
// The request-scoped logger is re-derived so handler logs carry the subject.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, r, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeAuthError(w, r, "invalid authorization header format")
				return
			}

			claims, err := validate(parts[1])
			if err != nil {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "token rejected",
					slog.String("error", err.Error()),
				)
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), scopeKey, claims.Scope)
			ctx = logger.WithSubject(ctx, claims.Subject)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("subject", claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFromContext extracts the token scope from the request context.
func ScopeFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(scopeKey).(string); ok {
		return s
	}
	return ""
}

// HasScope reports whether the space-separated granted list contains want.
func HasScope(granted, want string) bool {
	return slices.Contains(strings.Fields(granted), want)
}

// RequireScope answers 403 FORBIDDEN unless the token accepted by Auth
// carries scope. It must run after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(ScopeFromContext(r.Context()), scope) {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "token lacks scope",
					slog.String("required", scope),
				)
				httputil.WriteErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="addressbook"`)
	httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
