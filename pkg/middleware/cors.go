package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", CorrelationIDHeader}
)

// CORSConfig configures the CORS middleware. Zero values fall back to the
// defaults of DefaultCORSConfig.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	// AllowCredentials makes the middleware echo the caller's origin instead
	// of "*", since browsers refuse credentialed responses with a wildcard.
	AllowCredentials bool

	// Environment "development" allows every origin regardless of the list.
	Environment string
}

// DefaultCORSConfig allows any origin and exposes the correlation and
// Location headers to scripts.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{CorrelationIDHeader, "Location"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// CORS answers preflight requests with 204 and decorates every other
// response with the Access-Control-* headers.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	anyOrigin := cfg.Environment == "development" || slices.Contains(cfg.AllowedOrigins, "*")
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	allowOrigin := func(origin string) string {
		switch {
		case anyOrigin && !cfg.AllowCredentials:
			return "*"
		case origin == "":
			return ""
		case anyOrigin, slices.Contains(cfg.AllowedOrigins, origin):
			return origin
		}
		return ""
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")

			allowed := allowOrigin(origin)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
