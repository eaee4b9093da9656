package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/utafrali/AddressBook/docs" // registers the OpenAPI document
	"github.com/utafrali/AddressBook/internal/auth"
	"github.com/utafrali/AddressBook/internal/service"
	"github.com/utafrali/AddressBook/pkg/health"
	"github.com/utafrali/AddressBook/pkg/middleware"
)

// RouterConfig carries everything NewRouter needs beyond the service.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	PprofCIDRs  []string

	// RateLimitRPS <= 0 disables per-client limiting of the API routes.
	RateLimitRPS   float64
	RateLimitBurst int

	// TokenValidator guards mutating routes, which also need the
	// auth.ScopeWrite scope. Nil leaves them open.
	TokenValidator middleware.TokenValidator
}

// NewRouter creates a chi router with all address book routes registered.
func NewRouter(
	addressService *service.AddressService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.With(middleware.CacheControl(5 * time.Minute)).
		Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	h := NewAddressHandler(addressService, logger)

	r.Route("/api/v1/addresses", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Use(middleware.NoStore)

		r.Get("/", h.ListAddresses)
		r.Get("/within-distance", h.WithinDistance)
		r.Get("/{id}", h.GetAddress)

		r.Group(func(r chi.Router) {
			if cfg.TokenValidator != nil {
				r.Use(middleware.Auth(cfg.TokenValidator))
				r.Use(middleware.RequireScope(auth.ScopeWrite))
			}
			r.Use(ContentTypeJSON)

			r.Post("/", h.CreateAddress)
			r.Put("/{id}", h.UpdateAddress)
			r.Patch("/{id}", h.UpdateAddress)
			r.Delete("/{id}", h.DeleteAddress)
		})
	})

	return r
}
