package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// ErrCircuitOpen is wrapped into errors for requests the breaker rejected.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "addressbook",
		Subsystem: "httpclient",
		Name:      "breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	},
	[]string{"name"},
)

// BreakerConfig controls when the breaker opens and how long it stays open.
type BreakerConfig struct {
	Name string

	// ConsecutiveFailures opens the breaker after this many failures in a row.
	ConsecutiveFailures uint32

	// FailureRatio opens the breaker once at least MinRequests requests were
	// seen in the current Interval and this share of them failed.
	FailureRatio float64
	MinRequests  uint32
	Interval     time.Duration

	// OpenTimeout is how long the breaker rejects requests before letting
	// HalfOpenRequests probes through.
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// DefaultBreakerConfig opens after 5 straight failures or a 50% failure rate
// over at least 10 requests, and probes again after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
		Interval:            time.Minute,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureRatio <= 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// BreakerClient sends requests through a Client guarded by a circuit
// breaker. Transport errors and 5xx responses count as failures; 4xx
// responses are returned to the caller untouched.
type BreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

// NewBreakerClient wraps client with a breaker configured by cfg.
func NewBreakerClient(client *Client, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	gauge := breakerState.WithLabelValues(cfg.Name)
	gauge.Set(stateValue(gobreaker.StateClosed))

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			gauge.Set(stateValue(to))
		},
	})

	return &BreakerClient{client: client, breaker: breaker, name: cfg.Name}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Do sends req. When the breaker rejects the call the error matches both
// ErrCircuitOpen and apperrors.ErrServiceUnavail.
func (c *BreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s responded %d: %s", c.name, resp.StatusCode, body)
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %w", c.name, apperrors.ErrServiceUnavail, ErrCircuitOpen)
	}
	return resp, err
}

// Get sends a GET request through the breaker.
func (c *BreakerClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", url, err)
	}
	return c.Do(ctx, req)
}

// Post sends a POST request through the breaker.
func (c *BreakerClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// State reports the breaker state.
func (c *BreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
