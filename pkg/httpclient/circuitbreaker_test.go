package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noRetryClient() *Client {
	return New(Config{Timeout: 5 * time.Second, MaxConnsPerHost: 4})
}

// statusServer answers every request with the status returned by next.
func statusServer(t *testing.T, next func() int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(next())
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestBreakerConfig_ReadyToTrip(t *testing.T) {
	cfg := BreakerConfig{ConsecutiveFailures: 3, FailureRatio: 0.5, MinRequests: 10}

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"below both thresholds", gobreaker.Counts{Requests: 4, TotalFailures: 2, ConsecutiveFailures: 2}, false},
		{"consecutive failures", gobreaker.Counts{Requests: 3, TotalFailures: 3, ConsecutiveFailures: 3}, true},
		{"ratio without enough requests", gobreaker.Counts{Requests: 9, TotalFailures: 8, ConsecutiveFailures: 1}, false},
		{"ratio reached", gobreaker.Counts{Requests: 10, TotalFailures: 5, ConsecutiveFailures: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.readyToTrip(tt.counts))
		})
	}

	assert.False(t, BreakerConfig{}.readyToTrip(gobreaker.Counts{Requests: 100, TotalFailures: 100}))
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig("addressbook")
	assert.Equal(t, "addressbook", cfg.Name)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, cfg.OpenTimeout)
}

func TestBreakerClient_PassesThroughSuccessAnd4xx(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusNotFound, http.StatusBadRequest}
	i := 0
	srv, _ := statusServer(t, func() int { s := statuses[i%len(statuses)]; i++; return s })

	cfg := DefaultBreakerConfig("pass-through")
	cfg.ConsecutiveFailures = 1
	cb := NewBreakerClient(noRetryClient(), cfg, quietLogger())

	for _, want := range statuses {
		resp, err := cb.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreakerClient_OpensAndRejects(t *testing.T) {
	srv, hits := statusServer(t, func() int { return http.StatusInternalServerError })

	cfg := DefaultBreakerConfig("opens")
	cfg.ConsecutiveFailures = 2
	cb := NewBreakerClient(noRetryClient(), cfg, quietLogger())

	for range 2 {
		_, err := cb.Get(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "responded 500")
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("opens")))

	_, err := cb.Post(context.Background(), srv.URL, "application/json", strings.NewReader(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestBreakerClient_HalfOpenRecovers(t *testing.T) {
	var healthy atomic.Bool
	srv, _ := statusServer(t, func() int {
		if healthy.Load() {
			return http.StatusCreated
		}
		return http.StatusBadGateway
	})

	cfg := DefaultBreakerConfig("recovers")
	cfg.ConsecutiveFailures = 1
	cfg.OpenTimeout = 50 * time.Millisecond
	cb := NewBreakerClient(noRetryClient(), cfg, quietLogger())

	_, err := cb.Get(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, cb.State())

	healthy.Store(true)
	require.Eventually(t, func() bool { return cb.State() == gobreaker.StateHalfOpen }, time.Second, 10*time.Millisecond)

	resp, err := cb.Post(context.Background(), srv.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreakerClient_TransportErrorCounts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultBreakerConfig("transport")
	cfg.ConsecutiveFailures = 1
	cb := NewBreakerClient(noRetryClient(), cfg, quietLogger())

	_, err := cb.Get(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestBreakerClient_BadURL(t *testing.T) {
	cb := NewBreakerClient(noRetryClient(), DefaultBreakerConfig("bad-url"), nil)
	_, err := cb.Get(context.Background(), "://nope")
	assert.ErrorContains(t, err, "build GET")
}
