package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/AddressBook/pkg/httputil"
)

const clientIdleTTL = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per remote address. Idle
// buckets are swept at most once per ttl, on the request path.
type clientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(rps float64, burst int, ttl time.Duration) *clientLimiters {
	return &clientLimiters{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *clientLimiters) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		for k, c := range s.clients {
			if now.Sub(c.lastSeen) > s.ttl {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	c, ok := s.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (s *clientLimiters) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RateLimit applies a token bucket of rps requests per second (burst deep)
// to each remote address and answers 429 RATE_LIMITED once it is empty.
// Forwarding headers are ignored; put the limit at the edge when behind a
// proxy. rps <= 0 disables limiting.
func RateLimit(rps float64, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	store := newClientLimiters(rps, burst, clientIdleTTL)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if addr, ok := remoteAddr(r.RemoteAddr); ok {
				key = addr.String()
			}

			if !store.get(key).Allow() {
				l.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retryAfter)
				httputil.WriteErrorCode(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
