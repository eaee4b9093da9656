// Package health serves liveness and readiness probes for the address book
// service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultTimeout bounds one readiness evaluation.
const DefaultTimeout = 5 * time.Second

// Response is the probe body.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status     Status  `json:"status"`
	Critical   bool    `json:"critical"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

type dependency struct {
	name     string
	check    Checker
	critical bool
}

// Handler aggregates dependency checks. The service is unready (503) while a
// critical dependency such as the address store is down. Non-critical
// dependencies (cache, event broker) only mark it degraded.
type Handler struct {
	mu      sync.RWMutex
	deps    map[string]dependency
	timeout time.Duration
	now     func() time.Time
}

func NewHandler() *Handler {
	return &Handler{
		deps:    make(map[string]dependency),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// RegisterCritical adds or replaces a check that gates readiness.
func (h *Handler) RegisterCritical(name string, c Checker) { h.add(name, c, true) }

// RegisterNonCritical adds or replaces a check that can only degrade readiness.
func (h *Handler) RegisterNonCritical(name string, c Checker) { h.add(name, c, false) }

func (h *Handler) add(name string, c Checker, critical bool) {
	h.mu.Lock()
	h.deps[name] = dependency{name: name, check: c, critical: critical}
	h.mu.Unlock()
}

// Names lists registered checks in name order.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.deps))
	for n := range h.deps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check in parallel and folds the results.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	deps := make([]dependency, 0, len(h.deps))
	for _, d := range h.deps {
		deps = append(deps, d)
	}
	h.mu.RUnlock()

	results := make([]CheckResult, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.run(ctx, d)
		}()
	}
	wg.Wait()

	resp := Response{Status: StatusUp, Timestamp: h.now().UTC()}
	if len(deps) > 0 {
		resp.Checks = make(map[string]CheckResult, len(deps))
	}
	for i, d := range deps {
		res := results[i]
		resp.Checks[d.name] = res
		switch {
		case res.Status == StatusUp:
		case res.Critical:
			resp.Status = StatusDown
		case resp.Status == StatusUp:
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func (h *Handler) run(ctx context.Context, d dependency) CheckResult {
	start := h.now()
	err := d.check(ctx)
	res := CheckResult{
		Status:     StatusUp,
		Critical:   d.critical,
		DurationMS: float64(h.now().Sub(start).Microseconds()) / 1000,
	}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

// LivenessHandler answers 200 while the process is serving.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, Response{Status: StatusUp, Timestamp: h.now().UTC()})
	}
}

// ReadinessHandler answers 200 when up or degraded, 503 when down.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		write(w, status, resp)
	}
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
