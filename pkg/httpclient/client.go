package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config controls timeouts, retries and pooling of a Client.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int

	// Headers are added to requests that do not already set them.
	Headers map[string]string
}

func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client is an http.Client that retries transient failures.
type Client struct {
	httpClient *http.Client
	config     Config
}

func New(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
				MaxConnsPerHost:       cfg.MaxConnsPerHost,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		config: cfg,
	}
}

// Do sends req, retrying transport errors, 429 and 5xx answers other than
// 501. Transport errors and 5xx are retried only for idempotent methods and
// requests carrying an Idempotency-Key header, since the server may have
// committed the first attempt. A 429 was never processed, so it is retried
// for any method after the server's Retry-After when one is sent. Bodies
// are replayed through req.GetBody; a body that cannot be replayed gets a
// single attempt. The last response is returned as-is when retries run out,
// so callers still see the server's error body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	for name, value := range c.config.Headers {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	attempts := c.config.MaxRetries + 1
	if !replayable(req) {
		attempts = 1
	}
	safe := idempotent(req)

	for attempt := 1; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		last := attempt >= attempts || ctx.Err() != nil

		wait := addJitter(c.backoff(attempt))
		switch {
		case err != nil && (last || !safe || !retryable(err)):
			return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", req.Method, req.URL.Redacted(), attempt, err)
		case err == nil && (last || !retryableStatus(resp.StatusCode, safe)):
			return resp, nil
		case err == nil:
			if d, ok := retryAfter(resp, time.Now()); ok {
				wait = d
			}
			drain(resp)
		}

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
	}
}

func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", url, err)
	}
	return c.Do(ctx, req)
}

func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// backoff doubles RetryWaitMin per completed attempt, capped at RetryWaitMax.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.RetryWaitMin << (attempt - 1)
	if wait <= 0 || wait > c.config.RetryWaitMax {
		return c.config.RetryWaitMax
	}
	return wait
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// idempotent reports whether req may be sent more than once.
func idempotent(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace,
		http.MethodPut, http.MethodDelete:
		return true
	}
	return req.Header.Get("Idempotency-Key") != ""
}

// retryableStatus reports whether status is worth another attempt; 5xx only
// when the request is safe to resend.
func retryableStatus(status int, safe bool) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return safe && status >= 500 && status != http.StatusNotImplemented
}

// retryAfter reads a 429 or 503 Retry-After header given either as seconds
// or as an HTTP date.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

// retryable reports whether a transport error is worth another attempt.
// Cancellation never is.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addJitter spreads d uniformly over [0.75d, 1.25d).
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}
