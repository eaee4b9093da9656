package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Startup retry policy shared by every backing store: three tries spaced
// 1s then 2s apart, each wait jittered by up to a quarter either way.
const (
	startupAttempts = 3
	startupBaseWait = time.Second
	startupJitter   = 0.25
)

func startupBackoff(attempt int) time.Duration {
	base := startupBaseWait << max(attempt, 0)
	return time.Duration(float64(base) * (1 + startupJitter*(2*rand.Float64()-1))) // #nosec G404
}

// permanentError stops withRetry early.
type permanentError struct{ error }

func (e permanentError) Unwrap() error { return e.error }

// withRetry calls fn until it succeeds, returns a permanentError,
// startupAttempts are used up, or ctx ends. logger may be nil.
func withRetry(ctx context.Context, what string, logger *slog.Logger, fn func() error) error {
	var err error
	for attempt := range startupAttempts {
		if err = fn(); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.error
		}
		if attempt == startupAttempts-1 {
			break
		}
		wait := startupBackoff(attempt)
		if logger != nil {
			logger.Warn(what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", what, startupAttempts, err)
}

// connectionMarkers catch drivers that flatten network failures into text.
var connectionMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError separates transient network failures, which are worth
// retrying, from SQL errors, which are not.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	for _, m := range connectionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
