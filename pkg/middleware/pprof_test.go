package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/AddressBook/pkg/httputil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseAllowlist(t *testing.T) {
	prefixes, invalid := ParseAllowlist([]string{
		"10.1.2.3/8", " 192.168.1.10 ", "::1", "", "not-an-ip", "300.0.0.0/8",
	})

	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.10/32"),
		netip.MustParsePrefix("::1/128"),
	}, prefixes)
	assert.Equal(t, []string{"not-an-ip", "300.0.0.0/8"}, invalid)
}

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		remoteAddr string
		want       int
	}{
		{"loopback in range", []string{"127.0.0.0/8"}, "127.0.0.1:1234", http.StatusOK},
		{"outside range", []string{"10.0.0.0/8"}, "192.168.1.1:1234", http.StatusForbidden},
		{"second of several ranges", []string{"10.0.0.0/8", "172.16.0.0/12"}, "172.16.5.5:1234", http.StatusOK},
		{"single address entry", []string{"203.0.113.7"}, "203.0.113.7:80", http.StatusOK},
		{"neighbour of single address", []string{"203.0.113.7"}, "203.0.113.8:80", http.StatusForbidden},
		{"ipv6 loopback", []string{"::1/128"}, "[::1]:1234", http.StatusOK},
		{"ipv4-mapped ipv6", []string{"127.0.0.0/8"}, "[::ffff:127.0.0.1]:1234", http.StatusOK},
		{"no port", []string{"127.0.0.0/8"}, "127.0.0.1", http.StatusOK},
		{"garbage remote addr", []string{"0.0.0.0/0"}, "somewhere", http.StatusForbidden},
		{"invalid entry skipped", []string{"bogus", "127.0.0.0/8"}, "127.0.0.1:1", http.StatusOK},
		{"empty list denies", nil, "127.0.0.1:1234", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := IPAllowlist(tt.allowed, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlist_ForbiddenEnvelope(t *testing.T) {
	h := IPAllowlist([]string{"10.0.0.0/8"}, discardLogger())(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "8.8.8.8:53"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
