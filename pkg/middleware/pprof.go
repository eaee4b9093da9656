package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/AddressBook/pkg/httputil"
)

// RegisterPprof mounts the runtime profiling handlers under /debug/pprof,
// reachable only from the allowlisted networks.
func RegisterPprof(r chi.Router, allowed []string, l *slog.Logger) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(IPAllowlist(allowed, l))
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/*", pprof.Index)
	})
}

// ParseAllowlist turns CIDRs or bare addresses into prefixes. Entries that
// parse as neither are returned in the second result.
func ParseAllowlist(entries []string) ([]netip.Prefix, []string) {
	var prefixes []netip.Prefix
	var invalid []string
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		invalid = append(invalid, raw)
	}
	return prefixes, invalid
}

// IPAllowlist rejects requests whose remote address falls outside every
// allowed network with 403 FORBIDDEN. An empty list denies everyone.
func IPAllowlist(allowed []string, l *slog.Logger) func(http.Handler) http.Handler {
	prefixes, invalid := ParseAllowlist(allowed)
	for _, entry := range invalid {
		l.Warn("ignoring invalid allowlist entry", slog.String("entry", entry))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := remoteAddr(r.RemoteAddr)
			if ok && containsAddr(prefixes, addr) {
				next.ServeHTTP(w, r)
				return
			}

			l.Warn("debug endpoint denied",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			httputil.WriteErrorCode(w, r, http.StatusForbidden,
				"FORBIDDEN", "debug endpoints are not reachable from this address")
		})
	}
}

func remoteAddr(hostport string) (netip.Addr, bool) {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
