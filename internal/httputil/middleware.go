package httputil

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"pdf-assistant/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "pdfa_session"

// APIKeyHeader carries the optional static API key.
const APIKeyHeader = "x-api-key"

// APIKey rejects requests without the configured key. An empty key disables
// the check.
func APIKey(log *slog.Logger, key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		want := []byte(key)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get(APIKeyHeader)), want) != 1 {
				Fail(log, w, "invalid api key", nil, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionChecker validates session ids.
type SessionChecker interface {
	Enabled() bool
	Check(ctx context.Context, id string) (session.State, error)
}

type sessionKey struct{}

// SessionFromContext returns the state stored by RequireSession.
func SessionFromContext(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(sessionKey{}).(session.State)
	return st, ok
}

// RequireSession lets requests through only with a valid, unexpired session
// cookie. It is a no-op when the gate is disabled.
func RequireSession(log *slog.Logger, gate SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if gate == nil || !gate.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
			st, err := gate.Check(r.Context(), id)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, st)))
			case errors.Is(err, session.ErrExpired):
				ClearSessionCookie(w)
				Fail(log, w, session.ErrExpired.Error(), nil, http.StatusUnauthorized)
			case errors.Is(err, session.ErrUnauthenticated):
				Fail(log, w, session.ErrUnauthenticated.Error(), nil, http.StatusUnauthorized)
			default:
				Fail(log, w, "session lookup failed", err, http.StatusInternalServerError)
			}
		})
	}
}

// SetSessionCookie issues the session cookie for st.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, st session.State, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    st.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ParseProxies reads trusted proxy entries, each an IP address or a CIDR
// range. Empty entries are skipped.
func ParseProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// TrustedRealIP replaces RemoteAddr with the client named in X-Forwarded-For
// or X-Real-IP, but only when the connecting peer is a trusted proxy. The
// rightmost untrusted X-Forwarded-For hop wins. With no trusted proxies the
// headers are ignored and the socket peer is the client.
func TrustedRealIP(trusted []netip.Prefix) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip, ok := forwardedClient(r, trusted); ok {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	peer, ok := parseAddr(ClientKey(r))
	if !ok || !isTrusted(peer, trusted) {
		return netip.Addr{}, false
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, ok := parseAddr(hops[i])
			if !ok {
				break
			}
			if !isTrusted(hop, trusted) {
				return hop, true
			}
		}
	}
	if ip, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return ip, true
	}
	return netip.Addr{}, false
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientKey identifies the caller for throttling: the host part of
// RemoteAddr, as left by TrustedRealIP.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
