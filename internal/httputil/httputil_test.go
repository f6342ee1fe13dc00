package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-assistant/internal/session"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFailWritesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(quietLog(), rec, "file is required", errors.New("no file"), http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "file is required", decodeError(t, rec).Error)

	rec = httptest.NewRecorder()
	Fail(quietLog(), rec, "boom", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(quietLog(), rec, "invalid options", []string{"temperature must be <= 1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "invalid options", body.Error)
	assert.Equal(t, []string{"temperature must be <= 1"}, body.Details)
}

func TestWriteAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAttachment(rec, "out.txt", "text/plain; charset=utf-8", []byte("hi"))

	assert.Equal(t, `attachment; filename=out.txt`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "hi", rec.Body.String())
}

func TestWriteAttachmentEscapesFilename(t *testing.T) {
	for _, name := range []string{`my "draft".docx`, "report v2.pdf", "résumé.pdf", `a\b;c.txt`} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAttachment(rec, name, "application/octet-stream", nil)

			disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
			require.NoError(t, err, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "attachment", disposition)
			assert.Equal(t, name, params["filename"])
		})
	}
}

func TestParseProxies(t *testing.T) {
	got, err := ParseProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", "", "::ffff:198.51.100.9", "2001:db8::/32"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
		netip.MustParsePrefix("198.51.100.9/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = ParseProxies([]string{"proxy.internal"})
	assert.Error(t, err)
	_, err = ParseProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestTrustedRealIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "headers ignored without trusted proxies", remote: "203.0.113.7:4000", xff: "198.51.100.1", realIP: "198.51.100.2", want: "203.0.113.7"},
		{name: "headers ignored from untrusted peer", trusted: trusted, remote: "203.0.113.7:4000", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "forwarded client from trusted proxy", trusted: trusted, remote: "10.1.2.3:4000", xff: "198.51.100.1", want: "198.51.100.1"},
		{name: "rightmost untrusted hop wins", trusted: trusted, remote: "10.1.2.3:4000", xff: "1.1.1.1, 198.51.100.1, 10.9.9.9", want: "198.51.100.1"},
		{name: "real ip fallback", trusted: trusted, remote: "10.1.2.3:4000", realIP: "198.51.100.2", want: "198.51.100.2"},
		{name: "malformed header keeps peer", trusted: trusted, remote: "10.1.2.3:4000", xff: "not-an-ip", want: "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientKey(r)
			}))
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRouterCORSPreflight(t *testing.T) {
	r := NewRouter(quietLog(), RouterConfig{AllowedOrigins: []string{"*"}})
	r.Post("/summarize", okHandler().ServeHTTP)

	req := httptest.NewRequest(http.MethodOptions, "/summarize", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-api-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	origin := rec.Header().Get("Access-Control-Allow-Origin")
	assert.Contains(t, []string{"*", "https://ui.example.com"}, origin)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-api-key")
}

func TestNewRouterWithoutCORS(t *testing.T) {
	r := NewRouter(quietLog(), RouterConfig{})
	r.Post("/summarize", okHandler().ServeHTTP)

	req := httptest.NewRequest(http.MethodOptions, "/summarize", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(quietLog())(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRecovererAnswersJSON(t *testing.T) {
	h := Recoverer(quietLog())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, rec).Error)
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{name: "disabled", key: "", header: "", want: http.StatusNoContent},
		{name: "matching", key: "k1", header: "k1", want: http.StatusNoContent},
		{name: "missing", key: "k1", header: "", want: http.StatusUnauthorized},
		{name: "wrong", key: "k1", header: "k2", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/summarize", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			APIKey(quietLog(), tt.key)(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type fakeChecker struct {
	enabled bool
	state   session.State
	err     error
	gotID   string
}

func (f *fakeChecker) Enabled() bool { return f.enabled }

func (f *fakeChecker) Check(_ context.Context, id string) (session.State, error) {
	f.gotID = id
	return f.state, f.err
}

func TestRequireSession(t *testing.T) {
	valid := session.State{ID: "abc", Authenticated: true, LoginTime: time.Now()}

	tests := []struct {
		name        string
		checker     *fakeChecker
		cookie      string
		wantStatus  int
		wantError   string
		wantCleared bool
	}{
		{name: "gate disabled", checker: &fakeChecker{}, wantStatus: http.StatusNoContent},
		{name: "valid session", checker: &fakeChecker{enabled: true, state: valid}, cookie: "abc", wantStatus: http.StatusNoContent},
		{name: "no session", checker: &fakeChecker{enabled: true, err: session.ErrUnauthenticated}, wantStatus: http.StatusUnauthorized, wantError: "authentication required"},
		{name: "expired", checker: &fakeChecker{enabled: true, err: session.ErrExpired}, cookie: "abc", wantStatus: http.StatusUnauthorized, wantError: "session expired", wantCleared: true},
		{name: "store failure", checker: &fakeChecker{enabled: true, err: errors.New("redis down")}, cookie: "abc", wantStatus: http.StatusInternalServerError, wantError: "session lookup failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen session.State
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = SessionFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/ask", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			RequireSession(quietLog(), tt.checker)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rec).Error)
			}
			if tt.checker.enabled {
				assert.Equal(t, tt.cookie, tt.checker.gotID)
			}
			if tt.name == "valid session" {
				assert.Equal(t, valid, seen)
			}
			if tt.wantCleared {
				cookies := rec.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, SessionCookie, cookies[0].Name)
				assert.True(t, cookies[0].MaxAge < 0)
			}
		})
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "203.0.113.7", ClientKey(req))

	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", ClientKey(req))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: okHandler()}
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, quietLog(), srv) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
