// Package client talks to the PDF assistant API: it builds requests, retries
// transient failures, classifies outcomes and renders them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/retry"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultMaxAttempts = 3
	defaultRetryBase   = 500 * time.Millisecond
	maxResponseSize    = 64 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	AccessCode  string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	RetryBase   time.Duration
	HTTPClient  *http.Client
	Log         *slog.Logger
}

// Client is safe for sequential use; it keeps the session cookie between calls.
type Client struct {
	base        *url.URL
	apiKey      string
	accessCode  string
	timeout     time.Duration
	maxAttempts int
	retryBase   time.Duration
	http        *http.Client
	log         *slog.Logger
	loggedIn    bool
}

// New validates cfg and builds a client with a cookie jar.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		cp := *hc
		cp.Jar = jar
		hc = &cp
	}
	c := &Client{
		base:        base,
		apiKey:      cfg.APIKey,
		accessCode:  cfg.AccessCode,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		http:        hc,
		log:         cfg.Log,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.retryBase <= 0 {
		c.retryBase = defaultRetryBase
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// URL resolves path against the backend URL.
func (c *Client) URL(path string) string {
	return c.base.String() + path
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string { return e.Message }

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// newAPIError extracts a JSON "error" message from body when there is one.
func newAPIError(status int, body []byte, u string) *APIError {
	var payload struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && *payload.Error != "" {
		return &APIError{StatusCode: status, Message: *payload.Error, URL: u}
	}
	return &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("%d %s for url: %s", status, http.StatusText(status), u),
		URL:        u,
	}
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
	url    string
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// payload is a request body that can be replayed on retry.
type payload struct {
	contentType string
	body        []byte
}

func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// do sends a request with bounded retries for transport failures and
// 502/503/504 responses. It returns a transport error only when every
// attempt failed to get a response.
func (c *Client) do(ctx context.Context, method, path string, p *payload) (response, error) {
	u := c.URL(path)
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := retry.Sleep(ctx, attempt-1, c.retryBase); err != nil {
				return response{}, err
			}
		}
		resp, err := c.once(ctx, method, u, p)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, ctx.Err()
			}
			lastErr = err
			c.log.Debug("request failed", "url", u, "attempt", attempt+1, "err", err)
			continue
		}
		if retryable(resp.status) && attempt < c.maxAttempts-1 {
			c.log.Debug("retrying after server status", "url", u, "attempt", attempt+1, "status", resp.status)
			continue
		}
		return resp, nil
	}
	return response{}, lastErr
}

func (c *Client) once(ctx context.Context, method, u string, p *payload) (response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if p != nil {
		body = bytes.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, u, body)
	if err != nil {
		return response{}, err
	}
	if p != nil {
		req.Header.Set("Content-Type", p.contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return response{}, err
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data, url: u}, nil
}

// gated sends a request that may need a session: it logs in first when an
// access code is configured and logs in again once if the session lapsed.
func (c *Client) gated(ctx context.Context, method, path string, p *payload) (response, error) {
	if c.accessCode != "" && !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return response{}, err
		}
	}
	resp, err := c.do(ctx, method, path, p)
	if err != nil || resp.status != http.StatusUnauthorized || c.accessCode == "" {
		return resp, err
	}
	c.log.Debug("session rejected, logging in again", "url", resp.url)
	c.loggedIn = false
	if err := c.Login(ctx); err != nil {
		return response{}, err
	}
	return c.do(ctx, method, path, p)
}

// multipartPayload encodes an optional file part followed by fields in key order.
func multipartPayload(doc *contract.UploadedDocument, contentType string, fields url.Values) (*payload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if doc != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			contract.FieldFile, escapeQuotes(doc.Filename)))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(doc.Content); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return &payload{contentType: mw.FormDataContentType(), body: buf.Bytes()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

func jsonPayload(v any) (*payload, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &payload{contentType: "application/json", body: body}, nil
}
