package main

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
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/convert"
	"pdf-assistant/internal/generate"
	"pdf-assistant/internal/history"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/llm"
	"pdf-assistant/internal/pdftext"
	"pdf-assistant/internal/pipeline"
	"pdf-assistant/internal/session"
	"pdf-assistant/internal/store"
	"pdf-assistant/internal/translate"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type outputConverter struct{ payload []byte }

func (c outputConverter) Convert(_ context.Context, d convert.Direction, _, outDir string) (string, error) {
	out := filepath.Join(outDir, "out"+d.OutputExt())
	return out, os.WriteFile(out, c.payload, 0o600)
}

// slowConverter finishes after delay unless the request context ends first.
type slowConverter struct {
	outputConverter
	delay time.Duration
}

func (c slowConverter) Convert(ctx context.Context, d convert.Direction, in, outDir string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.delay):
	}
	return c.outputConverter.Convert(ctx, d, in, outDir)
}

type staticExtractor struct{ ext pdftext.Extract }

func (s staticExtractor) Extract([]byte, int, int) (pdftext.Extract, error) { return s.ext, nil }

func newTestDeps(t *testing.T) app.Deps {
	t.Helper()
	sessions := session.NewMemoryStore()
	return app.Deps{
		Config: config.Config{
			MaxUploadSize:  10 * 1000 * 1000,
			RequestTimeout: 5 * time.Second,
		},
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Pipeline:  pipeline.Stub{},
		Sessions:  sessions,
		Gate:      session.NewGate("", sessions, 0, 0),
		Recorder:  history.NopRecorder{},
		Convert:   &convert.Service{Converter: outputConverter{payload: []byte("docx-bytes")}, TempDir: t.TempDir()},
		Generator: &generate.Generator{},
	}
}

// multipartRequest builds a multipart POST. A nil content omits the file part.
func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if content != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contract.PDFContentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(deps app.Deps, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	newRouter(deps).ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestRootAndHealth(t *testing.T) {
	deps := newTestDeps(t)

	rec := serve(deps, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"✅ API is running","message":"Welcome to AI Catalyst - your smart PDF assistant!"}`, rec.Body.String())

	rec = serve(deps, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSummarizeStub(t *testing.T) {
	rec := serve(newTestDeps(t), multipartRequest(t, "/summarize", "report.pdf", samplePDF, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary":"This is a summary of report.pdf."}`, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get(contract.VersionHeader))
}

func TestAskStub(t *testing.T) {
	rec := serve(newTestDeps(t), multipartRequest(t, "/ask", "plan.pdf", samplePDF, map[string]string{"question": "When is the deadline?"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get(contract.VersionHeader))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	answer, _ := body["answer"].(string)
	assert.Contains(t, answer, "When is the deadline?")
	assert.Contains(t, answer, "plan.pdf")
	assert.Equal(t, "You asked: 'When is the deadline?' based on plan.pdf.", answer)
}

func TestAskStubKeepsQuestionVerbatim(t *testing.T) {
	rec := serve(newTestDeps(t), multipartRequest(t, "/ask", "plan.pdf", samplePDF, map[string]string{"question": "  Who signed?  "}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"You asked: '  Who signed?  ' based on plan.pdf."}`, rec.Body.String())
}

func TestDocumentRequestValidation(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:       "summarize without file",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/summarize", "", nil, map[string]string{"model_name": "gpt-4o"}) },
			wantStatus: http.StatusBadRequest,
			wantError:  "file is required",
		},
		{
			name:       "ask without file",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/ask", "", nil, map[string]string{"question": "q"}) },
			wantStatus: http.StatusBadRequest,
			wantError:  "file is required",
		},
		{
			name:       "ask without question",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/ask", "a.pdf", samplePDF, map[string]string{"question": "  "}) },
			wantStatus: http.StatusBadRequest,
			wantError:  "question is required",
		},
		{
			name: "temperature out of range",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/summarize", "a.pdf", samplePDF, map[string]string{"temperature": "1.5"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid options",
		},
		{
			name: "unparseable page",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/summarize", "a.pdf", samplePDF, map[string]string{"start_page": "two"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid options",
		},
		{
			name: "end before start",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/summarize", "a.pdf", samplePDF, map[string]string{"start_page": "5", "end_page": "2"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid options",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid multipart form",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestDeps(t), tt.req(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, errorMessage(t, rec))
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	deps := newTestDeps(t)
	deps.Config.MaxUploadSize = 16
	rec := serve(deps, multipartRequest(t, "/summarize", "big.pdf", bytes.Repeat([]byte("x"), 64), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "file too large")
}

func TestAskPassesOptionsAndRecords(t *testing.T) {
	deps := newTestDeps(t)
	p := new(pipeline.MockPipeline)
	wantOpts := contract.Options{ModelName: "gpt-4o", Temperature: contract.Float(0.2), AllowNonEnglish: contract.Bool(true), StartPage: 2, EndPage: 3}
	p.On("Ask", mock.Anything, mock.MatchedBy(func(doc contract.UploadedDocument) bool {
		return doc.Filename == "a.pdf" && doc.ContentType == contract.PDFContentType && bytes.Equal(doc.Content, samplePDF)
	}), "What?", wantOpts).Return(contract.Answer("Because.", "en", []string{"p. 2: because"}), nil).Once()
	deps.Pipeline = p

	rec := new(history.MockRecorder)
	rec.On("Record", mock.Anything, mock.MatchedBy(func(it history.Interaction) bool {
		return it.Mode == pipeline.ModeAsk && it.Question == "What?" && it.Text == "Because." && it.Model == "gpt-4o"
	})).Return(errors.New("queue down")).Once()
	deps.Recorder = rec

	resp := serve(deps, multipartRequest(t, "/ask", "a.pdf", samplePDF, map[string]string{
		"question":          "What?",
		"model_name":        "gpt-4o",
		"temperature":       "0.2",
		"allow_non_english": "true",
		"start_page":        "2",
		"end_page":          "3",
	}))

	assert.Equal(t, http.StatusOK, resp.Code, "record failures do not fail the request")
	assert.JSONEq(t, `{"answer":"Because.","language":"en","citations":["p. 2: because"]}`, resp.Body.String())
	p.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestPipelineErrors(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{err: pdftext.ErrNotPDF, wantStatus: http.StatusUnsupportedMediaType},
		{err: pdftext.ErrPageRange, wantStatus: http.StatusBadRequest},
		{err: pipeline.ErrNoText, wantStatus: http.StatusUnprocessableEntity},
		{err: errors.New("openai 500"), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			deps := newTestDeps(t)
			p := new(pipeline.MockPipeline)
			p.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return(contract.Result{}, tt.err)
			deps.Pipeline = p

			rec := serve(deps, multipartRequest(t, "/summarize", "a.pdf", samplePDF, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newGatedDeps(t *testing.T, clock *testClock) app.Deps {
	deps := newTestDeps(t)
	deps.Gate = session.NewGate("open-sesame", deps.Sessions, 15*time.Minute, 3, session.WithClock(clock.Now))
	return deps
}

func login(t *testing.T, h http.Handler, code string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"access_code": {code}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == httputil.SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestAccessGate(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	deps := newGatedDeps(t, clock)
	h := newRouter(deps)

	summarize := func(cookie *http.Cookie) *httptest.ResponseRecorder {
		req := multipartRequest(t, "/summarize", "a.pdf", samplePDF, nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := summarize(nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", errorMessage(t, rec))

	rec = login(t, h, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid access code", errorMessage(t, rec))
	assert.Empty(t, rec.Result().Cookies())

	rec = login(t, h, "open-sesame")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	var state map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, true, state["authenticated"])

	clock.now = clock.now.Add(14 * time.Minute)
	assert.Equal(t, http.StatusOK, summarize(cookie).Code)

	clock.now = clock.now.Add(2 * time.Minute)
	rec = summarize(cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session expired", errorMessage(t, rec))

	rec = summarize(cookie)
	assert.Equal(t, "authentication required", errorMessage(t, rec), "expired session is deleted")
}

func TestLoginJSONAndThrottle(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newRouter(newGatedDeps(t, clock))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"access_code":"open-sesame"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, login(t, h, "guess").Code)
	}
	rec = login(t, h, "open-sesame")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many login attempts", errorMessage(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLoginThrottleIgnoresSpoofedForwarding(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newRouter(newGatedDeps(t, clock))

	var last *httptest.ResponseRecorder
	for i := 0; i < 10; i++ {
		form := url.Values{"access_code": {"guess"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestLoginThrottleHonoursTrustedProxy(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	deps := newGatedDeps(t, clock)
	proxies, err := httputil.ParseProxies([]string{"192.0.2.1"})
	require.NoError(t, err)
	deps.TrustedProxies = proxies
	h := newRouter(deps)

	attempt := func(client string) int {
		form := url.Values{"access_code": {"guess"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, attempt("203.0.113.7"))
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt("203.0.113.7"))
	assert.Equal(t, http.StatusUnauthorized, attempt("203.0.113.8"), "other clients behind the proxy are not throttled")
}

func TestCORSPreflight(t *testing.T) {
	deps := newTestDeps(t)
	deps.Config.CORSAllowedOrigins = []string{"*"}
	h := newRouter(deps)

	req := httptest.NewRequest(http.MethodOptions, "/summarize", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-api-key")
}

func TestSessionAndLogout(t *testing.T) {
	clock := &testClock{now: time.Now()}
	h := newRouter(newGatedDeps(t, clock))

	get := func(cookie *http.Cookie) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	assert.Equal(t, false, get(nil)["authenticated"])

	cookie := sessionCookie(t, login(t, h, "open-sesame"))
	body := get(cookie)
	assert.Equal(t, true, body["authenticated"])
	assert.NotEmpty(t, body["expires_at"])

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, get(cookie)["authenticated"])
}

func TestSessionWhenGateDisabled(t *testing.T) {
	rec := serve(newTestDeps(t), httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.JSONEq(t, `{"authenticated":true,"gate_enabled":false}`, rec.Body.String())
}

func TestAPIKeyRequired(t *testing.T) {
	deps := newTestDeps(t)
	deps.Config.APIKey = "k-123"

	rec := serve(deps, multipartRequest(t, "/summarize", "a.pdf", samplePDF, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := multipartRequest(t, "/summarize", "a.pdf", samplePDF, nil)
	req.Header.Set("x-api-key", "k-123")
	assert.Equal(t, http.StatusOK, serve(deps, req).Code)

	assert.Equal(t, http.StatusOK, serve(deps, httptest.NewRequest(http.MethodGet, "/", nil)).Code, "root is open")
}

func TestTranslate(t *testing.T) {
	newDeps := func(t *testing.T, tr translate.Translator) app.Deps {
		deps := newTestDeps(t)
		deps.Translate = &translate.Service{
			Extractor:  staticExtractor{ext: pdftext.Extract{Text: "Hallo Welt", StartPage: 1, EndPage: 2}},
			Translator: tr,
		}
		return deps
	}

	t.Run("json", func(t *testing.T) {
		tr := new(translate.MockTranslator)
		tr.On("Translate", mock.Anything, "Hallo Welt", mock.Anything).Return("Hello world", nil).Once()

		rec := serve(newDeps(t, tr), multipartRequest(t, "/translate", "a.pdf", samplePDF, map[string]string{"target_lang": "en", "start_page": "1", "end_page": "2"}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"original":"Hallo Welt","translated":"Hello world","target_language":"en","language_name":"English","start_page":1,"end_page":2}`, rec.Body.String())
	})

	t.Run("columns download", func(t *testing.T) {
		tr := new(translate.MockTranslator)
		tr.On("Translate", mock.Anything, mock.Anything, mock.Anything).Return("Hello world", nil).Once()

		rec := serve(newDeps(t, tr), multipartRequest(t, "/translate", "a.pdf", samplePDF, map[string]string{"target_lang": "en", "format": "columns"}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "translated-columns.txt")
		assert.Contains(t, rec.Body.String(), "Hallo Welt")
		assert.Contains(t, rec.Body.String(), "Hello world")
	})

	t.Run("translator failure is a 502", func(t *testing.T) {
		tr := new(translate.MockTranslator)
		tr.On("Translate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()

		rec := serve(newDeps(t, tr), multipartRequest(t, "/translate", "a.pdf", samplePDF, map[string]string{"target_lang": "en"}))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "translation failed", errorMessage(t, rec))
	})

	t.Run("bad input", func(t *testing.T) {
		tr := new(translate.MockTranslator)
		for name, fields := range map[string]map[string]string{
			"bad language": {"target_lang": "12"},
			"bad format":   {"target_lang": "en", "format": "pdf"},
			"bad page":     {"target_lang": "en", "start_page": "x"},
			"no target":    {},
		} {
			rec := serve(newDeps(t, tr), multipartRequest(t, "/translate", "a.pdf", samplePDF, fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		}
		tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unavailable without llm", func(t *testing.T) {
		rec := serve(newTestDeps(t), multipartRequest(t, "/translate", "a.pdf", samplePDF, map[string]string{"target_lang": "en"}))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "translation unavailable", errorMessage(t, rec))
	})
}

func TestConvert(t *testing.T) {
	deps := newTestDeps(t)

	rec := serve(deps, multipartRequest(t, "/convert", "report.pdf", samplePDF, map[string]string{"direction": "pdf2docx"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=report.docx`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "docx-bytes", rec.Body.String())

	rec = serve(deps, multipartRequest(t, "/convert", "report.pdf", samplePDF, map[string]string{"direction": "pdf2png"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(deps, multipartRequest(t, "/convert", "report.pdf", samplePDF, map[string]string{"direction": "docx2pdf"}))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = serve(deps, multipartRequest(t, "/convert", "", nil, map[string]string{"direction": "pdf2docx"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file is required", errorMessage(t, rec))
}

func TestConvertOutlivesRequestTimeout(t *testing.T) {
	deps := newTestDeps(t)
	deps.Config.RequestTimeout = 200 * time.Millisecond
	deps.Config.ConvertTimeout = 2 * time.Second
	deps.Convert.Converter = slowConverter{outputConverter: outputConverter{payload: []byte("docx-bytes")}, delay: 400 * time.Millisecond}

	rec := serve(deps, multipartRequest(t, "/convert", "report.pdf", samplePDF, map[string]string{"direction": "pdf2docx"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "docx-bytes", rec.Body.String())
}

func TestConvertRouteTimeout(t *testing.T) {
	tests := []struct {
		name    string
		request time.Duration
		convert time.Duration
		want    time.Duration
	}{
		{name: "defaults", request: 60 * time.Second, convert: 2 * time.Minute, want: 2*time.Minute + convertGrace},
		{name: "request timeout is longer", request: 10 * time.Minute, convert: time.Minute, want: 10 * time.Minute},
		{name: "no convert timeout", request: 10 * time.Second, convert: 0, want: convertGrace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{RequestTimeout: tt.request, ConvertTimeout: tt.convert}
			assert.Equal(t, tt.want, convertRouteTimeout(cfg))
		})
	}
}

func generateRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGenerate(t *testing.T) {
	t.Run("result", func(t *testing.T) {
		deps := newTestDeps(t)
		client := new(llm.MockClient)
		client.On("Complete", mock.Anything, generate.Instruction(generate.TaskBlog), "go generics", llm.Options{}).Return("# Generics", nil).Once()
		deps.Generator = &generate.Generator{LLM: client}

		rec := serve(deps, generateRequest(`{"prompt":"go generics","task_type":"blog"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"result":"# Generics"}`, rec.Body.String())
	})

	t.Run("download", func(t *testing.T) {
		deps := newTestDeps(t)
		client := new(llm.MockClient)
		client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("text", nil).Once()
		deps.Generator = &generate.Generator{LLM: client}

		rec := serve(deps, generateRequest(`{"prompt":"x","download":true}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename=generated.txt`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "text", rec.Body.String())
	})

	t.Run("errors", func(t *testing.T) {
		deps := newTestDeps(t)
		rec := serve(deps, generateRequest(`{"prompt":"x"}`))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "generation unavailable", errorMessage(t, rec))

		assert.Equal(t, http.StatusBadRequest, serve(deps, generateRequest(`{`)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(deps, generateRequest(`{"prompt":""}`)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(deps, generateRequest(`{"prompt":"x","task_type":"poem"}`)).Code)
	})
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := serve(newTestDeps(t), httptest.NewRequest(http.MethodGet, "/history", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "history disabled", errorMessage(t, rec))
	})

	t.Run("list", func(t *testing.T) {
		deps := newTestDeps(t)
		st := new(store.MockStore)
		items := []history.Interaction{{ID: uuid.New(), Mode: "ask", Filename: "a.pdf", Text: "x"}}
		st.On("ListInteractions", mock.Anything, 5).Return(items, nil).Once()
		st.On("ListInteractions", mock.Anything, store.DefaultListLimit).Return([]history.Interaction{}, nil).Once()
		deps.Store = st

		rec := serve(deps, httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Interactions []history.Interaction `json:"interactions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, items[0].ID, body.Interactions[0].ID)

		assert.Equal(t, http.StatusOK, serve(deps, httptest.NewRequest(http.MethodGet, "/history", nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(deps, httptest.NewRequest(http.MethodGet, "/history?limit=0", nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(deps, httptest.NewRequest(http.MethodGet, "/history?limit=101", nil)).Code)
		st.AssertExpectations(t)
	})

	t.Run("get", func(t *testing.T) {
		deps := newTestDeps(t)
		st := new(store.MockStore)
		id := uuid.New()
		st.On("GetInteraction", mock.Anything, id).Return(history.Interaction{ID: id, Mode: "summarize"}, nil).Once()
		missing := uuid.New()
		st.On("GetInteraction", mock.Anything, missing).Return(history.Interaction{}, store.ErrNotFound).Once()
		deps.Store = st

		assert.Equal(t, http.StatusOK, serve(deps, httptest.NewRequest(http.MethodGet, "/history/"+id.String(), nil)).Code)
		assert.Equal(t, http.StatusNotFound, serve(deps, httptest.NewRequest(http.MethodGet, "/history/"+missing.String(), nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(deps, httptest.NewRequest(http.MethodGet, "/history/nope", nil)).Code)
	})
}

type countingSweeper struct{ calls chan struct{} }

func (c countingSweeper) Sweep() int {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 1
}

func TestSweepSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := countingSweeper{calls: make(chan struct{}, 1)}
	done := make(chan struct{})
	go func() {
		sweepSessions(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), sw, time.Millisecond)
		close(done)
	}()

	select {
	case <-sw.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
	<-done
}
