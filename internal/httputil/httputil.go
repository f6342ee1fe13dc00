package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultTimeout  = 60 * time.Second
)

// RouterConfig tunes the middleware chain installed by NewRouter.
type RouterConfig struct {
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	// AllowedOrigins enables CORS for these origins; "*" allows any.
	AllowedOrigins []string
}

// NewRouter creates a chi router with standard middleware (RequestID,
// TrustedRealIP, Recoverer, Logger and CORS when origins are configured).
// Timeouts are applied per route group with Timeout.
func NewRouter(log *slog.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(cfg.TrustedProxies))
	r.Use(Recoverer(log))
	r.Use(RequestLogger(log))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Content-Disposition", "X-Envelope-Version", "Retry-After"},
			MaxAge:         300,
		}))
	}

	return r
}

// Timeout bounds the request context of the routes it wraps; zero means 60s.
func Timeout(d time.Duration) func(next http.Handler) http.Handler {
	if d <= 0 {
		d = defaultTimeout
	}
	return middleware.Timeout(d)
}

// WriteJSON writes a JSON response with proper headers.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

// WriteAttachment sends body as a file download.
func WriteAttachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// HealthHandler returns a simple health check endpoint.
func HealthHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Warn("healthz write failed", "err", err)
		}
	}
}

// ServeHealth runs a /healthz-only server on addr until ctx is done.
func ServeHealth(ctx context.Context, log *slog.Logger, addr, service string) error {
	r := chi.NewRouter()
	r.Get("/healthz", HealthHandler(log))
	log.Info("health server listening", "service", service, "addr", addr)
	return ListenAndServe(ctx, log, &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

// ListenAndServe runs srv and shuts it down gracefully once ctx is done.
func ListenAndServe(ctx context.Context, log *slog.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RequestLogger is a lightweight HTTP logger that uses slog.
func RequestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Recoverer logs panics via slog and answers with a JSON 500.
func Recoverer(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered", "panic", rec, "path", r.URL.Path, "method", r.Method, "request_id", middleware.GetReqID(r.Context()))
					WriteJSON(w, http.StatusInternalServerError, ErrorBody{Error: http.StatusText(http.StatusInternalServerError)})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Fail writes a JSON error response with consistent logging. Client errors
// are logged at warn level, server errors at error level.
func Fail(log *slog.Logger, w http.ResponseWriter, message string, err error, status int) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, "status", status, "err", err)
	} else {
		log.Warn(message, "status", status, "err", err)
	}
	WriteJSON(w, status, ErrorBody{Error: message})
}

// ValidationError answers 400 with one detail line per invalid field.
func ValidationError(log *slog.Logger, w http.ResponseWriter, message string, details []string) {
	log.Warn(message, "details", details)
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: message, Details: details})
}
