package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/httputil"
)

const sweepInterval = time.Minute

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("pdf assistant listening", "addr", srv.Addr)
		return httputil.ListenAndServe(ctx, deps.Log, srv)
	})
	if sw, ok := deps.Sessions.(sweeper); ok {
		g.Go(func() error {
			sweepSessions(ctx, deps.Log, sw, sweepInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		deps.Log.Error("server stopped", "err", err)
		deps.Close()
		os.Exit(1)
	}
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, httputil.RouterConfig{
		TrustedProxies: deps.TrustedProxies,
		AllowedOrigins: deps.Config.CORSAllowedOrigins,
	})
	requestTimeout := httputil.Timeout(deps.Config.RequestTimeout)

	r.Group(func(r chi.Router) {
		r.Use(requestTimeout)
		r.Get("/", rootHandler)
		r.Get("/healthz", httputil.HealthHandler(deps.Log))
		r.Post("/login", loginHandler(deps))
		r.Post("/logout", logoutHandler(deps))
		r.Get("/session", sessionHandler(deps))
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.APIKey(deps.Log, deps.Config.APIKey))
		r.Use(httputil.RequireSession(deps.Log, deps.Gate))

		// Conversion runs under its own, longer deadline.
		r.With(httputil.Timeout(convertRouteTimeout(deps.Config))).Post("/convert", convertHandler(deps))

		r.Group(func(r chi.Router) {
			r.Use(requestTimeout)
			r.Post(contract.PathSummarize, summarizeHandler(deps))
			r.Post(contract.PathAsk, askHandler(deps))
			r.Post("/translate", translateHandler(deps))
			r.Post("/generate", generateHandler(deps))
			r.Get("/history", listHistoryHandler(deps))
			r.Get("/history/{id}", getHistoryHandler(deps))
		})
	})

	return r
}

// convertGrace covers upload and response time around the converter itself.
const convertGrace = 30 * time.Second

func convertRouteTimeout(cfg config.Config) time.Duration {
	return max(cfg.RequestTimeout, cfg.ConvertTimeout+convertGrace)
}

func rootHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "✅ API is running",
		"message": "Welcome to AI Catalyst - your smart PDF assistant!",
	})
}

type sweeper interface {
	Sweep() int
}

// sweepSessions drops expired in-memory sessions until ctx is done.
func sweepSessions(ctx context.Context, log *slog.Logger, sw sweeper, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sw.Sweep(); n > 0 {
				log.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
