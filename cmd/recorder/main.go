package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/history"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/queue"
)

func main() {
	deps, err := app.BuildRecorder()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Store.Close()
	deps.Log.Info("recorder worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run queue worker
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeRecord, handleRecord(deps))
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, fmt.Sprintf(":%d", deps.Config.HealthPort), "recorder")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("recorder stopped", "err", err)
	}
}

// handleRecord persists record tasks. Records that can never be stored are
// logged and acknowledged so they are not redelivered.
func handleRecord(deps app.RecorderDeps) queue.Handler {
	persist := history.Persist(deps.Store)
	return func(ctx context.Context, task queue.Task) error {
		err := persist(ctx, task)
		switch {
		case errors.Is(err, history.ErrInvalidRecord):
			deps.Log.Error("dropping invalid record", "id", task.ID, "err", err)
			return nil
		case err != nil:
			return err
		}
		deps.Log.Debug("interaction stored", "id", task.ID)
		return nil
	}
}
