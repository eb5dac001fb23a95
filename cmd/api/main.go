package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maraichr/batislens/internal/api"
	"github.com/maraichr/batislens/internal/app"
	"github.com/maraichr/batislens/internal/config"
	"github.com/maraichr/batislens/internal/events"
	vk "github.com/maraichr/batislens/internal/store/valkey"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))

	a, err := app.Load(cfg, logger)
	if err != nil {
		logger.Error("failed to load workspace", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("workspace loaded",
		slog.String("file", cfg.Workspace.File),
		slog.Int("projects", len(a.Workspace.Projects())))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := &api.RouterDeps{
		Engine:      a.Engine,
		Validator:   a.Validator,
		Completer:   a.Completer,
		Diagnostics: a.Diagnostics,
		Events:      a.Coordinator,
		Metrics:     cfg.Server.Metrics,
	}

	var publisher *events.Publisher
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(a.Revalidator.Run(gctx)) })

	// Valkey (optional: shares change batches between processes)
	if cfg.Valkey.Enabled {
		client, err := vk.NewClient(ctx, cfg.Valkey)
		if err != nil {
			logger.Warn("valkey connection failed, change stream disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			consumer := events.NewConsumer(client, cfg.Valkey.Stream, cfg.Valkey.GroupPrefix, cfg.Valkey.Consumer, logger)
			if err := consumer.EnsureGroup(ctx); err != nil {
				logger.Error("failed to create consumer group", slog.String("error", err.Error()))
				os.Exit(1)
			}
			publisher = events.NewPublisher(client, cfg.Valkey.Stream)
			deps.Publisher = publisher
			g.Go(func() error { return ignoreCancel(consumer.Consume(gctx, a.Coordinator)) })
			logger.Info("consuming change stream", slog.String("stream", cfg.Valkey.Stream))
		}
	}

	// File watcher (optional)
	if cfg.Watch.Enabled {
		var h events.Handler = a.Coordinator
		if publisher != nil {
			h = publishing{publisher}
		}
		w, err := events.NewWatcher(a.Workspace, h, logger, cfg.Watch.Debounce)
		if err != nil {
			logger.Warn("file watcher disabled", slog.String("error", err.Error()))
		} else {
			defer w.Close()
			for _, p := range a.Workspace.Projects() {
				if err := w.AddProject(p); err != nil {
					logger.Warn("project not watched", slog.String("project", string(p.Key)), slog.String("error", err.Error()))
				}
			}
			g.Go(func() error { return ignoreCancel(w.Run(gctx)) })
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(logger, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// publishing forwards watcher batches to the stream so every process,
// including this one, applies them from there.
type publishing struct {
	p *events.Publisher
}

func (p publishing) Apply(ctx context.Context, b events.Batch) error {
	_, err := p.p.Publish(ctx, b)
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
