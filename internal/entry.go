// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/geoplan/internal/api"
	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/mcpserver"
	"github.com/starford/geoplan/internal/placement"
	"github.com/starford/geoplan/internal/sse"
	"github.com/starford/geoplan/internal/storage"
	"github.com/starford/geoplan/internal/store"
)

// runtime is the wiring shared by the HTTP server and the MCP server.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	lib     storage.Provider
	db      *store.DB
	broker  *sse.Broker
	svc     *placement.Service
	version string
}

func newRuntime(ctx context.Context, opts []Option, logOut *os.File) (*runtime, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("plans_path", cfg.Plans.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("multi_instance", cfg.Editor.MultiInstance),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Plans.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create plans dir: %w", err)
	}
	lib, err := storage.NewFS(cfg.Plans.Path)
	if err != nil {
		return nil, fmt.Errorf("init plan library: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path,
		store.WithMultiInstance(cfg.Editor.MultiInstance),
		store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	broker := sse.NewBroker(cfg.SSE.PlanThrottle)

	// Run initial sync.
	missing, err := store.SyncPlans(ctx, db, lib, logger)
	if err != nil {
		logger.Warn("initial plan sync failed", slog.String("error", err.Error()))
	}
	for _, f := range missing {
		broker.PublishPlanEvent("missing", 0, f)
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		lib:     lib,
		db:      db,
		broker:  broker,
		svc:     placement.NewService(db, db, broker, logger),
		version: app.version,
	}, nil
}

func (rt *runtime) close() {
	rt.broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close store", slog.String("error", err.Error()))
	}
}

func (rt *runtime) sessionOptions() []editor.Option {
	ec := rt.cfg.Editor
	return []editor.Option{
		editor.WithLogger(rt.logger),
		editor.WithSnap(ec.Snap()),
		editor.WithHistoryLimit(ec.HistoryLimit),
		editor.WithSaveTimeout(ec.SaveTimeout),
		editor.WithMultiInstance(ec.MultiInstance),
		editor.WithMarkerSize(ec.MarkerSize, ec.MarkerSize),
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	sessions := editor.NewRegistry(editor.NewLocalClient(rt.svc), rt.sessionOptions()...)
	defer sessions.CloseAll()

	apiRouter := api.NewRouter(rt.svc, sessions, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.svc.ListPlans(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q,"sessions":%d}`, rt.version, sessions.Len())
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start plan watcher with SSE callback.
	g.Go(func() error {
		err := store.Watch(gCtx, rt.db, rt.lib, cfg.Plans.Path, logger, func(kind string, planID int64, file string) {
			rt.broker.PublishPlanEvent(kind, planID, file)
		})
		if err != nil {
			logger.Error("plan watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Expire API sessions abandoned by their clients.
	g.Go(func() error {
		sessions.Expire(gCtx, cfg.Editor.SessionIdle)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop the watcher too when shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(rt.svc, rt.version).ServeStdio()
}
