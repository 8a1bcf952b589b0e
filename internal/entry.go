// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/schemaview/internal/api"
	"github.com/starford/schemaview/internal/explorer"
	"github.com/starford/schemaview/internal/index"
	"github.com/starford/schemaview/internal/mcpserver"
	"github.com/starford/schemaview/internal/sse"
	"github.com/starford/schemaview/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// openCatalog prepares the schema directory, storage and index.
func (a *application) openCatalog(logger *slog.Logger) (*storage.FS, *index.DB, error) {
	cfg := a.config
	if err := os.MkdirAll(cfg.Schemas.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create schemas dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Schemas.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

func (a *application) explorerOptions(logger *slog.Logger, extra ...explorer.Option) []explorer.Option {
	return append([]explorer.Option{
		explorer.WithLogger(logger),
		explorer.WithTreeDefaults(a.config.Tree.treeDefaults()),
		explorer.WithMaxSessions(a.config.Tree.MaxSessions),
	}, extra...)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.newLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("schemas_path", cfg.Schemas.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := app.openCatalog(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(cfg.Events.CatalogThrottle)
	defer broker.Close()

	svc := explorer.NewService(store, db, app.explorerOptions(logger,
		explorer.WithInvalidateHook(broker.PublishTreeInvalidated),
	)...)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher: re-index, notify SSE clients and rebuild dependent trees.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, store.Root(), logger, func(kind, path string) {
			broker.PublishSchemaEvent(kind, path)
			svc.Invalidate(path)
		})
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the catalog and tree tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()
	slog.SetDefault(logger)

	store, db, err := app.openCatalog(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := explorer.NewService(store, db, app.explorerOptions(logger)...)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return index.Watch(gCtx, db, store, store.Root(), logger, func(_, path string) {
			svc.Invalidate(path)
		})
	})
	// ServeStdio returns when the client disconnects; cancelling the group
	// stops the watcher.
	g.Go(func() error {
		if err := mcpserver.New(svc).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// TreeRequest selects the schema printed by RenderTree and the nodes to
// unwrap first, each given by its JSON Pointer fragment as shown in the
// node paths (e.g. "#/properties/address").
type TreeRequest struct {
	Path    string
	Unwrap  []string
	Options explorer.TreeOptions
}

// RenderTree opens a tree over req.Path, unwraps the requested nodes in
// order and writes the resulting outline to w.
func RenderTree(ctx context.Context, w io.Writer, req TreeRequest, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	store, db, err := app.openCatalog(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := explorer.NewService(store, db, app.explorerOptions(logger)...)
	tv, err := svc.OpenTree(ctx, req.Path, req.Options)
	if err != nil {
		return fmt.Errorf("open tree %s: %w", req.Path, err)
	}

	for _, ptr := range req.Unwrap {
		tv, err = svc.GetTree(ctx, tv.ID)
		if err != nil {
			return err
		}
		node, ok := findRow(tv, ptr)
		if !ok {
			return fmt.Errorf("unwrap %s: no visible node with that path", ptr)
		}
		if _, err := svc.Unwrap(ctx, tv.ID, node); err != nil {
			return fmt.Errorf("unwrap %s: %w", ptr, err)
		}
	}

	return svc.RenderTree(ctx, tv.ID, w)
}

// findRow returns the last visible row whose path is ptr, so that a path
// repeated inside an unwrapped reference selects the innermost copy.
func findRow(tv *explorer.TreeView, ptr string) (int, bool) {
	id, found := 0, false
	for _, r := range tv.Rows {
		if r.Path == ptr {
			id, found = r.ID, true
		}
	}
	return id, found
}
