// Package server assembles the preview service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/api"
	"github.com/JakeFAU/profile-preview/internal/config"
	"github.com/JakeFAU/profile-preview/internal/logging"
	"github.com/JakeFAU/profile-preview/internal/preview"
	"github.com/JakeFAU/profile-preview/internal/profile"
	"github.com/JakeFAU/profile-preview/internal/publisher"
	gcppublisher "github.com/JakeFAU/profile-preview/internal/publisher/pubsub"
	gcsshell "github.com/JakeFAU/profile-preview/internal/storage/gcs"
	localshell "github.com/JakeFAU/profile-preview/internal/storage/local"
	memorystore "github.com/JakeFAU/profile-preview/internal/storage/memory"
	pgstore "github.com/JakeFAU/profile-preview/internal/storage/postgres"
	"github.com/JakeFAU/profile-preview/internal/storage/postgrest"
	sqlitestore "github.com/JakeFAU/profile-preview/internal/storage/sqlite"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	store        profile.Store
	shell        preview.ShellSource
	publisher    publisher.Publisher
	pubsubClient *pubsub.Client
	pubsubTopic  *gcppublisher.Publisher
	storage      *storage.Client
	closers      []func() error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Service:     "previewd",
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("site", cfg.Site.BaseURL),
		zap.String("store", cfg.Store.Backend),
		zap.String("shell", cfg.Shell.Backend),
	)

	var err error
	if app.store, err = setupStore(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if app.shell, err = setupShell(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if app.publisher, err = setupPublisher(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	statuses := make([]profile.Status, 0, len(cfg.Preview.PublicStatuses))
	for _, raw := range cfg.Preview.PublicStatuses {
		statuses = append(statuses, profile.ParseStatus(raw))
	}
	svc := preview.NewService(preview.Config{
		Site: preview.Site{
			BaseURL:            cfg.Site.BaseURL,
			Brand:              cfg.Site.Brand,
			DefaultName:        cfg.Site.DefaultName,
			DefaultDescription: cfg.Site.DefaultDescription,
			DefaultImageURL:    cfg.Site.DefaultImageURL(),
			Locale:             cfg.Site.Locale,
			RedirectNotice:     cfg.Site.RedirectNotice,
		},
		Store:          app.store,
		Shell:          app.shell,
		FetchTimeout:   cfg.FetchTimeout(),
		ExtraBotAgents: cfg.Preview.ExtraBotAgents,
		PublicStatuses: statuses,
		Logger:         logger.Named("preview"),
	})

	app.apiServer = api.NewServer(api.Options{
		Service: svc,
		Cache: api.CachePolicy{
			Crawler: cfg.Preview.CrawlerCache.Directive(),
			Human:   cfg.Preview.HumanCache.Directive(),
		},
		Publisher:      app.publisher,
		Ready:          app.ready,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger.Named("api"),
	})
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves on the configured port until ctx is canceled or a signal
// arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.apiServer.Wait(shutdownCtx); err != nil {
		a.logger.Warn("pending events dropped", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return err
	default:
		return closeErr
	}
}

// Close releases infrastructure clients.
func (a *App) Close(_ context.Context) error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
		a.pubsubTopic = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("store close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) ready(ctx context.Context) error {
	if p, ok := a.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("profile store: %w", err)
		}
	}
	return nil
}

func setupStore(ctx context.Context, app *App) (profile.Store, error) {
	cfg := app.cfg.Store
	switch cfg.Backend {
	case config.StorePostgres:
		store, err := pgstore.NewProfileStore(ctx, pgstore.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		app.closers = append(app.closers, func() error { store.Close(); return nil })
		app.logger.Info("using postgres profile store", zap.String("table", cfg.Postgres.Table))
		return store, nil
	case config.StorePostgREST:
		store, err := postgrest.NewProfileStore(postgrest.Config{
			BaseURL:  cfg.PostgREST.URL,
			APIKey:   cfg.PostgREST.APIKey,
			Table:    cfg.PostgREST.Table,
			Attempts: cfg.PostgREST.Attempts,
		}, nil, app.logger.Named("postgrest"))
		if err != nil {
			return nil, fmt.Errorf("postgrest store init failed: %w", err)
		}
		app.logger.Info("using postgrest profile store", zap.String("url", cfg.PostgREST.URL))
		return store, nil
	case config.StoreSQLite:
		store, err := sqlitestore.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		app.closers = append(app.closers, store.Close)
		seed, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		for _, rec := range seed {
			if err := store.Upsert(ctx, rec); err != nil {
				return nil, fmt.Errorf("seed sqlite store: %w", err)
			}
		}
		app.logger.Info("using sqlite profile store",
			zap.String("path", cfg.SQLite.Path),
			zap.Int("seeded", len(seed)),
		)
		return store, nil
	default:
		seed, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		store := memorystore.NewProfileStore(seed...)
		app.logger.Warn("using in-memory profile store", zap.Int("profiles", store.Len()))
		return store, nil
	}
}

func loadSeed(path string) ([]profile.Record, error) {
	if path == "" {
		return nil, nil
	}
	recs, err := memorystore.LoadSeed(path)
	if err != nil {
		return nil, fmt.Errorf("load seed file: %w", err)
	}
	return recs, nil
}

func setupShell(ctx context.Context, app *App) (preview.ShellSource, error) {
	cfg := app.cfg.Shell
	switch cfg.Backend {
	case config.ShellGCS:
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		src, err := gcsshell.New(app.storage, gcsshell.Config{Bucket: cfg.Bucket, Object: cfg.Object})
		if err != nil {
			return nil, fmt.Errorf("gcs shell source init failed: %w", err)
		}
		app.logger.Info("using GCS application shell", zap.String("uri", src.URI()))
		return src, nil
	default:
		src, err := localshell.New(localshell.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("local shell source init failed: %w", err)
		}
		app.logger.Info("using local application shell", zap.String("path", src.Path()))
		return src, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (publisher.Publisher, error) {
	if !app.cfg.EventsEnabled() {
		app.logger.Info("no Pub/Sub topic configured, crawler hit events disabled")
		return nil, nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubTopic = gcppublisher.New(app.pubsubClient.Topic(app.cfg.PubSub.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubTopic, nil
}
