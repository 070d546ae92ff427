package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/outline"
	"github.com/aretw0/outline/internal/adapters/file"
	"github.com/aretw0/outline/internal/config"
	"github.com/aretw0/outline/pkg/adapters/loam"
	"github.com/aretw0/outline/pkg/adapters/memory"
	"github.com/aretw0/outline/pkg/adapters/redis"
	"github.com/aretw0/outline/pkg/adapters/sqlite"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/persistence/middleware"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
)

// App is an engine wired from configuration together with the resources it owns.
type App struct {
	Engine   *outline.Engine
	Store    ports.SnapshotStore
	History  ports.HistoryLog
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []io.Closer
}

// MetricsHandler serves the app's registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// Close releases the history database and redis connections. The engine must
// be closed first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// NewApp builds the engine described by cfg.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = createLogger(cfg.Log.Level)
	}
	app := &App{
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	app.Registry.MustRegister(collectors.NewGoCollector())

	var client *backend.Client
	if cfg.Store.Backend == "redis" || cfg.History.Backend == "redis" {
		client = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		app.closers = append(app.closers, client)
	}

	store, err := buildStore(cfg, client)
	if err != nil {
		app.Close()
		return nil, err
	}
	store, err = decorateStore(cfg, store, app.Registry, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	history, err := buildHistory(cfg, client)
	if err != nil {
		app.Close()
		return nil, err
	}
	if c, ok := history.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	history, err = decorateHistory(cfg, history)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.History = history

	opts := []outline.Option{
		outline.WithStore(store),
		outline.WithHistory(history),
		outline.WithAutosaveInterval(cfg.Autosave.Interval),
		outline.WithIdleTimeout(cfg.Autosave.IdleTimeout),
		outline.WithEditor(domain.Editor{ID: cfg.Editor.ID, Email: cfg.Editor.Email}),
		outline.WithLogger(logger),
	}
	if cfg.Store.Backend == "redis" {
		opts = append(opts, outline.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
	}
	if cfg.Publish.Dir != "" {
		pub, err := loam.Open(cfg.Publish.Dir)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open publish repository: %w", err)
		}
		opts = append(opts, outline.WithPublisher(pub))
	}

	app.Engine = outline.New(opts...)
	logger.Debug("engine ready",
		"store", cfg.Store.Backend,
		"history", cfg.History.Backend,
		"encrypted", cfg.Encryption.Key != "",
		"autosave", cfg.Autosave.Interval)
	return app, nil
}

func buildStore(cfg config.Config, client *backend.Client) (ports.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case "file", "":
		return file.New(cfg.Store.Dir), nil
	case "memory":
		return memory.NewStore(), nil
	case "redis":
		return redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// decorateStore wraps the store as metrics, breaker, redaction, encryption,
// outermost first. Redaction runs before encryption so masks are sealed too.
func decorateStore(cfg config.Config, store ports.SnapshotStore, reg prometheus.Registerer, logger *slog.Logger) (ports.SnapshotStore, error) {
	mws := []middleware.Middleware{
		middleware.NewMetricsMiddleware(middleware.NewStoreMetrics(reg)),
	}
	if cfg.Breaker.Enabled {
		mws = append(mws, middleware.NewBreakerMiddleware(middleware.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     cfg.Breaker.Timeout,
			Logger:      logger,
		}))
	}
	if len(cfg.Redact.PayloadKeys) > 0 {
		redact, err := middleware.NewRedactMiddleware(cfg.Redact.PayloadKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}
	if cfg.Encryption.Key != "" {
		keys, err := cfg.EncryptionKeys()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    keys[0],
			FallbackKeys: keys[1:],
		}))
	}
	return middleware.Chain(store, mws...), nil
}

// decorateHistory applies the store's redaction and encryption to history
// records, redaction first, so every committed snapshot is protected alike.
func decorateHistory(cfg config.Config, history ports.HistoryLog) (ports.HistoryLog, error) {
	var mws []middleware.HistoryMiddleware
	if len(cfg.Redact.PayloadKeys) > 0 {
		redact, err := middleware.NewRedactHistoryMiddleware(cfg.Redact.PayloadKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}
	if cfg.Encryption.Key != "" {
		keys, err := cfg.EncryptionKeys()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionHistoryMiddleware(middleware.EncryptionConfig{
			ActiveKey:    keys[0],
			FallbackKeys: keys[1:],
		}))
	}
	return middleware.ChainHistory(history, mws...), nil
}

func buildHistory(cfg config.Config, client *backend.Client) (ports.HistoryLog, error) {
	switch cfg.History.Backend {
	case "sqlite", "":
		h, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "redis":
		return redis.NewHistory(client, cfg.Redis.Prefix), nil
	case "memory", "none":
		// History then lives only as long as the process.
		return memory.NewHistory(), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
}
