// Package app wires configuration, storage, the ledger engine, the command
// handler and the Telegram transport into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tokenledger"
	audithook "github.com/xraph/tokenledger/audit_hook"
	"github.com/xraph/tokenledger/bot"
	"github.com/xraph/tokenledger/i18n"
	"github.com/xraph/tokenledger/observability"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/telegram"
)

// Name is the application name used in logs.
const Name = "tokenledger"

// App is the explicitly constructed application context.
type App struct {
	config Config
	logger *slog.Logger

	store    store.Store
	ledger   *tokenledger.Ledger
	handler  *bot.Handler
	poller   *telegram.Poller
	client   telegram.Client
	botName  string
	registry *prometheus.Registry
	metrics  *http.Server

	plugins []plugin.Plugin
}

// Option configures an App.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithClient uses client instead of connecting with API_TOKEN. botName is
// the bot's username, used to filter "/cmd@BotName" commands.
func WithClient(client telegram.Client, botName string) Option {
	return func(a *App) {
		a.client = client
		a.botName = botName
	}
}

// WithPlugin registers an additional ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(a *App) { a.plugins = append(a.plugins, p) }
}

// New builds the application from cfg. Nothing is started and no network
// call is made except connecting to Telegram when no client is injected.
func New(cfg Config, opts ...Option) (*App, error) {
	cfg = mergeWithDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(cfg, os.Stdout)
	}

	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("%s: load catalogs: %w", Name, err)
	}

	if a.client == nil {
		if cfg.APIToken == "" {
			return nil, tokenledger.ValidationError{Field: "API_TOKEN", Message: "required"}
		}
		api, err := telegram.NewClient(cfg.APIToken, a.logger)
		if err != nil {
			return nil, err
		}
		a.client = api
		a.botName = api.Self.UserName
	}

	if a.store == nil {
		s, err := OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		a.store = s
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ledgerOpts := []tokenledger.Option{
		tokenledger.WithLogger(a.logger),
		tokenledger.WithOrganizers(cfg.Organizers...),
		tokenledger.WithAtomicTransfers(cfg.AtomicTransfers),
		tokenledger.WithPlugin(audithook.New(
			audithook.NewLogRecorder(a.logger.With("component", "audit")),
			audithook.WithLogger(a.logger),
		)),
		tokenledger.WithPlugin(observability.NewMetricsExtension(
			observability.NewPrometheusFactory(a.registry),
		)),
	}
	for _, p := range a.plugins {
		ledgerOpts = append(ledgerOpts, tokenledger.WithPlugin(p))
	}
	a.ledger = tokenledger.New(a.store, ledgerOpts...)

	a.handler = bot.NewHandler(a.ledger, bundle.Printer(cfg.Locale),
		bot.WithLogger(a.logger),
		bot.WithBotName(a.botName),
	)
	a.poller = telegram.NewPoller(a.client, a.handler,
		telegram.WithLogger(a.logger),
		telegram.WithWorkers(cfg.Workers),
		telegram.WithPollTimeout(cfg.PollTimeout),
		telegram.WithSkipUpdates(cfg.SkipUpdates),
	)

	if cfg.MetricsAddr != "" {
		a.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           a.routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Ledger returns the ledger engine.
func (a *App) Ledger() *tokenledger.Ledger { return a.ledger }

// Handler returns the command handler.
func (a *App) Handler() *bot.Handler { return a.handler }

// Registry returns the Prometheus registry the app's metrics live in.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Start migrates the store and starts the ledger.
func (a *App) Start(ctx context.Context) error {
	if err := a.ledger.Start(ctx); err != nil {
		return fmt.Errorf("%s: start ledger: %w", Name, err)
	}
	a.logger.Info("application started",
		"store", a.config.Store,
		"locale", a.config.Locale,
		"bot", a.botName,
		"metrics_addr", a.config.MetricsAddr,
	)
	return nil
}

// Run polls Telegram and serves metrics until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// The poller also returns when the update channel closes; take the
	// metrics listener down with it.
	g.Go(func() error {
		defer cancel()
		return a.poller.Run(gctx)
	})

	if a.metrics != nil {
		g.Go(func() error {
			a.logger.Info("metrics listener started", "addr", a.metrics.Addr)
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: metrics listener: %w", Name, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metrics.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Stop closes the ledger and its store.
func (a *App) Stop(_ context.Context) error {
	err := a.ledger.Stop()
	a.logger.Info("application stopped")
	return err
}

// Health pings the store.
func (a *App) Health(ctx context.Context) error {
	if a.store == nil {
		return tokenledger.ErrStoreNotReady
	}
	return a.store.Ping(ctx)
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
