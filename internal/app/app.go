package app

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"github.com/alex-user-go/hotelsearch/internal/config"
	"github.com/alex-user-go/hotelsearch/internal/handler"
	"github.com/alex-user-go/hotelsearch/internal/middleware"
	"github.com/alex-user-go/hotelsearch/internal/obs"
	"github.com/alex-user-go/hotelsearch/internal/providers"
	"github.com/alex-user-go/hotelsearch/internal/search"
	"github.com/alex-user-go/hotelsearch/internal/search/breaker"
	"github.com/alex-user-go/hotelsearch/internal/search/cache"
	"github.com/alex-user-go/hotelsearch/internal/search/ratelimit"
)

// App is a fully wired search service.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	handler  http.Handler
	closers  []io.Closer
	cleanups []func()
}

// Run loads configuration, serves HTTP and shuts down on SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}

// New builds the service from cfg. Providers are wired in configured order,
// which is also the order their results are merged in.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(reg, logger)

	providerList, err := a.buildProviders(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	names := make([]string, 0, len(providerList))
	for _, p := range providerList {
		names = append(names, p.Name())
	}
	breakers := breaker.NewSet(names, breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	}, breaker.WithOnStateChange(func(name string, from, to breaker.State) {
		logger.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		metrics.BreakerTransition(name, from, to)
	}))
	for name, state := range breakers.States() {
		metrics.InitBreakerState(name, state)
	}

	aggregator := search.NewAggregator(providerList, breakers, search.AggregatorConfig{
		ProviderTimeout: cfg.Search.ProviderTimeout,
		Pages: search.PageConfig{
			DefaultSize: cfg.Search.DefaultPageSize,
			MaxSize:     cfg.Search.MaxPageSize,
		},
	}, metrics, logger)

	searchCache := cache.NewCache(cfg.Search.CacheTTL)
	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	a.cleanups = append(a.cleanups, searchCache.Close, limiter.Close)

	h := handler.New(aggregator, searchCache, limiter, metrics, logger)

	r := chi.NewRouter()
	if cfg.Server.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(metrics))

	r.Get("/search", h.SearchHandler)
	r.Get("/healthz", obs.HealthHandler(logger))
	r.Get("/healthz/providers", obs.ProvidersHandler(breakers, logger))
	r.Method(http.MethodGet, "/metrics", metrics.MetricsHandler())

	a.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, handler.CacheHeader},
	}).Handler(r)

	logger.Info("service configured",
		"providers", names,
		"provider_timeout", cfg.Search.ProviderTimeout.String(),
		"cache_ttl", cfg.Search.CacheTTL.String(),
	)
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Serve listens on the configured address until ctx is done, then drains
// in-flight requests within the shutdown timeout.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", "error", err)
		return err
	}

	a.logger.Info("server stopped")
	return nil
}

// Close releases provider connections and background workers.
func (a *App) Close() {
	for _, fn := range a.cleanups {
		fn()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close failed", "error", err)
		}
	}
	a.cleanups, a.closers = nil, nil
}

func (a *App) buildProviders(ctx context.Context) ([]providers.Provider, error) {
	var out []providers.Provider
	for _, pc := range a.cfg.Providers {
		if !pc.IsEnabled() {
			a.logger.Info("provider disabled", "provider", pc.Name)
			continue
		}

		timeout := a.cfg.ProviderTimeout(pc)
		switch pc.Kind {
		case config.KindHTTP:
			out = append(out, providers.NewHTTPProvider(pc.Name, pc.URL, timeout))

		case config.KindPostgres:
			db, err := providers.OpenPostgres(ctx, pc.DSN)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			a.closers = append(a.closers, db)
			if err := providers.EnsureCatalogSchema(ctx, db); err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			out = append(out, providers.NewCatalogProvider(pc.Name, providers.NewPostgresStore(db)))

		case config.KindElastic:
			client, err := providers.NewElasticClient(pc.URL, &http.Client{Timeout: timeout})
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			a.cleanups = append(a.cleanups, client.Stop)
			out = append(out, providers.NewIndexProvider(pc.Name, client, pc.Index, 0))

		case config.KindStatic:
			hotels, err := providers.LoadStaticHotels(pc.File, pc.Name)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			out = append(out, providers.NewStaticProvider(pc.Name, hotels))

		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", pc.Name, pc.Kind)
		}
		a.logger.Info("provider configured", "provider", pc.Name, "kind", pc.Kind, "timeout", timeout.String())
	}
	return out, nil
}
