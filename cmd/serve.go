package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/okian/auditdeck/internal/adapters/http/api"
	"github.com/okian/auditdeck/internal/adapters/http/site"
	"github.com/okian/auditdeck/internal/adapters/http/swagger"
	"github.com/okian/auditdeck/internal/adapters/stream"
	app "github.com/okian/auditdeck/internal/app"
	"github.com/okian/auditdeck/internal/config"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// HTTP server timeout constants. There is no write timeout: /api/stream
// responses stay open for as long as the browser does.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
	reconnectJitter        = 0.2
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides addr)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(ctx, c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}
			return runServer(ctx, cfg)
		},
	}
}

// loadConfig loads the process config and applies the global --api flag.
func loadConfig(ctx context.Context, c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if u := c.String("api"); u != "" {
		cfg.APIBaseURL = u
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newService maps the config onto service options.
func newService(cfg *config.Config, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log),
		app.WithAPIBaseURL(cfg.APIBaseURL),
		app.WithHTTPTimeout(cfg.HTTPTimeout()),
		app.WithQueueSize(cfg.StreamQueueSize),
		app.WithBackoff(stream.Backoff{
			Initial:     cfg.ReconnectInitial(),
			Max:         cfg.ReconnectMax(),
			Multiplier:  cfg.ReconnectMultiplier,
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Jitter:      reconnectJitter,
		}),
		app.WithSummarySchedule(cfg.SummaryRefresh),
		app.WithToastCapacity(cfg.ToastCapacity),
	)
}

// newRouter mounts the dashboard, the API docs and the API on one router.
func newRouter(ctx context.Context, svc *app.Service, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	site.Register(ctx, r)
	swagger.Register(ctx, r)
	api.NewServer(svc, svc.Reviews(), svc, log).Register(ctx, r)
	return r
}

func runServer(ctx context.Context, cfg *config.Config) error {
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	applyLogLevel(ctx, loggerInstance, cfg.LogLevel)
	err := config.Watch(ctx, func(next *config.Config, err error) {
		if err != nil {
			loggerInstance.Warn(ctx, "config reload failed", logger.Error(err))
			return
		}
		applyLogLevel(ctx, loggerInstance, next.LogLevel)
		loggerInstance.Info(ctx, "config reloaded", logger.String("log_level", next.LogLevel))
	})
	if err != nil {
		loggerInstance.Warn(ctx, "config watch disabled", logger.Error(err))
	}

	svc := newService(cfg, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			loggerInstance.Error(ctx, "service shutdown failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		// Request contexts end with the process so open streams let go.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr), logger.String("api", cfg.APIBaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	loggerInstance.Info(ctx, "server stopped")
	return nil
}

func applyLogLevel(ctx context.Context, l logger.Logger, level string) {
	if err := logger.SetLevelString(level); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if n, ok := stats["sessions"].(int); ok {
		metrics.UpdateReviewSessions(n)
	}
	summary := svc.Summary()
	metrics.UpdateSummaryCount("features", summary.Cards.Features)
	metrics.UpdateSummaryCount("sources", summary.Cards.Sources)
}
