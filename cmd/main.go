package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/portrouter/config"
	"github.com/angeloszaimis/portrouter/internal/backend"
	"github.com/angeloszaimis/portrouter/internal/circuitbreaker"
	"github.com/angeloszaimis/portrouter/internal/handler"
	"github.com/angeloszaimis/portrouter/internal/healthcheck"
	"github.com/angeloszaimis/portrouter/internal/httpserver"
	"github.com/angeloszaimis/portrouter/internal/metrics"
	"github.com/angeloszaimis/portrouter/internal/resolver"
	"github.com/angeloszaimis/portrouter/internal/routing"
	"github.com/angeloszaimis/portrouter/internal/store"
	"github.com/angeloszaimis/portrouter/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel(), true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", slog.Any("err", err))
		os.Exit(1)
	}

	if err := a.run(ctx); err != nil {
		log.Error("Router stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

type app struct {
	logger *slog.Logger
	store  store.Store
	table  *routing.Table
	proxy  *httpserver.Server
	admin  *httpserver.Server
}

// newApp opens and loads the route store, wires both listeners and binds
// them. ctx bounds the metrics collector.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open route store: %w", err)
	}

	table := routing.NewTable(st, log)
	if err := table.Load(); err != nil {
		st.Close()
		return nil, fmt.Errorf("load routes from %s: %w", cfg.Store.Path, err)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	breakers := circuitbreaker.NewRegistry(cfg.Breaker.Threshold, cfg.ResetTimeout())
	pool := backend.NewPool(cfg.Backend.Host, log)
	prober := healthcheck.NewProber(cfg.Backend.Host, cfg.LivenessTimeout(), log)

	proxyHandler := handler.NewProxyHandler(log, resolver.New(table), pool, breakers, collector)
	adminHandler := handler.NewAdminHandler(log, table, prober, breakers, collector)

	proxySrv, err := httpserver.New(cfg.ProxyAddr(), proxyHandler, httpserver.WithTimeouts(0, 0))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("proxy listener: %w", err)
	}
	adminSrv, err := httpserver.New(cfg.AdminAddr(), setupAdminRouter(log, adminHandler, collector, backendStatus(pool, breakers)))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("admin listener: %w", err)
	}

	if err := proxySrv.Listen(); err != nil {
		st.Close()
		return nil, fmt.Errorf("bind proxy listener: %w", err)
	}
	if err := adminSrv.Listen(); err != nil {
		proxySrv.Shutdown(context.Background())
		st.Close()
		return nil, fmt.Errorf("bind admin listener: %w", err)
	}

	return &app{
		logger: log,
		store:  st,
		table:  table,
		proxy:  proxySrv,
		admin:  adminSrv,
	}, nil
}

// run serves both listeners until ctx is done or one of them fails, then
// shuts both down and closes the store.
func (a *app) run(ctx context.Context) error {
	srvErrCh := make(chan error, 2)

	go func() {
		srvErrCh <- a.proxy.Start()
	}()
	go func() {
		srvErrCh <- a.admin.Start()
	}()

	a.logger.Info("Router started",
		slog.String("proxy", a.proxy.Addr()),
		slog.String("admin", a.admin.Addr()),
		slog.Int("routes", a.table.Len()))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case runErr = <-srvErrCh:
		if runErr == nil {
			runErr = errors.New("listener closed unexpectedly")
		}
	}

	if err := a.proxy.Shutdown(context.Background()); err != nil {
		a.logger.Error("Error during proxy shutdown", slog.Any("err", err))
	}
	if err := a.admin.Shutdown(context.Background()); err != nil {
		a.logger.Error("Error during admin shutdown", slog.Any("err", err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing route store", slog.Any("err", err))
	}

	return runErr
}
