// Command parklotd serves the parklot engine over HTTP.
//
// Usage:
//
//	parklotd -config /etc/parklot/parklot.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/api"
	audithook "github.com/xraph/parklot/audit_hook"
	"github.com/xraph/parklot/internal/config"
	"github.com/xraph/parklot/observability"
	"github.com/xraph/parklot/store/backend"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "parklotd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(cfg.Log.Handler(os.Stderr))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := cfg.Store
	if storeCfg.LockTimeout == 0 {
		storeCfg.LockTimeout = cfg.Engine.LockTimeout
	}
	st, err := backend.Open(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []parklot.Option{
		parklot.WithLogger(logger),
		parklot.WithCurrency(cfg.Engine.Currency),
		parklot.WithLockTimeout(cfg.Engine.LockTimeout),
		parklot.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		parklot.WithPlugin(audithook.New(audithook.LogRecorder(logger.With("component", "audit")),
			audithook.WithLogger(logger))),
	}
	if cfg.Engine.OverstayThreshold > 0 {
		opts = append(opts, parklot.WithOverstayMonitor(cfg.Engine.OverstayThreshold, cfg.Engine.OverstayInterval))
	}
	engine := parklot.New(st, opts...)

	if err := engine.Start(ctx); err != nil {
		_ = st.Close() //nolint:errcheck // startup already failed
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Error("engine stop failed", "error", err)
		}
	}()

	if err := provision(ctx, engine, cfg, logger); err != nil {
		return err
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.New(engine,
			api.WithLogger(logger),
			api.WithRoutes(func(r *gin.Engine) {
				r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
			}),
		).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "store", storeCfg.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// provision applies the configured rate cards and creates any configured
// spot that does not exist yet.
func provision(ctx context.Context, engine *parklot.Engine, cfg *config.Config, logger *slog.Logger) error {
	cards, err := cfg.RateCardList()
	if err != nil {
		return err
	}
	for _, card := range cards {
		if err := engine.SetRateCard(ctx, card); err != nil {
			return fmt.Errorf("rate card %s: %w", card.VehicleType, err)
		}
	}

	created := 0
	for _, floor := range cfg.Lot.Floors {
		for _, plan := range floor.Spots() {
			_, err := engine.AddSpot(ctx, plan.Floor, plan.Number, plan.Type)
			switch {
			case err == nil:
				created++
			case errors.Is(err, parklot.ErrDuplicateSpot):
			default:
				return fmt.Errorf("provision F%d-%03d: %w", plan.Floor, plan.Number, err)
			}
		}
	}
	if created > 0 || len(cards) > 0 {
		logger.Info("lot provisioned", "spots_created", created, "rate_cards", len(cards))
	}
	return nil
}
