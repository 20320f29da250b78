package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/api"
	"github.com/flashzynex-dot/vps-bot/internal/bot"
	"github.com/flashzynex-dot/vps-bot/internal/config"
	"github.com/flashzynex-dot/vps-bot/internal/events"
	"github.com/flashzynex-dot/vps-bot/internal/lifecycle"
	"github.com/flashzynex-dot/vps-bot/internal/registry"
	"github.com/flashzynex-dot/vps-bot/internal/storage"
	"github.com/flashzynex-dot/vps-bot/internal/telemetry"
	"github.com/flashzynex-dot/vps-bot/internal/transport"
)

func main() {
	root := &cobra.Command{
		Use:   "vpsbot",
		Short: "Chat bot that provisions and drives per-user VPS instances",
	}
	root.AddCommand(serveCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.Init("vps-bot")
	if err != nil {
		log.Error("failed to init tracing", zap.Error(err))
		os.Exit(1)
	}

	store, err := storage.NewBadgerStore(cfg.DataDir)
	if err != nil {
		log.Error("failed to open store", zap.String("dir", cfg.DataDir), zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	reg := registry.New(store, log)
	ctx := context.Background()
	if fixed, err := reg.ReconcileStartup(ctx); err != nil {
		log.Error("startup reconcile failed", zap.Error(err))
		os.Exit(1)
	} else if fixed > 0 {
		log.Info("settled interrupted reboots", zap.Int("count", fixed))
	}

	var bus *events.Publisher
	if cfg.NATSURL != "" {
		bus, err = events.NewPublisher(cfg.NATSURL, log)
		if err != nil {
			log.Warn("nats unavailable, events disabled", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	ctl := lifecycle.New(reg, bus, log, cfg.RebootDelay)

	gw, err := transport.Dial(ctx, cfg.GatewayURL, cfg.BotToken, log)
	if err != nil {
		log.Error("failed to connect gateway", zap.String("url", cfg.GatewayURL), zap.Error(err))
		os.Exit(1)
	}
	defer gw.Close()

	router := bot.NewRouter(gw, reg, ctl, bus, cfg.AdminID, cfg.DeployChannel, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	routerDone := make(chan error, 1)
	go func() { routerDone <- router.Run(runCtx) }()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewHTTPHandler(reg, log),
	}
	go func() {
		log.Info("http shim listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http listen", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr}
	go func() {
		mux := http.NewServeMux()
		api.RegisterMetrics(mux)
		metricsServer.Handler = mux
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		log.Info("shutdown initiated")
	case err := <-routerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("router exited", zap.Error(err))
		}
	}

	cancel()
	gw.Close()
	sdCtx, sdCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sdCancel()
	if err := httpServer.Shutdown(sdCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(sdCtx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}
	if err := shutdownTracing(sdCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}
