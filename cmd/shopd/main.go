package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rexliu/motoshop/pkg/api"
	"github.com/rexliu/motoshop/pkg/config"
	"github.com/rexliu/motoshop/pkg/ipc"
	"github.com/rexliu/motoshop/pkg/logging"
	"github.com/rexliu/motoshop/pkg/metrics"
	"github.com/rexliu/motoshop/pkg/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config.toml (optional)")
	addr := flag.String("addr", "", "Override server.addr")
	adminUser := flag.String("admin-user", "admin", "Username of the account created on first start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New("shopd", cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	boot := bootstrap{user: *adminUser, password: os.Getenv(config.EnvPrefix + "_ADMIN_PASSWORD")}
	if err := run(ctx, cfg, boot, logger); err != nil {
		logger.Error("fatal error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, boot bootstrap, logger *zap.Logger) error {
	logger.Info("starting daemon", zap.String("profile", cfg.ProfileName), zap.String("version", version))

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces failed", zap.Error(err))
		}
	}()

	d, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	if err := boot.ensureAdmin(ctx, d.services.Catalog, logger); err != nil {
		return err
	}

	collector := metrics.New()
	router := ipc.NewRouter()
	api.NewHandlers(d.services, cfg.Server.RequireToken, logger).Register(router)
	srv := ipc.NewServer(router,
		ipc.WithLogger(logger.Named("ipc").Sugar()),
		ipc.WithObserver(collector),
		ipc.WithIdleTimeout(cfg.Server.IdleTimeout))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("daemon ready", zap.String("addr", ln.Addr().String()), zap.Int("kinds", len(router.Kinds())))
		return srv.Serve(ln)
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics server start", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if err := srv.Stop(); err != nil {
			logger.Warn("stop server", zap.Error(err))
		}
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}
		return nil
	})

	return g.Wait()
}
