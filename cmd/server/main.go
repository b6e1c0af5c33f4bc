package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "device-loan-backend/internal/api/grpc"
	httpapi "device-loan-backend/internal/api/http"
	"device-loan-backend/internal/app"
	"device-loan-backend/internal/config"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/ratelimit"
	"device-loan-backend/internal/scheduler"
	"device-loan-backend/internal/security"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	withScheduler := flag.Bool("scheduler", false, "Also run the cron jobs in this process")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting device loan backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *withScheduler); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped. Goodbye!")
}

func run(ctx context.Context, cfg *config.Config, withScheduler bool) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Rate limiter
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, a.Clock)
		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		limiter.StartSweeper(sweepCtx, cfg.RateLimit.SweepInterval)
	}

	routerCfg := httpapi.RouterConfig{
		Loans:    a.Loans,
		Tokens:   security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Breakers: a.Breakers,
		Limiter:  limiter,
		LimitOptions: ratelimit.MiddlewareOptions{
			SkipSuccessfulRequests: cfg.RateLimit.SkipSuccessfulRequests,
			SkipFailedRequests:     cfg.RateLimit.SkipFailedRequests,
			TrustForwardedFor:      cfg.RateLimit.TrustForwardedFor,
		},
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = a.Metrics
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           httpapi.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "address", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	health := grpcapi.NewHealthReporter(a.Breakers)
	grpcSrv := grpcapi.NewServer(health)
	if cfg.Server.GRPCPort > 0 {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		go func() {
			logger.Info("gRPC server listening", "address", addr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var cron *scheduler.Scheduler
	if withScheduler {
		cron, err = scheduler.NewScheduler(a.Jobs, cfg.Scheduler)
		if err != nil {
			return err
		}
		cron.Start()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	health.Shutdown()
	if cron != nil {
		cron.Stop(shutdownCtx)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	stopGRPC(shutdownCtx, grpcSrv)
	return serveErr
}

type gracefulServer interface {
	GracefulStop()
	Stop()
}

func stopGRPC(ctx context.Context, s gracefulServer) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}
