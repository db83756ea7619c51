package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"homeinspect/internal/amqp"
	"homeinspect/internal/backend"
	"homeinspect/internal/capture"
	"homeinspect/internal/cli"
	"homeinspect/internal/config"
	apphttp "homeinspect/internal/http"
	"homeinspect/internal/identity"
	"homeinspect/internal/log"
	"homeinspect/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	calendar, checklist, err := cli.Domain(cfg)
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	stores, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithSupersede(cfg.SupersedeOnReupload),
	}
	// AMQP is optional: without it uploads work and no report is exported.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without upload events", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithEvents(client))
			logger.Info("Publishing upload events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	coordinator := services.NewUploadCoordinator(stores.Blobs, stores.Records, calendar, checklist, opts...)
	provider := identity.NewProvider(stores.Users, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, coordinator, provider, capture.NewNormalizer(nil, nil), logger, apphttp.Options{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		MatrixCacheSize: cfg.MatrixCacheSize,
		MatrixCacheTTL:  cfg.MatrixCacheTTL,
	})
	for name, check := range stores.Checks {
		srv.AddReadinessCheck(name, apphttp.ReadinessCheck(check))
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting homeinspect server",
			"port", cfg.Port,
			"timezone", calendar.Location().String(),
			"checklist_items", checklist.Len(),
			"supersede_on_reupload", cfg.SupersedeOnReupload)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
