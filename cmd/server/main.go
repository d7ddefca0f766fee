package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/arbitrage-platform/internal/config"
	"github.com/aristath/arbitrage-platform/internal/di"
	"github.com/aristath/arbitrage-platform/internal/server"
	"github.com/aristath/arbitrage-platform/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("starting arbitrage platform")

	container, err := di.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build container")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("error closing container resources")
		}
	}()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := container.Infra.InitializeAll(initCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize infrastructure services")
	}

	container.Scheduler.Start()
	defer container.Scheduler.Stop()

	srv := server.New(server.Config{
		Log:               log,
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		Infra:             container.Infra,
		Settings:          container.Settings,
		Distribution:      container.Distribution,
		Migration:         container.Migration,
		FundMonitor:       container.FundMonitor,
		Ingestion:         container.Ingestion,
		Enhancer:          container.Enhancer,
		Hub:               container.Hub,
		AICoordinator:     container.AICoordinator,
		AIInteractionRepo: container.AIInteractionRepo,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := container.Infra.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down infrastructure services")
	}

	log.Info().Msg("server stopped")
}
