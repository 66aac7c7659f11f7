package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/sales-analytics/internal/app"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SALES_CONFIG"), "Path to a YAML config file (or set SALES_CONFIG)")
		seed       = flag.Int("seed", -1, "Records to seed into an empty table (defaults to generator.seed_count)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.Configure(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer a.Close()

	count := cfg.Generator.SeedCount
	if *seed >= 0 {
		count = *seed
	}
	if n, err := a.Generator.Seed(ctx, count); err != nil {
		log.Fatal().Err(err).Int("written", n).Msg("Seeding failed")
	}

	log.Info().Str("driver", cfg.Store.Driver).Msg("Starting generator service")

	done := make(chan error, 1)
	go func() { done <- a.Generator.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down generator service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("Generator stopped with error")
		}
	}

	log.Info().Msg("Generator service stopped")
}
