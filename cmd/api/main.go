package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-analytics/internal/api"
	"github.com/dvloznov/sales-analytics/internal/api/handlers"
	"github.com/dvloznov/sales-analytics/internal/app"
	"github.com/dvloznov/sales-analytics/internal/auth"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/gcsuploader"
	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/dvloznov/sales-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/dvloznov/sales-analytics/internal/reportexport"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SALES_CONFIG"), "Path to a YAML config file (or set SALES_CONFIG)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.Configure(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer a.Close()

	log.Info().Str("driver", cfg.Store.Driver).Msg("Table store ready")

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Report export runs only when a bucket is configured.
	var (
		jobStore = inmemory.NewStore()
		jobQueue *inmemory.Queue
		objects  gcsuploader.ObjectStore
	)
	if cfg.Reports.Bucket != "" {
		gcs, err := gcsuploader.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		objects = gcs

		jobQueue = inmemory.NewQueue(100, jobStore, inmemory.WithLogger(log))
		exporter := reportexport.NewExporter(a.Reports, gcs, cfg.Reports.Prefix, a.Metrics, log)

		go func() {
			log.Info().Str("bucket", cfg.Reports.Bucket).Msg("Starting report export worker")
			if err := jobQueue.Start(workerCtx, exporter.Handle); err != nil {
				log.Error().Err(err).Msg("Report export worker stopped with error")
			}
		}()
	} else {
		log.Warn().Msg("No reports bucket configured - report export will be disabled")
	}

	if cfg.Server.RunGenerator {
		go func() {
			if n, err := a.Generator.Seed(workerCtx, cfg.Generator.SeedCount); err != nil {
				log.Error().Err(err).Int("written", n).Msg("Seeding failed")
			}
			if err := a.Generator.Run(workerCtx); err != nil {
				log.Error().Err(err).Msg("Transaction generator stopped with error")
			}
		}()
	}

	authenticator := auth.New(cfg.Auth)

	var publisher jobs.Publisher
	if jobQueue != nil {
		publisher = jobQueue
	}

	mux := api.NewRouter(api.Routes{
		Dashboard: handlers.NewDashboardHandler(a.Reports, log),
		Inventory: handlers.NewInventoryHandler(a.Reports, a.Inventory, a.Metrics, log),
		Pipeline:  handlers.NewPipelineHandler(a.Flag, log),
		Auth:      handlers.NewAuthHandler(authenticator, log),
		Reports:   handlers.NewReportsHandler(publisher, jobStore, objects, cfg.Reports.Bucket, log),
		Sessions:  authenticator,
		Metrics:   a.Metrics,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Wrap(mux, a.Metrics, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}

	log.Info().Msg("Server exited")
}
