package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api"
	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}

	port := flag.Int("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log, err := app.NewLogger(cfg, "api")
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open services")
	}
	if err := a.Store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate record store")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore, log)
	jobQueue.SetRetryBackoff(cfg.Jobs.RetryBackoff)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting training workers")
	if err := jobQueue.Start(workerCtx, a.Predictor.HandleTrainJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(api.Deps{
		Ledger:      a.Ledger,
		Importer:    a.Importer,
		Predictor:   a.Predictor,
		Publisher:   jobQueue,
		JobStore:    jobStore,
		AutoRetrain: cfg.Model.AutoRetrain,
		Log:         log,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(*port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdown(server, jobQueue, a, cancelWorker, log)
}

// shutdown drains HTTP first so no new jobs arrive, then the queue, then the stores.
func shutdown(server *http.Server, queue *inmemory.Queue, a *app.App, cancelWorker context.CancelFunc, log zerolog.Logger) {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := queue.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := a.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing services")
	}

	log.Info().Msg("Server exited")
}
