package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/videditor/jobrunner/ai"
	"github.com/videditor/jobrunner/ai/openrouter"
	"github.com/videditor/jobrunner/config"
	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/logger"
	"github.com/videditor/jobrunner/media"
	"github.com/videditor/jobrunner/processor"
	"github.com/videditor/jobrunner/server"
	"github.com/videditor/jobrunner/speech"
	"github.com/videditor/jobrunner/storage"
	"github.com/videditor/jobrunner/store"
	"github.com/videditor/jobrunner/worker"
)

// RunCmd starts the worker in the foreground.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the job runner",
	Long: `Start the job runner in foreground mode.

The runner will:
- Poll the processing_jobs queue at POLL_INTERVAL_MS
- Process up to JOB_CONCURRENCY jobs at once
- Serve GET /healthz on PORT
- Run until interrupted (Ctrl+C) with graceful shutdown`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	log, err := logger.New(cfg.NodeEnv)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer log.Sync() //nolint:errcheck

	printStartupBanner(cfg)

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.JobConcurrency)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return errors.Wrap(err, "failed to ensure schema")
	}

	repo := store.NewRepository(db, log)

	objects, err := storage.NewClient(ctx, cfg.Tigris, log)
	if err != nil {
		return errors.Wrap(err, "failed to create object storage client")
	}

	tools := media.NewToolchain(cfg.FFmpegBinary, log)
	transcriber := speech.NewWhisperCLI(cfg.WhisperBinary, cfg.WhisperModel, log)
	analyzer := ai.NewTranscriptAnalyzer(openrouter.NewClient(openrouter.Config{
		APIKey: cfg.OpenRouterAPIKey,
		Model:  cfg.OpenRouterModel,
		Logger: log,
	}), log)

	proc := processor.New(repo, log)
	handlers := processor.NewHandlers(repo, objects, tools, transcriber, analyzer, log)
	handlers.RegisterAll(proc)

	w := worker.New(repo, proc,
		cfg.JobConcurrency,
		time.Duration(cfg.PollIntervalMs)*time.Millisecond,
		log)
	w.Start(ctx)
	log.Infow("Job worker started")

	health := server.New(cfg.Port, func() server.WorkerStats {
		return server.WorkerStats{
			Concurrency: w.Concurrency(),
			ActiveJobs:  w.ActiveJobs(),
		}
	}, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- health.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		w.Stop()
		return errors.Wrap(err, "health server failed to start")
	case sig := <-sigChan:
		log.Infow("Shutdown signal received", "signal", sig.String())
		pterm.Info.Println("\nShutting down gracefully...")

		shutdownDone := make(chan error, 1)
		go func() {
			// Worker first so in-flight jobs finish before the health
			// endpoint disappears.
			w.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownDone <- health.Shutdown(shutdownCtx)
		}()

		// Shutdown is idempotent: repeated signals during the drain are
		// acknowledged and ignored so a redelivered SIGTERM cannot abandon
		// in-flight jobs.
		for {
			select {
			case err := <-shutdownDone:
				if err != nil {
					return errors.Wrap(err, "shutdown error")
				}
				pterm.Success.Println("Job runner stopped cleanly")
				return nil
			case sig := <-sigChan:
				log.Infow("Shutdown already in progress, ignoring signal", "signal", sig.String())
			}
		}
	}
}
