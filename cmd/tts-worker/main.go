// main package for the tts-worker
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-worker/internal/app"
	"github.com/book-expert/tts-worker/internal/config"
	"github.com/book-expert/tts-worker/internal/health"
	"github.com/book-expert/tts-worker/internal/worker"
	"golang.org/x/sync/errgroup"
)

const (
	bootstrapLogFile = "tts-worker-bootstrap.log"
	logFileName      = "tts-worker.log"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// loadConfig prefers an explicit file, then the central configurator, then
// the environment alone.
func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	cfg, err := config.Load(log)
	if err == nil {
		return cfg, nil
	}

	log.Warn("Configurator unavailable (%v); using environment configuration", err)

	return config.FromEnv()
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	flag.Parse()

	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	err = config.LoadDotEnv()
	if err != nil {
		bootstrapLog.Warn("Ignoring .env: %v", err)
	}

	// 2. Load configuration
	cfg, err := loadConfig(*configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// serve wires the backends and runs the worker and the health server until
// ctx is cancelled or either of them fails.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	res, err := app.Connect(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := res.Close()
		if closeErr != nil {
			log.Warn("Failed to close connections: %v", closeErr)
		}
	}()

	jobQueue, err := app.NewQueue(cfg, res)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}

	defer func() {
		closeErr := jobQueue.Close()
		if closeErr != nil {
			log.Warn("Failed to close job queue: %v", closeErr)
		}
	}()

	synth, err := app.NewSynthesizer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	aligner, err := app.NewAligner(cfg)
	if err != nil {
		return fmt.Errorf("failed to create aligner: %w", err)
	}

	notifier, err := app.NewNotifier(cfg, res)
	if err != nil {
		return fmt.Errorf("failed to create completion notifier: %w", err)
	}

	jobWorker, err := worker.New(jobQueue, synth, aligner, app.NewStore(cfg, res), notifier, worker.Options{
		DefaultVoice: cfg.TTS.DefaultVoice,
		SampleRate:   cfg.TTS.SampleRate,
		JobTimeout:   cfg.JobTimeout(),
		MaxAttempts:  cfg.Worker.MaxAttempts,
		ErrorBackoff: time.Duration(cfg.Worker.ErrorBackoffSeconds) * time.Second,
		TempDir:      cfg.Paths.TempDir,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	healthServer, err := health.Listen(cfg.Health.Addr)
	if err != nil {
		return err
	}

	log.System("TTS worker initialized. Queue backend %s, synthesis %s, aligner %s, health on %s",
		cfg.Queue.Backend, cfg.TTS.Backend, cfg.Aligner.Backend, healthServer.Addr())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return jobWorker.Run(groupCtx) })
	group.Go(func() error { return healthServer.Serve(groupCtx) })

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	log.System("TTS worker stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
