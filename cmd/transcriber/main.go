// Package main runs one batch transcription pass over the source directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"batch-transcriber/internal/bootstrap"
	"batch-transcriber/internal/config"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := config.NewStoreFromEnv().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		return 1
	}

	logger, _, err := logging.New(settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if home, err := os.UserHomeDir(); err == nil {
		if err := bootstrap.EnsureLocalBinOnPATH(home); err != nil {
			logger.Warnw("cannot extend PATH with local tool directory", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(settings, logger)
	if err != nil {
		logger.Errorw("failed to build pipeline", "error", err)
		return 1
	}

	logger.Infow("batch starting",
		"source_dir", settings.SourceDir,
		"output_dir", settings.OutputDir,
		"recognizer", settings.Recognizer,
		"workers", settings.WorkerPoolSize,
	)
	summary, err := app.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Infow("batch interrupted", "completed", summary.Counts[domain.FileStateCompleted])
			return 0
		}
		logger.Errorw("batch aborted", "error", err)
		return 1
	}
	return 0
}
