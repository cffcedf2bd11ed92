package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"batch-transcriber/internal/diagnostics"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/jobs"
	"batch-transcriber/internal/ledger"
	"batch-transcriber/internal/media"
	"batch-transcriber/internal/output"
	"batch-transcriber/internal/recognize"
	"batch-transcriber/internal/transcribe"
)

// ErrPreflightFailed is returned when a fatal startup check fails.
var ErrPreflightFailed = errors.New("startup checks failed")

// batchRunner isolates the coordinator behind an interface.
type batchRunner interface {
	Run(ctx context.Context) (transcribe.Summary, error)
	Events() *jobs.EventBus
}

// ledgerLoader reads the persisted ledger before the batch starts.
type ledgerLoader interface {
	Load() (map[string]struct{}, error)
}

// diagnosticsRunner produces the startup report.
type diagnosticsRunner interface {
	Run(settings domain.Settings) domain.DiagnosticReport
}

// App wires configuration, diagnostics, the ledger, and the coordinator for
// one batch run.
type App struct {
	Settings    domain.Settings
	Diagnostics domain.DiagnosticReport

	checker diagnosticsRunner
	ledger  ledgerLoader
	batch   batchRunner
	logger  *zap.SugaredLogger
}

// New builds the production pipeline from settings.
func New(settings domain.Settings, logger *zap.SugaredLogger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	rec, err := recognize.New(recognize.ConfigFromSettings(settings))
	if err != nil {
		return nil, fmt.Errorf("configure recognizer: %w", err)
	}

	processed := ledger.New(settings.LedgerPath)
	segmenter := transcribe.NewFFmpegSegmenter(
		settings.FFmpegPath,
		transcribe.SegmenterOptionsFromSettings(settings),
		transcribe.NewFFmpegTranscoder(settings.FFmpegPath),
		logger,
	)
	coordinator := transcribe.NewCoordinator(transcribe.Components{
		Sources:     media.NewScanner(settings.SourceDir, settings.Extensions),
		Ledger:      processed,
		Segmenter:   segmenter,
		Transcriber: transcribe.NewTranscriber(rec, settings.MaxRetries, logger),
		Writer:      output.NewWriter(settings.OutputDir, settings.OutputPrefix),
	}, settings.WorkerPoolSize, jobs.NewEventBus(1000), logger)

	return &App{
		Settings: settings,
		checker:  diagnostics.NewChecker(),
		ledger:   processed,
		batch:    coordinator,
		logger:   logger,
	}, nil
}

// Run checks the environment, loads the ledger, and processes the batch.
// File-level failures are reported in the summary, not as errors.
func (a *App) Run(ctx context.Context) (transcribe.Summary, error) {
	a.Diagnostics = a.checker.Run(a.Settings)
	a.logDiagnostics()
	if fatal := a.Diagnostics.FatalFailures(); len(fatal) > 0 {
		names := make([]string, 0, len(fatal))
		for _, item := range fatal {
			names = append(names, item.ID)
		}
		return transcribe.Summary{}, fmt.Errorf("%w: %s", ErrPreflightFailed, strings.Join(names, ", "))
	}

	seen, err := a.ledger.Load()
	if err != nil {
		return transcribe.Summary{}, fmt.Errorf("load ledger: %w", err)
	}
	a.logger.Infow("ledger loaded", "entries", len(seen), "path", a.Settings.LedgerPath)

	startSeq := a.batch.Events().LastSeq()
	summary, err := a.batch.Run(ctx)
	a.reportFailures(startSeq)
	return summary, err
}

func (a *App) logDiagnostics() {
	for _, item := range a.Diagnostics.Items {
		switch {
		case item.Status == domain.DiagnosticStatusPass:
			a.logger.Debugw("startup check passed", "check", item.ID, "message", item.Message)
		case item.Fatal:
			a.logger.Errorw("startup check failed", "check", item.ID, "message", item.Message, "hint", item.Hint)
		default:
			a.logger.Warnw("startup check failed", "check", item.ID, "message", item.Message, "hint", item.Hint)
		}
	}
}

// reportFailures lists files that ended in an error state during this run.
func (a *App) reportFailures(sinceSeq int64) {
	for _, ev := range a.batch.Events().Since(sinceSeq) {
		if ev.Type != jobs.EventTypeError {
			continue
		}
		a.logger.Warnw("file needs attention", "file", ev.SourceID, "state", ev.State, "reason", ev.Message)
	}
}
