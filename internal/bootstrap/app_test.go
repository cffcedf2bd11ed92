package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/jobs"
	"batch-transcriber/internal/transcribe"
)

// fakeChecker returns a fixed report.
type fakeChecker struct {
	items []domain.DiagnosticItem
}

func (c *fakeChecker) Run(domain.Settings) domain.DiagnosticReport {
	return domain.DiagnosticReport{Items: c.items}
}

// fakeLedger records whether it was loaded.
type fakeLedger struct {
	loaded bool
	err    error
}

func (l *fakeLedger) Load() (map[string]struct{}, error) {
	l.loaded = true
	return map[string]struct{}{"old.mp4": {}}, l.err
}

// fakeBatch allows injecting custom run behavior per test.
type fakeBatch struct {
	events *jobs.EventBus
	run    func(ctx context.Context) (transcribe.Summary, error)
	calls  int
}

func (b *fakeBatch) Run(ctx context.Context) (transcribe.Summary, error) {
	b.calls++
	if b.run == nil {
		return transcribe.Summary{}, nil
	}
	return b.run(ctx)
}

func (b *fakeBatch) Events() *jobs.EventBus {
	return b.events
}

func newTestApp(checker *fakeChecker, l *fakeLedger, batch *fakeBatch) (*App, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &App{
		Settings: domain.Settings{LedgerPath: "data/processed_videos.txt"},
		checker:  checker,
		ledger:   l,
		batch:    batch,
		logger:   zap.New(core).Sugar(),
	}, logs
}

// TestRunStopsOnFatalDiagnostics checks no file is touched on preflight failure.
func TestRunStopsOnFatalDiagnostics(t *testing.T) {
	checker := &fakeChecker{items: []domain.DiagnosticItem{
		{ID: "tool_ffmpeg", Status: domain.DiagnosticStatusFail, Fatal: true},
		{ID: "source_dir", Status: domain.DiagnosticStatusPass, Fatal: true},
	}}
	l := &fakeLedger{}
	batch := &fakeBatch{events: jobs.NewEventBus(10)}
	app, _ := newTestApp(checker, l, batch)

	_, err := app.Run(context.Background())
	if !errors.Is(err, ErrPreflightFailed) {
		t.Fatalf("err = %v, want ErrPreflightFailed", err)
	}
	if !strings.Contains(err.Error(), "tool_ffmpeg") {
		t.Fatalf("error should name the failed check: %v", err)
	}
	if l.loaded || batch.calls != 0 {
		t.Fatalf("ledger loaded = %v, batch calls = %d", l.loaded, batch.calls)
	}
}

// TestRunContinuesOnNonFatalDiagnostics checks warnings do not block the batch.
func TestRunContinuesOnNonFatalDiagnostics(t *testing.T) {
	checker := &fakeChecker{items: []domain.DiagnosticItem{
		{ID: "recognizer", Status: domain.DiagnosticStatusFail, Message: "No API key"},
	}}
	l := &fakeLedger{}
	batch := &fakeBatch{events: jobs.NewEventBus(10)}
	app, logs := newTestApp(checker, l, batch)

	if _, err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !l.loaded || batch.calls != 1 {
		t.Fatalf("ledger loaded = %v, batch calls = %d", l.loaded, batch.calls)
	}
	if logs.FilterMessage("startup check failed").FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expected warning for recognizer check, logs = %v", logs.All())
	}
}

// TestRunLedgerLoadFailureIsFatal checks the batch never starts.
func TestRunLedgerLoadFailureIsFatal(t *testing.T) {
	l := &fakeLedger{err: errors.New("permission denied")}
	batch := &fakeBatch{events: jobs.NewEventBus(10)}
	app, _ := newTestApp(&fakeChecker{}, l, batch)

	if _, err := app.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if batch.calls != 0 {
		t.Fatalf("batch calls = %d, want 0", batch.calls)
	}
}

// TestRunReportsFailedFilesFromThisRun checks the closing failure recap.
func TestRunReportsFailedFilesFromThisRun(t *testing.T) {
	events := jobs.NewEventBus(10)
	events.Publish(jobs.Event{SourceID: "earlier.mp4", Type: jobs.EventTypeError})

	batch := &fakeBatch{events: events, run: func(ctx context.Context) (transcribe.Summary, error) {
		events.Publish(jobs.Event{SourceID: "ok.mp4", Type: jobs.EventTypeResult, State: domain.FileStateCompleted})
		events.Publish(jobs.Event{SourceID: "bad.mp4", Type: jobs.EventTypeError, State: domain.FileStateFailed, Message: "exit status 1"})
		return transcribe.Summary{Counts: map[domain.FileState]int{domain.FileStateCompleted: 1, domain.FileStateFailed: 1}}, nil
	}}
	app, logs := newTestApp(&fakeChecker{}, &fakeLedger{}, batch)

	summary, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Counts[domain.FileStateFailed] != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	recap := logs.FilterMessage("file needs attention").All()
	if len(recap) != 1 {
		t.Fatalf("recap entries = %d, want 1", len(recap))
	}
	if got := recap[0].ContextMap()["file"]; got != "bad.mp4" {
		t.Fatalf("recap file = %v", got)
	}
}

// TestNewRejectsUnknownRecognizer checks configuration errors surface early.
func TestNewRejectsUnknownRecognizer(t *testing.T) {
	if _, err := New(domain.Settings{Recognizer: "azure"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

// TestEnsureLocalBinOnPATHPrependsExistingDir checks PATH handling.
func TestEnsureLocalBinOnPATHPrependsExistingDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	if err := EnsureLocalBinOnPATH(home); err != nil {
		t.Fatalf("EnsureLocalBinOnPATH() error = %v", err)
	}
	if got := os.Getenv("PATH"); got != "/usr/bin" {
		t.Fatalf("PATH = %q, missing dir must not be added", got)
	}

	if err := os.MkdirAll(LocalBinDir(home), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := EnsureLocalBinOnPATH(home); err != nil {
			t.Fatalf("EnsureLocalBinOnPATH() error = %v", err)
		}
	}
	want := LocalBinDir(home) + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %q, want %q", got, want)
	}
	if filepath.Base(LocalBinDir(home)) != "bin" {
		t.Fatalf("LocalBinDir = %q", LocalBinDir(home))
	}
}
