package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// Checker validates the ffmpeg binary, the batch directories, and the
// recognizer credentials before a run.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(settings.FFmpegPath),
		c.checkSourceDir(settings.SourceDir),
		c.checkWritableDir("output_dir", "Output directory", settings.OutputDir),
		c.checkWritableDir("working_dir", "Working directory", settings.WorkingDir),
		c.checkWritableDir("ledger_dir", "Ledger directory", filepath.Dir(settings.LedgerPath)),
		checkRecognizer(settings),
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: lo.SomeBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items: items,
	}
}

// checkTool verifies the ffmpeg executable resolves.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	if strings.TrimSpace(name) == "" {
		name = "ffmpeg"
	}
	item := domain.DiagnosticItem{ID: "tool_ffmpeg", Name: name, Fatal: true}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", name)
		item.Hint = "Install ffmpeg or set ffmpegPath / TRANSCRIBER_FFMPEG to the binary."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkSourceDir requires the source directory to exist. It is never created.
func (c *Checker) checkSourceDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "source_dir", Name: "Source directory", Fatal: true}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Source directory is empty."
		item.Hint = "Set sourceDir to the folder containing the media to transcribe."
		return item
	}

	info, err := c.stat(dir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Source directory does not exist: %s", dir)
		} else {
			item.Message = fmt.Sprintf("Cannot access source directory: %s", dir)
		}
		item.Hint = "Create the directory and place media files in it."
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Source path is not a directory: %s", dir)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Source directory found: %s", dir)
	return item
}

// checkWritableDir creates dir when missing and probes write access.
func (c *Checker) checkWritableDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name, Fatal: true}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = "Set a directory the process can write to."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create %s: %s", strings.ToLower(name), dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is not writable: %s", name, dir)
		item.Hint = "Adjust filesystem permissions for this directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkRecognizer flags missing credentials. Not fatal: requests would fail
// per segment and the batch still completes.
func checkRecognizer(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "recognizer", Name: "Recognizer " + settings.Recognizer}

	needsKey := settings.Recognizer == "google" ||
		(settings.Recognizer == "openai" && strings.TrimSpace(settings.RecognizerURL) == "")
	if needsKey && strings.TrimSpace(settings.APIKey) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No API key configured for %s.", settings.Recognizer)
		item.Hint = "Set apiKey, TRANSCRIBER_API_KEY, or OPENAI_API_KEY."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if settings.RecognizerURL != "" {
		item.Message = fmt.Sprintf("Using endpoint %s", settings.RecognizerURL)
	} else {
		item.Message = "Using default endpoint"
	}
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
