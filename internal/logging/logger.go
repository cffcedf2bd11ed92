package logging

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the run logger. Output is JSON unless stderr is a terminal.
// Every entry carries the run correlation id.
func New(level string) (*zap.SugaredLogger, string, error) {
	runID := uuid.NewString()

	terminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logger, err := buildConfig(level, runID, terminal).Build()
	if err != nil {
		return nil, "", err
	}
	return logger.Sugar(), runID, nil
}

// buildConfig picks the console encoder for terminals. Stack traces stay off
// there: unintelligible segments are routine warnings.
func buildConfig(level, runID string, terminal bool) zap.Config {
	cfg := zap.NewProductionConfig()
	if terminal {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.InitialFields = map[string]interface{}{"run_id": runID}
	return cfg
}

// ParseLevel maps config strings to zap levels, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
