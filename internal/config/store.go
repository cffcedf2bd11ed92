package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// DefaultPath is used when TRANSCRIBER_CONFIG is not set.
const DefaultPath = "transcriber.json"

// Store defines how settings are obtained for one run.
type Store interface {
	Load() (domain.Settings, error)
}

// JSONStore reads settings from a single JSON file on disk and layers
// environment overrides on top.
type JSONStore struct {
	path   string
	getenv func(string) string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, getenv: os.Getenv}
}

// NewStoreFromEnv resolves the settings file from TRANSCRIBER_CONFIG.
func NewStoreFromEnv() *JSONStore {
	path := strings.TrimSpace(os.Getenv("TRANSCRIBER_CONFIG"))
	if path == "" {
		path = DefaultPath
	}
	return NewJSONStore(path)
}

// Load reads settings from disk, falling back to defaults when the file is
// missing, then applies env overrides, normalization and validation.
func (s *JSONStore) Load() (domain.Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return domain.Settings{}, fmt.Errorf("parse %s: %w", s.path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return domain.Settings{}, err
	}

	if err := applyEnv(&cfg, s.getenv); err != nil {
		return domain.Settings{}, err
	}

	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return domain.Settings{}, err
	}
	return cfg, nil
}

// applyEnv overrides settings with TRANSCRIBER_* variables when present.
func applyEnv(cfg *domain.Settings, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("TRANSCRIBER_SOURCE_DIR", &cfg.SourceDir)
	str("TRANSCRIBER_OUTPUT_DIR", &cfg.OutputDir)
	str("TRANSCRIBER_WORKING_DIR", &cfg.WorkingDir)
	str("TRANSCRIBER_LEDGER_PATH", &cfg.LedgerPath)
	str("TRANSCRIBER_OUTPUT_PREFIX", &cfg.OutputPrefix)
	str("TRANSCRIBER_FFMPEG", &cfg.FFmpegPath)
	str("TRANSCRIBER_RECOGNIZER", &cfg.Recognizer)
	str("TRANSCRIBER_RECOGNIZER_URL", &cfg.RecognizerURL)
	str("TRANSCRIBER_RECOGNIZER_MODEL", &cfg.RecognizerModel)
	str("OPENAI_API_KEY", &cfg.APIKey)
	str("TRANSCRIBER_API_KEY", &cfg.APIKey)
	str("TRANSCRIBER_LANGUAGE", &cfg.Language)
	str("TRANSCRIBER_LOG_LEVEL", &cfg.LogLevel)

	if v := strings.TrimSpace(getenv("TRANSCRIBER_EXTENSIONS")); v != "" {
		cfg.Extensions = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(getenv("TRANSCRIBER_SILENCE_THRESHOLD_OFFSET_DB")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TRANSCRIBER_SILENCE_THRESHOLD_OFFSET_DB: %w", err)
		}
		cfg.SilenceThresholdOffsetDb = f
	}

	for key, dst := range map[string]*int{
		"TRANSCRIBER_SILENCE_MIN_LEN_MS":  &cfg.SilenceMinLenMs,
		"TRANSCRIBER_KEEP_SILENCE_MS":     &cfg.KeepSilenceMs,
		"TRANSCRIBER_WORKERS":             &cfg.WorkerPoolSize,
		"TRANSCRIBER_REQUEST_TIMEOUT_SEC": &cfg.RequestTimeoutSec,
		"TRANSCRIBER_MAX_RETRIES":         &cfg.MaxRetries,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Normalize trims user inputs and fills derived defaults.
func Normalize(cfg domain.Settings) domain.Settings {
	cfg.SourceDir = strings.TrimSpace(cfg.SourceDir)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.WorkingDir = strings.TrimSpace(cfg.WorkingDir)
	cfg.LedgerPath = strings.TrimSpace(cfg.LedgerPath)
	cfg.Recognizer = strings.ToLower(strings.TrimSpace(cfg.Recognizer))
	cfg.Language = strings.TrimSpace(cfg.Language)
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	exts := lo.FilterMap(cfg.Extensions, func(raw string, _ int) (string, bool) {
		ext := strings.ToLower(strings.TrimSpace(raw))
		if ext == "" {
			return "", false
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext, true
	})
	cfg.Extensions = lo.Uniq(exts)
	return cfg
}

// Validate rejects settings that cannot drive a run.
func Validate(cfg domain.Settings) error {
	var problems []string
	for name, value := range map[string]string{
		"sourceDir":  cfg.SourceDir,
		"outputDir":  cfg.OutputDir,
		"workingDir": cfg.WorkingDir,
		"ledgerPath": cfg.LedgerPath,
	} {
		if value == "" {
			problems = append(problems, name+" is required")
		}
	}
	if len(cfg.Extensions) == 0 {
		problems = append(problems, "at least one extension is required")
	}
	if cfg.SilenceMinLenMs <= 0 {
		problems = append(problems, "silenceMinLenMs must be positive")
	}
	if cfg.KeepSilenceMs < 0 {
		problems = append(problems, "keepSilenceMs must not be negative")
	}
	if cfg.MaxRetries < 0 {
		problems = append(problems, "maxRetries must not be negative")
	}
	if cfg.RequestTimeoutSec <= 0 {
		problems = append(problems, "requestTimeoutSec must be positive")
	}
	if cfg.Recognizer != RecognizerOpenAI && cfg.Recognizer != RecognizerGoogle {
		problems = append(problems, fmt.Sprintf("unknown recognizer %q", cfg.Recognizer))
	}
	if len(problems) == 0 {
		return nil
	}
	// map iteration order is random
	sort.Strings(problems)
	return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
}
