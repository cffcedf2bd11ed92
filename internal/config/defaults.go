package config

import (
	"path/filepath"
	"runtime"

	"batch-transcriber/internal/domain"
)

const (
	RecognizerOpenAI = "openai"
	RecognizerGoogle = "google"
)

// DefaultSettings returns the baseline layout relative to the working
// directory of the process.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		SourceDir:                filepath.Join("data", "videos"),
		OutputDir:                "transcripts",
		WorkingDir:               filepath.Join("data", "audio_chunks"),
		LedgerPath:               filepath.Join("data", "processed_videos.txt"),
		OutputPrefix:             "audio_extract_",
		Extensions:               []string{".mp4"},
		SilenceMinLenMs:          1000,
		SilenceThresholdOffsetDb: 14,
		KeepSilenceMs:            500,
		WorkerPoolSize:           runtime.NumCPU(),
		FFmpegPath:               "ffmpeg",
		Recognizer:               RecognizerOpenAI,
		RecognizerModel:          "whisper-1",
		Language:                 "auto",
		RequestTimeoutSec:        120,
		MaxRetries:               0,
		LogLevel:                 "info",
	}
}
