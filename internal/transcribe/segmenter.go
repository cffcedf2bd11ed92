package transcribe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"batch-transcriber/internal/domain"
)

// ErrNoContent reports that a source produced no speech segments.
var ErrNoContent = errors.New("no speech content")

// Segmentation is the output of segmenting one source. Artifacts lists every
// working file created, including partial ones left by a failed run, so the
// caller can clean up regardless of outcome.
type Segmentation struct {
	Segments  []domain.AudioSegment
	BaseName  string
	Artifacts []string
}

// SegmenterOptions tunes silence-based splitting.
type SegmenterOptions struct {
	WorkingDir        string
	MinSilence        time.Duration
	ThresholdOffsetDB float64
	KeepSilence       time.Duration
}

// SegmenterOptionsFromSettings maps run settings to segmenter options.
func SegmenterOptionsFromSettings(settings domain.Settings) SegmenterOptions {
	return SegmenterOptions{
		WorkingDir:        settings.WorkingDir,
		MinSilence:        time.Duration(settings.SilenceMinLenMs) * time.Millisecond,
		ThresholdOffsetDB: settings.SilenceThresholdOffsetDb,
		KeepSilence:       time.Duration(settings.KeepSilenceMs) * time.Millisecond,
	}
}

// FFmpegSegmenter extracts a mono 16k track and cuts it on silences
// detected relative to the track's mean loudness.
type FFmpegSegmenter struct {
	ffmpegPath string
	opts       SegmenterOptions
	runner     commandRunner
	transcoder Transcoder
	mkdirAll   func(path string, perm os.FileMode) error
	stat       func(name string) (os.FileInfo, error)
	logger     *zap.SugaredLogger
}

// NewFFmpegSegmenter constructs the production segmenter.
func NewFFmpegSegmenter(ffmpegPath string, opts SegmenterOptions, transcoder Transcoder, logger *zap.SugaredLogger) *FFmpegSegmenter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FFmpegSegmenter{
		ffmpegPath: ffmpegPath,
		opts:       opts,
		runner:     &execRunner{},
		transcoder: transcoder,
		mkdirAll:   os.MkdirAll,
		stat:       os.Stat,
		logger:     logger.Named("segmenter"),
	}
}

// Segment converts when required, extracts audio, then splits it into
// ordinal-numbered segment files in the working directory.
func (s *FFmpegSegmenter) Segment(ctx context.Context, src domain.SourceFile) (Segmentation, error) {
	stem := baseName(src.Path)
	out := Segmentation{BaseName: stem}

	if err := s.mkdirAll(s.opts.WorkingDir, 0o755); err != nil {
		return out, &PipelineError{
			Stage:   StageExtracting,
			Message: fmt.Sprintf("cannot create working directory: %s", s.opts.WorkingDir),
			Err:     err,
		}
	}

	input := src.Path
	if src.NeedsConversion {
		converted := filepath.Join(s.opts.WorkingDir, stem+".converted.mp4")
		out.Artifacts = append(out.Artifacts, converted)
		if s.transcoder == nil {
			return out, &PipelineError{Stage: StageConverting, Message: "no transcoder configured"}
		}
		if err := s.transcoder.Convert(ctx, src.Path, converted); err != nil {
			return out, err
		}
		input = converted
	}

	audioPath := filepath.Join(s.opts.WorkingDir, stem+".wav")
	out.Artifacts = append(out.Artifacts, audioPath)
	if err := s.extract(ctx, input, audioPath); err != nil {
		return out, err
	}

	total, mean, err := s.analyze(ctx, audioPath)
	if err != nil {
		return out, err
	}
	if math.IsInf(mean, -1) {
		return out, fmt.Errorf("%w: %s is digitally silent", ErrNoContent, src.ID)
	}

	threshold := mean - s.opts.ThresholdOffsetDB
	silences, err := s.detectSilences(ctx, audioPath, threshold, total)
	if err != nil {
		return out, err
	}

	spans := speechSpans(silences, total, s.opts.KeepSilence)
	s.logger.Debugw("silence analysis complete",
		"file", src.ID,
		"duration", total,
		"mean_volume_db", mean,
		"threshold_db", threshold,
		"silences", len(silences),
		"segments", len(spans),
	)
	if len(spans) == 0 {
		return out, fmt.Errorf("%w: %s", ErrNoContent, src.ID)
	}

	for i, sp := range spans {
		ordinal := i + 1
		chunkPath := filepath.Join(s.opts.WorkingDir, fmt.Sprintf("%s_chunk%d.wav", stem, ordinal))
		out.Artifacts = append(out.Artifacts, chunkPath)
		if err := s.cut(ctx, audioPath, chunkPath, sp); err != nil {
			return out, err
		}
		out.Segments = append(out.Segments, domain.AudioSegment{
			SourceID: src.ID,
			Ordinal:  ordinal,
			Path:     chunkPath,
		})
	}

	return out, nil
}

// extract writes the source's audio track as mono 16k PCM WAV.
func (s *FFmpegSegmenter) extract(ctx context.Context, inputPath, audioPath string) error {
	log, err := runLogged(ctx, s.runner, s.ffmpegPath, buildExtractArgs(inputPath, audioPath))
	if err != nil {
		return &PipelineError{
			Stage:      StageExtracting,
			Message:    "ffmpeg audio extraction failed",
			CommandLog: log,
			Err:        err,
		}
	}
	if _, err := s.stat(audioPath); err != nil {
		return &PipelineError{
			Stage:      StageExtracting,
			Message:    "ffmpeg completed but audio file is missing",
			CommandLog: log,
			Err:        err,
		}
	}
	return nil
}

// analyze measures duration and mean loudness with volumedetect.
func (s *FFmpegSegmenter) analyze(ctx context.Context, audioPath string) (time.Duration, float64, error) {
	log, err := runLogged(ctx, s.runner, s.ffmpegPath, buildVolumeArgs(audioPath))
	if err != nil {
		return 0, 0, &PipelineError{
			Stage:      StageAnalyzing,
			Message:    "ffmpeg volumedetect failed",
			CommandLog: log,
			Err:        err,
		}
	}

	output := log.Stderr + log.Stdout
	total, err := parseDuration(output)
	if err != nil {
		return 0, 0, &PipelineError{Stage: StageAnalyzing, Message: err.Error(), CommandLog: log, Err: err}
	}
	mean, err := parseMeanVolume(output)
	if err != nil {
		return 0, 0, &PipelineError{Stage: StageAnalyzing, Message: err.Error(), CommandLog: log, Err: err}
	}
	return total, mean, nil
}

// detectSilences runs silencedetect at the given absolute threshold.
func (s *FFmpegSegmenter) detectSilences(ctx context.Context, audioPath string, thresholdDB float64, total time.Duration) ([]span, error) {
	args := buildSilenceArgs(audioPath, thresholdDB, s.opts.MinSilence)
	log, err := runLogged(ctx, s.runner, s.ffmpegPath, args)
	if err != nil {
		return nil, &PipelineError{
			Stage:      StageSegmenting,
			Message:    "ffmpeg silencedetect failed",
			CommandLog: log,
			Err:        err,
		}
	}
	return parseSilences(log.Stderr+log.Stdout, total), nil
}

// cut writes one span of the extracted track to chunkPath.
func (s *FFmpegSegmenter) cut(ctx context.Context, audioPath, chunkPath string, sp span) error {
	log, err := runLogged(ctx, s.runner, s.ffmpegPath, buildCutArgs(audioPath, chunkPath, sp))
	if err != nil {
		return &PipelineError{
			Stage:      StageCutting,
			Message:    fmt.Sprintf("ffmpeg failed to cut %s", filepath.Base(chunkPath)),
			CommandLog: log,
			Err:        err,
		}
	}
	return nil
}

// buildExtractArgs builds CLI args for mono 16k PCM WAV output.
func buildExtractArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildVolumeArgs builds loudness measurement args.
func buildVolumeArgs(audioPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", audioPath,
		"-af", "volumedetect",
		"-f", "null",
		"-",
	}
}

// buildSilenceArgs builds silencedetect args.
func buildSilenceArgs(audioPath string, thresholdDB float64, minSilence time.Duration) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%.2fdB:d=%.3f", thresholdDB, minSilence.Seconds()),
		"-f", "null",
		"-",
	}
}

// buildCutArgs builds span extraction args.
func buildCutArgs(audioPath, chunkPath string, sp span) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", audioPath,
		"-ss", formatFFmpegTime(sp.start),
		"-to", formatFFmpegTime(sp.end),
		"-c:a", "pcm_s16le",
		chunkPath,
	}
}

// baseName returns the file name without extension.
func baseName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "source"
	}
	return name
}
