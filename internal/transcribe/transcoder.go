package transcribe

import (
	"context"
	"fmt"
	"os"
)

// Transcoder converts a source into a container ffmpeg can extract audio
// from. No partial output may be consumed when Convert fails.
type Transcoder interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder re-muxes sources into mp4 via ffmpeg.
type FFmpegTranscoder struct {
	ffmpegPath string
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
}

// NewFFmpegTranscoder constructs the production transcoder.
func NewFFmpegTranscoder(ffmpegPath string) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, runner: &execRunner{}, stat: os.Stat}
}

// Convert writes outputPath as an mp4 with AAC audio.
func (t *FFmpegTranscoder) Convert(ctx context.Context, inputPath, outputPath string) error {
	args := buildConvertArgs(inputPath, outputPath)
	log, err := runLogged(ctx, t.runner, t.ffmpegPath, args)
	if err != nil {
		return &PipelineError{
			Stage:      StageConverting,
			Message:    "ffmpeg container conversion failed",
			CommandLog: log,
			Err:        err,
		}
	}
	if _, err := t.stat(outputPath); err != nil {
		return &PipelineError{
			Stage:      StageConverting,
			Message:    fmt.Sprintf("ffmpeg completed but converted file is missing: %s", outputPath),
			CommandLog: log,
			Err:        err,
		}
	}
	return nil
}

// buildConvertArgs builds container conversion args.
func buildConvertArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		outputPath,
	}
}
