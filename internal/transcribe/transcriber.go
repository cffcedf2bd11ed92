package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"batch-transcriber/internal/domain"
)

// Recognizer is the external speech-to-text capability. Implementations
// return domain.ErrUnintelligible when the audio contains no recognizable
// speech and *domain.ServiceError for request failures.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, name string) (string, error)
}

// Transcriber turns one segment into a typed fragment. It never returns an
// error: every failure is folded into the fragment outcome and logged.
type Transcriber struct {
	recognizer Recognizer
	maxRetries int
	backoff    time.Duration
	readFile   func(name string) ([]byte, error)
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.SugaredLogger
}

// NewTranscriber builds a transcriber. maxRetries applies only to service
// errors flagged retryable; zero disables retry.
func NewTranscriber(recognizer Recognizer, maxRetries int, logger *zap.SugaredLogger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Transcriber{
		recognizer: recognizer,
		maxRetries: maxRetries,
		backoff:    time.Second,
		readFile:   os.ReadFile,
		sleep:      sleepContext,
		logger:     logger.Named("transcriber"),
	}
}

// Transcribe recognizes one segment.
func (t *Transcriber) Transcribe(ctx context.Context, seg domain.AudioSegment) (frag domain.Fragment) {
	frag = domain.Fragment{Ordinal: seg.Ordinal}
	log := t.logger.With("file", seg.SourceID, "segment", seg.Ordinal, "path", seg.Path)

	defer func() {
		if r := recover(); r != nil {
			frag = domain.Fragment{
				Ordinal: seg.Ordinal,
				Outcome: domain.OutcomeUnexpected,
				Err:     fmt.Errorf("recognizer panic: %v", r),
			}
			log.Errorw("segment transcription panicked", "panic", r)
		}
	}()

	audio, err := t.readFile(seg.Path)
	if err != nil {
		frag.Outcome = domain.OutcomeUnexpected
		frag.Err = fmt.Errorf("read segment: %w", err)
		log.Errorw("cannot read segment audio", "error", err)
		return frag
	}

	name := filepath.Base(seg.Path)
	for attempt := 0; ; attempt++ {
		text, err := t.recognizer.Recognize(ctx, audio, name)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				frag.Outcome = domain.OutcomeUnintelligible
				log.Warnw("recognizer returned no text")
				return frag
			}
			frag.Text = text
			frag.Outcome = domain.OutcomeRecognized
			return frag
		}

		if errors.Is(err, domain.ErrUnintelligible) {
			frag.Outcome = domain.OutcomeUnintelligible
			frag.Err = err
			log.Warnw("recognizer could not understand audio")
			return frag
		}

		var svcErr *domain.ServiceError
		if errors.As(err, &svcErr) {
			if svcErr.Retryable && attempt < t.maxRetries && ctx.Err() == nil {
				wait := t.backoff * time.Duration(attempt+1)
				log.Warnw("retrying segment after service error", "attempt", attempt+1, "wait", wait, "error", err)
				if sleepErr := t.sleep(ctx, wait); sleepErr == nil {
					continue
				}
			}
			frag.Outcome = domain.OutcomeServiceError
			frag.Err = err
			log.Errorw("recognition service request failed", "attempts", attempt+1, "error", err)
			return frag
		}

		frag.Outcome = domain.OutcomeUnexpected
		frag.Err = err
		log.Errorw("segment transcription failed", "error", err)
		return frag
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
