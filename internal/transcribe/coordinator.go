package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/jobs"
)

// SourceLister enumerates the source directory.
type SourceLister interface {
	Scan() ([]domain.SourceFile, error)
}

// Ledger records sources that completed the pipeline. Validate rejects ids
// that MarkProcessed could not store.
type Ledger interface {
	IsProcessed(id string) bool
	Validate(id string) error
	MarkProcessed(id string) error
}

// Segmenter splits one source into ordered audio segments.
type Segmenter interface {
	Segment(ctx context.Context, src domain.SourceFile) (Segmentation, error)
}

// SegmentTranscriber recognizes one segment. It must not return errors;
// failures are reported through the fragment outcome.
type SegmentTranscriber interface {
	Transcribe(ctx context.Context, seg domain.AudioSegment) domain.Fragment
}

// TranscriptWriter allocates ids and persists transcripts.
type TranscriptWriter interface {
	NextID() (int, error)
	Write(id int, text string) (string, error)
}

// Components aggregates the collaborators the coordinator drives.
type Components struct {
	Sources     SourceLister
	Ledger      Ledger
	Segmenter   Segmenter
	Transcriber SegmentTranscriber
	Writer      TranscriptWriter
}

// Summary counts files per terminal state for one run.
type Summary struct {
	Counts      map[domain.FileState]int
	Transcripts []string
}

func (s *Summary) add(state domain.FileState) {
	if s.Counts == nil {
		s.Counts = make(map[domain.FileState]int)
	}
	s.Counts[state]++
}

// Coordinator processes one source file at a time and fans each file's
// segments out to a bounded worker pool. Only the coordinator touches the
// ledger, allocates ids and writes output.
type Coordinator struct {
	comp    Components
	workers int
	jobs    *jobs.Manager
	events  *jobs.EventBus
	remove  func(name string) error
	logger  *zap.SugaredLogger
}

// NewCoordinator wires the pipeline. workers <= 0 uses host parallelism.
func NewCoordinator(comp Components, workers int, events *jobs.EventBus, logger *zap.SugaredLogger) *Coordinator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if events == nil {
		events = jobs.NewEventBus(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{
		comp:    comp,
		workers: workers,
		jobs:    jobs.NewManager(),
		events:  events,
		remove:  os.Remove,
		logger:  logger.Named("coordinator"),
	}
}

// Events exposes the run's event history.
func (c *Coordinator) Events() *jobs.EventBus {
	return c.events
}

// Run performs one scan-and-process pass. Only scan failures and context
// cancellation are returned; file-level failures are logged and counted.
// A file interrupted by cancellation ends Failed and stays eligible.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	files, err := c.comp.Sources.Scan()
	if err != nil {
		return summary, err
	}
	c.logger.Infow("source scan complete", "files", len(files))

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			c.logger.Warnw("run cancelled before all files were processed", "error", err)
			return summary, err
		}

		state, path := c.ProcessFile(ctx, src)
		summary.add(state)
		if path != "" {
			summary.Transcripts = append(summary.Transcripts, path)
		}
	}
	if err := ctx.Err(); err != nil {
		c.logger.Warnw("run cancelled during the last file", "error", err)
		return summary, err
	}

	c.logger.Infow("run complete",
		"files", len(files),
		"completed", summary.Counts[domain.FileStateCompleted],
		"skipped", summary.Counts[domain.FileStateSkipped],
		"no_content", summary.Counts[domain.FileStateFailedNoContent],
		"failed", summary.Counts[domain.FileStateFailed],
		"ignored", summary.Counts[domain.FileStateIgnored],
	)
	return summary, nil
}

// ProcessFile drives one source to a terminal state and returns it with the
// transcript path when one was written.
func (c *Coordinator) ProcessFile(ctx context.Context, src domain.SourceFile) (domain.FileState, string) {
	log := c.logger.With("file", src.ID)

	if err := c.jobs.Start(src.ID); err != nil {
		log.Errorw("cannot start file", "error", err)
		return domain.FileStateFailed, ""
	}
	c.publish(jobs.Event{SourceID: src.ID, Type: jobs.EventTypeState, State: domain.FileStateDiscovered})

	if src.Kind == domain.MediaKindImage {
		log.Infow("skipping image source, only audio and video are transcribed")
		return c.finish(src.ID, domain.FileStateIgnored, "image source"), ""
	}
	if c.comp.Ledger.IsProcessed(src.ID) {
		log.Infow("skipping, already processed")
		return c.finish(src.ID, domain.FileStateSkipped, "already processed"), ""
	}
	if err := c.comp.Ledger.Validate(src.ID); err != nil {
		log.Errorw("source name cannot be recorded in the ledger, rename the file", "error", err)
		return c.fail(src.ID, domain.FileStateFailed, err.Error()), ""
	}

	log.Infow("processing source")
	c.transition(src.ID, domain.FileStateSegmenting)

	seg, err := c.comp.Segmenter.Segment(ctx, src)
	defer c.cleanup(log, seg.Artifacts, seg.Segments)
	if err != nil {
		return c.failSegmentation(log, src.ID, err), ""
	}
	if len(seg.Segments) == 0 {
		log.Errorw("segmentation produced no segments")
		return c.fail(src.ID, domain.FileStateFailedNoContent, "no segments"), ""
	}

	c.transition(src.ID, domain.FileStateTranscribing)
	log.Infow("transcribing segments", "segments", len(seg.Segments), "workers", min(c.workers, len(seg.Segments)))
	fragments := c.transcribeAll(ctx, seg.Segments)

	c.transition(src.ID, domain.FileStateAggregating)
	if interrupted(ctx, fragments) {
		log.Warnw("run cancelled while transcribing, nothing written and file stays eligible",
			"segments", len(seg.Segments),
			"outcomes", outcomeCounts(fragments),
		)
		return c.fail(src.ID, domain.FileStateFailed, "interrupted"), ""
	}
	text := Aggregate(fragments)
	if text == "" {
		log.Errorw("no segment produced text, file stays eligible for the next run",
			"segments", len(seg.Segments),
			"outcomes", outcomeCounts(fragments),
		)
		return c.fail(src.ID, domain.FileStateFailedNoContent, "empty transcript"), ""
	}

	id, err := c.comp.Writer.NextID()
	if err != nil {
		log.Errorw("cannot allocate transcript id", "error", err)
		return c.fail(src.ID, domain.FileStateFailed, err.Error()), ""
	}
	path, err := c.comp.Writer.Write(id, text)
	if err != nil {
		log.Errorw("cannot write transcript", "id", id, "error", err)
		return c.fail(src.ID, domain.FileStateFailed, err.Error()), ""
	}

	if err := c.comp.Ledger.MarkProcessed(src.ID); err != nil {
		log.Errorw("transcript written but ledger append failed, file will be reprocessed on the next run",
			"path", path,
			"error", err,
		)
		return c.fail(src.ID, domain.FileStateFailed, err.Error()), path
	}

	log.Infow("transcript saved", "path", path, "id", id, "outcomes", outcomeCounts(fragments))
	c.transition(src.ID, domain.FileStateCompleted)
	c.publish(jobs.Event{
		SourceID:     src.ID,
		Type:         jobs.EventTypeResult,
		State:        domain.FileStateCompleted,
		Segments:     len(seg.Segments),
		TranscriptID: id,
		OutputPath:   path,
	})
	return domain.FileStateCompleted, path
}

// transcribeAll runs every segment through the worker pool and waits for
// all of them. Results are returned in ordinal order.
func (c *Coordinator) transcribeAll(ctx context.Context, segments []domain.AudioSegment) []domain.Fragment {
	results := make([]domain.Fragment, len(segments))
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(c.workers, len(segments)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = c.transcribeOne(ctx, segments[i])
			}
		}()
	}

	for i := range segments {
		work <- i
	}
	close(work)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Ordinal < results[j].Ordinal })
	return results
}

// transcribeOne isolates one segment so a panic cannot reach siblings.
func (c *Coordinator) transcribeOne(ctx context.Context, seg domain.AudioSegment) (frag domain.Fragment) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("segment worker panicked", "file", seg.SourceID, "segment", seg.Ordinal, "panic", r)
			frag = domain.Fragment{
				Ordinal: seg.Ordinal,
				Outcome: domain.OutcomeUnexpected,
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	frag = c.comp.Transcriber.Transcribe(ctx, seg)
	frag.Ordinal = seg.Ordinal
	return frag
}

// Aggregate joins recognized fragments in ordinal order, one per line.
func Aggregate(fragments []domain.Fragment) string {
	ordered := append([]domain.Fragment(nil), fragments...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	lines := lo.FilterMap(ordered, func(f domain.Fragment, _ int) (string, bool) {
		text := strings.TrimSpace(f.Text)
		return text, f.Outcome == domain.OutcomeRecognized && text != ""
	})
	return strings.Join(lines, "\n")
}

// interrupted reports whether the run was cancelled before every segment got
// an answer from the recognizer.
func interrupted(ctx context.Context, fragments []domain.Fragment) bool {
	if ctx.Err() == nil {
		return false
	}
	return lo.SomeBy(fragments, func(f domain.Fragment) bool {
		return f.Outcome == domain.OutcomeServiceError || f.Outcome == domain.OutcomeUnexpected
	})
}

func outcomeCounts(fragments []domain.Fragment) map[domain.Outcome]int {
	return lo.CountValuesBy(fragments, func(f domain.Fragment) domain.Outcome { return f.Outcome })
}

// failSegmentation maps segmenter errors to terminal states.
func (c *Coordinator) failSegmentation(log *zap.SugaredLogger, sourceID string, err error) domain.FileState {
	if errors.Is(err, ErrNoContent) {
		log.Errorw("no speech content found", "error", err)
		return c.fail(sourceID, domain.FileStateFailedNoContent, err.Error())
	}

	var pErr *PipelineError
	if errors.As(err, &pErr) && pErr.CommandLog.Command != "" {
		log.Errorw("segmentation failed",
			"stage", pErr.Stage,
			"command", pErr.CommandLog.Command,
			"exit_code", pErr.CommandLog.ExitCode,
			"stderr", tail(pErr.CommandLog.Stderr, 2048),
			"error", err,
		)
	} else {
		log.Errorw("segmentation failed", "error", err)
	}
	return c.fail(sourceID, domain.FileStateFailed, err.Error())
}

// cleanup removes segment files and intermediate media. Errors are logged.
func (c *Coordinator) cleanup(log *zap.SugaredLogger, artifacts []string, segments []domain.AudioSegment) {
	paths := lo.Uniq(append(lo.Map(segments, func(s domain.AudioSegment, _ int) string { return s.Path }), artifacts...))

	var errs error
	for _, path := range paths {
		if err := c.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		log.Warnw("cleanup of working files incomplete", "errors", len(multierr.Errors(errs)), "error", errs)
	}
}

func (c *Coordinator) transition(sourceID string, state domain.FileState) {
	if err := c.jobs.Transition(state); err != nil {
		c.logger.Errorw("state transition rejected", "file", sourceID, "error", err)
		return
	}
	c.publish(jobs.Event{SourceID: sourceID, Type: jobs.EventTypeState, State: state})
}

func (c *Coordinator) finish(sourceID string, state domain.FileState, message string) domain.FileState {
	c.transition(sourceID, state)
	c.publish(jobs.Event{SourceID: sourceID, Type: jobs.EventTypeResult, State: state, Message: message})
	return state
}

func (c *Coordinator) fail(sourceID string, state domain.FileState, message string) domain.FileState {
	c.transition(sourceID, state)
	c.publish(jobs.Event{SourceID: sourceID, Type: jobs.EventTypeError, State: state, Message: message})
	return state
}

func (c *Coordinator) publish(event jobs.Event) {
	c.events.Publish(event)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
