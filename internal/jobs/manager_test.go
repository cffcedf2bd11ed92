package jobs

import (
	"testing"

	"batch-transcriber/internal/domain"
)

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsActive() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("a.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsActive() {
		t.Fatal("expected active after start")
	}

	for _, state := range []domain.FileState{
		domain.FileStateSegmenting,
		domain.FileStateTranscribing,
		domain.FileStateAggregating,
		domain.FileStateCompleted,
	} {
		if err := m.Transition(state); err != nil {
			t.Fatalf("transition to %s: %v", state, err)
		}
	}

	current := m.Current()
	if current.State != domain.FileStateCompleted || current.SourceID != "a.mp4" {
		t.Fatalf("current = %+v, want a.mp4 completed", current)
	}
	if m.IsActive() {
		t.Fatal("completed file should not be active")
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("a.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.FileStateCompleted); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Transition(domain.FileStateSegmenting); err != nil {
		t.Fatalf("segmenting: %v", err)
	}
	// transcription never fails the file directly
	if err := m.Transition(domain.FileStateTranscribing); err != nil {
		t.Fatalf("transcribing: %v", err)
	}
	if err := m.Transition(domain.FileStateFailed); err == nil {
		t.Fatal("expected transcribing -> failed to be rejected")
	}
}

// TestManagerSkipIsTerminal checks skip ends the file without side states.
func TestManagerSkipIsTerminal(t *testing.T) {
	m := NewManager()
	if err := m.Start("done.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.FileStateSkipped); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := m.Transition(domain.FileStateSegmenting); err == nil {
		t.Fatal("expected no transitions out of skipped")
	}
}

// TestManagerStartRequiresTerminalPrevious checks one file at a time.
func TestManagerStartRequiresTerminalPrevious(t *testing.T) {
	m := NewManager()
	if err := m.Start("a.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("b.mp4"); err != ErrFileAlreadyActive {
		t.Fatalf("second start error = %v, want %v", err, ErrFileAlreadyActive)
	}

	if err := m.Transition(domain.FileStateIgnored); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if err := m.Start("b.mp4"); err != nil {
		t.Fatalf("start after terminal: %v", err)
	}
}

// TestManagerTransitionWithoutFile checks idle managers reject updates.
func TestManagerTransitionWithoutFile(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.FileStateSegmenting); err == nil {
		t.Fatal("expected error without active file")
	}
}

// TestManagerDiscoveredCanFail checks a file can be rejected before segmenting.
func TestManagerDiscoveredCanFail(t *testing.T) {
	m := NewManager()
	if err := m.Start("bad.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.FileStateFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Transition(domain.FileStateSegmenting); err == nil {
		t.Fatal("expected no transitions out of failed")
	}
}
