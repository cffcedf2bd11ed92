package jobs

import (
	"errors"
	"fmt"
	"sync"

	"batch-transcriber/internal/domain"
)

// ErrFileAlreadyActive is returned when starting a second source while one
// is still in a non-terminal state.
var ErrFileAlreadyActive = errors.New("another source file is still being processed")

// Manager tracks the single source file processed at a time and validates
// its state transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.FileJob
}

// NewManager creates a manager with no active file.
func NewManager() *Manager {
	return &Manager{}
}

// Start registers a newly discovered source file.
func (m *Manager) Start(sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current) {
		return ErrFileAlreadyActive
	}

	m.current = domain.FileJob{
		SourceID: sourceID,
		State:    domain.FileStateDiscovered,
	}
	return nil
}

// Transition validates and applies a state change for the current file.
func (m *Manager) Transition(state domain.FileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.SourceID == "" {
		return fmt.Errorf("cannot transition without an active file")
	}
	if state == m.current.State {
		return nil
	}
	if !isValidTransition(m.current.State, state) {
		return fmt.Errorf("invalid transition for %s: %s -> %s", m.current.SourceID, m.current.State, state)
	}

	m.current.State = state
	return nil
}

// Current returns a snapshot of the current file job.
func (m *Manager) Current() domain.FileJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsActive reports whether a file is in a non-terminal state.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current)
}

func isActive(job domain.FileJob) bool {
	return job.SourceID != "" && !job.State.IsTerminal()
}

// isValidTransition enforces the per-file state machine edges.
func isValidTransition(from, to domain.FileState) bool {
	switch from {
	case domain.FileStateDiscovered:
		return to == domain.FileStateSegmenting ||
			to == domain.FileStateSkipped ||
			to == domain.FileStateIgnored ||
			to == domain.FileStateFailed
	case domain.FileStateSegmenting:
		return to == domain.FileStateTranscribing ||
			to == domain.FileStateFailedNoContent ||
			to == domain.FileStateFailed
	case domain.FileStateTranscribing:
		return to == domain.FileStateAggregating
	case domain.FileStateAggregating:
		return to == domain.FileStateCompleted ||
			to == domain.FileStateFailedNoContent ||
			to == domain.FileStateFailed
	default:
		return false
	}
}
