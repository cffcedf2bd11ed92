package jobs

import (
	"testing"

	"batch-transcriber/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeState, State: domain.FileStateDiscovered})
	bus.Publish(Event{Type: EventTypeState, State: domain.FileStateSegmenting})
	bus.Publish(Event{Type: EventTypeState, State: domain.FileStateTranscribing})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", bus.LastSeq())
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{SourceID: "1"})
	bus.Publish(Event{SourceID: "2"})
	bus.Publish(Event{SourceID: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].SourceID != "2" || events[1].SourceID != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
}
