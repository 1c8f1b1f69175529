package event

import (
	"context"
	"testing"
)

func TestMemorySinkRecordsInOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, kind := range []string{KindPayerDeposited, KindStreamCreated, KindStreamWithdrawn} {
		if err := m.Emit(ctx, New(kind)); err != nil {
			t.Fatalf("emit %s: %v", kind, err)
		}
	}

	events := m.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != KindPayerDeposited || events[2].Kind != KindStreamWithdrawn {
		t.Fatalf("events out of order: %+v", events)
	}

	last, ok := m.Last()
	if !ok || last.Kind != KindStreamWithdrawn {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := New(KindStreamCreated)
	b := New(KindStreamCreated)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestLogSinkToleratesNilLogger(t *testing.T) {
	var s *LogSink
	if err := s.Emit(context.Background(), New(KindStreamCreated)); err != nil {
		t.Fatalf("nil sink emit: %v", err)
	}
}
