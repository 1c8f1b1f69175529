package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// KindStreamCreated indicates a new payment stream was opened.
	KindStreamCreated = "stream_created"
	// KindStreamWithdrawn indicates a settlement paid out to the recipient.
	KindStreamWithdrawn = "stream_withdrawn"
	// KindStreamCancelled indicates a stream was settled and terminated.
	KindStreamCancelled = "stream_cancelled"
	// KindStreamPaused indicates a stream was settled and suspended.
	KindStreamPaused = "stream_paused"
	// KindStreamResumed indicates a paused stream was reactivated.
	KindStreamResumed = "stream_resumed"
	// KindStreamModified indicates a stream was replaced in place.
	KindStreamModified = "stream_modified"
	// KindPayerDeposited indicates funds entered the payer's custody balance.
	KindPayerDeposited = "payer_deposited"
	// KindPayerWithdrawn indicates the payer reclaimed unused balance.
	KindPayerWithdrawn = "payer_withdrawn"
)

// Event is the structured audit record emitted exactly once per successful
// ledger mutation. Amount is in external asset base units. The Old* fields
// are set only on stream_modified events and describe the replaced stream.
type Event struct {
	ID         string
	Kind       string
	Payer      string
	Recipient  string
	StreamID   string
	RatePerSec decimal.Decimal
	Starts     int64
	Ends       int64
	Amount     decimal.Decimal
	Reason     string
	At         int64

	OldStreamID   string
	OldRecipient  string
	OldRatePerSec decimal.Decimal
	OldStarts     int64
	OldEnds       int64
}

// New stamps an event with a fresh identifier.
func New(kind string) Event {
	return Event{ID: uuid.NewString(), Kind: kind}
}

// Sink delivers ledger events to downstream systems.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit writes the event to the structured logger.
func (s *LogSink) Emit(_ context.Context, ev Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("ledger event",
		"id", ev.ID,
		"kind", ev.Kind,
		"payer", ev.Payer,
		"recipient", ev.Recipient,
		"stream_id", ev.StreamID,
		"rate_per_sec", ev.RatePerSec.String(),
		"starts", ev.Starts,
		"ends", ev.Ends,
		"amount", ev.Amount.String(),
		"at", ev.At,
	)
	return nil
}

// Memory records events in order of emission. Useful for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory constructs an in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit appends the event to the in-memory record.
func (m *Memory) Emit(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Last returns the most recent event and whether one exists.
func (m *Memory) Last() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return Event{}, false
	}
	return m.events[len(m.events)-1], true
}
