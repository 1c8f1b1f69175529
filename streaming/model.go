package streaming

import "github.com/shopspring/decimal"

// PayerAccount aggregates all streams of one payer in internal units.
type PayerAccount struct {
	// TotalDeposited is the cumulative value ever deposited, reduced only
	// by payer-level withdrawal of unused balance.
	TotalDeposited decimal.Decimal
	// TotalCommitted is the outstanding obligation across the payer's
	// streams. TotalDeposited >= TotalCommitted holds after every mutation.
	TotalCommitted decimal.Decimal
	// TotalWithdrawn is the cumulative value settled to recipients.
	TotalWithdrawn decimal.Decimal
}

func newPayerAccount() *PayerAccount {
	return &PayerAccount{
		TotalDeposited: decimal.Zero,
		TotalCommitted: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
	}
}

// State describes a stream slot's lifecycle position.
type State int

const (
	// StateTerminated marks a cancelled or never-created slot.
	StateTerminated State = iota
	// StateActive marks a stream accruing settlement.
	StateActive
	// StatePaused marks a stream suspended between pause and resume.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "terminated"
	}
}

// Stream is a scheduled, rate-based payment obligation from one payer to
// one recipient over a bounded time window. RatePerSec is in internal units
// per second; timestamps are Unix seconds.
type Stream struct {
	Payer      string
	Recipient  string
	RatePerSec decimal.Decimal
	Starts     int64
	Ends       int64
	// LastPaid is the watermark up to which the stream has settled. Zero
	// means the slot is not active.
	LastPaid int64
	// LastPaused is nonzero exactly while the stream is paused.
	LastPaused int64
}

// State reports the slot's lifecycle state from its watermarks.
func (s Stream) State() State {
	switch {
	case s.LastPaid > 0:
		return StateActive
	case s.LastPaused > 0:
		return StatePaused
	default:
		return StateTerminated
	}
}

// ID derives the stream's identifier from its five identifying fields.
func (s Stream) ID() StreamID {
	return DeriveStreamID(s.Payer, s.Recipient, s.RatePerSec, s.Starts, s.Ends)
}
