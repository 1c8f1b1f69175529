package streaming

import "errors"

var (
	// ErrInvalidAddress indicates an empty payer or recipient identity.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidTime indicates a malformed schedule: starts must be
	// positive and precede ends, and ends must be in the future.
	ErrInvalidTime = errors.New("invalid time window")

	// ErrInvalidAmount indicates a rate or amount that is not a positive
	// integral number of units.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPayerInDebt indicates the mutation would push the payer's
	// committed total above its deposited total. The operation is rejected
	// with no state change.
	ErrPayerInDebt = errors.New("payer in debt")

	// ErrInactiveStream indicates a settle, withdraw, cancel, pause, or
	// modify against a slot that is not active.
	ErrInactiveStream = errors.New("inactive stream")

	// ErrActiveStream indicates a create or resume colliding with an
	// already-active slot.
	ErrActiveStream = errors.New("stream already active")

	// ErrStreamPaused indicates a create colliding with a paused slot; the
	// existing stream must be resumed, not recreated.
	ErrStreamPaused = errors.New("stream paused")

	// ErrStreamEnded indicates a resume against a slot that was never
	// paused.
	ErrStreamEnded = errors.New("stream ended")
)
