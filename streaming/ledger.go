package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/drip-pay/drip_pay/custody"
	"github.com/drip-pay/drip_pay/event"
	"github.com/drip-pay/drip_pay/fixedpoint"
	"github.com/drip-pay/drip_pay/logging"
)

// Ledger is the streaming-payment accounting engine. It owns every
// PayerAccount and Stream record and serializes all mutations behind one
// mutex; each operation either fully commits or leaves no visible change.
// Time is an explicit input: callers pass the operation's observation of
// "now" (Unix seconds) and the engine clamps it so it never runs backwards.
type Ledger struct {
	mu      sync.Mutex
	custody custody.Custody
	sink    event.Sink
	logger  *slog.Logger
	unit    fixedpoint.Unit
	payers  map[string]*PayerAccount
	streams map[StreamID]*Stream
	lastNow int64
}

// New constructs a ledger engine on top of the given custody backend. The
// asset precision is queried once to derive the fixed-point divisor. Sink
// and logger may be nil.
func New(ctx context.Context, c custody.Custody, sink event.Sink, logger *slog.Logger) (*Ledger, error) {
	if c == nil {
		return nil, fmt.Errorf("custody backend is required")
	}
	decimals, err := c.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("query asset decimals: %w", err)
	}
	unit, err := fixedpoint.New(decimals)
	if err != nil {
		return nil, err
	}

	return &Ledger{
		custody: c,
		sink:    sink,
		logger:  logging.Named(logger, "streaming"),
		unit:    unit,
		payers:  make(map[string]*PayerAccount),
		streams: make(map[StreamID]*Stream),
	}, nil
}

// Unit exposes the fixed-point converter derived from the asset precision.
func (l *Ledger) Unit() fixedpoint.Unit {
	return l.unit
}

// Deposit pulls amount (asset base units) into custody and credits the
// payer's deposited total. The command takes no time argument; its event is
// stamped with the engine's last observed operation time, zero before any
// timed command has run.
func (l *Ledger) Deposit(ctx context.Context, payer string, amount decimal.Decimal) error {
	if payer == "" {
		return ErrInvalidAddress
	}
	if amount.LessThanOrEqual(decimal.Zero) || !amount.IsInteger() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.custody.TransferIn(ctx, payer, amount); err != nil {
		return fmt.Errorf("transfer in: %w", err)
	}

	acct := l.account(payer)
	acct.TotalDeposited = acct.TotalDeposited.Add(l.unit.ToInternal(amount))

	ev := event.New(event.KindPayerDeposited)
	ev.Payer = payer
	ev.Amount = amount
	ev.At = l.lastNow
	l.emit(ctx, ev)
	return nil
}

// CreateStream opens a rate-based payment stream from payer to recipient
// over [starts, ends) and reserves its full commitment against the payer's
// deposited balance.
func (l *Ledger) CreateStream(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) (StreamID, error) {
	return l.CreateStreamWithReason(ctx, now, payer, recipient, ratePerSec, starts, ends, "")
}

// CreateStreamWithReason is CreateStream with an opaque reason string
// carried on the emitted event for external observability. The reason has
// no semantic weight in the ledger.
func (l *Ledger) CreateStreamWithReason(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64, reason string) (StreamID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	id, err := l.createLocked(now, payer, recipient, ratePerSec, starts, ends, starts)
	if err != nil {
		return StreamID{}, err
	}

	ev := streamEvent(event.KindStreamCreated, l.streams[id], id, decimal.Zero, now)
	ev.Reason = reason
	l.emit(ctx, ev)
	return id, nil
}

// DepositAndCreate atomically deposits amount and opens a stream funded by
// it. If either leg fails nothing moves.
func (l *Ledger) DepositAndCreate(ctx context.Context, now int64, payer string, amount decimal.Decimal, recipient string, ratePerSec decimal.Decimal, starts, ends int64) (StreamID, error) {
	return l.DepositAndCreateWithReason(ctx, now, payer, amount, recipient, ratePerSec, starts, ends, "")
}

// DepositAndCreateWithReason is DepositAndCreate carrying a reason string
// on the creation event.
func (l *Ledger) DepositAndCreateWithReason(ctx context.Context, now int64, payer string, amount decimal.Decimal, recipient string, ratePerSec decimal.Decimal, starts, ends int64, reason string) (StreamID, error) {
	if payer == "" {
		return StreamID{}, ErrInvalidAddress
	}
	if amount.LessThanOrEqual(decimal.Zero) || !amount.IsInteger() {
		return StreamID{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	_, existed := l.payers[payer]
	acct := l.account(payer)
	snapshot := *acct
	acct.TotalDeposited = acct.TotalDeposited.Add(l.unit.ToInternal(amount))

	id, err := l.createLocked(now, payer, recipient, ratePerSec, starts, ends, starts)
	if err == nil {
		if cerr := l.custody.TransferIn(ctx, payer, amount); cerr != nil {
			delete(l.streams, id)
			err = fmt.Errorf("transfer in: %w", cerr)
		}
	}
	if err != nil {
		if existed {
			*acct = snapshot
		} else {
			delete(l.payers, payer)
		}
		return StreamID{}, err
	}

	dep := event.New(event.KindPayerDeposited)
	dep.Payer = payer
	dep.Amount = amount
	dep.At = now
	l.emit(ctx, dep)

	ev := streamEvent(event.KindStreamCreated, l.streams[id], id, decimal.Zero, now)
	ev.Reason = reason
	l.emit(ctx, ev)
	return id, nil
}

// Withdrawable previews, without mutating anything, the asset amount a
// withdraw at the given time would transfer to the recipient.
func (l *Ledger) Withdrawable(now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now < l.lastNow {
		now = l.lastNow
	}

	s, ok := l.streams[DeriveStreamID(payer, recipient, ratePerSec, starts, ends)]
	if !ok || s.LastPaid == 0 {
		return decimal.Zero, ErrInactiveStream
	}

	stop := min(s.Ends, now)
	if stop <= s.LastPaid {
		return decimal.Zero, nil
	}
	owed := s.RatePerSec.Mul(decimal.NewFromInt(stop - s.LastPaid))
	return l.unit.ToAsset(owed), nil
}

// Withdraw settles the stream up to min(ends, now) and transfers the owed
// asset amount to the recipient. Settling when nothing is newly owed is a
// defined success returning zero. Callable on behalf of anyone; it only
// ever benefits the recipient.
func (l *Ledger) Withdraw(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	id := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	s, ok := l.streams[id]
	if !ok || s.LastPaid == 0 {
		return decimal.Zero, ErrInactiveStream
	}

	acct := l.account(payer)
	snapAcct, snapStream := *acct, *s

	_, out := l.settleLocked(s, acct, now)
	if out.IsPositive() {
		if err := l.custody.TransferOut(ctx, s.Recipient, out); err != nil {
			*acct, *s = snapAcct, snapStream
			return decimal.Zero, fmt.Errorf("transfer out: %w", err)
		}
	}

	l.emit(ctx, streamEvent(event.KindStreamWithdrawn, s, id, out, now))
	return out, nil
}

// CancelStream settles everything owed to date, terminates the slot, and
// releases the unused remaining commitment back to the payer's available
// balance. Only the stream's payer may cancel.
func (l *Ledger) CancelStream(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	id := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	s, ok := l.streams[id]
	if !ok || s.LastPaid == 0 {
		return ErrInactiveStream
	}

	acct := l.account(payer)
	snapAcct, snapStream := *acct, *s

	_, out := l.settleLocked(s, acct, now)
	delete(l.streams, id)
	l.releaseLocked(acct, &snapStream, now)

	if out.IsPositive() {
		if err := l.custody.TransferOut(ctx, snapStream.Recipient, out); err != nil {
			*acct = snapAcct
			restored := snapStream
			l.streams[id] = &restored
			return fmt.Errorf("transfer out: %w", err)
		}
	}

	l.emit(ctx, streamEvent(event.KindStreamCancelled, &snapStream, id, out, now))
	return nil
}

// PauseStream settles everything owed to date and suspends the stream,
// releasing its remaining commitment exactly as cancel does. Resume
// re-reserves the forward span. Only the stream's payer may pause.
func (l *Ledger) PauseStream(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	id := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	s, ok := l.streams[id]
	if !ok || s.LastPaid == 0 {
		return ErrInactiveStream
	}

	acct := l.account(payer)
	snapAcct, snapStream := *acct, *s

	_, out := l.settleLocked(s, acct, now)
	s.LastPaid = 0
	s.LastPaused = now
	l.releaseLocked(acct, &snapStream, now)

	if out.IsPositive() {
		if err := l.custody.TransferOut(ctx, s.Recipient, out); err != nil {
			*acct, *s = snapAcct, snapStream
			return fmt.Errorf("transfer out: %w", err)
		}
	}

	l.emit(ctx, streamEvent(event.KindStreamPaused, s, id, out, now))
	return nil
}

// ResumeStream reactivates a paused stream. The watermark restarts at the
// resume time clamped into [starts, ends], so the span elapsed while paused
// is forgiven and a stream resumed before its schedule begins owes nothing
// until starts. The forward remainder rate*(ends-watermark) is re-reserved
// under the same solvency check as creation, mirroring what pause released.
func (l *Ledger) ResumeStream(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	id := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	s, ok := l.streams[id]
	if !ok {
		return ErrStreamEnded
	}
	if s.LastPaid > 0 {
		return ErrActiveStream
	}
	if s.LastPaused == 0 {
		return ErrStreamEnded
	}

	acct := l.account(payer)
	watermark := max(min(s.Ends, now), s.Starts)
	if remainder := s.Ends - watermark; remainder > 0 {
		recommit := s.RatePerSec.Mul(decimal.NewFromInt(remainder))
		prospective := acct.TotalCommitted.Add(recommit)
		if acct.TotalDeposited.LessThan(prospective) {
			return ErrPayerInDebt
		}
		acct.TotalCommitted = prospective
	}
	s.LastPaid = watermark
	s.LastPaused = 0

	l.emit(ctx, streamEvent(event.KindStreamResumed, s, id, decimal.Zero, now))
	return nil
}

// ModifyStream atomically replaces a stream: the old one is settled and
// cancelled, the new one starts accruing from the moment the old one was
// cut off (min(old ends, now)), so no span is double-counted or skipped.
// The old commitment leaves the payer's totals before the new one is
// reserved; any failure restores everything.
func (l *Ledger) ModifyStream(ctx context.Context, now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64, newRecipient string, newRatePerSec decimal.Decimal, newStarts, newEnds int64) (StreamID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now = l.clampNow(now)

	oldID := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	s, ok := l.streams[oldID]
	if !ok || s.LastPaid == 0 {
		return StreamID{}, ErrInactiveStream
	}

	acct := l.account(payer)
	snapAcct, snapStream := *acct, *s

	_, out := l.settleLocked(s, acct, now)
	delete(l.streams, oldID)
	l.releaseLocked(acct, &snapStream, now)

	effectiveStart := min(snapStream.Ends, now)
	newID, err := l.createLocked(now, payer, newRecipient, newRatePerSec, newStarts, newEnds, effectiveStart)
	if err == nil && out.IsPositive() {
		if cerr := l.custody.TransferOut(ctx, snapStream.Recipient, out); cerr != nil {
			delete(l.streams, newID)
			err = fmt.Errorf("transfer out: %w", cerr)
		}
	}
	if err != nil {
		*acct = snapAcct
		restored := snapStream
		l.streams[oldID] = &restored
		return StreamID{}, err
	}

	ev := streamEvent(event.KindStreamModified, l.streams[newID], newID, out, now)
	ev.OldStreamID = oldID.String()
	ev.OldRecipient = snapStream.Recipient
	ev.OldRatePerSec = snapStream.RatePerSec
	ev.OldStarts = snapStream.Starts
	ev.OldEnds = snapStream.Ends
	l.emit(ctx, ev)
	return newID, nil
}

// WithdrawablePayer previews the asset amount of the payer's never-obligated
// balance that WithdrawPayer would reclaim.
func (l *Ledger) WithdrawablePayer(payer string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.payers[payer]
	if !ok {
		return decimal.Zero
	}
	avail := acct.TotalDeposited.Sub(acct.TotalCommitted)
	if !avail.IsPositive() {
		return decimal.Zero
	}
	return l.unit.ToAsset(avail)
}

// WithdrawPayer reclaims the payer's unused balance (deposited minus
// committed). Nothing unused is a defined success returning zero, never an
// error. The full internal amount leaves the deposited total; the payer
// receives the truncated asset amount. Like Deposit, the command takes no
// time argument and stamps its event with the engine's last observed
// operation time.
func (l *Ledger) WithdrawPayer(ctx context.Context, payer string) (decimal.Decimal, error) {
	if payer == "" {
		return decimal.Zero, ErrInvalidAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.payers[payer]
	if !ok {
		return decimal.Zero, nil
	}
	avail := acct.TotalDeposited.Sub(acct.TotalCommitted)
	if !avail.IsPositive() {
		return decimal.Zero, nil
	}

	snapshot := *acct
	acct.TotalDeposited = acct.TotalDeposited.Sub(avail)
	out := l.unit.ToAsset(avail)
	if out.IsPositive() {
		if err := l.custody.TransferOut(ctx, payer, out); err != nil {
			*acct = snapshot
			return decimal.Zero, fmt.Errorf("transfer out: %w", err)
		}
	}

	ev := event.New(event.KindPayerWithdrawn)
	ev.Payer = payer
	ev.Amount = out
	ev.At = l.lastNow
	l.emit(ctx, ev)
	return out, nil
}

// Stream returns a read-only copy of the slot for the given parameters.
func (l *Ledger) Stream(payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) (Stream, bool) {
	return l.StreamByID(DeriveStreamID(payer, recipient, ratePerSec, starts, ends))
}

// StreamByID returns a read-only copy of the slot with the given id.
func (l *Ledger) StreamByID(id StreamID) (Stream, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.streams[id]
	if !ok {
		return Stream{}, false
	}
	return *s, true
}

// Account returns a read-only copy of the payer's aggregate balances.
func (l *Ledger) Account(payer string) (PayerAccount, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.payers[payer]
	if !ok {
		return PayerAccount{}, false
	}
	return *acct, true
}

// createLocked validates and writes a new stream record, reserving its
// commitment rate*(ends-effectiveStart) under the solvency check. The
// caller holds the lock and emits the event.
func (l *Ledger) createLocked(now int64, payer, recipient string, ratePerSec decimal.Decimal, starts, ends, effectiveStart int64) (StreamID, error) {
	if payer == "" || recipient == "" {
		return StreamID{}, ErrInvalidAddress
	}
	if starts <= 0 || starts >= ends || ends <= now {
		return StreamID{}, ErrInvalidTime
	}
	if ratePerSec.LessThanOrEqual(decimal.Zero) || !ratePerSec.IsInteger() {
		return StreamID{}, ErrInvalidAmount
	}

	id := DeriveStreamID(payer, recipient, ratePerSec, starts, ends)
	if existing, ok := l.streams[id]; ok {
		if existing.LastPaid > 0 {
			return StreamID{}, ErrActiveStream
		}
		if existing.LastPaused > 0 {
			return StreamID{}, ErrStreamPaused
		}
	}

	commitment := ratePerSec.Mul(decimal.NewFromInt(ends - effectiveStart))
	committed, deposited := decimal.Zero, decimal.Zero
	if acct, ok := l.payers[payer]; ok {
		committed, deposited = acct.TotalCommitted, acct.TotalDeposited
	}
	prospective := committed.Add(commitment)
	if deposited.LessThan(prospective) {
		return StreamID{}, ErrPayerInDebt
	}

	l.account(payer).TotalCommitted = prospective
	l.streams[id] = &Stream{
		Payer:      payer,
		Recipient:  recipient,
		RatePerSec: ratePerSec,
		Starts:     starts,
		Ends:       ends,
		LastPaid:   effectiveStart,
	}
	return id, nil
}

// settleLocked advances the stream's paid-through watermark to
// min(ends, now), moving the newly owed span from the payer's committed
// total to its withdrawn total. Returns the owed amount in internal and
// asset units; both are zero when nothing is newly owed.
func (l *Ledger) settleLocked(s *Stream, acct *PayerAccount, now int64) (decimal.Decimal, decimal.Decimal) {
	stop := min(s.Ends, now)
	if stop <= s.LastPaid {
		return decimal.Zero, decimal.Zero
	}

	owed := s.RatePerSec.Mul(decimal.NewFromInt(stop - s.LastPaid))
	acct.TotalWithdrawn = acct.TotalWithdrawn.Add(owed)
	acct.TotalCommitted = acct.TotalCommitted.Sub(owed)
	s.LastPaid = stop
	return owed, l.unit.ToAsset(owed)
}

// releaseLocked returns the stream's unsettled future commitment
// rate*(ends-max(starts,now)) to the payer's available balance. Used by
// cancel, pause, and the cancel leg of modify.
func (l *Ledger) releaseLocked(acct *PayerAccount, s *Stream, now int64) {
	start := max(s.Starts, now)
	if s.Ends > start {
		release := s.RatePerSec.Mul(decimal.NewFromInt(s.Ends - start))
		acct.TotalCommitted = acct.TotalCommitted.Sub(release)
	}
}

// clampNow pins the operation time to the engine's high-water mark so
// settlement math never observes time running backwards.
func (l *Ledger) clampNow(now int64) int64 {
	if now < l.lastNow {
		return l.lastNow
	}
	l.lastNow = now
	return now
}

func (l *Ledger) account(payer string) *PayerAccount {
	acct, ok := l.payers[payer]
	if !ok {
		acct = newPayerAccount()
		l.payers[payer] = acct
	}
	return acct
}

func (l *Ledger) emit(ctx context.Context, ev event.Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Emit(ctx, ev); err != nil {
		l.logger.Warn("emit event", "kind", ev.Kind, "event_id", ev.ID, "error", err)
	}
}

func streamEvent(kind string, s *Stream, id StreamID, amount decimal.Decimal, at int64) event.Event {
	ev := event.New(kind)
	ev.Payer = s.Payer
	ev.Recipient = s.Recipient
	ev.StreamID = id.String()
	ev.RatePerSec = s.RatePerSec
	ev.Starts = s.Starts
	ev.Ends = s.Ends
	ev.Amount = amount
	ev.At = at
	return ev
}
