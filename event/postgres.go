package event

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJournal appends ledger events to an audit table. The journal is
// write-only from the engine's point of view; queries belong to reporting
// tooling.
type PostgresJournal struct {
	db *pgxpool.Pool
}

// NewPostgresJournal constructs a journal on top of an established pool.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Migrate creates the journal table when it does not exist yet.
func (j *PostgresJournal) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS ledger_events (
            id            UUID PRIMARY KEY,
            kind          TEXT NOT NULL,
            payer         TEXT NOT NULL,
            recipient     TEXT NOT NULL DEFAULT '',
            stream_id     TEXT NOT NULL DEFAULT '',
            rate_per_sec  NUMERIC NOT NULL DEFAULT 0,
            starts        BIGINT NOT NULL DEFAULT 0,
            ends          BIGINT NOT NULL DEFAULT 0,
            amount        NUMERIC NOT NULL DEFAULT 0,
            reason        TEXT NOT NULL DEFAULT '',
            old_stream_id TEXT NOT NULL DEFAULT '',
            old_recipient TEXT NOT NULL DEFAULT '',
            old_rate_per_sec NUMERIC NOT NULL DEFAULT 0,
            old_starts    BIGINT NOT NULL DEFAULT 0,
            old_ends      BIGINT NOT NULL DEFAULT 0,
            at            BIGINT NOT NULL,
            recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
        )`
	if _, err := j.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate ledger_events: %w", err)
	}
	return nil
}

// Emit inserts the event into the journal.
func (j *PostgresJournal) Emit(ctx context.Context, ev Event) error {
	const insert = `
        INSERT INTO ledger_events
            (id, kind, payer, recipient, stream_id, rate_per_sec, starts, ends, amount, reason,
             old_stream_id, old_recipient, old_rate_per_sec, old_starts, old_ends, at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := j.db.Exec(ctx, insert,
		ev.ID, ev.Kind, ev.Payer, ev.Recipient, ev.StreamID,
		ev.RatePerSec, ev.Starts, ev.Ends, ev.Amount, ev.Reason,
		ev.OldStreamID, ev.OldRecipient, ev.OldRatePerSec, ev.OldStarts, ev.OldEnds, ev.At)
	if err != nil {
		return fmt.Errorf("journal event %s: %w", ev.ID, err)
	}
	return nil
}
