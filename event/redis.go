package event

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const defaultStreamKey = "drip_pay:events"

// RedisSink publishes ledger events to a Redis stream so external consumers
// can tail the audit trail with XREAD/consumer groups.
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisSink constructs a sink publishing to the given stream key. An
// empty key selects the default.
func NewRedisSink(client *redis.Client, key string) *RedisSink {
	if key == "" {
		key = defaultStreamKey
	}
	return &RedisSink{client: client, key: key}
}

// Emit appends the event to the Redis stream.
func (s *RedisSink) Emit(ctx context.Context, ev Event) error {
	values := map[string]interface{}{
		"id":           ev.ID,
		"kind":         ev.Kind,
		"payer":        ev.Payer,
		"recipient":    ev.Recipient,
		"stream_id":    ev.StreamID,
		"rate_per_sec": ev.RatePerSec.String(),
		"starts":       strconv.FormatInt(ev.Starts, 10),
		"ends":         strconv.FormatInt(ev.Ends, 10),
		"amount":       ev.Amount.String(),
		"at":           strconv.FormatInt(ev.At, 10),
	}
	if ev.Reason != "" {
		values["reason"] = ev.Reason
	}
	if ev.OldStreamID != "" {
		values["old_stream_id"] = ev.OldStreamID
		values["old_recipient"] = ev.OldRecipient
		values["old_rate_per_sec"] = ev.OldRatePerSec.String()
		values["old_starts"] = strconv.FormatInt(ev.OldStarts, 10)
		values["old_ends"] = strconv.FormatInt(ev.OldEnds, 10)
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: s.key, Values: values}).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}
