// Package notifications fans moderation events out to WebSocket subscribers,
// locally through Hub and across replicas through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"mybuddy/internal/cache"
	"mybuddy/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var notifierLog = observability.NewWSLogger("moderation-notifier")

// envelope is the wire format on the moderation channel. Origin identifies the
// publishing process so it can skip its own messages.
type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// Notifier publishes moderation events to Redis and relays events published by other replicas.
type Notifier struct {
	rdb     *redis.Client
	channel string
	origin  string
}

// NewNotifier creates a Notifier on the moderation channel. A nil client makes every call a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{
		rdb:     rdb,
		channel: cache.ModerationChannel,
		origin:  uuid.NewString(),
	}
}

// Origin returns the identifier stamped on messages published by n.
func (n *Notifier) Origin() string { return n.origin }

// Publish sends an encoded event to every other replica.
func (n *Notifier) Publish(ctx context.Context, event []byte) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if !json.Valid(event) {
		return errors.New("publish moderation event: payload is not JSON")
	}
	data, err := json.Marshal(envelope{Origin: n.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return n.rdb.Publish(ctx, n.channel, data).Err()
}

// Subscribe listens on the moderation channel until ctx is cancelled and calls
// onEvent with the raw event of every message published by another Notifier.
// It returns once the subscription is confirmed by Redis.
func (n *Notifier) Subscribe(ctx context.Context, onEvent func(event []byte)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.dispatch(ctx, msg.Payload, onEvent)
			}
		}
	}()

	return nil
}

func (n *Notifier) dispatch(ctx context.Context, payload string, onEvent func([]byte)) {
	defer func() {
		if r := recover(); r != nil {
			notifierLog.LogError(ctx, 0, fmt.Errorf("panic in moderation subscriber: %v\n%s", r, debug.Stack()), "dispatch")
		}
	}()

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		notifierLog.LogError(ctx, 0, fmt.Errorf("malformed moderation message: %w", err), "dispatch")
		return
	}
	if env.Origin == n.origin || len(env.Event) == 0 {
		return
	}
	onEvent(env.Event)
}
