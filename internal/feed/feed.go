// Package feed delivers live updates to the set of open requests.
// Services publish an Update whenever a request's lifecycle changes;
// subscribers (the SSE endpoint, other API instances) receive them over
// a Redis pub/sub channel and reconcile with OpenSet.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/errandly/backend/internal/domain"
)

// DefaultChannel is the Redis pub/sub channel updates travel on.
const DefaultChannel = "requests.updates"

// Kind says what happened to the request carried by an Update.
type Kind string

const (
	KindCreated   Kind = "created"
	KindAccepted  Kind = "accepted"
	KindCompleted Kind = "completed"
)

// Update is one pushed change. Request is the full post-change snapshot
// so receivers can reconcile last-write-wins by id without a read-back.
type Update struct {
	Kind    Kind           `json:"kind"`
	Request domain.Request `json:"request"`
}

// Broadcaster fans lifecycle updates out through Redis pub/sub.
type Broadcaster struct {
	client  *redis.Client
	channel string
}

// NewBroadcaster constructs a Broadcaster on the given channel;
// an empty channel name falls back to DefaultChannel.
func NewBroadcaster(client *redis.Client, channel string) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{client: client, channel: channel}
}

// Publish sends an update to all current subscribers. Publishing with
// no subscribers is not an error.
func (b *Broadcaster) Publish(ctx context.Context, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("feed.Broadcaster.Publish: marshal: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("feed.Broadcaster.Publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded updates and a close function.
// The channel closes when ctx is cancelled or close is called.
// Payloads that fail to decode are dropped rather than tearing down the
// subscription.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Update, func() error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	updates := make(chan Update)

	go func() {
		defer close(updates)
		for msg := range pubsub.Channel() {
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				continue
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, pubsub.Close
}
