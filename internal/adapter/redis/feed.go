package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pscheid92/hellopulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const feedBufferSize = 16

// Message is one payload as it arrived on a channel, undecoded.
type Message struct {
	Channel string
	Payload string
}

// GreetingFeed turns a Redis Pub/Sub subscription into a stream of greetings.
// go-redis reconnects the underlying connection on its own; the stream only
// ends when the caller's context is cancelled.
type GreetingFeed struct {
	rdb *goredis.Client
}

var _ domain.GreetingFeed = (*GreetingFeed)(nil)

func NewGreetingFeed(rdb *goredis.Client) *GreetingFeed {
	return &GreetingFeed{rdb: rdb}
}

// SubscribeRaw blocks until Redis confirms the subscription, then delivers
// every payload on channel as is.
func (f *GreetingFeed) SubscribeRaw(ctx context.Context, channel string) (<-chan Message, error) {
	sub := f.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Message, feedBufferSize)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Subscribe is SubscribeRaw decoded into greetings. Payloads that are not
// greetings are logged and skipped.
func (f *GreetingFeed) Subscribe(ctx context.Context, channel string) (<-chan domain.Greeting, error) {
	raw, err := f.SubscribeRaw(ctx, channel)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Greeting, feedBufferSize)
	go func() {
		defer close(out)
		for msg := range raw {
			greeting, err := DecodeGreeting(msg.Payload)
			if err != nil {
				slog.WarnContext(ctx, "Skipping undecodable message", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- greeting:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// DecodeGreeting parses a {"hello": ...} payload.
func DecodeGreeting(payload string) (domain.Greeting, error) {
	var g domain.Greeting
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return domain.Greeting{}, fmt.Errorf("failed to unmarshal greeting: %w", err)
	}
	return g, nil
}
