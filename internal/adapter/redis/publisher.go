package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pscheid92/hellopulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// GreetingPublisher publishes JSON-encoded greetings with PUBLISH.
type GreetingPublisher struct {
	rdb *goredis.Client
}

var _ domain.GreetingPublisher = (*GreetingPublisher)(nil)

func NewGreetingPublisher(rdb *goredis.Client) *GreetingPublisher {
	return &GreetingPublisher{rdb: rdb}
}

// PublishGreeting returns the number of subscribers that received the message.
func (p *GreetingPublisher) PublishGreeting(ctx context.Context, channel string, greeting domain.Greeting) (int64, error) {
	data, err := json.Marshal(greeting)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal greeting: %w", err)
	}

	receivers, err := p.rdb.Publish(ctx, channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return receivers, nil
}
