package domain

import "context"

// GreetingPublisher sends a greeting to a broker channel and reports how many
// subscribers received it.
type GreetingPublisher interface {
	PublishGreeting(ctx context.Context, channel string, greeting Greeting) (int64, error)
}

// GreetingFeed streams greetings arriving on a broker channel. The returned
// channel is closed once ctx is cancelled or the feed is torn down.
type GreetingFeed interface {
	Subscribe(ctx context.Context, channel string) (<-chan Greeting, error)
}

// GreetingSource hands out per-listener streams fed from a single upstream
// subscription.
type GreetingSource interface {
	Subscribe(ctx context.Context) (<-chan Greeting, error)
}
