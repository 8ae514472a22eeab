package domain

import "errors"

var (
	ErrTooManySubscriptions = errors.New("too many subscriptions")
	ErrHubStopped           = errors.New("subscription hub stopped")
)
