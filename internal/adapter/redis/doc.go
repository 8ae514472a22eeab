// Package redis adapts go-redis to the greeting publisher and feed
// contracts, and provides client hooks for metrics and circuit breaking.
package redis
