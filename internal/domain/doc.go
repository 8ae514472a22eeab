// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (greeting.go, book.go, pubsub.go, errors.go)
// with shared types and cross-cutting interfaces. No infrastructure code - just contracts.
package domain
