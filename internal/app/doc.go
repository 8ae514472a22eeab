// Package app provides the application service layer.
//
// CounterPublisher drives the periodic greeting publish. Hub owns the single
// broker subscription of a gateway process and fans greetings out to GraphQL
// subscriptions. StaticCatalog is the in-memory book catalog.
// Depends on domain interfaces, not concrete implementations.
package app
