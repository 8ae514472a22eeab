// Package graphql serves the gateway's GraphQL schema.
//
// Schema binds the SDL to a book catalog and a greeting source. Queries
// arrive over HTTP (ParseHTTPRequest) or WebSocket; subscriptions only over
// WebSocket, spoken with the graphql-transport-ws sub-protocol (WSHandler).
package graphql
