// Package server implements the chatrelay core: the connection registry
// mapping online users to live WebSocket sessions, the relay engine that
// persists and forwards direct messages, and the HTTP surface that admits
// authenticated connections.
//
// The implementation is organized into specialized files for configuration,
// the registry, the relay, clients, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
