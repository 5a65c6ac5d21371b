// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/events/ws to receive host events as they are
// published: source registry changes, session changes and connection
// state. Append ?type=<event type> to receive a single kind.
package websocket
