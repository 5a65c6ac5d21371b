// Package events provides event bus implementations for host events.
//
// Implementations:
//   - redis: Redis Streams, one read cursor per subscription
//   - memory: In-memory for simulation mode and tests
package events
