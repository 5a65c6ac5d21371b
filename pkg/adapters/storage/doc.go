// Package storage provides session journal implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and optional TTL
//   - memory: In-memory for simulation mode and tests
package storage
