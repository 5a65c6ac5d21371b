// Package ports defines the interfaces the session host depends on.
//
// Adapters under pkg/adapters implement them:
//   - Bus: memory (simulation, tests) and NATS
//   - EventBus: memory and Redis Streams
//   - SessionStore: memory and Redis
//   - MetricsCollector: Prometheus
//   - ProviderFactory: remote providers
package ports
