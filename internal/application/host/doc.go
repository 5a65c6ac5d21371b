// Package host implements the session host: the component that owns one
// trading algorithm and brokers its access to remote data and order
// execution sources.
//
// The host:
//   - Subscribes to source availability on the platform and keeps a registry per role
//   - Creates sessions through a multi-step provider initialization with full rollback
//   - Destroys sessions and releases their bus registrations
//   - Answers source discovery queries
//   - Raises sources-changed and sessions-changed signals after each committed mutation
//
// All mutable state is guarded by one mutex that is held across remote calls.
// Inbound bus notifications never take that mutex on the delivery goroutine:
// they are queued to a single-worker dispatcher and applied in order.
package host
