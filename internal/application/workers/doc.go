// Package workers contains the background machinery of the session host.
//
// The dispatcher owns a bounded queue and a single worker goroutine that:
//   - Applies inbound bus notifications in delivery order
//   - Keeps notification handling off the bus delivery goroutine
//   - Rejects work once full or closed instead of blocking the bus
//
// The health monitor samples host state periodically, logs it and refreshes gauges.
package workers
