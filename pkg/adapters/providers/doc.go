// Package providers contains the data and order execution provider
// implementations.
//
// Implementations:
//   - remote: proxied to a source over the bus
//   - simulated: driven locally without any network round trip
package providers
