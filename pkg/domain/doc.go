// Package domain holds the value types shared by the session host, its
// providers and the bus adapters.
//
// It covers:
//   - Bus addressing (NodeAddress, RoutingPath)
//   - Session descriptors (SessionInfo, Symbol)
//   - Source roles and the bus message set
//   - Host events mirrored to external observers
package domain
