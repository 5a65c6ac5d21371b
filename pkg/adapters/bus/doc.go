// Package bus contains implementations of ports.Bus.
//
// Implementations:
//   - memory: in-process network with a simulated platform, for simulation mode and tests
//   - nats: NATS transport with a JSON envelope codec
package bus
