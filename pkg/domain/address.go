package domain

import (
	"fmt"
	"strings"
)

// NodeAddress identifies a bus participant. The zero value is an empty slot.
type NodeAddress string

// IsZero reports whether the address is unset
func (a NodeAddress) IsZero() bool {
	return a == ""
}

// String returns the raw address
func (a NodeAddress) String() string {
	return string(a)
}

// RoutingPath is an ordered sequence of hops through the bus hierarchy.
// The final slot addresses the destination and is rewritten per call.
type RoutingPath struct {
	hops []NodeAddress
}

// NewRoutingPath creates a routing path from the given hops
func NewRoutingPath(hops ...NodeAddress) RoutingPath {
	out := make([]NodeAddress, len(hops))
	copy(out, hops)
	return RoutingPath{hops: out}
}

// ParseRoutingPath builds a path from string hops. An empty string or "*"
// marks an empty slot.
func ParseRoutingPath(hops []string) RoutingPath {
	out := make([]NodeAddress, len(hops))
	for i, h := range hops {
		h = strings.TrimSpace(h)
		if h == "*" {
			h = ""
		}
		out[i] = NodeAddress(h)
	}
	return RoutingPath{hops: out}
}

// Len returns the number of slots
func (p RoutingPath) Len() int {
	return len(p.hops)
}

// Hops returns a copy of the path slots
func (p RoutingPath) Hops() []NodeAddress {
	out := make([]NodeAddress, len(p.hops))
	copy(out, p.hops)
	return out
}

// Clone returns an independent copy of the path
func (p RoutingPath) Clone() RoutingPath {
	return NewRoutingPath(p.hops...)
}

// Destination returns the final slot, which may be empty
func (p RoutingPath) Destination() NodeAddress {
	if len(p.hops) == 0 {
		return ""
	}
	return p.hops[len(p.hops)-1]
}

// WithDestination returns a copy of the path with the final slot replaced.
// The receiver is never modified.
func (p RoutingPath) WithDestination(addr NodeAddress) (RoutingPath, error) {
	if len(p.hops) == 0 {
		return RoutingPath{}, fmt.Errorf("routing path has no slots")
	}
	out := p.Clone()
	out.hops[len(out.hops)-1] = addr
	return out, nil
}

// Segments returns the non-empty hops in order
func (p RoutingPath) Segments() []string {
	out := make([]string, 0, len(p.hops))
	for _, h := range p.hops {
		if !h.IsZero() {
			out = append(out, h.String())
		}
	}
	return out
}

// String renders the path with "/" separators and "*" for empty slots
func (p RoutingPath) String() string {
	parts := make([]string, len(p.hops))
	for i, h := range p.hops {
		if h.IsZero() {
			parts[i] = "*"
			continue
		}
		parts[i] = h.String()
	}
	return strings.Join(parts, "/")
}
