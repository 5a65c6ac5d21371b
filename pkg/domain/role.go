package domain

import (
	"strings"
)

// SourceRole is the capability a remote source offers
type SourceRole int

const (
	SourceRoleUnknown SourceRole = iota
	SourceRoleDataProvider
	SourceRoleOrderExecutioner
)

// String returns the wire name of the role
func (r SourceRole) String() string {
	switch r {
	case SourceRoleDataProvider:
		return "data_provider"
	case SourceRoleOrderExecutioner:
		return "order_executioner"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (r SourceRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized names
// decode to SourceRoleUnknown so that newer peers do not break decoding.
func (r *SourceRole) UnmarshalText(text []byte) error {
	*r = ParseSourceRole(string(text))
	return nil
}

// ParseSourceRole converts a role name into a SourceRole
func ParseSourceRole(s string) SourceRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "data_provider", "dataprovider", "data":
		return SourceRoleDataProvider
	case "order_executioner", "orderexecutioner", "order_execution", "execution":
		return SourceRoleOrderExecutioner
	default:
		return SourceRoleUnknown
	}
}
