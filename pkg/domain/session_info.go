package domain

import (
	"github.com/shopspring/decimal"
)

// Symbol identifies the instrument a session trades
type Symbol struct {
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group" yaml:"group"`
}

// SessionInfo describes what market and account a session concerns.
// It is used both as a request payload and as a lookup key.
type SessionInfo struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Symbol        Symbol          `json:"symbol" yaml:"symbol"`
	LotSize       decimal.Decimal `json:"lot_size" yaml:"lot_size"`
	DecimalPlaces int32           `json:"decimal_places" yaml:"decimal_places"`
}

// Equal reports whether every field of both descriptors matches
func (s SessionInfo) Equal(other SessionInfo) bool {
	return s.ID == other.ID &&
		s.Name == other.Name &&
		s.Symbol == other.Symbol &&
		s.LotSize.Equal(other.LotSize) &&
		s.DecimalPlaces == other.DecimalPlaces
}

// GroupKey returns the key sessions are grouped by
func (s SessionInfo) GroupKey() string {
	if s.Symbol.Group != "" {
		return s.Symbol.Group
	}
	return s.Symbol.Name
}

// ExcludeSessions returns the candidates that are not equal to any of the
// existing descriptors, keeping the candidates' order.
func ExcludeSessions(candidates, existing []SessionInfo) []SessionInfo {
	out := make([]SessionInfo, 0, len(candidates))
	for _, c := range candidates {
		found := false
		for _, e := range existing {
			if c.Equal(e) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
