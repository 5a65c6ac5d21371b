package host

import (
	"fmt"

	"github.com/aescanero/tradehost/pkg/domain"
)

// Validator checks host inputs before they reach the bus
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTemplate checks a routing path template. The final slot is the
// per-call placeholder and must be empty.
func (v *Validator) ValidateTemplate(path domain.RoutingPath) error {
	if path.Len() == 0 {
		return fmt.Errorf("routing template must have at least one slot")
	}

	if !path.Destination().IsZero() {
		return fmt.Errorf("routing template final slot must be empty, got %s", path.Destination())
	}

	if len(path.Segments()) == 0 {
		return fmt.Errorf("routing template has no hop to reach the platform")
	}

	return nil
}

// ValidateSessionInfo checks a session descriptor
func (v *Validator) ValidateSessionInfo(info domain.SessionInfo) error {
	if info.Name == "" {
		return fmt.Errorf("session name is required")
	}

	if info.Symbol.Name == "" {
		return fmt.Errorf("session symbol is required")
	}

	if info.LotSize.IsNegative() {
		return fmt.Errorf("lot size must not be negative: %s", info.LotSize)
	}

	if info.DecimalPlaces < 0 {
		return fmt.Errorf("decimal places must not be negative: %d", info.DecimalPlaces)
	}

	return nil
}
