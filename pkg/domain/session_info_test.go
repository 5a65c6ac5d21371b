package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func info(name string, lot string) SessionInfo {
	return SessionInfo{
		ID:            name,
		Name:          name,
		Symbol:        Symbol{Name: "EURUSD", Group: "FX"},
		LotSize:       decimal.RequireFromString(lot),
		DecimalPlaces: 5,
	}
}

func TestSessionInfoEqual(t *testing.T) {
	a := info("a", "1000")
	b := info("a", "1000.00")

	assert.True(t, a.Equal(b), "decimal values compare by value")

	b.DecimalPlaces = 4
	assert.False(t, a.Equal(b))

	c := info("a", "1000")
	c.Symbol.Group = "CFD"
	assert.False(t, a.Equal(c))
}

func TestSessionInfoGroupKey(t *testing.T) {
	s := info("a", "1")
	assert.Equal(t, "FX", s.GroupKey())

	s.Symbol.Group = ""
	assert.Equal(t, "EURUSD", s.GroupKey())
}

func TestExcludeSessions(t *testing.T) {
	candidates := []SessionInfo{info("a", "1"), info("b", "1"), info("c", "1")}
	existing := []SessionInfo{info("b", "1")}

	got := ExcludeSessions(candidates, existing)

	if assert.Len(t, got, 2) {
		assert.Equal(t, "a", got[0].Name)
		assert.Equal(t, "c", got[1].Name)
	}
	assert.Len(t, ExcludeSessions(candidates, nil), 3)
}

func TestOperationResultErr(t *testing.T) {
	assert.NoError(t, OperationResult{Success: true}.Err())
	assert.ErrorIs(t, OperationResult{}.Err(), ErrOperationFailed)

	err := OperationResult{Reason: "busy"}.Err()
	assert.True(t, errors.Is(err, ErrOperationFailed))
	assert.Contains(t, err.Error(), "busy")
}
