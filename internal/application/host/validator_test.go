package host

import (
	"testing"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateTemplate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemplate(domain.NewRoutingPath("platform", "")))
	assert.NoError(t, v.ValidateTemplate(domain.ParseRoutingPath([]string{"region", "platform", "*"})))
	assert.Error(t, v.ValidateTemplate(domain.NewRoutingPath()))
	assert.Error(t, v.ValidateTemplate(domain.NewRoutingPath("")))
	assert.Error(t, v.ValidateTemplate(domain.NewRoutingPath("platform", "feed")))
}

func TestValidateSessionInfo(t *testing.T) {
	v := NewValidator()
	valid := domain.SessionInfo{
		Name:          "eurusd",
		Symbol:        domain.Symbol{Name: "EURUSD"},
		LotSize:       decimal.RequireFromString("0.01"),
		DecimalPlaces: 5,
	}
	assert.NoError(t, v.ValidateSessionInfo(valid))

	tests := map[string]func(*domain.SessionInfo){
		"missing name":     func(i *domain.SessionInfo) { i.Name = "" },
		"missing symbol":   func(i *domain.SessionInfo) { i.Symbol.Name = "" },
		"negative lot":     func(i *domain.SessionInfo) { i.LotSize = decimal.NewFromInt(-1) },
		"negative decimal": func(i *domain.SessionInfo) { i.DecimalPlaces = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			info := valid
			mutate(&info)
			assert.Error(t, v.ValidateSessionInfo(info))
		})
	}
}
