package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEscrowStatus_TransitionTable(t *testing.T) {
	allowed := map[EscrowStatus][]EscrowStatus{
		EscrowStatusPendingFunding: {EscrowStatusFunded, EscrowStatusExpired},
		EscrowStatusFunded:         {EscrowStatusDelivered, EscrowStatusDisputed},
		EscrowStatusDelivered:      {EscrowStatusCompleted, EscrowStatusDisputed},
		EscrowStatusDisputed:       {EscrowStatusCompleted, EscrowStatusCanceled},
	}

	for _, from := range AllEscrowStatuses() {
		for _, to := range AllEscrowStatuses() {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestEscrowStatus_Terminal(t *testing.T) {
	assert.True(t, EscrowStatusCompleted.IsTerminal())
	assert.True(t, EscrowStatusCanceled.IsTerminal())
	assert.True(t, EscrowStatusExpired.IsTerminal())
	assert.False(t, EscrowStatusDisputed.IsTerminal())
	assert.False(t, EscrowStatus("unknown").IsTerminal())
}

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency(" eur ")
	assert.NoError(t, err)
	assert.Equal(t, "EUR", code)

	_, err = NormalizeCurrency("EURO")
	assert.Error(t, err)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 100.0, Percentage(0, 0, 100))
	assert.Equal(t, 0.0, Percentage(0, 0, 0))
	assert.Equal(t, 66.67, Percentage(2, 3, 0))
	assert.Equal(t, 33.33, Percentage(1, 3, 0))
}

func TestCalculateFee(t *testing.T) {
	fee := CalculateFee(decimal.RequireFromString("1000"), decimal.RequireFromString("2.5"))
	assert.Equal(t, "25.00", fee.StringFixed(2))

	fee = CalculateFee(decimal.RequireFromString("10.10"), decimal.RequireFromString("2.5"))
	// 0.2525 округляется до 0.25
	assert.Equal(t, "0.25", fee.StringFixed(2))
}
