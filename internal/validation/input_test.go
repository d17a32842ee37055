package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateCurrency(t *testing.T) {
	assert.NoError(t, ValidateCurrency("USD"))
	assert.NoError(t, ValidateCurrency("rub"))
	assert.Error(t, ValidateCurrency("US"))
	assert.Error(t, ValidateCurrency("XYZ"))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("сумма", decimal.RequireFromString("10.50")))
	assert.Error(t, ValidateAmount("сумма", decimal.Zero))
	assert.Error(t, ValidateAmount("сумма", decimal.NewFromInt(-5)))
	assert.Error(t, ValidateAmount("сумма", decimal.RequireFromString("1.005")))
	assert.Error(t, ValidateAmount("сумма", decimal.NewFromInt(200_000_000)))
}

func TestValidateItemTitle(t *testing.T) {
	assert.NoError(t, ValidateItemTitle("Интернет-магазин"))
	assert.Error(t, ValidateItemTitle("   "))
	assert.Error(t, ValidateItemTitle("ab"))
	assert.Error(t, ValidateItemTitle(strings.Repeat("я", MaxItemTitleLength+1)))
}

func TestValidateMilestone(t *testing.T) {
	assert.NoError(t, ValidateMilestone(0, "Дизайн", "", decimal.NewFromInt(100)))

	err := ValidateMilestone(1, "", "", decimal.NewFromInt(100))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "этап 2")
	}
	assert.NoError(t, ValidateMilestone(0, "Дизайн", "", decimal.Zero))
	assert.Error(t, ValidateMilestone(0, "Дизайн", "", decimal.NewFromInt(-1)))
}

func TestValidateMilestoneAmount(t *testing.T) {
	assert.NoError(t, ValidateMilestoneAmount("сумма", decimal.Zero))
	assert.NoError(t, ValidateMilestoneAmount("сумма", decimal.RequireFromString("0.01")))
	assert.Error(t, ValidateMilestoneAmount("сумма", decimal.RequireFromString("-0.01")))
	assert.Error(t, ValidateMilestoneAmount("сумма", decimal.RequireFromString("1.005")))
	assert.Error(t, ValidateMilestoneAmount("сумма", decimal.NewFromInt(200_000_000)))
}

func TestValidateEvidence(t *testing.T) {
	assert.NoError(t, ValidateEvidence(nil))
	assert.NoError(t, ValidateEvidence([]string{"att_V1StGXR8_Z5jdHi", "https://example.com/screen.png"}))
	assert.Error(t, ValidateEvidence([]string{" "}))
	assert.Error(t, ValidateEvidence([]string{"ftp://example.com/file"}))

	many := make([]string, MaxEvidenceItems+1)
	for i := range many {
		many[i] = "att"
	}
	assert.Error(t, ValidateEvidence(many))
}

func TestValidateRating(t *testing.T) {
	five, zero := 5, 0
	assert.NoError(t, ValidateRating(nil))
	assert.NoError(t, ValidateRating(&five))
	assert.Error(t, ValidateRating(&zero))
}

func TestValidateDisputeDescription(t *testing.T) {
	assert.NoError(t, ValidateDisputeDescription("Товар не соответствует описанию"))
	assert.Error(t, ValidateDisputeDescription("коротко"))
}
