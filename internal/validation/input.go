package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Константы валидации
const (
	MinItemTitleLength          = 3
	MaxItemTitleLength          = 200
	MaxItemDescriptionLength    = 5000
	MaxMilestones               = 50
	MaxMilestoneTitleLength     = 200
	MaxMilestoneDescLength      = 2000
	MaxPaymentMethodLength      = 50
	MaxDeliveryNotesLength      = 5000
	MinDisputeDescriptionLength = 10
	MaxDisputeDescriptionLength = 5000
	MaxEvidenceItems            = 20
	MaxEvidenceLength           = 500
	MaxFeedbackLength           = 2000
	MaxResolutionNoteLength     = 2000
	MaxAmountDecimals           = 2
)

// MaxAmount — верхняя граница суммы одной сделки.
var MaxAmount = decimal.NewFromInt(100_000_000)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

func ValidateItemTitle(title string) error {
	if err := ValidateNonEmpty("название предмета сделки", title); err != nil {
		return err
	}
	return ValidateLength("название предмета сделки", strings.TrimSpace(title), MinItemTitleLength, MaxItemTitleLength)
}

func ValidateItemDescription(description string) error {
	return ValidateLength("описание предмета сделки", strings.TrimSpace(description), 0, MaxItemDescriptionLength)
}

// ValidateCurrency проверяет трёхбуквенный код валюты ISO 4217.
func ValidateCurrency(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return fmt.Errorf("валюта должна быть трёхбуквенным кодом ISO 4217")
	}
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Errorf("неизвестная валюта %q", code)
	}
	return nil
}

// ValidateAmount проверяет денежную сумму: положительная, не более двух знаков после запятой.
func ValidateAmount(fieldName string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%s должна быть больше нуля", fieldName)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%s не может превышать %s", fieldName, MaxAmount.String())
	}
	if !amount.Equal(amount.Round(MaxAmountDecimals)) {
		return fmt.Errorf("%s может содержать не более %d знаков после запятой", fieldName, MaxAmountDecimals)
	}
	return nil
}

// ValidateMilestoneAmount проверяет сумму этапа. Нулевой этап допустим.
func ValidateMilestoneAmount(fieldName string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%s не может быть отрицательной", fieldName)
	}
	if amount.IsZero() {
		return nil
	}
	return ValidateAmount(fieldName, amount)
}

// ValidateMilestone проверяет один этап сделки.
func ValidateMilestone(index int, title, description string, amount decimal.Decimal) error {
	label := fmt.Sprintf("этап %d", index+1)
	if err := ValidateNonEmpty(label+": название", title); err != nil {
		return err
	}
	if err := ValidateLength(label+": название", strings.TrimSpace(title), 0, MaxMilestoneTitleLength); err != nil {
		return err
	}
	if err := ValidateLength(label+": описание", description, 0, MaxMilestoneDescLength); err != nil {
		return err
	}
	return ValidateMilestoneAmount(label+": сумма", amount)
}

func ValidatePaymentMethod(method string) error {
	if err := ValidateNonEmpty("способ оплаты", method); err != nil {
		return err
	}
	return ValidateLength("способ оплаты", strings.TrimSpace(method), 0, MaxPaymentMethodLength)
}

// ValidateOptionalText проверяет необязательное текстовое поле.
func ValidateOptionalText(fieldName string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, max)
}

func ValidateDisputeDescription(description string) error {
	if err := ValidateNonEmpty("описание спора", description); err != nil {
		return err
	}
	return ValidateLength("описание спора", strings.TrimSpace(description), MinDisputeDescriptionLength, MaxDisputeDescriptionLength)
}

// ValidateEvidence проверяет список доказательств: ссылки на вложения или внешние URL.
func ValidateEvidence(evidence []string) error {
	if len(evidence) > MaxEvidenceItems {
		return fmt.Errorf("количество доказательств не может превышать %d", MaxEvidenceItems)
	}
	for i, item := range evidence {
		item = strings.TrimSpace(item)
		if item == "" {
			return fmt.Errorf("доказательство %d не может быть пустым", i+1)
		}
		if err := ValidateLength("доказательство", item, 0, MaxEvidenceLength); err != nil {
			return err
		}
		if strings.Contains(item, "://") {
			if err := ValidateExternalLink(&item); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateRating проверяет оценку покупателя от 1 до 5.
func ValidateRating(rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return fmt.Errorf("оценка должна быть от 1 до 5")
	}
	return nil
}

// ValidateExternalLink проверяет внешнюю ссылку.
func ValidateExternalLink(link *string) error {
	if link != nil && *link != "" {
		linkStr := strings.TrimSpace(*link)

		if err := ValidateLength("внешняя ссылка", linkStr, 0, MaxEvidenceLength); err != nil {
			return err
		}

		parsedURL, err := url.Parse(linkStr)
		if err != nil {
			return fmt.Errorf("некорректный формат URL")
		}

		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("ссылка должна начинаться с http:// или https://")
		}

		if parsedURL.Host == "" {
			return fmt.Errorf("ссылка должна содержать доменное имя")
		}
	}
	return nil
}
