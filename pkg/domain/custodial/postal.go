package custodial

import "strings"

const (
	CountryUS        = "US"
	FieldZipCode     = "zipCode"
	CodePostalCode   = "postal_code_invalid"
	usPostalCodeSize = 5
)

// NormalizePostalCode returns the postal code to send to the platform.
// US codes are reduced to their first five digits; other countries pass
// through trimmed.
func NormalizePostalCode(country, raw string) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(country), CountryUS) {
		return strings.TrimSpace(raw), nil
	}
	digits := digitsOnly(raw)
	if len(digits) < usPostalCodeSize {
		return "", &ValidationError{
			Code:    CodePostalCode,
			Field:   FieldZipCode,
			Message: "ZIP code must contain at least 5 digits",
		}
	}
	return digits[:usPostalCodeSize], nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
