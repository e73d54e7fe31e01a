// Package address turns raw phone numbers from contact lists into
// channel addresses with exactly one country-code prefix.
package address

import (
	"errors"
	"strings"

	"wabulk/internal/domain"
)

// ErrNoDigits is returned for inputs that contain no digits at all.
var ErrNoDigits = errors.New("phone number has no digits")

const (
	DefaultCountryCode    = "91"
	DefaultNationalLength = 10
)

// Normalizer prefixes national numbers with a fixed country code.
type Normalizer struct {
	CountryCode    string // digits only, no '+'
	NationalLength int    // expected length of the national number
}

// New returns a Normalizer, applying defaults for zero values.
func New(countryCode string, nationalLength int) Normalizer {
	countryCode = digitsOnly(countryCode)
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if nationalLength <= 0 {
		nationalLength = DefaultNationalLength
	}
	return Normalizer{CountryCode: countryCode, NationalLength: nationalLength}
}

// Normalize strips every non-digit, drops a leading copy of the country code
// when the digits are longer than a national number, and prefixes
// "+<country code>". A leading '+' marks the input as already international,
// so its country code is dropped regardless of length; this keeps
// Normalize(Normalize(x)) == Normalize(x) for short numbers too.
func (n Normalizer) Normalize(raw string) (domain.Address, error) {
	raw = strings.TrimSpace(raw)
	digits := digitsOnly(raw)
	if digits == "" {
		return "", ErrNoDigits
	}
	international := strings.HasPrefix(raw, "+")
	if strings.HasPrefix(digits, n.CountryCode) && (international || len(digits) > n.NationalLength) {
		digits = digits[len(n.CountryCode):]
	}
	if digits == "" {
		return "", ErrNoDigits
	}
	return domain.Address("+" + n.CountryCode + digits), nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
