// Package phone formats recipient numbers collected by the agent into E.164.
package phone

import "strings"

const (
	ukMobilePrefix = "07"
	ukMobileLength = 11
	ukCountryCode  = "+44"
)

// Normalize converts a raw phone number into E.164.
//
// Every non-digit is dropped first, including a leading '+'. An 11 digit UK
// mobile number starting with 07 gets the 44 country code in place of its
// leading 0; anything else is returned as '+' followed by the digits. An
// empty or digit-free input yields "+".
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, ukMobilePrefix) && len(digits) == ukMobileLength {
		return ukCountryCode + digits[1:]
	}
	return "+" + digits
}
