// Package phone normalizes, validates and formats phone numbers for a single
// numbering plan. All functions are total: they never fail and fall back to a
// best-effort result for input they do not recognise.
package phone

import (
	"fmt"
	"strings"
)

// Plan describes the numbering plan the formatting functions target.
type Plan struct {
	// CountryCode is the E.164 country prefix without the leading '+'.
	CountryCode string
	// NationalLength is the digit count of a number without its country code.
	NationalLength int
}

// DefaultPlan is the North American Numbering Plan.
var DefaultPlan = Plan{CountryCode: "1", NationalLength: 10}

// Validate reports whether the plan can be used for formatting.
func (p Plan) Validate() error {
	if p.CountryCode == "" || len(p.CountryCode) > 3 {
		return fmt.Errorf("country code %q must be 1 to 3 digits", p.CountryCode)
	}
	if Digits(p.CountryCode) != p.CountryCode {
		return fmt.Errorf("country code %q must contain digits only", p.CountryCode)
	}
	if p.NationalLength < 1 || p.NationalLength > 14 {
		return fmt.Errorf("national length %d out of range [1, 14]", p.NationalLength)
	}
	return nil
}

// Digits returns s with every character other than 0-9 removed.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// international reports whether digits is a national number prefixed by the
// plan's country code.
func (p Plan) international(digits string) bool {
	return len(digits) == p.NationalLength+len(p.CountryCode) && strings.HasPrefix(digits, p.CountryCode)
}

// FormatToE164 strips raw to its digits and tags it as E.164. A national
// number gets the country code prepended; anything else is prefixed with '+'
// as-is, so "" becomes "+".
func (p Plan) FormatToE164(raw string) string {
	digits := Digits(raw)
	switch {
	case len(digits) == p.NationalLength:
		return "+" + p.CountryCode + digits
	case p.international(digits):
		return "+" + digits
	default:
		// Unrecognised shape: tag only, no validation.
		return "+" + digits
	}
}

// IsValid reports whether raw holds a national number, or a national number
// prefixed by the country code, once stripped to its digits.
func (p Plan) IsValid(raw string) bool {
	digits := Digits(raw)
	return len(digits) == p.NationalLength || p.international(digits)
}

// FormatForDisplay renders an E.164 number for people. NANP numbers become
// "+1 (AAA) BBB-CCCC"; other plans get "+<cc> <national>". Input that does
// not match the plan is returned unchanged.
func (p Plan) FormatForDisplay(e164 string) string {
	if len(e164) < 2 {
		return e164
	}

	digits := Digits(strings.TrimPrefix(e164, "+"))
	if !p.international(digits) {
		return e164
	}

	national := digits[len(p.CountryCode):]
	if p.CountryCode == "1" && len(national) == 10 {
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:11])
	}
	return "+" + p.CountryCode + " " + national
}

// FormatToE164 formats raw with [DefaultPlan].
func FormatToE164(raw string) string { return DefaultPlan.FormatToE164(raw) }

// IsValidPhoneNumber validates raw with [DefaultPlan].
func IsValidPhoneNumber(raw string) bool { return DefaultPlan.IsValid(raw) }

// FormatForDisplay formats e164 with [DefaultPlan].
func FormatForDisplay(e164 string) string { return DefaultPlan.FormatForDisplay(e164) }
