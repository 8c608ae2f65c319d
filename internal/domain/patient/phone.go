// Package patient implements the patient aggregate and identity resolution.
package patient

import "strings"

// Normalizer canonicalizes raw phone input into the dialable form
// "+<countrycode><nationalnumber>". The default country calling code is fixed
// at construction; locally formatted numbers are assumed to belong to it.
type Normalizer struct {
	countryCode string
}

// NewNormalizer creates a normalizer for the given default country calling
// code, e.g. "+61". The leading "+" is optional.
func NewNormalizer(defaultCountryCode string) *Normalizer {
	return &Normalizer{countryCode: digitsOnly(defaultCountryCode)}
}

// Normalize maps human-entered phone text onto its canonical dialable form.
// Numbers that already carry a leading "+" are trusted as-is, whatever the
// country. Input that matches no rule is returned unchanged rather than
// rejected; Normalize never fails.
func (n *Normalizer) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	digits := digitsOnly(raw)

	switch {
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits
	case strings.HasPrefix(digits, n.countryCode):
		// Country code present, "+" missing.
		return "+" + digits
	case len(digits) == 9 && strings.HasPrefix(digits, "4"):
		// Mobile number without the leading trunk zero.
		return "+" + n.countryCode + digits
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		// National trunk-prefixed number: drop the zero.
		return "+" + n.countryCode + digits[1:]
	}

	return raw
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
