package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("+61")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already international", "+61412345678", "+61412345678"},
		{"international with formatting", "+61 412 345 678", "+61412345678"},
		{"foreign international kept", "+14155551234", "+14155551234"},
		{"country code without plus", "61412345678", "+61412345678"},
		{"trunk prefixed national", "0412345678", "+61412345678"},
		{"mobile without trunk zero", "412345678", "+61412345678"},
		{"national with spaces", "04 1234 5678", "+61412345678"},
		{"unrecognized returned verbatim", "12345", "12345"},
		{"blank returned verbatim", "   ", "   "},
		{"empty returned verbatim", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.in))
		})
	}
}

func TestNormalizeCountryCodeWithoutPlus(t *testing.T) {
	n := NewNormalizer("61")
	assert.Equal(t, "+61412345678", n.Normalize("0412345678"))
}
