package phone

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigits(t *testing.T) {
	assert.Equal(t, "4039995825", Digits("(403) 999-5825"))
	assert.Equal(t, "14039995825", Digits("+1 403.999.5825"))
	assert.Equal(t, "", Digits("abc"))
	assert.Equal(t, "21", Digits("١2٣1"), "only ASCII digits are kept")
}

func TestIsValidPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"national", "4039995825", true},
		{"with country code", "14039995825", true},
		{"punctuated national", "(403) 999-5825", true},
		{"punctuated international", "+1 403 999 5825", true},
		{"empty", "", false},
		{"letters only", "phone", false},
		{"nine digits", "403999582", false},
		{"twelve digits", "140399958250", false},
		{"eleven digits without leading one", "24039995825", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPhoneNumber(tt.input))
		})
	}
}

func TestFormatToE164(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"4039995825", "+14039995825"},
		{"14039995825", "+14039995825"},
		{"(403) 999-5825", "+14039995825"},
		{"1 (403) 999-5825", "+14039995825"},
		{"+44 20 7946 0958", "+442079460958"},
		{"12345", "+12345"},
		{"", "+"},
		{"no digits", "+"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatToE164(tt.input))
		})
	}
}

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+14039995825", "+1 (403) 999-5825"},
		{"14039995825", "+1 (403) 999-5825"},
		{"abc", "abc"},
		{"", ""},
		{"+", "+"},
		{"+4039995825", "+4039995825"},
		{"+442079460958", "+442079460958"},
		{"+24039995825", "+24039995825"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForDisplay(tt.input))
		})
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		d := fmt.Sprintf("%010d", rng.Int63n(1e10))
		want := fmt.Sprintf("+1 (%s) %s-%s", d[0:3], d[3:6], d[6:10])
		require.Equal(t, want, FormatForDisplay(FormatToE164(d)), "digits %s", d)
	}
}

func TestOtherPlan(t *testing.T) {
	uk := Plan{CountryCode: "44", NationalLength: 10}

	assert.True(t, uk.IsValid("2079460958"))
	assert.True(t, uk.IsValid("+44 20 7946 0958"))
	assert.False(t, uk.IsValid("14039995825"))

	assert.Equal(t, "+442079460958", uk.FormatToE164("20 7946 0958"))
	assert.Equal(t, "+442079460958", uk.FormatToE164("+44 20 7946 0958"))
	assert.Equal(t, "+44 2079460958", uk.FormatForDisplay("+442079460958"))
	assert.Equal(t, "+14039995825", uk.FormatForDisplay("+14039995825"))

	short := Plan{CountryCode: "1", NationalLength: 7}
	assert.Equal(t, "+1 5551234", short.FormatForDisplay("+15551234"))
}

func TestPlanValidate(t *testing.T) {
	require.NoError(t, DefaultPlan.Validate())
	require.NoError(t, Plan{CountryCode: "358", NationalLength: 9}.Validate())

	for _, p := range []Plan{
		{CountryCode: "", NationalLength: 10},
		{CountryCode: "1a", NationalLength: 10},
		{CountryCode: "+1", NationalLength: 10},
		{CountryCode: "1234", NationalLength: 10},
		{CountryCode: "1", NationalLength: 0},
		{CountryCode: "1", NationalLength: 15},
	} {
		assert.Error(t, p.Validate(), "%+v", p)
	}
}
