package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCandidates(t *testing.T) {
	text := "Front desk: (403) 999-5825, after hours +1 780.555.1234 ext 12.\n" +
		"Fax 403 555 0000\n587 555 0101"

	got := FindCandidates(text)
	assert.Equal(t, []string{
		"(403) 999-5825",
		"+1 780.555.1234",
		"403 555 0000",
		"587 555 0101",
	}, got)
}

func TestFindCandidates_SplitsOnWideSeparators(t *testing.T) {
	got := FindCandidates("403-999-5825 - 780-555-1234")
	assert.Equal(t, []string{"403-999-5825", "780-555-1234"}, got)
}

func TestFindCandidates_SplitsAdjacentNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single space", "403-999-5825 780-555-1234", []string{"403-999-5825", "780-555-1234"}},
		{"parenthesised", "Office (403) 999-5825 (780) 555-1234", []string{"(403) 999-5825", "(780) 555-1234"}},
		{"tab", "4039995825\t7805551234", []string{"4039995825", "7805551234"}},
		{"country code kept", "+1 403 999 5825 1 780 555 1234", []string{"+1 403 999 5825", "1 780 555 1234"}},
		{"national then international", "403 999 5825 1 780 555 1234", []string{"403 999 5825", "1 780 555 1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindCandidates(tt.text))
		})
	}
}

func TestFindCandidates_OtherPlan(t *testing.T) {
	uk := Plan{CountryCode: "44", NationalLength: 10}
	got := uk.FindCandidates("+44 20 7946 0958 20 7946 0000")
	assert.Equal(t, []string{"+44 20 7946 0958", "20 7946 0000"}, got)
}

func TestFindCandidates_None(t *testing.T) {
	assert.Empty(t, FindCandidates("room 12, floor 3"))
	assert.Empty(t, FindCandidates(""))
}
