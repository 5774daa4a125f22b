package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuntime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"2 h 15 min", 2*time.Hour + 15*time.Minute, true},
		{"135 min", 135 * time.Minute, true},
		{"135", 135 * time.Minute, true},
		{"1h", time.Hour, true},
		{"1h30m", 90 * time.Minute, true},
		{"  90 minutes ", 90 * time.Minute, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"0", 0, false},
		{"about two hours", 0, false},
		{"S1E1", 0, false},
	}

	for _, tc := range cases {
		got := parseRuntime(tc.in)
		if !tc.ok {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.Equal(t, tc.want, *got, "input %q", tc.in)
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", maxFieldLength)
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("é", 300)
	got := truncate(long)
	assert.Equal(t, maxFieldLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 252)+"...", got)
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, optionalString("N/A"))
	assert.Nil(t, optionalString("   "))
	got := optionalString(" Lana Wachowski ")
	require.NotNil(t, got)
	assert.Equal(t, "Lana Wachowski", *got)
}

func TestParseRating(t *testing.T) {
	assert.Nil(t, parseRating("N/A"))
	assert.Nil(t, parseRating("eight"))
	got := parseRating("8.66")
	require.NotNil(t, got)
	assert.Equal(t, 8.7, *got)
}
