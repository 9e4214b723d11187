package durationflag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]time.Duration{
		"2h":     2 * time.Hour,
		"90min":  90 * time.Minute,
		"1500ms": 1500 * time.Millisecond,
		"30s":    30 * time.Second,
		"0s":     0,
		"5us":    5 * time.Microsecond,
		"5μs":    5 * time.Microsecond,
		"5ns":    5 * time.Nanosecond,
	}

	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "2", "h2", "2hours", "-2h", "2.5h"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFormatRoundTripsCoarseUnits(t *testing.T) {
	cases := map[time.Duration]string{
		2 * time.Hour:    "2h",
		90 * time.Minute: "90min",
		time.Minute:      "1min",
		30 * time.Second: "30s",
	}

	for d, want := range cases {
		assert.Equal(t, want, Format(d), d.String())
	}
}

func TestFormatTruncatesSubSecondRemainder(t *testing.T) {
	// 1500ms has no exact minute/hour representation, so it falls back to
	// truncated second granularity, matching the Rust formatter's
	// behavior of only picking a coarser unit when it divides evenly.
	assert.Equal(t, "1s", Format(1500*time.Millisecond))
}

func TestRangeValidate(t *testing.T) {
	r := Range{Min: time.Second, Max: 90 * time.Minute, Default: time.Minute}

	assert.NoError(t, r.Validate(time.Minute))
	assert.Error(t, r.Validate(500*time.Millisecond))
	assert.Error(t, r.Validate(2*time.Hour))
}

func TestValueAsPFlagValue(t *testing.T) {
	rng := Range{Min: 30 * time.Minute, Max: 96 * time.Hour, Default: 2 * time.Hour}
	v := NewValue(rng)

	assert.Equal(t, "2h", v.String())
	assert.Equal(t, "duration", v.Type())

	require.NoError(t, v.Set("3h"))
	assert.Equal(t, 3*time.Hour, v.Duration())

	assert.Error(t, v.Set("1min"))
}
