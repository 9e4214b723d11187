// Package durationflag implements the human-readable duration DSL used by
// the --token-lifetime and --purge-interval flags (spec §6, "Environment
// and CLI": "the human-readable duration DSL used for flags" is an
// external collaborator the core only consumes validated values from).
//
// The grammar — an unsigned integer immediately followed by a unit
// (ns, us/μs, ms, s, min, h) — and the min/max/default range-validator
// shape are grounded on
// original_source/src/token_server/utils.rs and
// original_source/duration-human/src/{parser,validator}.rs
// (the Rust duration-human crate and its clap_duration integration).
package durationflag

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var pattern = regexp.MustCompile(`^(\d+)(ns|us|μs|ms|min|h|s)$`)

// Parse parses a duration literal such as "2h", "90min", "1500ms", "30s".
// It is the Go analogue of
// original_source/src/token_server/utils.rs's parse_duration.
func Parse(s string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: expected a number followed by one of ns, us, μs, ms, s, min, h", s)
	}

	value, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if value == 0 {
		return 0, nil
	}

	switch m[2] {
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "min":
		return time.Duration(value) * time.Minute, nil
	case "s":
		return time.Duration(value) * time.Second, nil
	case "ms":
		return time.Duration(value) * time.Millisecond, nil
	case "us", "μs":
		return time.Duration(value) * time.Microsecond, nil
	case "ns":
		return time.Duration(value) * time.Nanosecond, nil
	default:
		return 0, fmt.Errorf("invalid duration %q: unsupported unit %q", s, m[2])
	}
}

// Format renders d back into the DSL, mirroring
// original_source/src/token_server/utils.rs's format_duration. Whole hours
// of 90 minutes or more use h and other whole minutes use min (so one hour
// is "60min"); anything else uses the largest of s, ms, us or ns that does
// not exceed d and is truncated to a whole number of that unit, so the
// result does not always parse back to d.
func Format(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d%time.Hour == 0 && d >= 90*time.Minute:
		return fmt.Sprintf("%dh", int64(d.Hours()))
	case d%time.Minute == 0 && d >= time.Minute:
		return fmt.Sprintf("%dmin", int64(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// Range is a min/max/default validator for a single duration flag,
// grounded on clap_duration::assign_duration_range_validator! and
// original_source/duration-human/src/validator.rs.
type Range struct {
	Min, Max, Default time.Duration
}

// Validate returns an error if d falls outside [r.Min, r.Max].
func (r Range) Validate(d time.Duration) error {
	if d < r.Min || d > r.Max {
		return fmt.Errorf("must lie between %s and %s", Format(r.Min), Format(r.Max))
	}
	return nil
}

// ParseAndValidate parses s and checks it against the range in one step,
// the Go analogue of DurationHumanValidator::parse_and_validate.
func (r Range) ParseAndValidate(s string) (time.Duration, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if err := r.Validate(d); err != nil {
		return 0, fmt.Errorf("%s: %w", s, err)
	}
	return d, nil
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s, default: %s", Format(r.Min), Format(r.Max), Format(r.Default))
}

// Value adapts a Range into a pflag.Value so cobra/pflag flags can parse
// and range-check the DSL directly, the way
// original_source/src/main.rs wires clap's value_parser to
// PURGE_INTERVAL_RANGE.parse_and_validate / TOKEN_LIFETIME_RANGE.parse_and_validate.
type Value struct {
	rng Range
	d   time.Duration
}

// NewValue returns a Value initialized to rng.Default.
func NewValue(rng Range) *Value {
	return &Value{rng: rng, d: rng.Default}
}

func (v *Value) String() string {
	return Format(v.d)
}

func (v *Value) Set(s string) error {
	d, err := v.rng.ParseAndValidate(s)
	if err != nil {
		return err
	}
	v.d = d
	return nil
}

func (v *Value) Type() string { return "duration" }

// Duration returns the currently held value.
func (v *Value) Duration() time.Duration { return v.d }
