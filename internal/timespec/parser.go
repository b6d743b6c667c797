package timespec

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// durationPattern matches "<magnitude><unit>" where magnitude is an unsigned
// decimal and unit is one of ms, s, m, h, d. "ms" must be tried before "m".
var durationPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)(ms|s|m|h|d)$`)

// unitSeconds maps each accepted unit suffix to its exact length in seconds.
var unitSeconds = map[string]*big.Rat{
	"ms": big.NewRat(1, 1000),
	"s":  big.NewRat(1, 1),
	"m":  big.NewRat(60, 1),
	"h":  big.NewRat(3600, 1),
	"d":  big.NewRat(86400, 1),
}

// unitDecimals is how many extra fractional digits a unit adds when the
// magnitude is expressed in seconds.
var unitDecimals = map[string]int{"ms": 3}

// maxSeconds is the longest duration a time.Duration can hold (about 292 years).
var maxSeconds = new(big.Rat).SetFrac64(math.MaxInt64, int64(time.Second))

// absoluteLayouts are tried in order when a time point is not a duration.
// Layouts without a zone are interpreted as UTC.
var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Duration is a non-negative length of time. The value is kept exactly as
// magnitude times unit factor, so rendering never introduces rounding error.
// The zero value is a zero duration.
type Duration struct {
	seconds  *big.Rat
	decimals int
	nanos    time.Duration
}

// Std converts the duration to a time.Duration. Sub-nanosecond digits are truncated.
func (d Duration) Std() time.Duration {
	return d.nanos
}

// String renders the duration as a seconds literal, e.g. "5s" or "0.5s".
func (d Duration) String() string {
	if d.seconds == nil {
		return "0s"
	}
	text := d.seconds.FloatString(d.decimals)
	if strings.Contains(text, ".") {
		text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	}
	return text + "s"
}

// ParseDuration parses a duration literal such as "500ms", "1.5s", "5m", "24h"
// or "7d". A unit suffix is mandatory, negative magnitudes are rejected, and so
// are durations longer than a time.Duration can represent.
func ParseDuration(text string) (Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Duration{}, &ParseError{Text: text, Kind: ErrInvalidDuration}
	}

	seconds, ok := new(big.Rat).SetString(m[1])
	if !ok {
		return Duration{}, &ParseError{Text: text, Kind: ErrInvalidDuration}
	}
	unit := strings.ToLower(m[2])
	seconds.Mul(seconds, unitSeconds[unit])
	if seconds.Cmp(maxSeconds) > 0 {
		return Duration{}, &ParseError{Text: text, Kind: ErrInvalidDuration}
	}

	decimals := unitDecimals[unit]
	if i := strings.IndexByte(m[1], '.'); i >= 0 {
		decimals += len(m[1]) - i - 1
	}

	ns := new(big.Rat).Mul(seconds, big.NewRat(int64(time.Second), 1))
	nanos := new(big.Int).Quo(ns.Num(), ns.Denom())

	return Duration{
		seconds:  seconds,
		decimals: decimals,
		nanos:    time.Duration(nanos.Int64()),
	}, nil
}

// ParseTimePoint parses a time specification relative to now.
// Supports two formats:
//   - Duration literals: "30m", "24h", "7d" mean that long before now
//   - ISO-8601 timestamps: "2024-01-14T10:00:00Z" (naive timestamps are UTC)
//
// The duration grammar is tried first; absolute parsing is the fallback.
// The wall clock is never read, so callers sharing one now get consistent results.
func ParseTimePoint(text string, now time.Time) (time.Time, error) {
	if text == "" {
		return time.Time{}, &ParseError{Text: text, Kind: ErrInvalidTimestamp}
	}

	if d, err := ParseDuration(text); err == nil {
		return now.Add(-d.Std()), nil
	}

	t, err := ParseTimestamp(text)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseTimestamp parses an absolute ISO-8601 timestamp. Timestamps without a
// zone designator are interpreted as UTC.
func ParseTimestamp(text string) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Text: text, Kind: ErrInvalidTimestamp}
}

// MustDuration is ParseDuration for compile-time constants. It panics on bad input.
func MustDuration(text string) Duration {
	d, err := ParseDuration(text)
	if err != nil {
		panic(fmt.Sprintf("timespec: %v", err))
	}
	return d
}
