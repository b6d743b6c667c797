package timespec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDuration is returned when text is not "<number><ms|s|m|h|d>".
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidTimestamp is returned when text is neither a duration nor an
	// ISO-8601 timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// ParseError describes a time or duration value that could not be parsed.
// Option names the flag the value came from and is empty until ForOption sets it.
type ParseError struct {
	Option string
	Text   string
	Kind   error
}

func (e *ParseError) Error() string {
	var hint string
	switch e.Kind {
	case ErrInvalidDuration:
		hint = "use a number followed by ms, s, m, h or d, e.g. '500ms', '1.5s', '7d'"
	case ErrInvalidTimestamp:
		hint = "use ISO format like '2024-01-14T10:00:00Z' or a relative time like '24h', '7d'"
	}

	if e.Option != "" {
		return fmt.Sprintf("invalid value for %s: %q (%s)", e.Option, e.Text, hint)
	}
	return fmt.Sprintf("%v: %q (%s)", e.Kind, e.Text, hint)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// ForOption tags a parse error with the flag it came from. Errors that are not
// a *ParseError are returned unchanged.
func ForOption(err error, option string) error {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return err
	}
	tagged := *pe
	tagged.Option = option
	return &tagged
}

// IsInvalidInput reports whether err is a duration or timestamp parse failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidDuration) || errors.Is(err, ErrInvalidTimestamp)
}
