package printer

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
)

// errOut receives formatted errors and warnings.
var errOut io.Writer = os.Stderr

// SetOutput redirects error and warning output, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := errOut
	errOut = w
	return prev
}

// DisplayedError is returned once an error has been printed.
// It keeps the cause so callers can still classify it with errors.Is/As.
type DisplayedError struct {
	Title string
	Cause error
}

func (e *DisplayedError) Error() string {
	if e.Cause == nil {
		return e.Title
	}
	return fmt.Sprintf("%s: %v", e.Title, e.Cause)
}

func (e *DisplayedError) Unwrap() error {
	return e.Cause
}

// Warning prints a warning message in yellow with a warning prefix
func Warning(format string, a ...any) {
	yellow.Fprintf(errOut, "⚠️  %s", fmt.Sprintf(format, a...))
}

// Error prints a titled error with explanation and suggestions to stderr and
// returns a DisplayedError wrapping cause.
func Error(cause error, title string, explanation string, suggestions []string) error {
	return ErrorWithContext(cause, title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with extra key/value details printed in key order.
func ErrorWithContext(cause error, title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(errOut, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(errOut, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(errOut, "\n")
		for _, k := range keys {
			fmt.Fprintf(errOut, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(errOut, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(errOut, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(errOut, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(errOut, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return &DisplayedError{Title: title, Cause: cause}
}
