package commands

import (
	"errors"

	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/dyluth/lsq/internal/timespec"
)

// Exit codes. Invalid input is always detected before any request is sent.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitRemote       = 3
	ExitAuth         = 4
)

// usageError marks flag parsing failures.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitOK
	case timespec.IsInvalidInput(err),
		errors.Is(err, runs.ErrInvalidArgument),
		errors.As(err, &usage):
		return ExitInvalidInput
	case smith.IsAuth(err):
		return ExitAuth
	case smith.IsRemote(err), smith.IsNotFound(err):
		return ExitRemote
	default:
		return ExitError
	}
}
