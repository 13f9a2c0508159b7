package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"yt-ingest/internal/model"
)

const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitUnavailable = 2
	ExitPartial     = 3
	ExitInterrupted = 130
)

// ExitError carries the process exit code chosen by a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	switch model.KindOf(err) {
	case model.KindSourceUnavailable:
		return ExitUnavailable
	case model.KindItemFetchFailure, model.KindItemMetadataUnavailable, model.KindOutputWriteFailure:
		return ExitPartial
	default:
		return ExitUsage
	}
}

// IsQuiet reports whether err needs no "error:" line on stderr because the
// command already reported it.
func IsQuiet(err error) bool {
	if errors.Is(err, flag.ErrHelp) {
		return true
	}
	var ee *ExitError
	return errors.As(err, &ee) && ee.Err == nil
}
