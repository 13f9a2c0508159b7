package model

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the loop can map them to counters and the CLI
// to exit codes.
type Kind string

const (
	KindSourceUnavailable       Kind = "source_unavailable"
	KindItemMetadataUnavailable Kind = "item_metadata_unavailable"
	KindItemFetchFailure        Kind = "item_fetch_failure"
	KindLedgerUnreadable        Kind = "ledger_unreadable"
	KindOutputWriteFailure      Kind = "output_write_failure"
	KindConfigInvalid           Kind = "config_invalid"
)

// Error is the structured error carried across collaborator boundaries.
type Error struct {
	Kind      Kind
	Op        string
	ID        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s (id=%s): %v", e.Kind, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf wraps a formatted error with a kind.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err was classified as transient.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CountsAsFetchFailure folds output write failures into item fetch failures.
func CountsAsFetchFailure(k Kind) bool {
	return k == KindItemFetchFailure || k == KindOutputWriteFailure
}
