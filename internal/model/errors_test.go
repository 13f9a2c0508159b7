package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_UnwrapsThroughFmtWrapping(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("listing: %w", &Error{Kind: KindSourceUnavailable, Op: "list", Err: base})

	if got := KindOf(err); got != KindSourceUnavailable {
		t.Fatalf("expected %q, got %q", KindSourceUnavailable, got)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to reach the base error")
	}
	if KindOf(base) != "" {
		t.Fatalf("plain errors have no kind")
	}
}

func TestWrap_NilStaysNil(t *testing.T) {
	if Wrap(KindItemFetchFailure, "fetch", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestIsRetryable(t *testing.T) {
	err := &Error{Kind: KindItemFetchFailure, Op: "fetch", Retryable: true, Err: errors.New("429")}
	if !IsRetryable(fmt.Errorf("wrapped: %w", err)) {
		t.Fatalf("expected retryable")
	}
	if IsRetryable(errors.New("x")) {
		t.Fatalf("plain error must not be retryable")
	}
}

func TestCountsAsFetchFailure(t *testing.T) {
	if !CountsAsFetchFailure(KindOutputWriteFailure) || !CountsAsFetchFailure(KindItemFetchFailure) {
		t.Fatalf("output write failures count as fetch failures")
	}
	if CountsAsFetchFailure(KindItemMetadataUnavailable) {
		t.Fatalf("metadata failures are counted separately")
	}
}
