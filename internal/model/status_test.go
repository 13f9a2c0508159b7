package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from Outcome
		to   Outcome
	}{
		{OutcomeScanning, OutcomeAccepting},
		{OutcomeScanning, OutcomeSkippedExists},
		{OutcomeScanning, OutcomeErrored},
		{OutcomeAccepting, OutcomeDownloaded},
		{OutcomeAccepting, OutcomeErrored},
		{OutcomeSkippedOld, OutcomeHalted},
		{OutcomeSkippedOld, OutcomeScanning},
		{OutcomeDownloaded, OutcomeScanning},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from Outcome
		to   Outcome
	}{
		{OutcomeScanning, OutcomeDownloaded},
		{OutcomeSkippedLong, OutcomeHalted},
		{OutcomeSkippedExists, OutcomeHalted},
		{OutcomeHalted, OutcomeScanning},
		{"not_a_state", OutcomeScanning},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransition_BlocksIllegalTransition(t *testing.T) {
	state := OutcomeScanning
	if err := Transition(&state, OutcomeDownloaded, "vid-1"); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if state != OutcomeScanning {
		t.Fatalf("state changed on rejected transition: %q", state)
	}
	if err := Transition(&state, OutcomeAccepting, "vid-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != OutcomeAccepting {
		t.Fatalf("expected accepting, got %q", state)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(OutcomeScanning) || IsTerminal(OutcomeAccepting) || IsTerminal(OutcomeHalted) {
		t.Fatalf("scanning/accepting/halted are not per-candidate terminal outcomes")
	}
	if !IsTerminal(OutcomeSkippedExists) || !IsTerminal(OutcomeDownloaded) {
		t.Fatalf("expected skipped_exists and downloaded to be terminal")
	}
}
