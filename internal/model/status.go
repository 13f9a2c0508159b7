package model

import "fmt"

// Outcome is a state of the ingestion loop for one candidate.
type Outcome string

const (
	OutcomeScanning      Outcome = "scanning"
	OutcomeAccepting     Outcome = "accepting"
	OutcomeDownloaded    Outcome = "downloaded"
	OutcomeSkippedOld    Outcome = "skipped_old"
	OutcomeSkippedLong   Outcome = "skipped_long"
	OutcomeSkippedExists Outcome = "skipped_exists"
	OutcomeErrored       Outcome = "errored"
	OutcomeHalted        Outcome = "halted"
)

var allowedTransitions = map[Outcome]map[Outcome]bool{
	OutcomeScanning: {
		OutcomeAccepting:     true,
		OutcomeSkippedOld:    true,
		OutcomeSkippedLong:   true,
		OutcomeSkippedExists: true,
		OutcomeErrored:       true,
	},
	OutcomeAccepting: {
		OutcomeDownloaded: true,
		OutcomeErrored:    true,
	},
	OutcomeDownloaded: {
		OutcomeScanning: true,
	},
	OutcomeSkippedOld: {
		OutcomeScanning: true,
		OutcomeHalted:   true, // old streak reached the limit
	},
	OutcomeSkippedLong: {
		OutcomeScanning: true,
	},
	OutcomeSkippedExists: {
		OutcomeScanning: true,
	},
	OutcomeErrored: {
		OutcomeScanning: true,
	},
	OutcomeHalted: {},
}

func CanTransition(from, to Outcome) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether o ends the handling of a single candidate.
func IsTerminal(o Outcome) bool {
	switch o {
	case OutcomeDownloaded, OutcomeSkippedOld, OutcomeSkippedLong, OutcomeSkippedExists, OutcomeErrored:
		return true
	default:
		return false
	}
}

// Transition moves *state to next, rejecting edges the loop must never take.
func Transition(state *Outcome, next Outcome, id string) error {
	from := *state
	if !CanTransition(from, next) {
		return fmt.Errorf("invalid ingest transition: %q -> %q (id=%s)", from, next, id)
	}
	*state = next
	return nil
}
