package ingest

import (
	"fmt"
	"strings"
	"time"

	"yt-ingest/internal/model"
)

// Summary holds the per-run counters. Every processed candidate increments
// exactly one of Downloaded, SkippedTooLong, SkippedTooOld, SkippedExists
// and Errors.
type Summary struct {
	RunID          string    `json:"run_id"`
	SourceURL      string    `json:"source_url"`
	OutputDir      string    `json:"output_dir"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Total          int       `json:"total"`
	Downloaded     int       `json:"downloaded"`
	SkippedTooLong int       `json:"skipped_too_long"`
	SkippedTooOld  int       `json:"skipped_too_old"`
	SkippedExists  int       `json:"skipped_exists"`
	Errors         int       `json:"errors"`
	Halted         bool      `json:"halted"`
	Interrupted    bool      `json:"interrupted,omitempty"`
}

// Record counts one terminal outcome. Non-terminal outcomes are ignored.
func (s *Summary) Record(o model.Outcome) {
	if !model.IsTerminal(o) {
		return
	}
	switch o {
	case model.OutcomeDownloaded:
		s.Downloaded++
	case model.OutcomeSkippedLong:
		s.SkippedTooLong++
	case model.OutcomeSkippedOld:
		s.SkippedTooOld++
	case model.OutcomeSkippedExists:
		s.SkippedExists++
	case model.OutcomeErrored:
		s.Errors++
	}
}

// Processed is the number of candidates that reached a terminal outcome.
func (s Summary) Processed() int {
	return s.Downloaded + s.SkippedTooLong + s.SkippedTooOld + s.SkippedExists + s.Errors
}

// Clean reports whether the run finished without item errors.
func (s Summary) Clean() bool {
	return s.Errors == 0
}

func (s Summary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total videos found: %d\n", s.Total)
	fmt.Fprintf(&b, "Downloaded: %d\n", s.Downloaded)
	fmt.Fprintf(&b, "Skipped (too long): %d\n", s.SkippedTooLong)
	fmt.Fprintf(&b, "Skipped (too old): %d\n", s.SkippedTooOld)
	fmt.Fprintf(&b, "Skipped (already exists): %d\n", s.SkippedExists)
	fmt.Fprintf(&b, "Errors: %d\n", s.Errors)
	if s.Halted {
		b.WriteString("Stopped early: consecutive old videos\n")
	}
	if s.Interrupted {
		fmt.Fprintf(&b, "Interrupted after %d of %d\n", s.Processed(), s.Total)
	}
	if s.OutputDir != "" {
		fmt.Fprintf(&b, "Output: %s", s.OutputDir)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDuration renders seconds as "1h 2m 3s" or "2m 3s". Nil is "Unknown".
func FormatDuration(seconds *int) string {
	if seconds == nil {
		return "Unknown"
	}
	total := *seconds
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	return fmt.Sprintf("%dm %ds", m, sec)
}
