package ingest

import (
	"strings"
	"testing"

	"yt-ingest/internal/model"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   *int
		want string
	}{
		{nil, "Unknown"},
		{intPtr(0), "0m 0s"},
		{intPtr(125), "2m 5s"},
		{intPtr(3723), "1h 2m 3s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSummaryRecordCountsOnePerOutcome(t *testing.T) {
	var s Summary
	for _, o := range []model.Outcome{
		model.OutcomeDownloaded,
		model.OutcomeSkippedLong,
		model.OutcomeSkippedOld,
		model.OutcomeSkippedExists,
		model.OutcomeErrored,
		model.OutcomeAccepting,
		model.OutcomeHalted,
		model.OutcomeScanning,
	} {
		s.Record(o)
	}
	if s.Processed() != 5 {
		t.Fatalf("expected 5 processed, got %d", s.Processed())
	}
	if s.Clean() {
		t.Fatal("expected unclean summary")
	}
}

func TestSummaryReport(t *testing.T) {
	s := Summary{Total: 4, Downloaded: 1, SkippedTooOld: 3, Halted: true, OutputDir: "downloads"}
	report := s.Report()
	for _, want := range []string{"Total videos found: 4", "Downloaded: 1", "Skipped (too old): 3", "Stopped early", "Output: downloads"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}

func TestDetectSourceType(t *testing.T) {
	cases := map[string]SourceType{
		"https://www.youtube.com/@example/videos":     SourceChannel,
		"https://www.youtube.com/channel/UC123":       SourceChannel,
		"https://www.youtube.com/playlist?list=PL123": SourcePlaylist,
		"https://www.youtube.com/feed/subscriptions":  SourceFeed,
		"not a url": SourceUnknown,
	}
	for in, want := range cases {
		if got := DetectSourceType(in); got != want {
			t.Fatalf("DetectSourceType(%q) = %q, want %q", in, got, want)
		}
	}
}
