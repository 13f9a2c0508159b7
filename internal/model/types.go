package model

import "time"

// Entry is one row of a shallow playlist/channel listing.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Metadata is the full per-item record fetched before policy checks.
// Nil pointers mean the source did not report the value.
type Metadata struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	UploadedAt      *time.Time `json:"uploaded_at,omitempty"`
	BestHeight      int        `json:"best_height,omitempty"`
}

// CandidateItem is built once per loop iteration and never mutated.
type CandidateItem struct {
	ID              string
	Title           string
	URL             string
	DurationSeconds *int
	UploadedAt      *time.Time
}

// NewCandidate merges a listing entry with its fetched metadata. The listing
// ID always wins because it is the ledger key.
func NewCandidate(e Entry, m Metadata) CandidateItem {
	title := e.Title
	if m.Title != "" {
		title = m.Title
	}
	return CandidateItem{
		ID:              e.ID,
		Title:           title,
		URL:             e.URL,
		DurationSeconds: m.DurationSeconds,
		UploadedAt:      m.UploadedAt,
	}
}

// MediaRequest describes one fetch-to-disk call.
type MediaRequest struct {
	ID             string
	URL            string
	OutputDir      string
	OutputTemplate string
	FormatSelector string
	MergeFormat    string
}
