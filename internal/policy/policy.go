// Package policy holds the pure acceptance predicates applied to each
// candidate. Age is checked before duration because only age rejections feed
// the old streak.
package policy

import (
	"time"

	"yt-ingest/internal/model"
)

const DefaultOldStreakLimit = 3

type Config struct {
	// MaxDuration rejects items longer than this. Zero disables the check.
	MaxDuration time.Duration
	// MaxAge rejects items uploaded longer ago than this. Zero disables the check.
	MaxAge time.Duration
	// OldStreakLimit stops the loop after this many consecutive age rejections.
	OldStreakLimit int
}

// StreakLimit returns the effective old-streak limit.
func (c Config) StreakLimit() int {
	if c.OldStreakLimit <= 0 {
		return DefaultOldStreakLimit
	}
	return c.OldStreakLimit
}

// IsTooOld is true iff the upload time is known and older than maxAge.
// An unknown upload time is never too old.
func IsTooOld(item model.CandidateItem, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || item.UploadedAt == nil {
		return false
	}
	return now.Sub(*item.UploadedAt) > maxAge
}

// IsTooLong is true iff the duration is known and exceeds maxDuration.
// An unknown duration is acceptable.
func IsTooLong(item model.CandidateItem, maxDuration time.Duration) bool {
	if maxDuration <= 0 || item.DurationSeconds == nil {
		return false
	}
	return time.Duration(*item.DurationSeconds)*time.Second > maxDuration
}
