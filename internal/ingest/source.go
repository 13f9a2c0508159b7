package ingest

import (
	"context"
	"net/url"
	"strings"

	"yt-ingest/internal/model"
)

// Source is the external media collaborator. The production implementation
// is ytdlp.Client; tests use an in-memory fake.
type Source interface {
	// ListFlat returns the shallow listing in source order, newest first for
	// channels.
	ListFlat(ctx context.Context, sourceURL string) ([]model.Entry, error)
	FetchMetadata(ctx context.Context, itemURL string) (model.Metadata, error)
	FetchMedia(ctx context.Context, req model.MediaRequest) error
}

type SourceType string

const (
	SourceChannel  SourceType = "channel"
	SourcePlaylist SourceType = "playlist"
	SourceFeed     SourceType = "feed"
	SourceUnknown  SourceType = "unknown"
)

// DetectSourceType guesses the listing kind from the URL shape.
func DetectSourceType(sourceURL string) SourceType {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || u.Host == "" {
		return SourceUnknown
	}
	if u.Query().Get("list") != "" {
		return SourcePlaylist
	}
	path := strings.ToLower(strings.TrimSpace(u.Path))
	switch {
	case strings.HasPrefix(path, "/channel/"),
		strings.HasPrefix(path, "/@"),
		strings.HasPrefix(path, "/user/"),
		strings.HasPrefix(path, "/c/"):
		return SourceChannel
	default:
		return SourceFeed
	}
}
