// Package ingest runs the incremental filtered ingestion loop: list a
// source, skip what is already known or on disk, filter by age and
// duration, fetch the rest, and record each success in the ledger.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"yt-ingest/internal/ledger"
	"yt-ingest/internal/matcher"
	"yt-ingest/internal/model"
	"yt-ingest/internal/policy"
)

type Options struct {
	SourceURL      string
	OutputDir      string
	OutputTemplate string
	FormatSelector string
	MergeFormat    string
	Policy         policy.Config
	// ItemTimeout bounds each metadata and media call. Zero means no bound.
	ItemTimeout time.Duration
	// Pause is slept between accepted fetches.
	Pause time.Duration
	// SaveEachFetch persists the ledger after every successful fetch.
	SaveEachFetch bool
	Now           func() time.Time
	Logger        *slog.Logger
}

type Loop struct {
	Source   Source
	Ledger   *ledger.Ledger
	Snapshot matcher.Snapshot
	Options  Options
}

// Run consumes the listing once. Per-item failures are counted, never
// returned. The returned error is non-nil only when the listing failed, the
// final ledger save failed, or ctx was cancelled; the summary is valid in
// all cases.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	opts := l.Options
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	sum := Summary{
		RunID:     uuid.NewString(),
		SourceURL: opts.SourceURL,
		OutputDir: opts.OutputDir,
		StartedAt: now(),
	}
	logger = logger.With("run", sum.RunID)

	if l.Source == nil || l.Ledger == nil {
		sum.FinishedAt = now()
		return sum, fmt.Errorf("ingest loop requires a source and a ledger")
	}

	if opts.Policy.MaxAge > 0 {
		if st := DetectSourceType(opts.SourceURL); st != SourceChannel {
			logger.Warn("age filter assumes a newest-first listing", "source_type", string(st))
		}
	}

	logger.Info("Fetching video list", "source", opts.SourceURL)
	entries, err := l.Source.ListFlat(ctx, opts.SourceURL)
	if err != nil {
		sum.FinishedAt = now()
		if model.KindOf(err) == "" {
			err = model.Wrap(model.KindSourceUnavailable, "list source", err)
		}
		logger.Error("Could not fetch video list", "err", err)
		return sum, err
	}
	sum.Total = len(entries)
	logger.Info(fmt.Sprintf("Found %d videos", sum.Total))

	streak := 0
	fetched := 0
	limit := opts.Policy.StreakLimit()
	var runErr error

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		prefix := fmt.Sprintf("[%d/%d]", i+1, sum.Total)
		state := model.OutcomeScanning

		outcome, err := l.step(ctx, logger, prefix, entry, &state, &streak, &fetched, now)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				runErr = ctxErr
				break
			}
			sum.FinishedAt = now()
			return sum, err
		}
		sum.Record(outcome)

		// Reaching the limit on the last entry is natural exhaustion, not a halt.
		if outcome == model.OutcomeSkippedOld && streak >= limit && i < len(entries)-1 {
			if err := model.Transition(&state, model.OutcomeHalted, entry.ID); err != nil {
				sum.FinishedAt = now()
				return sum, err
			}
			sum.Halted = true
			logger.Info(fmt.Sprintf("Found %d consecutive old videos, stopping", streak))
			break
		}
	}

	if err := l.Ledger.Save(); err != nil {
		logger.Error("Could not save ledger", "path", l.Ledger.Path(), "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	sum.FinishedAt = now()
	sum.Interrupted = ctx.Err() != nil
	return sum, runErr
}

// step handles one candidate and returns its terminal outcome. A non-nil
// error means the loop must stop: either ctx was cancelled mid-item or an
// invalid transition was attempted.
func (l *Loop) step(ctx context.Context, logger *slog.Logger, prefix string, entry model.Entry, state *model.Outcome, streak, fetched *int, now func() time.Time) (model.Outcome, error) {
	opts := l.Options
	log := logger.With("id", entry.ID)

	if l.Ledger.Contains(entry.ID) {
		log.Info(prefix+" Already downloaded: "+entry.Title, "reason", "ledger")
		return finish(state, model.OutcomeSkippedExists, entry.ID)
	}
	if name, ok := l.Snapshot.FindExisting(entry.Title); ok {
		log.Info(prefix+" Already exists: "+entry.Title, "reason", "file", "file", name)
		return finish(state, model.OutcomeSkippedExists, entry.ID)
	}

	log.Info(prefix + " Checking: " + entry.Title)
	md, err := l.fetchMetadata(ctx, entry.URL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error("Could not fetch video info", "err", err, "retryable", model.IsRetryable(err))
		return finish(state, model.OutcomeErrored, entry.ID)
	}
	item := model.NewCandidate(entry, md)
	attrs := []any{"duration", FormatDuration(item.DurationSeconds)}
	if md.BestHeight > 0 {
		attrs = append(attrs, "quality", fmt.Sprintf("%dp", md.BestHeight))
	}
	log.Info("Video info", attrs...)

	if policy.IsTooOld(item, opts.Policy.MaxAge, now()) {
		*streak++
		log.Info("Too old, skipping", "uploaded", item.UploadedAt.Format(time.DateOnly), "old_streak", *streak)
		return finish(state, model.OutcomeSkippedOld, entry.ID)
	}
	*streak = 0

	if policy.IsTooLong(item, opts.Policy.MaxDuration) {
		log.Info("Too long, skipping", "max", opts.Policy.MaxDuration.String())
		return finish(state, model.OutcomeSkippedLong, entry.ID)
	}

	if err := model.Transition(state, model.OutcomeAccepting, entry.ID); err != nil {
		return "", err
	}
	if *fetched > 0 && opts.Pause > 0 {
		if err := sleepCtx(ctx, opts.Pause); err != nil {
			return "", err
		}
	}
	*fetched++

	log.Info("Downloading: " + item.Title)
	err = l.fetchMedia(ctx, model.MediaRequest{
		ID:             item.ID,
		URL:            item.URL,
		OutputDir:      opts.OutputDir,
		OutputTemplate: opts.OutputTemplate,
		FormatSelector: opts.FormatSelector,
		MergeFormat:    opts.MergeFormat,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		kind := model.KindOf(err)
		if model.CountsAsFetchFailure(kind) {
			kind = model.KindItemFetchFailure
		}
		log.Error("Download failed", "err", err, "kind", string(kind), "cause", string(model.KindOf(err)), "retryable", model.IsRetryable(err))
		return finish(state, model.OutcomeErrored, entry.ID)
	}

	l.Ledger.Add(item.ID)
	if opts.SaveEachFetch {
		if err := l.Ledger.Save(); err != nil {
			log.Warn("Could not save ledger", "err", err)
		}
	}
	log.Info("Successfully downloaded: " + item.Title)
	return finish(state, model.OutcomeDownloaded, entry.ID)
}

func finish(state *model.Outcome, next model.Outcome, id string) (model.Outcome, error) {
	if err := model.Transition(state, next, id); err != nil {
		return "", err
	}
	return next, nil
}

func (l *Loop) fetchMetadata(ctx context.Context, itemURL string) (model.Metadata, error) {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	return l.Source.FetchMetadata(callCtx, itemURL)
}

func (l *Loop) fetchMedia(ctx context.Context, req model.MediaRequest) error {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	return l.Source.FetchMedia(callCtx, req)
}

func (l *Loop) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.Options.ItemTimeout > 0 {
		return context.WithTimeout(ctx, l.Options.ItemTimeout)
	}
	return context.WithCancel(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
