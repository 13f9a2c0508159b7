package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"yt-ingest/internal/config"
	"yt-ingest/internal/ingest"
	"yt-ingest/internal/ledger"
	"yt-ingest/internal/matcher"
	"yt-ingest/internal/model"
	"yt-ingest/internal/policy"
	"yt-ingest/internal/runstore"
	"yt-ingest/internal/ytdlp"
)

func runVideos(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("videos", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path (default: "+config.DefaultPath+" if present)")
	source := fs.String("source", "", "playlist or channel URL")
	outputDir := fs.String("output-dir", "", "download directory (default: "+config.DefaultOutputDir+")")
	ledgerPath := fs.String("ledger", "", "ledger path (default: <output-dir>/"+config.LedgerFileName+")")
	logFile := fs.String("log-file", "", "event log path (default: <output-dir>/"+config.LogFileName+")")
	cookies := fs.String("cookies", "", "path to cookies.txt")
	binary := fs.String("yt-dlp", "", "yt-dlp binary (default: yt-dlp on PATH)")
	maxDuration := fs.Duration("max-duration", config.DefaultMaxDuration, "skip items longer than this (0 = no limit)")
	maxAge := fs.String("max-age", "", "skip items uploaded longer ago than this, e.g. 30d or 72h (0 = no limit)")
	oldStreak := fs.Int("old-streak", config.DefaultOldStreak, "stop after this many consecutive too-old items")
	format := fs.String("format", "", "yt-dlp format selector or preset best|1080p|720p|audio")
	pause := fs.Duration("pause", config.DefaultPause, "pause between downloads")
	timeout := fs.Duration("timeout", 0, "overall run timeout (0 = none)")
	itemTimeout := fs.Duration("item-timeout", 0, "timeout per metadata/download call (0 = none)")
	logLevel := fs.String("log-level", "", "debug|info|warn|error")
	rawOutput := fs.Bool("raw-output", false, "print raw yt-dlp output lines")
	quiet := fs.Bool("quiet", false, "do not echo log lines to stdout")
	jsonOut := fs.Bool("json", false, "print JSON summary")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageErrorf("videos: unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := config.LoadDotEnv(""); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	osFs := afero.NewOsFs()
	cfg, err := config.Load(osFs, strings.TrimSpace(*configPath))
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Videos.SourceURL = strings.TrimSpace(*source)
		case "output-dir":
			cfg.Videos.OutputDir = strings.TrimSpace(*outputDir)
		case "ledger":
			cfg.Videos.LedgerPath = strings.TrimSpace(*ledgerPath)
		case "log-file":
			cfg.Videos.LogFile = strings.TrimSpace(*logFile)
		case "cookies":
			cfg.Videos.CookiesPath = strings.TrimSpace(*cookies)
		case "yt-dlp":
			cfg.Videos.Binary = strings.TrimSpace(*binary)
		case "max-duration":
			cfg.Videos.MaxDuration = *maxDuration
		case "max-age":
			d, err := config.ParseAge(*maxAge)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Videos.MaxAge = config.Age(d)
		case "old-streak":
			cfg.Videos.OldStreakLimit = *oldStreak
		case "format":
			cfg.Videos.Format = strings.TrimSpace(*format)
		case "pause":
			cfg.Videos.Pause = *pause
		case "timeout":
			cfg.Videos.Timeout = *timeout
		case "item-timeout":
			cfg.Videos.ItemTimeout = *itemTimeout
		case "log-level":
			cfg.LogLevel = strings.TrimSpace(*logLevel)
		}
	})
	if flagErr != nil {
		return usageErrorf("videos: --max-age: %v", flagErr)
	}
	if err := cfg.ValidateVideos(); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	if err := ytdlp.CheckDependencies(cfg.Videos.Binary); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	v := cfg.Videos
	if err := runstore.Mkdir(osFs, v.OutputDir); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	lock, err := runstore.AcquireLock(osFs, v.OutputDir)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	defer func() {
		_ = lock.Release()
	}()

	client := ytdlp.New(v.Binary, v.CookiesPath)
	var console io.Writer
	switch {
	case *quiet || *jsonOut:
	case *rawOutput:
		console = stdout
		client.LogWriter = stdout
	case stdoutIsTTY():
		progress := newLiveProgress(stdout)
		client.Progress = progress.Handle
		console = progress
	default:
		console = stdout
	}
	logger, closer, err := openRunLogger(osFs, v.ResolvedLogFile(), cfg.LogLevel, console)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	defer closer.Close()

	led, err := ledger.Load(osFs, v.ResolvedLedgerPath())
	if err != nil && !led.Writable() {
		logger.Error("Ledger unreadable and could not be backed up", "path", led.Path(), "err", err)
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("ledger %s is unreadable and was not backed up; move or repair it before running: %w", led.Path(), err)}
	}
	if err != nil {
		logger.Warn("Ledger unreadable, starting empty", "path", v.ResolvedLedgerPath(), "err", err, "backup", led.Path()+ledger.CorruptSuffix)
	} else {
		logger.Info(fmt.Sprintf("Loaded %d downloaded video IDs", led.Len()), "path", led.Path())
	}
	snap, err := matcher.TakeSnapshot(osFs, v.OutputDir)
	if err != nil {
		logger.Warn("Could not list output directory", "dir", v.OutputDir, "err", err)
	}

	runCtx := ctx
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	loop := &ingest.Loop{
		Source:   client,
		Ledger:   led,
		Snapshot: snap,
		Options: ingest.Options{
			SourceURL:      v.SourceURL,
			OutputDir:      v.OutputDir,
			OutputTemplate: v.OutputTemplate,
			FormatSelector: ytdlp.SelectFormat(v.Format),
			MergeFormat:    v.MergeFormat,
			Policy: policy.Config{
				MaxDuration:    v.MaxDuration,
				MaxAge:         v.MaxAge.Duration(),
				OldStreakLimit: v.OldStreakLimit,
			},
			ItemTimeout:   v.ItemTimeout,
			Pause:         v.Pause,
			SaveEachFetch: true,
			Logger:        logger,
		},
	}
	sum, runErr := loop.Run(runCtx)

	if err := runstore.SaveRunMeta(osFs, v.OutputDir, runMetaFromSummary(sum, led.Path())); err != nil {
		logger.Warn("Could not save run metadata", "err", err)
	}
	logger.Info("Run finished", "downloaded", sum.Downloaded, "errors", sum.Errors, "halted", sum.Halted)

	if *jsonOut {
		if err := printJSON(sum); err != nil {
			return err
		}
	} else {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(stdout, errorStyle.Render("Interrupted by user"))
		}
		fmt.Fprintln(stdout, renderSummaryPanel(sum))
	}

	return videosExit(sum, runErr)
}

func videosExit(sum ingest.Summary, runErr error) error {
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		return &ExitError{Code: ExitInterrupted}
	case errors.Is(runErr, context.DeadlineExceeded):
		return &ExitError{Code: ExitPartial, Err: fmt.Errorf("run timeout reached after %d of %d items", sum.Processed(), sum.Total)}
	case model.KindOf(runErr) == model.KindSourceUnavailable:
		return &ExitError{Code: ExitUnavailable, Err: runErr}
	default:
		return &ExitError{Code: ExitUsage, Err: runErr}
	}
	if !sum.Clean() {
		return &ExitError{Code: ExitPartial, Err: fmt.Errorf("completed with %d error(s)", sum.Errors)}
	}
	return nil
}

func runMetaFromSummary(sum ingest.Summary, ledgerPath string) runstore.RunMeta {
	return runstore.RunMeta{
		RunID:          sum.RunID,
		StartedAt:      sum.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:     sum.FinishedAt.UTC().Format(time.RFC3339),
		SourceURL:      sum.SourceURL,
		OutputDir:      sum.OutputDir,
		LedgerPath:     ledgerPath,
		Total:          sum.Total,
		Downloaded:     sum.Downloaded,
		SkippedTooLong: sum.SkippedTooLong,
		SkippedTooOld:  sum.SkippedTooOld,
		SkippedExists:  sum.SkippedExists,
		Errors:         sum.Errors,
		Halted:         sum.Halted,
	}
}

func renderSummaryPanel(sum ingest.Summary) string {
	title := okStyle.Render("Download Summary")
	if !sum.Clean() {
		title = errorStyle.Render("Download Summary")
	}
	lines := []string{title, ""}
	lines = append(lines, strings.Split(sum.Report(), "\n")...)
	lines = append(lines, mutedStyle.Render("run "+sum.RunID))
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
