package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"yt-ingest/internal/config"
	"yt-ingest/internal/httpx"
	"yt-ingest/internal/model"
	"yt-ingest/internal/scrape"
)

func runPlugins(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plugins", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path (default: "+config.DefaultPath+" if present)")
	wikiURL := fs.String("url", "", "wiki page URL (default: qBittorrent unofficial plugins page)")
	outputDir := fs.String("output-dir", "", "plugin directory (default: "+config.DefaultPluginDir+")")
	timeout := fs.Duration("timeout", config.DefaultHTTPTimeout, "HTTP timeout per request")
	logLevel := fs.String("log-level", "", "debug|info|warn|error")
	quiet := fs.Bool("quiet", false, "do not echo log lines to stdout")
	jsonOut := fs.Bool("json", false, "print JSON result")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageErrorf("plugins: unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := config.LoadDotEnv(""); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	osFs := afero.NewOsFs()
	cfg, err := config.Load(osFs, strings.TrimSpace(*configPath))
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Plugins.WikiURL = strings.TrimSpace(*wikiURL)
		case "output-dir":
			cfg.Plugins.OutputDir = strings.TrimSpace(*outputDir)
		case "timeout":
			cfg.Plugins.Timeout = *timeout
		case "log-level":
			cfg.LogLevel = strings.TrimSpace(*logLevel)
		}
	})
	if err := cfg.ValidatePlugins(); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	p := cfg.Plugins

	client, err := httpx.NewClient(httpx.Options{
		Timeout:   p.Timeout,
		UserAgent: p.UserAgent,
		ProxyURL:  p.Proxy,
	})
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	var console io.Writer
	if !*quiet && !*jsonOut {
		console = stdout
	}
	logger, closer, err := openRunLogger(osFs, "", cfg.LogLevel, console)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	defer closer.Close()

	absDir, err := filepath.Abs(p.OutputDir)
	if err != nil {
		absDir = p.OutputDir
	}
	if !*jsonOut {
		fmt.Fprintln(stdout, titleStyle.Render("qBittorrent Unofficial Search Plugin Downloader"))
		fmt.Fprintln(stdout, mutedStyle.Render("Output directory: "+absDir))
	}

	res, runErr := scrape.Run(ctx, scrape.Options{
		PageURL:   p.WikiURL,
		OutputDir: p.OutputDir,
		Client:    client,
		Fs:        osFs,
		Logger:    logger,
	})

	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(stdout, errorStyle.Render("Interrupted by user"))
		}
		if res.Found > 0 {
			fmt.Fprintln(stdout, renderPluginsPanel(res, absDir))
		}
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		return &ExitError{Code: ExitInterrupted}
	case model.KindOf(runErr) == model.KindSourceUnavailable:
		return &ExitError{Code: ExitUnavailable, Err: runErr}
	default:
		return &ExitError{Code: ExitUsage, Err: runErr}
	}
	if res.Failed > 0 {
		return &ExitError{Code: ExitPartial, Err: fmt.Errorf("%d plugin(s) failed to download", res.Failed)}
	}
	return nil
}

func renderPluginsPanel(res scrape.Result, absDir string) string {
	title := okStyle.Render(fmt.Sprintf("Successfully downloaded %d/%d plugins", res.Downloaded, res.Found))
	if res.Failed > 0 {
		title = errorStyle.Render(fmt.Sprintf("Successfully downloaded %d/%d plugins", res.Downloaded, res.Found))
	}
	lines := []string{
		title,
		kv("Plugins saved to", absDir),
		"",
		"To install in qBittorrent:",
		"  1. Open qBittorrent",
		"  2. Go to Search tab",
		"  3. Click 'Search plugins...' button",
		"  4. Click 'Install a new one' -> 'Local file'",
		"  5. Select plugins from: " + absDir,
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}
