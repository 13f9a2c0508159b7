package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"yt-ingest/internal/config"
	"yt-ingest/internal/ledger"
	"yt-ingest/internal/runstore"
)

type ledgerListResult struct {
	Path    string            `json:"path"`
	Count   int               `json:"count"`
	IDs     []string          `json:"ids"`
	LastRun *runstore.RunMeta `json:"last_run,omitempty"`
}

type ledgerForgetResult struct {
	Path      string   `json:"path"`
	Forgotten []string `json:"forgotten"`
	Missing   []string `json:"missing,omitempty"`
	Count     int      `json:"count"`
}

func runLedger(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printLedgerUsage()
		return usageErrorf("ledger: subcommand required")
	}
	switch args[0] {
	case "list":
		return runLedgerList(args[1:])
	case "forget":
		return runLedgerForget(args[1:])
	case "browse":
		return runLedgerBrowse(ctx, args[1:])
	case "help", "-h", "--help":
		printLedgerUsage()
		return nil
	default:
		printLedgerUsage()
		return usageErrorf("ledger: unknown subcommand %q", args[0])
	}
}

func printLedgerUsage() {
	fmt.Fprintln(stdout, "usage:")
	fmt.Fprintln(stdout, "  yt-ingest ledger list   [--ledger path | --output-dir dir] [--json]")
	fmt.Fprintln(stdout, "  yt-ingest ledger forget [--ledger path | --output-dir dir] <id>...")
	fmt.Fprintln(stdout, "  yt-ingest ledger browse [--ledger path | --output-dir dir]")
}

type ledgerFlags struct {
	config    *string
	ledger    *string
	outputDir *string
}

func addLedgerFlags(fs *flag.FlagSet) ledgerFlags {
	return ledgerFlags{
		config:    fs.String("config", "", "config file path (default: "+config.DefaultPath+" if present)"),
		ledger:    fs.String("ledger", "", "ledger path (default: <output-dir>/"+config.LedgerFileName+")"),
		outputDir: fs.String("output-dir", "", "download directory holding the ledger"),
	}
}

// resolve returns the ledger path and the output directory it belongs to,
// using the same precedence as the videos command.
func (f ledgerFlags) resolve(fsys afero.Fs) (string, string, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return "", "", err
	}
	cfg, err := config.Load(fsys, strings.TrimSpace(*f.config))
	if err != nil {
		return "", "", err
	}
	if v := strings.TrimSpace(*f.outputDir); v != "" {
		cfg.Videos.OutputDir = v
	}
	if v := strings.TrimSpace(*f.ledger); v != "" {
		cfg.Videos.LedgerPath = v
	}
	return cfg.Videos.ResolvedLedgerPath(), cfg.Videos.OutputDir, nil
}

func runLedgerList(args []string) error {
	fs := flag.NewFlagSet("ledger list", flag.ContinueOnError)
	lf := addLedgerFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	osFs := afero.NewOsFs()
	path, outDir, err := lf.resolve(osFs)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	led, err := ledger.Load(osFs, path)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	res := ledgerListResult{Path: path, Count: led.Len(), IDs: led.IDs()}
	if meta, err := runstore.LoadRunMeta(osFs, outDir); err == nil {
		res.LastRun = &meta
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Fprintf(stdout, "ledger: %s (%d id(s))\n", res.Path, res.Count)
	for _, id := range res.IDs {
		fmt.Fprintln(stdout, "  "+id)
	}
	if res.LastRun != nil {
		r := res.LastRun
		fmt.Fprintf(stdout, "last run: %s at %s downloaded=%d errors=%d\n", r.RunID, r.FinishedAt, r.Downloaded, r.Errors)
	}
	return nil
}

func runLedgerForget(args []string) error {
	fs := flag.NewFlagSet("ledger forget", flag.ContinueOnError)
	lf := addLedgerFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := fs.Args()
	if len(ids) == 0 {
		return usageErrorf("ledger forget: at least one id is required")
	}

	osFs := afero.NewOsFs()
	path, _, err := lf.resolve(osFs)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	led, err := ledger.Load(osFs, path)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("refusing to rewrite unreadable ledger: %w", err)}
	}

	res := ledgerForgetResult{Path: path}
	for _, id := range ids {
		if led.Forget(id) {
			res.Forgotten = append(res.Forgotten, strings.TrimSpace(id))
		} else {
			res.Missing = append(res.Missing, strings.TrimSpace(id))
		}
	}
	if len(res.Forgotten) > 0 {
		if err := led.Save(); err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}
	}
	res.Count = led.Len()

	if *jsonOut {
		return printJSON(res)
	}
	for _, id := range res.Forgotten {
		fmt.Fprintf(stdout, "forgot %s\n", id)
	}
	for _, id := range res.Missing {
		fmt.Fprintf(stdout, "not in ledger: %s\n", id)
	}
	fmt.Fprintf(stdout, "ledger: %s (%d id(s))\n", res.Path, res.Count)
	return nil
}

func runLedgerBrowse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ledger browse", flag.ContinueOnError)
	lf := addLedgerFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return usageErrorf("ledger browse requires an interactive terminal (TTY)")
	}

	osFs := afero.NewOsFs()
	path, _, err := lf.resolve(osFs)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	led, err := ledger.Load(osFs, path)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	m := newBrowseModel(led)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return &ExitError{Code: ExitInterrupted}
		}
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return usageErrorf("ledger browse requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(browseModel); ok {
		if fm.fatalErr != nil {
			return fm.fatalErr
		}
		fmt.Fprintln(stdout, fm.statusMessage)
	}
	return nil
}
