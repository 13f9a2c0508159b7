package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"yt-ingest/internal/config"
	"yt-ingest/internal/ledger"
	"yt-ingest/internal/runstore"
	"yt-ingest/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path (default: "+config.DefaultPath+" if present)")
	outputDir := fs.String("output-dir", "", "download directory to check")
	binary := fs.String("yt-dlp", "", "yt-dlp binary (default: yt-dlp on PATH)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	osFs := afero.NewOsFs()
	res := doctorResult{}
	add := func(c doctorCheck) {
		res.Checks = append(res.Checks, c)
	}

	_ = config.LoadDotEnv("")
	cfg, err := config.Load(osFs, strings.TrimSpace(*configPath))
	if err != nil {
		add(doctorCheck{Name: "config", OK: false, Message: err.Error()})
	} else {
		add(doctorCheck{Name: "config", OK: true, Message: "loaded"})
	}
	if v := strings.TrimSpace(*outputDir); v != "" {
		cfg.Videos.OutputDir = v
	}
	if v := strings.TrimSpace(*binary); v != "" {
		cfg.Videos.Binary = v
	}

	dep := ytdlp.DependencyStatus(cfg.Videos.Binary)
	add(doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	add(doctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	dirOK, dirMessage := ensureWritableDir(osFs, cfg.Videos.OutputDir)
	add(doctorCheck{Name: "directory:output", OK: dirOK, Message: dirMessage})

	if locked, who := runstore.LockHolder(osFs, cfg.Videos.OutputDir); locked {
		add(doctorCheck{Name: "lock:output", OK: false, Message: "locked by " + who + " (remove " + cfg.Videos.OutputDir + "/.ingest.lock if stale)"})
	} else {
		add(doctorCheck{Name: "lock:output", OK: true, Message: "not locked"})
	}

	ledgerPath := cfg.Videos.ResolvedLedgerPath()
	if led, err := ledger.Load(osFs, ledgerPath); err != nil {
		add(doctorCheck{Name: "ledger", OK: false, Message: err.Error()})
	} else {
		add(doctorCheck{Name: "ledger", OK: true, Message: fmt.Sprintf("%s (%d id(s))", ledgerPath, led.Len())})
	}

	res.OK = true
	for _, c := range res.Checks {
		if !c.OK {
			res.OK = false
			break
		}
	}

	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			status := okStyle.Render("ok")
			if !c.OK {
				status = errorStyle.Render("fail")
			}
			fmt.Fprintf(stdout, "%s: %s (%s)\n", c.Name, status, c.Message)
		}
	}
	if !res.OK {
		return &ExitError{Code: ExitUsage, Err: errors.New("doctor checks failed")}
	}
	if !*jsonOut {
		fmt.Fprintln(stdout, "doctor: all checks passed")
	}
	return nil
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(fsys afero.Fs, path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(fsys, path); err != nil {
		return false, err.Error()
	}
	f, err := afero.TempFile(fsys, path, "yt-ingest-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = fsys.Remove(f.Name())
	return true, path + " is writable"
}
