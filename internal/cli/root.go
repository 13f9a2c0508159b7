package cli

import (
	"context"
	"fmt"
)

func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "videos":
		return runVideos(ctx, args[1:])
	case "plugins":
		return runPlugins(ctx, args[1:])
	case "ledger":
		return runLedger(ctx, args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return usageErrorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	out := stdout
	fmt.Fprintln(out, "yt-ingest: incremental playlist/channel downloader and plugin fetcher")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Quick Start:")
	fmt.Fprintln(out, "  yt-ingest videos --source <playlist-url>")
	fmt.Fprintln(out, "  yt-ingest videos --source <channel-url> --max-age 30d")
	fmt.Fprintln(out, "  yt-ingest plugins")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  videos    download new items from a playlist or channel, skipping known ones")
	fmt.Fprintln(out, "  plugins   fetch qBittorrent search plugins linked from the wiki page")
	fmt.Fprintln(out, "  ledger    list|forget|browse the downloaded-ID ledger")
	fmt.Fprintln(out, "  doctor    run dependency and filesystem preflight checks")
	fmt.Fprintln(out, "  help      show this help")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Notes:")
	fmt.Fprintln(out, "  - Settings come from flags, then --config (default yt-ingest.yaml), then YTI_* env vars and .env")
	fmt.Fprintln(out, "  - Use --json on commands for machine-readable output")
	fmt.Fprintln(out, "  - Exit codes: 0 ok, 1 usage/config, 2 source unavailable, 3 partial failures, 130 interrupted")
}
