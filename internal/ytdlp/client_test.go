package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yt-ingest/internal/model"
)

func writeFakeYTDLP(t *testing.T, script string) (binary string, argsLog string) {
	t.Helper()
	tmp := t.TempDir()
	argsLog = filepath.Join(tmp, "args.log")
	body := "#!/usr/bin/env bash\nset -euo pipefail\nprintf '%s\\n' \"$@\" >> " + argsLog + "\n" + script
	binary = filepath.Join(tmp, "yt-dlp")
	if err := os.WriteFile(binary, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	return binary, argsLog
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestListFlatParsesEntriesInOrder(t *testing.T) {
	bin, argsLog := writeFakeYTDLP(t, `cat <<'JSON'
{"id":"PL1","title":"List","entries":[
 {"id":"aaaaaaaaaaa","title":"First","url":"https://www.youtube.com/watch?v=aaaaaaaaaaa"},
 null,
 {"id":"bbbbbbbbbbb","title":"","url":"bbbbbbbbbbb"},
 {"id":"ccccccccccc","title":"Third","url":""}
]}
JSON
`)
	c := New(bin, "")
	entries, err := c.ListFlat(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatalf("list flat: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].ID != "aaaaaaaaaaa" || entries[1].ID != "bbbbbbbbbbb" || entries[2].ID != "ccccccccccc" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[1].Title != "Unknown Title" {
		t.Fatalf("expected placeholder title, got %q", entries[1].Title)
	}
	if entries[1].URL != "https://www.youtube.com/watch?v=bbbbbbbbbbb" {
		t.Fatalf("unexpected resolved url: %q", entries[1].URL)
	}
	if entries[2].URL != "https://www.youtube.com/watch?v=ccccccccccc" {
		t.Fatalf("unexpected fallback url: %q", entries[2].URL)
	}

	args := readArgs(t, argsLog)
	if !containsArg(args, "--flat-playlist") || !containsArg(args, "-J") {
		t.Fatalf("expected flat listing args, got %v", args)
	}
}

func TestListFlatFailureIsSourceUnavailable(t *testing.T) {
	bin, _ := writeFakeYTDLP(t, `echo "ERROR: This playlist does not exist" >&2
exit 1
`)
	_, err := New(bin, "").ListFlat(context.Background(), "https://www.youtube.com/playlist?list=missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if model.KindOf(err) != model.KindSourceUnavailable {
		t.Fatalf("expected source_unavailable, got %q (%v)", model.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFetchMetadataParsesDurationUploadAndHeight(t *testing.T) {
	bin, argsLog := writeFakeYTDLP(t, `cat <<'JSON'
{"id":"aaaaaaaaaaa","title":"Talk","duration":125.4,"timestamp":1700000000,"upload_date":"20231114",
 "formats":[{"height":360},{"height":null},{"height":1080},{}]}
JSON
`)
	md, err := New(bin, "").FetchMetadata(context.Background(), "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("fetch metadata: %v", err)
	}
	if md.DurationSeconds == nil || *md.DurationSeconds != 125 {
		t.Fatalf("unexpected duration: %v", md.DurationSeconds)
	}
	if md.UploadedAt == nil || !md.UploadedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected upload time: %v", md.UploadedAt)
	}
	if md.BestHeight != 1080 {
		t.Fatalf("expected best height 1080, got %d", md.BestHeight)
	}

	args := readArgs(t, argsLog)
	if !containsArg(args, "--skip-download") || !containsArg(args, "--no-playlist") {
		t.Fatalf("expected metadata-only args, got %v", args)
	}
}

func TestParseMetadataFallsBackToUploadDate(t *testing.T) {
	md, err := parseMetadata([]byte(`{"id":"x","title":"t","upload_date":"20240102"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if md.UploadedAt == nil || !md.UploadedAt.Equal(want) {
		t.Fatalf("unexpected upload time: %v", md.UploadedAt)
	}
	if md.DurationSeconds != nil {
		t.Fatalf("expected unknown duration, got %d", *md.DurationSeconds)
	}
}

func TestParseMetadataRejectsGarbage(t *testing.T) {
	_, err := parseMetadata([]byte("not json"))
	if model.KindOf(err) != model.KindItemMetadataUnavailable {
		t.Fatalf("expected item_metadata_unavailable, got %v", err)
	}
}

func TestFetchMediaPassesFormatTemplateAndCookies(t *testing.T) {
	bin, argsLog := writeFakeYTDLP(t, `echo "[download] 100% of 1.00MiB"
exit 0
`)
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var lines []string
	c := New(bin, cookies)
	c.Progress = func(stream OutputStream, line string) {
		lines = append(lines, line)
	}
	outDir := t.TempDir()
	err := c.FetchMedia(context.Background(), model.MediaRequest{
		ID:             "aaaaaaaaaaa",
		URL:            "https://www.youtube.com/watch?v=aaaaaaaaaaa",
		OutputDir:      outDir,
		OutputTemplate: "%(title)s.%(ext)s",
		FormatSelector: "bestvideo+bestaudio/best",
		MergeFormat:    "mp4",
	})
	if err != nil {
		t.Fatalf("fetch media: %v", err)
	}

	args := readArgs(t, argsLog)
	for _, want := range []string{"bestvideo+bestaudio/best", "mp4", filepath.Join(outDir, "%(title)s.%(ext)s"), "--cookies"} {
		if !containsArg(args, want) {
			t.Fatalf("expected arg %q in %v", want, args)
		}
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "100%") {
		t.Fatalf("expected progress line, got %v", lines)
	}
}

func TestFetchMediaClassifiesFailures(t *testing.T) {
	bin, _ := writeFakeYTDLP(t, `echo "HTTP Error 429: Too Many Requests" >&2
exit 1
`)
	err := New(bin, "").FetchMedia(context.Background(), model.MediaRequest{
		ID: "x", URL: "https://www.youtube.com/watch?v=x", OutputDir: t.TempDir(),
	})
	if model.KindOf(err) != model.KindItemFetchFailure {
		t.Fatalf("expected item_fetch_failure, got %v", err)
	}
	if !model.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}

	bin, _ = writeFakeYTDLP(t, `echo "ERROR: unable to open for writing: No space left on device" >&2
exit 1
`)
	err = New(bin, "").FetchMedia(context.Background(), model.MediaRequest{
		ID: "x", URL: "https://www.youtube.com/watch?v=x", OutputDir: t.TempDir(),
	})
	if model.KindOf(err) != model.KindOutputWriteFailure {
		t.Fatalf("expected output_write_failure, got %v", err)
	}
}

func TestFetchMediaHonorsCancellation(t *testing.T) {
	bin, _ := writeFakeYTDLP(t, `exec sleep 5
`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := New(bin, "").FetchMedia(ctx, model.MediaRequest{
		ID: "x", URL: "https://www.youtube.com/watch?v=x", OutputDir: t.TempDir(),
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMissingCookiesFileFails(t *testing.T) {
	bin, _ := writeFakeYTDLP(t, "exit 0\n")
	_, err := New(bin, filepath.Join(t.TempDir(), "nope.txt")).ListFlat(context.Background(), "https://example.com/list")
	if err == nil {
		t.Fatal("expected cookies error")
	}
}

func TestSelectFormat(t *testing.T) {
	cases := map[string]string{
		"":      "bestvideo+bestaudio/best",
		"best":  "bestvideo+bestaudio/best",
		"720p":  "bv*[height<=720]+ba/b[height<=720]",
		"audio": "bestaudio/best",
		"18":    "18",
	}
	for in, want := range cases {
		if got := SelectFormat(in); got != want {
			t.Fatalf("SelectFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveVideoURL(t *testing.T) {
	if got := ResolveVideoURL("abc", "/watch?v=abc"); got != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected url: %q", got)
	}
	if got := ResolveVideoURL("", ""); got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
}
