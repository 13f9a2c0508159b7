package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"yt-ingest/internal/model"
)

const DefaultBinary = "yt-dlp"

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Client is the production media collaborator: every call shells out to the
// yt-dlp binary.
type Client struct {
	Binary      string
	CookiesPath string
	// LogWriter receives every raw output line of download commands.
	LogWriter io.Writer
	// Progress is called for each raw output line of download commands.
	Progress func(stream OutputStream, line string)
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func New(binary, cookiesPath string) *Client {
	return &Client{Binary: binary, CookiesPath: cookiesPath}
}

func (c *Client) binary() string {
	if c == nil || strings.TrimSpace(c.Binary) == "" {
		return DefaultBinary
	}
	return strings.TrimSpace(c.Binary)
}

func DependencyStatus(binary string) DependencyReport {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	report := DependencyReport{}
	if path, err := exec.LookPath(binary); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies(binary string) error {
	report := DependencyStatus(binary)
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required to merge video and audio streams and was not found on PATH")
	}
	return nil
}

type flatCollection struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []*flatEntry `json:"entries"`
}

type flatEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ListFlat returns the shallow listing of a playlist or channel in source
// order. Null entries are dropped.
func (c *Client) ListFlat(ctx context.Context, sourceURL string) ([]model.Entry, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, model.Errorf(model.KindSourceUnavailable, "list source", "source URL is required")
	}

	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	args, err := c.appendCookies(args)
	if err != nil {
		return nil, model.Wrap(model.KindSourceUnavailable, "list source", err)
	}
	args = append(args, sourceURL)

	out, err := c.output(ctx, args)
	if err != nil {
		return nil, &model.Error{Kind: model.KindSourceUnavailable, Op: "list source", Retryable: isRetryableError(err.Error()), Err: err}
	}

	var coll flatCollection
	if err := json.Unmarshal(out, &coll); err != nil {
		return nil, model.Wrap(model.KindSourceUnavailable, "list source", fmt.Errorf("parse yt-dlp source JSON: %w", err))
	}

	entries := make([]model.Entry, 0, len(coll.Entries))
	for _, e := range coll.Entries {
		if e == nil || strings.TrimSpace(e.ID) == "" {
			continue
		}
		id := strings.TrimSpace(e.ID)
		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = "Unknown Title"
		}
		entries = append(entries, model.Entry{
			ID:    id,
			Title: title,
			URL:   ResolveVideoURL(id, e.URL),
		})
	}
	return entries, nil
}

type videoJSON struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	Timestamp  *int64   `json:"timestamp"`
	UploadDate string   `json:"upload_date"`
	Formats    []struct {
		Height *int `json:"height"`
	} `json:"formats"`
}

// FetchMetadata fetches the full record for one item without downloading it.
func (c *Client) FetchMetadata(ctx context.Context, itemURL string) (model.Metadata, error) {
	itemURL = strings.TrimSpace(itemURL)
	if itemURL == "" {
		return model.Metadata{}, model.Errorf(model.KindItemMetadataUnavailable, "fetch metadata", "item URL is required")
	}

	args := []string{"-J", "--no-playlist", "--skip-download", "--no-warnings"}
	args, err := c.appendCookies(args)
	if err != nil {
		return model.Metadata{}, model.Wrap(model.KindItemMetadataUnavailable, "fetch metadata", err)
	}
	args = append(args, itemURL)

	out, err := c.output(ctx, args)
	if err != nil {
		return model.Metadata{}, &model.Error{Kind: model.KindItemMetadataUnavailable, Op: "fetch metadata", Retryable: isRetryableError(err.Error()), Err: err}
	}
	return parseMetadata(out)
}

func parseMetadata(raw []byte) (model.Metadata, error) {
	var v videoJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Metadata{}, model.Wrap(model.KindItemMetadataUnavailable, "fetch metadata", fmt.Errorf("parse yt-dlp video JSON: %w", err))
	}

	md := model.Metadata{
		ID:    strings.TrimSpace(v.ID),
		Title: strings.TrimSpace(v.Title),
	}
	if v.Duration != nil && *v.Duration >= 0 {
		secs := int(math.Round(*v.Duration))
		md.DurationSeconds = &secs
	}
	switch {
	case v.Timestamp != nil && *v.Timestamp > 0:
		t := time.Unix(*v.Timestamp, 0).UTC()
		md.UploadedAt = &t
	case strings.TrimSpace(v.UploadDate) != "":
		if t, err := time.Parse("20060102", strings.TrimSpace(v.UploadDate)); err == nil {
			md.UploadedAt = &t
		}
	}
	for _, f := range v.Formats {
		if f.Height != nil && *f.Height > md.BestHeight {
			md.BestHeight = *f.Height
		}
	}
	return md, nil
}

// FetchMedia downloads one item. A failure leaves no trace the caller must
// undo; yt-dlp keeps its own .part files for resumption.
func (c *Client) FetchMedia(ctx context.Context, req model.MediaRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return model.Errorf(model.KindItemFetchFailure, "fetch media", "item URL is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return model.Errorf(model.KindItemFetchFailure, "fetch media", "output directory is required")
	}
	template := strings.TrimSpace(req.OutputTemplate)
	if template == "" {
		template = "%(title)s.%(ext)s"
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--no-warnings",
		"-f", SelectFormat(req.FormatSelector),
		"-o", filepath.Join(req.OutputDir, template),
	}
	if merge := strings.TrimSpace(req.MergeFormat); merge != "" {
		args = append(args, "--merge-output-format", merge)
	}
	args, err := c.appendCookies(args)
	if err != nil {
		return model.Wrap(model.KindItemFetchFailure, "fetch media", err)
	}
	args = append(args, req.URL)

	if err := c.stream(ctx, args); err != nil {
		kind := model.KindItemFetchFailure
		if isWriteError(err.Error()) {
			kind = model.KindOutputWriteFailure
		}
		return &model.Error{Kind: kind, Op: "fetch media", ID: req.ID, Retryable: isRetryableError(err.Error()), Err: err}
	}
	return nil
}

// SelectFormat expands quality presets; any other value is passed to yt-dlp
// verbatim.
func SelectFormat(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "best":
		return "bestvideo+bestaudio/best"
	case "1080p", "1080", "hd":
		return "bv*[height<=1080]+ba/b[height<=1080]"
	case "720p", "720", "sd", "small":
		return "bv*[height<=720]+ba/b[height<=720]"
	case "audio":
		return "bestaudio/best"
	default:
		return strings.TrimSpace(raw)
	}
}

// ResolveVideoURL turns a flat-listing url field into a watch URL.
func ResolveVideoURL(videoID, maybeURL string) string {
	u := strings.TrimSpace(maybeURL)
	if u != "" {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return u
		}
		if strings.HasPrefix(u, "watch?") || strings.HasPrefix(u, "/watch?") {
			return "https://www.youtube.com/" + strings.TrimPrefix(u, "/")
		}
		if len(u) == 11 {
			return "https://www.youtube.com/watch?v=" + u
		}
	}
	if strings.TrimSpace(videoID) != "" {
		return "https://www.youtube.com/watch?v=" + strings.TrimSpace(videoID)
	}
	return ""
}

func (c *Client) appendCookies(args []string) ([]string, error) {
	if strings.TrimSpace(c.CookiesPath) == "" {
		return args, nil
	}
	cookiesPath, err := resolveCookiesPath(c.CookiesPath)
	if err != nil {
		return nil, err
	}
	return append(args, "--cookies", cookiesPath), nil
}

func (c *Client) output(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

func (c *Client) stream(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.binary(), args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if c.LogWriter != nil {
				_, _ = io.WriteString(c.LogWriter, line+"\n")
			}
			mu.Unlock()

			if c.Progress != nil {
				c.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
		}
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("yt-dlp failed: %w\n%s\n%s", err, strings.TrimSpace(errBuf.String()), strings.TrimSpace(outBuf.String()))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func isRetryableError(s string) bool {
	text := strings.ToLower(s)
	hints := []string{
		"429",
		"too many requests",
		"rate limit",
		"timed out",
		"timeout",
		"temporarily unavailable",
		"connection reset",
		"service unavailable",
		"network is unreachable",
		"http error 5",
	}
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

func isWriteError(s string) bool {
	text := strings.ToLower(s)
	hints := []string{
		"no space left on device",
		"permission denied",
		"read-only file system",
		"unable to open for writing",
	}
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
