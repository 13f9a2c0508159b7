// Package scrape fetches a wiki page, extracts raw plugin file links from
// it and saves each file verbatim.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"

	"yt-ingest/internal/model"
	"yt-ingest/internal/runstore"
)

const maxBodyBytes = 32 << 20

const urlChars = `[^\s"\)<]+`

var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://raw\.githubusercontent\.com/` + urlChars + `\.py`),
	regexp.MustCompile(`https://github\.com/` + urlChars + `/raw/` + urlChars + `\.py`),
	regexp.MustCompile(`https://gist\.githubusercontent\.com/` + urlChars + `\.py`),
}

// FetchPage returns the body of pageURL. Any non-2xx status is an error.
func FetchPage(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	body, err := get(ctx, client, pageURL)
	if err != nil {
		return "", model.Wrap(model.KindSourceUnavailable, "fetch page", err)
	}
	return string(body), nil
}

// ExtractLinks returns the plugin file URLs in markup without duplicates,
// in document order. Anchor hrefs and bare URLs in text are both counted at
// the point they appear.
func ExtractLinks(markup string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		for _, u := range findLinks(markup) {
			add(u)
		}
		return out
	}

	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				for _, u := range findLinks(c.Text()) {
					add(u)
				}
				return
			case "a":
				if href, ok := c.Attr("href"); ok && isPluginLink(strings.TrimSpace(href)) {
					add(strings.TrimSpace(href))
				}
			}
			walk(c)
		})
	}
	walk(doc.Selection)
	return out
}

// findLinks returns every pattern match in text ordered by position.
func findLinks(text string) []string {
	type match struct {
		at  int
		url string
	}
	var ms []match
	for _, re := range linkPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			ms = append(ms, match{at: loc[0], url: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].at < ms[j].at })
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.url)
	}
	return out
}

func isPluginLink(s string) bool {
	for _, re := range linkPatterns {
		if loc := re.FindStringIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
			return true
		}
	}
	return false
}

// FetchFile downloads fileURL into dir, named after the last path segment,
// and returns the written path.
func FetchFile(ctx context.Context, client *http.Client, fsys afero.Fs, fileURL, dir string) (string, error) {
	name, err := FileName(fileURL)
	if err != nil {
		return "", model.Wrap(model.KindItemFetchFailure, "fetch file", err)
	}
	body, err := get(ctx, client, fileURL)
	if err != nil {
		return "", model.Wrap(model.KindItemFetchFailure, "fetch file", err)
	}
	dest := filepath.Join(dir, name)
	if err := runstore.WriteBytes(fsys, dest, body); err != nil {
		return "", model.Wrap(model.KindOutputWriteFailure, "fetch file", err)
	}
	return dest, nil
}

// FileName returns the last path segment of rawURL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

type Options struct {
	PageURL   string
	OutputDir string
	Client    *http.Client
	Fs        afero.Fs
	Logger    *slog.Logger
}

type FileResult struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
	Err  string `json:"error,omitempty"`
}

type Result struct {
	PageURL    string       `json:"page_url"`
	OutputDir  string       `json:"output_dir"`
	Found      int          `json:"found"`
	Downloaded int          `json:"downloaded"`
	Failed     int          `json:"failed"`
	Files      []FileResult `json:"files"`
}

// Run fetches the page and every plugin file it links. A page failure is
// returned as an error; individual file failures are only counted.
func Run(ctx context.Context, opts Options) (Result, error) {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	res := Result{PageURL: opts.PageURL, OutputDir: opts.OutputDir}

	if err := runstore.Mkdir(fsys, opts.OutputDir); err != nil {
		return res, model.Wrap(model.KindOutputWriteFailure, "create output dir", err)
	}

	logger.Info("Fetching wiki page", "url", opts.PageURL)
	page, err := FetchPage(ctx, opts.Client, opts.PageURL)
	if err != nil {
		logger.Error("Failed to fetch wiki page", "err", err)
		return res, err
	}

	links := ExtractLinks(page)
	res.Found = len(links)
	if res.Found == 0 {
		logger.Warn("No plugin URLs found in the wiki page")
		return res, nil
	}
	logger.Info(fmt.Sprintf("Found %d plugin(s)", res.Found))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		dest, err := FetchFile(ctx, opts.Client, fsys, link, opts.OutputDir)
		if err != nil {
			res.Failed++
			res.Files = append(res.Files, FileResult{URL: link, Err: err.Error()})
			logger.Error("Failed to download", "url", link, "err", err)
			continue
		}
		res.Downloaded++
		res.Files = append(res.Files, FileResult{URL: link, Path: dest})
		logger.Info("Downloaded "+filepath.Base(dest), "url", link)
	}
	return res, nil
}
