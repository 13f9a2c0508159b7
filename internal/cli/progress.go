package cli

import (
	"io"
	"regexp"
	"strings"
	"sync"

	"yt-ingest/internal/ytdlp"
)

var (
	rePct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`)
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reOf    = regexp.MustCompile(`\bof\s+~?\s*([^\s]+)`)
)

const clearLine = "\r\033[2K"

// liveProgress draws a single updating status line for the current
// download and doubles as the console writer for log lines, clearing the
// status line before each one.
type liveProgress struct {
	out io.Writer

	mu    sync.Mutex
	drawn bool
	phase string
	pct   string
	speed string
	eta   string
	size  string
}

func newLiveProgress(out io.Writer) *liveProgress {
	return &liveProgress{out: out}
}

func (p *liveProgress) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		_, _ = io.WriteString(p.out, clearLine)
		p.drawn = false
		p.phase, p.pct, p.speed, p.eta, p.size = "", "", "", "", ""
	}
	return p.out.Write(b)
}

func (p *liveProgress) Handle(stream ytdlp.OutputStream, line string) {
	l := strings.TrimSpace(line)
	if l == "" || stream != ytdlp.StreamStdout {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case strings.HasPrefix(l, "[download]"):
		p.phase = "downloading"
		if m := rePct.FindStringSubmatch(l); len(m) > 1 {
			p.pct = m[1] + "%"
		}
		if m := reSpeed.FindStringSubmatch(l); len(m) > 1 {
			p.speed = m[1]
		}
		if m := reETA.FindStringSubmatch(l); len(m) > 1 {
			p.eta = m[1]
		}
		if m := reOf.FindStringSubmatch(l); len(m) > 1 {
			p.size = m[1]
		}
	case strings.HasPrefix(l, "[Merger]"):
		p.phase = "merging"
	case strings.HasPrefix(l, "[youtube]"), strings.HasPrefix(l, "[info]"):
		p.phase = "preparing"
	default:
		return
	}
	_, _ = io.WriteString(p.out, clearLine+p.render())
	p.drawn = true
}

func (p *liveProgress) render() string {
	parts := []string{"  " + p.phase}
	if p.pct != "" {
		parts = append(parts, p.pct)
	}
	if p.size != "" {
		parts = append(parts, "of "+p.size)
	}
	if p.speed != "" {
		parts = append(parts, p.speed)
	}
	if p.eta != "" {
		parts = append(parts, "ETA "+p.eta)
	}
	return strings.Join(parts, "  ")
}
