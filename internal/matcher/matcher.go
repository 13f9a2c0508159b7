// Package matcher detects items that already exist in the output directory
// under a similar filename, catching downloads the ledger never saw.
package matcher

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"

	"yt-ingest/internal/runstore"
)

// MinNeedleRunes is the length a string must exceed before it is used as a
// substring needle.
const MinNeedleRunes = 10

var mediaExt = map[string]struct{}{
	"mp4": {}, "mkv": {}, "webm": {}, "m4v": {},
	"mov": {}, "avi": {}, "flv": {}, "ts": {}, "m4a": {}, "mp3": {},
}

type file struct {
	name string
	stem string // normalized, lower-cased
}

// Snapshot is a read-only listing of media files taken once per run.
type Snapshot struct {
	dir   string
	files []file
}

// TakeSnapshot lists media files directly inside dir. A missing directory
// is an empty snapshot.
func TakeSnapshot(fsys afero.Fs, dir string) (Snapshot, error) {
	snap := Snapshot{dir: dir}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if runstore.IsNotExist(err) {
			return snap, nil
		}
		return Snapshot{}, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return NewSnapshot(dir, names), nil
}

// NewSnapshot builds a snapshot from filenames. Names are sorted so the first
// match is stable across runs.
func NewSnapshot(dir string, names []string) Snapshot {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	snap := Snapshot{dir: dir}
	for _, name := range sorted {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".ytdl") || strings.HasSuffix(lower, ".tmp") {
			continue
		}
		ext := filepath.Ext(name)
		if _, ok := mediaExt[strings.TrimPrefix(strings.ToLower(ext), ".")]; !ok {
			continue
		}
		snap.files = append(snap.files, file{
			name: name,
			stem: strings.ToLower(Normalize(strings.TrimSuffix(name, ext))),
		})
	}
	return snap
}

func (s Snapshot) Dir() string { return s.dir }

func (s Snapshot) Len() int { return len(s.files) }

// FindExisting returns the first filename whose normalized stem contains the
// normalized title, or is contained by it. The contained string must be
// longer than MinNeedleRunes.
func (s Snapshot) FindExisting(title string) (string, bool) {
	clean := strings.ToLower(Normalize(title))
	titleLong := utf8.RuneCountInString(clean) > MinNeedleRunes

	for _, f := range s.files {
		if titleLong && strings.Contains(f.stem, clean) {
			return f.name, true
		}
		if utf8.RuneCountInString(f.stem) > MinNeedleRunes && strings.Contains(clean, f.stem) {
			return f.name, true
		}
	}
	return "", false
}

// Normalize keeps letters, digits, spaces, hyphens and underscores, then
// trims surrounding spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), " ")
}
