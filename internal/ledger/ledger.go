// Package ledger keeps the persisted set of item identifiers that have
// already been fetched. An identifier in the ledger is never fetched again.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"yt-ingest/internal/model"
	"yt-ingest/internal/runstore"
)

// CorruptSuffix is appended to the ledger path when an unreadable ledger is
// set aside on load.
const CorruptSuffix = ".corrupt"

type Ledger struct {
	fs   afero.Fs
	path string
	ids  map[string]struct{}
	// keepOriginal is set when an unreadable file could not be copied
	// aside; Save must not overwrite it.
	keepOriginal bool
}

// New returns an empty ledger bound to path without touching the filesystem.
func New(fsys afero.Fs, path string) *Ledger {
	return &Ledger{fs: fsys, path: path, ids: make(map[string]struct{})}
}

// Load reads the ledger at path. It always returns a usable ledger: a missing
// file yields an empty ledger and a nil error, while an unreadable or corrupt
// file yields an empty ledger and a KindLedgerUnreadable error that callers
// should surface as a warning. A corrupt file is copied aside first so the
// next Save does not destroy it. When that copy fails, or the file could not
// be read at all, the returned ledger refuses to Save.
func Load(fsys afero.Fs, path string) (*Ledger, error) {
	l := New(fsys, path)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if runstore.IsNotExist(err) {
			return l, nil
		}
		l.keepOriginal = true
		return l, model.Wrap(model.KindLedgerUnreadable, "load ledger", fmt.Errorf("read %s: %w", path, err))
	}
	if strings.TrimSpace(string(data)) == "" {
		return l, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		parseErr := fmt.Errorf("parse %s: %w", path, err)
		if cpErr := runstore.CopyFile(fsys, path, path+CorruptSuffix); cpErr != nil {
			parseErr = fmt.Errorf("%w (backup failed: %v)", parseErr, cpErr)
			l.keepOriginal = true
		}
		return l, model.Wrap(model.KindLedgerUnreadable, "load ledger", parseErr)
	}
	for _, id := range ids {
		l.Add(id)
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[strings.TrimSpace(id)]
	return ok
}

// Add records id. Blank identifiers are ignored.
func (l *Ledger) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	l.ids[id] = struct{}{}
}

// Forget removes id. Only explicit user commands call this; the ingestion
// loop never removes identifiers.
func (l *Ledger) Forget(id string) bool {
	id = strings.TrimSpace(id)
	if _, ok := l.ids[id]; !ok {
		return false
	}
	delete(l.ids, id)
	return true
}

func (l *Ledger) Len() int { return len(l.ids) }

// IDs returns the identifiers in sorted order.
func (l *Ledger) IDs() []string {
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Writable reports whether Save may overwrite the file at Path.
func (l *Ledger) Writable() bool { return !l.keepOriginal }

// Save atomically overwrites the ledger file with the current set.
func (l *Ledger) Save() error {
	if strings.TrimSpace(l.path) == "" {
		return fmt.Errorf("ledger path is required")
	}
	if l.keepOriginal {
		return model.Errorf(model.KindLedgerUnreadable, "save ledger", "refusing to overwrite %s: the unreadable original was not backed up", l.path)
	}
	if err := runstore.WriteJSON(l.fs, l.path, l.IDs()); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
