package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// RunMeta is the snapshot of the most recent run written next to the ledger.
type RunMeta struct {
	RunID          string `json:"run_id"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	SourceURL      string `json:"source_url"`
	OutputDir      string `json:"output_dir"`
	LedgerPath     string `json:"ledger_path"`
	Total          int    `json:"total"`
	Downloaded     int    `json:"downloaded"`
	SkippedTooLong int    `json:"skipped_too_long"`
	SkippedTooOld  int    `json:"skipped_too_old"`
	SkippedExists  int    `json:"skipped_exists"`
	Errors         int    `json:"errors"`
	Halted         bool   `json:"halted,omitempty"`
}

func Mkdir(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically: data goes to a temp file in the same
// directory which is then renamed over the target.
func WriteBytes(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".yti-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = fsys.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := fsys.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(fsys afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(fsys, path, data)
}

func ReadJSON(fsys afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst through WriteBytes.
func CopyFile(fsys afero.Fs, src, dst string) error {
	data, err := afero.ReadFile(fsys, src)
	if err != nil {
		return fmt.Errorf("read file %s: %w", src, err)
	}
	return WriteBytes(fsys, dst, data)
}

func RunMetaPath(outputDir string) string {
	return filepath.Join(outputDir, ".last-run.json")
}

func LoadRunMeta(fsys afero.Fs, outputDir string) (RunMeta, error) {
	var meta RunMeta
	if err := ReadJSON(fsys, RunMetaPath(outputDir), &meta); err != nil {
		return RunMeta{}, err
	}
	return meta, nil
}

func SaveRunMeta(fsys afero.Fs, outputDir string, meta RunMeta) error {
	return WriteJSON(fsys, RunMetaPath(outputDir), meta)
}

// IsNotExist reports whether err, possibly wrapped by this package, is a
// missing-file error.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
