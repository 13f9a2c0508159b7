package runstore

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestWriteJSON_RoundTripAndNoTempLeftovers(t *testing.T) {
	fsys := afero.NewOsFs()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	if err := WriteJSON(fsys, path, []string{"a", "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteJSON(fsys, path, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var got []string
	if err := ReadJSON(fsys, path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("unexpected content: %v", got)
	}

	entries, err := afero.ReadDir(fsys, filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
}

func TestReadJSON_MissingFileIsNotExist(t *testing.T) {
	var v []string
	err := ReadJSON(afero.NewMemMapFs(), "/nope.json", &v)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRunMeta_SaveLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	meta := RunMeta{RunID: "r1", SourceURL: "https://example.com/list", Downloaded: 2, Errors: 1}
	if err := SaveRunMeta(fsys, "/out", meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadRunMeta(fsys, "/out")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RunID != "r1" || got.Downloaded != 2 || got.Errors != 1 {
		t.Fatalf("unexpected meta: %+v", got)
	}
}

func TestCopyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/a.json", []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(fsys, "/a.json", "/a.json.corrupt"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	data, err := afero.ReadFile(fsys, "/a.json.corrupt")
	if err != nil || string(data) != "garbage" {
		t.Fatalf("unexpected copy: %q %v", data, err)
	}
}
