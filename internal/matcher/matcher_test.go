package matcher

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFindExisting_PositiveMatch(t *testing.T) {
	snap := NewSnapshot("/out", []string{"My Great Video.mp4"})

	name, ok := snap.FindExisting("My Great Video")
	require.True(t, ok)
	require.Equal(t, "My Great Video.mp4", name)
}

func TestFindExisting_ShortTitleGuard(t *testing.T) {
	snap := NewSnapshot("/out", []string{"Ep1 Full.mp4"})

	_, ok := snap.FindExisting("Ep1")
	require.False(t, ok)
}

func TestFindExisting_EitherDirection(t *testing.T) {
	snap := NewSnapshot("/out", []string{"Conference Keynote.mkv"})

	name, ok := snap.FindExisting("Conference Keynote (Full Session) [2026]")
	require.True(t, ok, "long filename stem contained in longer title")
	require.Equal(t, "Conference Keynote.mkv", name)

	snap = NewSnapshot("/out", []string{"Channel - Conference Keynote 2026.webm"})
	_, ok = snap.FindExisting("conference keynote")
	require.True(t, ok, "title contained in filename, case-insensitive")
}

func TestFindExisting_PunctuationStripped(t *testing.T) {
	snap := NewSnapshot("/out", []string{"Whats New in Go 126.mp4"})

	_, ok := snap.FindExisting("What's New in Go 1.26?")
	require.True(t, ok)
}

func TestFindExisting_IgnoresNonMediaAndPartials(t *testing.T) {
	snap := NewSnapshot("/out", []string{
		"My Great Video.txt",
		"My Great Video.mp4.part",
		"My Great Video.f137.mp4.ytdl",
	})
	require.Equal(t, 0, snap.Len())

	_, ok := snap.FindExisting("My Great Video")
	require.False(t, ok)
}

func TestFindExisting_FirstSortedMatchWins(t *testing.T) {
	snap := NewSnapshot("/out", []string{"My Great Video - b.mp4", "My Great Video - a.mp4"})

	name, ok := snap.FindExisting("My Great Video")
	require.True(t, ok)
	require.Equal(t, "My Great Video - a.mp4", name)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "Hello World - part_2", Normalize("  Hello, World! - part_2 ?? "))
	require.Equal(t, "Ünïcode 日本", Normalize("Ünïcode: 日本!"))
}

func TestTakeSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/Some Long Title.mp4", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/out/notes.txt", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/out/sub.mp4", 0o755))

	snap, err := TakeSnapshot(fs, "/out")
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	name, ok := snap.FindExisting("Some Long Title")
	require.True(t, ok)
	require.Equal(t, "Some Long Title.mp4", name)

	empty, err := TakeSnapshot(fs, "/missing")
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())
}
