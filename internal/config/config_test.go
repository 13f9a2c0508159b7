package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"yt-ingest/internal/model"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, filepath.Join("downloads", ".downloaded.json"), cfg.Videos.ResolvedLedgerPath())
	require.Equal(t, filepath.Join("downloads", "ingest.log"), cfg.Videos.ResolvedLogFile())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/etc/nope.yaml")
	require.Error(t, err)
	require.Equal(t, model.KindConfigInvalid, model.KindOf(err))
}

func TestLoad_FileOverridesEnvOverridesDefaults(t *testing.T) {
	t.Setenv(EnvSourceURL, "https://www.youtube.com/@fromenv/videos")
	t.Setenv(EnvOutputDir, "/env/out")
	t.Setenv(EnvMaxAge, "30d")

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cfg.yaml", []byte(`
log_level: debug
videos:
  output_dir: /file/out
  max_duration: 45m
  old_streak: 5
plugins:
  output_dir: /file/plugins
`), 0o644))

	cfg, err := Load(fsys, "/cfg.yaml")
	require.NoError(t, err)
	require.Equal(t, "https://www.youtube.com/@fromenv/videos", cfg.Videos.SourceURL)
	require.Equal(t, "/file/out", cfg.Videos.OutputDir)
	require.Equal(t, 45*time.Minute, cfg.Videos.MaxDuration)
	require.Equal(t, 30*24*time.Hour, cfg.Videos.MaxAge.Duration())
	require.Equal(t, 5, cfg.Videos.OldStreakLimit)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, DefaultFormat, cfg.Videos.Format)
	require.Equal(t, "/file/plugins", cfg.Plugins.OutputDir)
	require.Equal(t, DefaultWikiURL, cfg.Plugins.WikiURL)
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, DefaultPath, []byte("videos:\n  max_lenght: 10m\n"), 0o644))

	_, err := Load(fsys, "")
	require.Error(t, err)
	require.Equal(t, model.KindConfigInvalid, model.KindOf(err))
}

func TestLoad_FileMaxAgeAcceptsDayForm(t *testing.T) {
	cases := map[string]time.Duration{
		"30d": 30 * 24 * time.Hour,
		"72h": 72 * time.Hour,
		"0":   0,
	}
	for raw, want := range cases {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/cfg.yaml", []byte("videos:\n  max_age: "+raw+"\n"), 0o644))

		cfg, err := Load(fsys, "/cfg.yaml")
		require.NoError(t, err, raw)
		require.Equal(t, want, cfg.Videos.MaxAge.Duration(), raw)
	}
}

func TestLoad_BadFileAgeFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cfg.yaml", []byte("videos:\n  max_age: soon\n"), 0o644))

	_, err := Load(fsys, "/cfg.yaml")
	require.Error(t, err)
	require.Equal(t, model.KindConfigInvalid, model.KindOf(err))
}

func TestLoad_BadEnvAgeFails(t *testing.T) {
	t.Setenv(EnvMaxAge, "soon")
	_, err := Load(afero.NewMemMapFs(), "")
	require.Error(t, err)
}

func TestParseAge(t *testing.T) {
	d, err := ParseAge("7d")
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, d)

	d, err = ParseAge("36h")
	require.NoError(t, err)
	require.Equal(t, 36*time.Hour, d)

	d, err = ParseAge("")
	require.NoError(t, err)
	require.Zero(t, d)

	_, err = ParseAge("-1d")
	require.Error(t, err)
}

func TestValidateVideos(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateVideos()
	require.Error(t, err)
	require.Contains(t, err.Error(), "source URL is required")

	cfg.Videos.SourceURL = "https://www.youtube.com/playlist?list=PL1"
	require.NoError(t, cfg.ValidateVideos())

	cfg.Videos.SourceURL = "ftp://example.com/list"
	require.Error(t, cfg.ValidateVideos())

	cfg.Videos.SourceURL = "https://www.youtube.com/playlist?list=PL1"
	cfg.Videos.OldStreakLimit = 0
	cfg.LogLevel = "chatty"
	err = cfg.ValidateVideos()
	require.Error(t, err)
	require.Contains(t, err.Error(), "old streak")
	require.Contains(t, err.Error(), "chatty")
}

func TestValidatePlugins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ValidatePlugins())

	cfg.Plugins.WikiURL = "not a url"
	require.Error(t, cfg.ValidatePlugins())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvWikiURL+"=https://example.com/wiki\n"), 0o644))
	t.Setenv(EnvWikiURL, "")
	require.NoError(t, os.Unsetenv(EnvWikiURL))

	require.NoError(t, LoadDotEnv(envFile))
	require.Equal(t, "https://example.com/wiki", os.Getenv(EnvWikiURL))
}
