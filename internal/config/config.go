// Package config loads run settings. Precedence, highest first: command-line
// flags (applied by the cli package), the YAML file, environment variables,
// then the defaults below.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"yt-ingest/internal/eventlog"
	"yt-ingest/internal/model"
)

const (
	DefaultPath           = "yt-ingest.yaml"
	DefaultEnvFile        = ".env"
	DefaultOutputDir      = "downloads"
	DefaultFormat         = "bestvideo+bestaudio/best"
	DefaultMergeFormat    = "mp4"
	DefaultOutputTemplate = "%(title)s.%(ext)s"
	DefaultMaxDuration    = 30 * time.Minute
	DefaultOldStreak      = 3
	DefaultPause          = time.Second
	DefaultWikiURL        = "https://github.com/qbittorrent/search-plugins/wiki/Unofficial-search-plugins"
	DefaultPluginDir      = "qbittorrent_plugins"
	DefaultHTTPTimeout    = 30 * time.Second

	LedgerFileName = ".downloaded.json"
	LogFileName    = "ingest.log"
)

const (
	EnvSourceURL = "YTI_SOURCE_URL"
	EnvOutputDir = "YTI_OUTPUT_DIR"
	EnvLedger    = "YTI_LEDGER"
	EnvLogFile   = "YTI_LOG_FILE"
	EnvCookies   = "YTI_COOKIES"
	EnvLogLevel  = "YTI_LOG_LEVEL"
	EnvWikiURL   = "YTI_WIKI_URL"
	EnvMaxAge    = "YTI_MAX_AGE"
)

type Videos struct {
	SourceURL      string        `yaml:"source_url"`
	OutputDir      string        `yaml:"output_dir"`
	LedgerPath     string        `yaml:"ledger"`
	LogFile        string        `yaml:"log_file"`
	CookiesPath    string        `yaml:"cookies"`
	Binary         string        `yaml:"yt_dlp"`
	Format         string        `yaml:"format"`
	MergeFormat    string        `yaml:"merge_format"`
	OutputTemplate string        `yaml:"output_template"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	MaxAge         Age           `yaml:"max_age"`
	OldStreakLimit int           `yaml:"old_streak"`
	Pause          time.Duration `yaml:"pause"`
	ItemTimeout    time.Duration `yaml:"item_timeout"`
	Timeout        time.Duration `yaml:"timeout"`
}

type Plugins struct {
	WikiURL   string        `yaml:"wiki_url"`
	OutputDir string        `yaml:"output_dir"`
	UserAgent string        `yaml:"user_agent"`
	Proxy     string        `yaml:"proxy"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Config struct {
	LogLevel string  `yaml:"log_level"`
	Videos   Videos  `yaml:"videos"`
	Plugins  Plugins `yaml:"plugins"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Videos: Videos{
			OutputDir:      DefaultOutputDir,
			Format:         DefaultFormat,
			MergeFormat:    DefaultMergeFormat,
			OutputTemplate: DefaultOutputTemplate,
			MaxDuration:    DefaultMaxDuration,
			OldStreakLimit: DefaultOldStreak,
			Pause:          DefaultPause,
		},
		Plugins: Plugins{
			WikiURL:   DefaultWikiURL,
			OutputDir: DefaultPluginDir,
			Timeout:   DefaultHTTPTimeout,
		},
	}
}

// LoadDotEnv exports the variables of a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return model.Wrap(model.KindConfigInvalid, "load env file", err)
	}
	return nil
}

// Load builds the configuration from defaults, the environment and the
// YAML file at path. An empty path tries DefaultPath and tolerates its
// absence; an explicit path must exist.
func Load(fsys afero.Fs, path string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, model.Wrap(model.KindConfigInvalid, "load config", fmt.Errorf("read %s: %w", path, err))
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, model.Wrap(model.KindConfigInvalid, "load config", fmt.Errorf("parse %s: %w", path, err))
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvSourceURL); ok {
		c.Videos.SourceURL = v
	}
	if v, ok := get(EnvOutputDir); ok {
		c.Videos.OutputDir = v
	}
	if v, ok := get(EnvLedger); ok {
		c.Videos.LedgerPath = v
	}
	if v, ok := get(EnvLogFile); ok {
		c.Videos.LogFile = v
	}
	if v, ok := get(EnvCookies); ok {
		c.Videos.CookiesPath = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvWikiURL); ok {
		c.Plugins.WikiURL = v
	}
	if v, ok := get(EnvMaxAge); ok {
		d, err := ParseAge(v)
		if err != nil {
			return model.Wrap(model.KindConfigInvalid, "load env", fmt.Errorf("%s: %w", EnvMaxAge, err))
		}
		c.Videos.MaxAge = Age(d)
	}
	return nil
}

// Age is a maximum item age. In YAML it accepts the same forms as ParseAge.
type Age time.Duration

func (a Age) Duration() time.Duration { return time.Duration(a) }

func (a *Age) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	d, err := ParseAge(raw)
	if err != nil {
		return err
	}
	*a = Age(d)
	return nil
}

// ParseAge accepts Go durations plus a whole-day form such as "30d".
func ParseAge(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", raw, err)
	}
	return d, nil
}

// ResolvedLedgerPath defaults the ledger into the output directory.
func (v Videos) ResolvedLedgerPath() string {
	if strings.TrimSpace(v.LedgerPath) != "" {
		return v.LedgerPath
	}
	return filepath.Join(v.OutputDir, LedgerFileName)
}

// ResolvedLogFile defaults the event log into the output directory.
func (v Videos) ResolvedLogFile() string {
	if strings.TrimSpace(v.LogFile) != "" {
		return v.LogFile
	}
	return filepath.Join(v.OutputDir, LogFileName)
}

func (c Config) ValidateVideos() error {
	v := c.Videos
	var problems []string
	if strings.TrimSpace(v.SourceURL) == "" {
		problems = append(problems, "source URL is required (--source or "+EnvSourceURL+")")
	} else if err := validateHTTPURL(v.SourceURL); err != nil {
		problems = append(problems, "source URL: "+err.Error())
	}
	if strings.TrimSpace(v.OutputDir) == "" {
		problems = append(problems, "output directory is required")
	}
	if v.MaxDuration < 0 {
		problems = append(problems, "max duration must be >= 0")
	}
	if v.MaxAge < 0 {
		problems = append(problems, "max age must be >= 0")
	}
	if v.OldStreakLimit < 1 {
		problems = append(problems, "old streak must be >= 1")
	}
	if v.Pause < 0 || v.ItemTimeout < 0 || v.Timeout < 0 {
		problems = append(problems, "pause and timeouts must be >= 0")
	}
	if _, err := eventlog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	return joinProblems(problems)
}

func (c Config) ValidatePlugins() error {
	p := c.Plugins
	var problems []string
	if err := validateHTTPURL(p.WikiURL); err != nil {
		problems = append(problems, "wiki URL: "+err.Error())
	}
	if strings.TrimSpace(p.OutputDir) == "" {
		problems = append(problems, "plugin output directory is required")
	}
	if p.Timeout < 0 {
		problems = append(problems, "timeout must be >= 0")
	}
	if _, err := eventlog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	return joinProblems(problems)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	return nil
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return model.Errorf(model.KindConfigInvalid, "validate config", "%s", strings.Join(problems, "; "))
}
