package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trackdash/internal/syncer"
	"trackdash/internal/util"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

const EnvPrefix = "TRACKDASH"

type Config struct {
	APIBase          string
	APIKey           string
	Interval         time.Duration
	PageSize         int
	Timeout          time.Duration
	MaxRPS           float64
	Ordering         syncer.Ordering
	Theme            Theme
	OutDir           string
	EventsFile       string
	EventsPoll       bool
	EventsFromStart  bool
	Offline          bool
	OpenAIModel      string
	OpenAIBase       string
	OpenAITimeoutSec int
	IDPrefix         string
	JSON             bool
	ShowVersion      bool
	ConfigFile       string
	LogFile          string
}

// Load parses os.Args.
func Load() (*Config, error) { return LoadArgs(os.Args[1:], os.Stderr) }

// LoadArgs parses args. Flags missing from the command line fall back to
// TRACKDASH_<FLAG> environment variables, then to the --config file.
func LoadArgs(args []string, out io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("trackdash", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.APIBase, "api", "http://localhost:8080", "base URL of the tracking service")
	fs.StringVar(&cfg.APIKey, "api-key", "", "value sent as X-API-Key")
	fs.DurationVar(&cfg.Interval, "interval", syncer.DefaultInterval, "polling interval")
	fs.IntVar(&cfg.PageSize, "page-size", syncer.DefaultPageSize, "records fetched when no search is active")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	fs.Float64Var(&cfg.MaxRPS, "max-rps", 5, "client-side request rate limit (0 = unlimited)")
	ordering := syncer.LatestIssued.String()
	fs.StringVar(&ordering, "ordering", ordering, "overlapping refreshes: latest-issued|last-completed")
	theme := string(ThemeDark)
	fs.StringVar(&theme, "theme", string(ThemeDark), "theme: dark|light")
	fs.StringVar(&cfg.OutDir, "out", ".", "directory for exports")
	fs.StringVar(&cfg.EventsFile, "events-file", "", "activity log to follow; each new line triggers a refresh")
	fs.BoolVar(&cfg.EventsPoll, "events-poll", false, "poll the events file instead of using inotify (network filesystems)")
	fs.BoolVar(&cfg.EventsFromStart, "events-from-start", false, "replay the events file from the beginning")
	fs.BoolVar(&cfg.Offline, "offline", false, "disable OpenAI summaries")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "gpt-4o-mini", "OpenAI model for summaries")
	fs.StringVar(&cfg.OpenAIBase, "openai-base-url", "", "OpenAI base URL override")
	fs.IntVar(&cfg.OpenAITimeoutSec, "openai-timeout-sec", 60, "OpenAI request timeout in seconds")
	fs.StringVar(&cfg.IDPrefix, "id-prefix", "client", "prefix of generated track ids")
	fs.BoolVar(&cfg.JSON, "json", false, "fetch once, print summary and tracks as JSON and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	fs.StringVar(&cfg.ConfigFile, "config", "", "config file (yaml, toml or json)")
	fs.StringVar(&cfg.LogFile, "log-file", "", "append logs to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := applyFallbacks(fs, cfg.ConfigFile); err != nil {
		return nil, err
	}
	o, err := syncer.ParseOrdering(ordering)
	if err != nil {
		return nil, err
	}
	cfg.Ordering = o
	cfg.Theme = Theme(strings.ToLower(theme))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFallbacks(fs *flag.FlagSet, file string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || set[f.Name] || f.Name == "config" || f.Name == "version" {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if e := fs.Set(f.Name, v.GetString(f.Name)); e != nil {
			err = fmt.Errorf("%s from environment or config: %w", f.Name, e)
		}
	})
	return err
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--api %q: want an http(s) URL", c.APIBase)
	}
	if c.Interval < time.Second {
		return errors.New("--interval must be at least 1s")
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		return errors.New("--page-size must be between 1 and 500")
	}
	if c.Timeout <= 0 {
		return errors.New("--timeout must be positive")
	}
	if c.MaxRPS < 0 {
		return errors.New("--max-rps must not be negative")
	}
	if c.Theme != ThemeDark && c.Theme != ThemeLight {
		return fmt.Errorf("--theme %q: want dark or light", c.Theme)
	}
	return nil
}

func (c *Config) OpenAIKey() string { return os.Getenv("OPENAI_API_KEY") }

// AIEnabled reports whether engagement summaries can be requested.
func (c *Config) AIEnabled() bool { return !c.Offline && c.OpenAIKey() != "" }

func (c *Config) String() string {
	return fmt.Sprintf("api=%s key=%s interval=%s page=%d ordering=%s theme=%s events=%s offline=%v",
		c.APIBase, util.MaskSecret(c.APIKey), c.Interval, c.PageSize, c.Ordering, c.Theme, c.EventsFile, c.Offline)
}
