package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// CalendarConfig describes a single ICS subscription source.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Name is the label shown in the display legend.
	Name string `yaml:"name" json:"name"`
	// Color is the hex color (e.g. "#7bd5ea") used for this calendar's events.
	Color string `yaml:"color" json:"color"`
}

// Config is the top-level application configuration. It is loaded once at
// startup and not mutated afterwards; everything that needs it receives it
// explicitly.
type Config struct {
	// Listen is the HTTP listen address for the schedule API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to interpret floating ICS times
	// (e.g. "Europe/Berlin"). Invalid or empty falls back to the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// APIKey guards /api/* endpoints via the x-api-key header.
	// Empty disables authentication.
	APIKey string `yaml:"api_key" json:"api_key"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for the
	// background refresh that keeps the fetch cache warm.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PastDays / FutureDays define the default query window around "now"
	// when a client does not pass from/to.
	PastDays   int `yaml:"past_days" json:"past_days"`
	FutureDays int `yaml:"future_days" json:"future_days"`

	// MaxOccurrences caps how many occurrences a single recurring event may
	// contribute, regardless of window size.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// CacheDir is where fetched ICS bodies and their HTTP cache metadata
	// are stored.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Calendars is the list of subscribed ICS sources.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultRefreshCron    = "*/15 * * * *"
	defaultPastDays       = 30
	defaultFutureDays     = 180
	defaultMaxOccurrences = 500
	defaultCacheDir       = "/var/lib/famcal/ics-cache"
	defaultColor          = "#888888"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		RefreshCron:    defaultRefreshCron,
		PastDays:       defaultPastDays,
		FutureDays:     defaultFutureDays,
		MaxOccurrences: defaultMaxOccurrences,
		CacheDir:       defaultCacheDir,
		Calendars:      []CalendarConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.PastDays < 0 {
		c.PastDays = 0
	}
	if c.PastDays == 0 && c.FutureDays == 0 {
		c.PastDays = defaultPastDays
	}
	if c.FutureDays <= 0 {
		c.FutureDays = defaultFutureDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		if cal.Name == "" {
			cal.Name = fmt.Sprintf("calendar-%d", i+1)
		}
		cal.Color = normalizeColor(cal.Color)
	}
}

// normalizeColor returns a "#rrggbb" color, fixing a missing "#" prefix and
// falling back to a neutral gray for anything unparseable.
func normalizeColor(color string) string {
	color = strings.TrimSpace(color)
	if color != "" && !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if !hexColorRe.MatchString(color) {
		return defaultColor
	}
	return strings.ToLower(color)
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600) and
// returned, so a first run leaves an editable template behind.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
