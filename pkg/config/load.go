package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const appName = "research-pulse"

// Format is a configuration file syntax.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatFor picks the format from a file extension. Anything other than
// .yaml or .yml is TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/research-pulse/config.{toml,yaml,yml}
//  2. ~/.config/research-pulse/config.{toml,yaml,yml}
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	resolve(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path. A missing
// file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			resolve(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader reads configuration in the given format on top of the
// defaults.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := DefaultConfig()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	}
	applyEnvOverrides(cfg)
	resolve(cfg)
	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			LogFile:  filepath.Join(xdgStateHome(home), appName, "research-pulse.log"),
		},
		API: APIConfig{
			Preset:    PresetProduction,
			Timeout:   Duration{15 * time.Second},
			UserAgent: appName,

			RetryAttempts: 2,
			RetryDelay:    Duration{time.Second},
			RetryMaxWait:  Duration{10 * time.Second},
		},
		Auth: AuthConfig{
			CredentialsPath: filepath.Join(xdgStateHome(home), appName, "credentials"),
			RestoreTimeout:  Duration{10 * time.Second},
		},
		Toast: ToastConfig{
			Duration: Duration{3 * time.Second},
		},
		Cache: CacheConfig{
			SearchEntries: 128,
		},
		Mock: MockConfig{
			Latency:   Duration{250 * time.Millisecond},
			Watchlist: []string{"AAPL", "NVDA", "KO"},
		},
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPULSE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("RPULSE_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("RPULSE_CREDENTIALS"); v != "" {
		cfg.Auth.CredentialsPath = v
	}
	if v := os.Getenv("RPULSE_USE_MOCKS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Mock.Enabled = b
		}
	}
}

// resolve fills values derived from others.
func resolve(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = APIPreset(cfg.API.Preset).BaseURL
	}
	cfg.General.LogLevel = strings.ToLower(cfg.General.LogLevel)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level %q: want debug, info, warn or error", c.General.LogLevel))
	}
	if !c.Mock.Enabled {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("api.base_url %q: want an http or https URL", c.API.BaseURL))
		}
	}
	if c.API.RetryAttempts < 1 {
		errs = append(errs, errors.New("api.retry_attempts must be at least 1"))
	}
	if c.API.RetryDelay.Duration < 0 || c.API.RetryMaxWait.Duration < 0 {
		errs = append(errs, errors.New("api.retry_delay and api.retry_max_wait must not be negative"))
	}
	if c.Toast.Duration.Duration <= 0 {
		errs = append(errs, errors.New("toast.duration must be positive"))
	}
	if c.Cache.SearchEntries < 0 {
		errs = append(errs, errors.New("cache.search_entries must not be negative"))
	}
	if c.Auth.CredentialsPath == "" {
		errs = append(errs, errors.New("auth.credentials_path is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var dirs []string

	xdg := xdgConfigHome(home)
	dirs = append(dirs, filepath.Join(xdg, appName))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		dirs = append(dirs, filepath.Join(defaultXDG, appName))
	}

	var paths []string
	for _, d := range dirs {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
			paths = append(paths, filepath.Join(d, name))
		}
	}
	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgStateHome returns XDG_STATE_HOME or ~/.local/state as fallback.
func xdgStateHome(home string) string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "state")
}
