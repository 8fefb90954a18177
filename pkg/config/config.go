package config

// Config is the full research-pulse configuration.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	API     APIConfig     `toml:"api" yaml:"api"`
	Auth    AuthConfig    `toml:"auth" yaml:"auth"`
	Toast   ToastConfig   `toml:"toast" yaml:"toast"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Mock    MockConfig    `toml:"mock" yaml:"mock"`
}

// GeneralConfig holds logging settings.
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// LogFile receives logs. The TUI never logs to the terminal, so an
	// empty LogFile there means no logs.
	LogFile string `toml:"log_file" yaml:"log_file"`
}

// APIConfig points the client at a backend.
type APIConfig struct {
	// Preset names a known backend; BaseURL overrides it.
	Preset    string   `toml:"preset" yaml:"preset"`
	BaseURL   string   `toml:"base_url" yaml:"base_url"`
	Timeout   Duration `toml:"timeout" yaml:"timeout"`
	UserAgent string   `toml:"user_agent" yaml:"user_agent"`

	// Retry governs the dashboard header. Attempts counts the first try.
	RetryAttempts int      `toml:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    Duration `toml:"retry_delay" yaml:"retry_delay"`
	RetryMaxWait  Duration `toml:"retry_max_wait" yaml:"retry_max_wait"`
}

// AuthConfig controls the stored session.
type AuthConfig struct {
	CredentialsPath string `toml:"credentials_path" yaml:"credentials_path"`

	// KeepCredentialOnTransientFailure keeps the stored token when the
	// startup identity check fails because of connectivity or a server
	// error. By default any failure signs the user out.
	KeepCredentialOnTransientFailure bool `toml:"keep_credential_on_transient_failure" yaml:"keep_credential_on_transient_failure"`

	RestoreTimeout Duration `toml:"restore_timeout" yaml:"restore_timeout"`
}

// ToastConfig controls notifications.
type ToastConfig struct {
	Duration Duration `toml:"duration" yaml:"duration"`
}

// CacheConfig sizes result caches.
type CacheConfig struct {
	SearchEntries int `toml:"search_entries" yaml:"search_entries"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `toml:"addr" yaml:"addr"`
}

// MockConfig replaces the backend with in-memory fixtures.
type MockConfig struct {
	Enabled   bool     `toml:"enabled" yaml:"enabled"`
	Latency   Duration `toml:"latency" yaml:"latency"`
	Watchlist []string `toml:"watchlist" yaml:"watchlist"`
}
