package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RPULSE_API_URL", "RPULSE_LOG_LEVEL", "RPULSE_CREDENTIALS", "RPULSE_USE_MOCKS"} {
		t.Setenv(k, "")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader(""), FormatTOML)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.researchpulse.app", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Toast.Duration.Duration)
	assert.False(t, cfg.Auth.KeepCredentialOnTransientFailure)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, 2, cfg.API.RetryAttempts)
	assert.Equal(t, time.Second, cfg.API.RetryDelay.Duration)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	src := `
[general]
log_level = "DEBUG"

[api]
preset = "staging"
timeout = "5s"
retry_attempts = 4
retry_delay = "250ms"

[auth]
keep_credential_on_transient_failure = true
restore_timeout = "2s"

[toast]
duration = "4s"

[mock]
enabled = true
watchlist = ["MSFT"]
`
	cfg, err := LoadFromReader(strings.NewReader(src), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, "https://staging.api.researchpulse.app", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, 4, cfg.API.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.API.RetryDelay.Duration)
	assert.Equal(t, 10*time.Second, cfg.API.RetryMaxWait.Duration, "unset keys keep defaults")
	assert.True(t, cfg.Auth.KeepCredentialOnTransientFailure)
	assert.Equal(t, 2*time.Second, cfg.Auth.RestoreTimeout.Duration)
	assert.Equal(t, 4*time.Second, cfg.Toast.Duration.Duration)
	assert.Equal(t, []string{"MSFT"}, cfg.Mock.Watchlist)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	src := `
api:
  base_url: http://localhost:9000
  timeout: 750ms
cache:
  search_entries: 16
metrics:
  addr: 127.0.0.1:9464
`
	cfg, err := LoadFromReader(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.API.Timeout.Duration)
	assert.Equal(t, 16, cfg.Cache.SearchEntries)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.General.LogLevel, "unset keys keep defaults")
}

func TestUnknownKeysRejected(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromReader(strings.NewReader("[api]\nbase_ur = \"x\"\n"), FormatTOML)
	assert.ErrorContains(t, err, "api.base_ur")

	_, err = LoadFromReader(strings.NewReader("api:\n  base_ur: x\n"), FormatYAML)
	assert.Error(t, err)
}

func TestInvalidDuration(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromReader(strings.NewReader("[toast]\nduration = \"soon\"\n"), FormatTOML)
	assert.Error(t, err)

	_, err = LoadFromReader(strings.NewReader("toast:\n  duration: -1s\n"), FormatYAML)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RPULSE_API_URL", "http://127.0.0.1:1234")
	t.Setenv("RPULSE_LOG_LEVEL", "warn")
	t.Setenv("RPULSE_CREDENTIALS", "/tmp/creds")
	t.Setenv("RPULSE_USE_MOCKS", "true")

	cfg, err := LoadFromReader(strings.NewReader("[api]\nbase_url = \"https://ignored.example\"\n"), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:1234", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.General.LogLevel)
	assert.Equal(t, "/tmp/creds", cfg.Auth.CredentialsPath)
	assert.True(t, cfg.Mock.Enabled)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.LogLevel = "loud"
	cfg.API.BaseURL = "ftp://x"
	cfg.Toast.Duration = Duration{}
	cfg.Cache.SearchEntries = -1
	cfg.API.RetryAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log_level", "base_url", "toast.duration", "search_entries", "retry_attempts"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = DefaultConfig()
	cfg.API.BaseURL = ""
	cfg.Mock.Enabled = true
	assert.NoError(t, cfg.Validate(), "mock runs need no backend")
}

func TestLoadFromFilePicksFormat(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("general:\n  log_level: error\n"), 0o600))

	cfg, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.General.LogLevel)

	cfg, err = LoadFromFile(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.General.LogLevel)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[general\n"), 0o600))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, bad)
}

func TestLoadSearchesXDG(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, appName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, appName, "config.yaml"), []byte("api:\n  preset: local\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
}

func TestAPIPresetFallsBack(t *testing.T) {
	assert.Equal(t, PresetProduction, APIPreset("nope").Preset)
	assert.Equal(t, PresetLocal, APIPreset(PresetLocal).Preset)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("a/b.YAML"))
	assert.Equal(t, FormatYAML, FormatFor("x.yml"))
	assert.Equal(t, FormatTOML, FormatFor("x.toml"))
	assert.Equal(t, FormatTOML, FormatFor("x"))
}
