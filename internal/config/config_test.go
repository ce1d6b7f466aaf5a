package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultPerScenario(t *testing.T) {
	dash := Default(ScenarioDashboard)
	assert.Equal(t, "http://localhost:4040", dash.TargetURL)
	assert.Equal(t, "http://localhost:4040/dashboard", dash.URL("/dashboard"))

	theme := Default(ScenarioTheme)
	assert.Equal(t, "http://localhost:8000", theme.TargetURL)
	assert.Equal(t, 30*time.Second, theme.Timeouts.Navigation)
	assert.Equal(t, 30*time.Second, theme.Timeouts.HeadingWait)
	assert.Equal(t, 10*time.Second, theme.Timeouts.DialogWait)
	assert.Equal(t, time.Second, theme.Timeouts.Settle)
	assert.True(t, theme.Headless)
	require.NoError(t, theme.Validate())
}

func TestURLTrimsTrailingSlash(t *testing.T) {
	cfg := Config{TargetURL: "http://localhost:8000/"}
	assert.Equal(t, "http://localhost:8000/dashboard", cfg.URL("/dashboard"))
}

func TestLoadFileAndEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uiverify.yaml", []byte(`
target_url: http://staging.local:9000
output_dir: shots
headless: false
timeouts:
  navigation: 5s
  dialog_wait: 2s
`), 0o644))

	l := &Loader{Fs: fs, LookupEnv: envMap(map[string]string{
		"UIVERIFY_TARGET_URL":     "http://ci.local:8000",
		"UIVERIFY_SETTLE_TIMEOUT": "3s",
		"UIVERIFY_SETTLE_MODE":    "sleep",
	})}
	cfg, err := l.Load("uiverify.yaml", ScenarioTheme)
	require.NoError(t, err)

	assert.Equal(t, ScenarioTheme, cfg.Scenario)
	assert.Equal(t, "http://ci.local:8000", cfg.TargetURL, "env overrides file")
	assert.Equal(t, "shots", cfg.OutputDir)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.DialogWait)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.HeadingWait, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Settle)
	assert.Equal(t, SettleSleep, cfg.SettleMode)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	l := &Loader{Fs: afero.NewMemMapFs(), LookupEnv: envMap(nil)}
	cfg, err := l.Load("", ScenarioDashboard)
	require.NoError(t, err)
	assert.Equal(t, Default(ScenarioDashboard), cfg)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("bogus_key: 1\n"), 0o644))

	l := &Loader{Fs: fs, LookupEnv: envMap(nil)}
	_, err := l.Load("missing.yaml", ScenarioTheme)
	assert.ErrorContains(t, err, "read config")

	_, err = l.Load("bad.yaml", ScenarioTheme)
	assert.ErrorContains(t, err, "parse config")

	l.LookupEnv = envMap(map[string]string{"UIVERIFY_NAV_TIMEOUT": "soon"})
	_, err = l.Load("", ScenarioTheme)
	assert.ErrorContains(t, err, "environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown scenario", func(c *Config) { c.Scenario = "nightly" }, "unknown scenario"},
		{"relative url", func(c *Config) { c.TargetURL = "localhost:8000" }, "absolute http(s)"},
		{"ftp url", func(c *Config) { c.TargetURL = "ftp://localhost" }, "absolute http(s)"},
		{"zero navigation", func(c *Config) { c.Timeouts.Navigation = 0 }, "timeout navigation"},
		{"negative settle", func(c *Config) { c.Timeouts.Settle = -time.Second }, "timeout settle"},
		{"empty viewport", func(c *Config) { c.Viewport.Width = 0 }, "viewport"},
		{"settle mode", func(c *Config) { c.SettleMode = "poll" }, "settle mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(ScenarioTheme)
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario("dashboard")
	require.NoError(t, err)
	assert.Equal(t, ScenarioDashboard, s)

	_, err = ParseScenario("Theme")
	assert.ErrorContains(t, err, "dashboard, theme")
}
