// Package config holds the explicit configuration a verification run is
// invoked with: target address, output location, bounds for every wait.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Scenario names a fixed verification sequence.
type Scenario string

const (
	// ScenarioDashboard opens /dashboard and captures it in light mode.
	ScenarioDashboard Scenario = "dashboard"
	// ScenarioTheme walks home -> dashboard -> Add MIT dialog and captures it
	// in light and dark mode.
	ScenarioTheme Scenario = "theme"
)

// Scenarios lists every known scenario.
var Scenarios = []Scenario{ScenarioDashboard, ScenarioTheme}

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	for _, sc := range Scenarios {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scenario %q (want one of %s)", s, joinScenarios())
}

func joinScenarios() string {
	names := make([]string, len(Scenarios))
	for i, sc := range Scenarios {
		names[i] = string(sc)
	}
	return strings.Join(names, ", ")
}

// SettleMode selects how the theme transition is confirmed.
type SettleMode string

const (
	// SettleCondition waits until the document root carries the dark class.
	SettleCondition SettleMode = "condition"
	// SettleSleep pauses for the full settle bound.
	SettleSleep SettleMode = "sleep"
)

// Timeouts bound every blocking step.
type Timeouts struct {
	Navigation  time.Duration `yaml:"navigation" json:"navigation"`
	HeadingWait time.Duration `yaml:"heading_wait" json:"heading_wait"`
	DialogWait  time.Duration `yaml:"dialog_wait" json:"dialog_wait"`
	Settle      time.Duration `yaml:"settle" json:"settle"`
}

// Viewport is the browser page size.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config is passed to the driver at invocation.
type Config struct {
	Scenario   Scenario   `yaml:"-" json:"scenario"`
	TargetURL  string     `yaml:"target_url" json:"target_url"`
	OutputDir  string     `yaml:"output_dir" json:"output_dir,omitempty"`
	Headless   bool       `yaml:"headless" json:"headless"`
	Viewport   Viewport   `yaml:"viewport" json:"viewport"`
	Timeouts   Timeouts   `yaml:"timeouts" json:"timeouts"`
	SettleMode SettleMode `yaml:"settle_mode" json:"settle_mode"`
}

// Default returns the built-in configuration for a scenario. The target
// addresses are the local development servers each scenario was written against.
func Default(s Scenario) Config {
	cfg := Config{
		Scenario: s,
		Headless: true,
		Viewport: Viewport{Width: 1280, Height: 720},
		Timeouts: Timeouts{
			Navigation:  30 * time.Second,
			HeadingWait: 30 * time.Second,
			DialogWait:  10 * time.Second,
			Settle:      time.Second,
		},
		SettleMode: SettleCondition,
	}
	switch s {
	case ScenarioDashboard:
		cfg.TargetURL = "http://localhost:4040"
	default:
		cfg.TargetURL = "http://localhost:8000"
	}
	return cfg
}

// URL joins the target base address with an absolute path.
func (c Config) URL(path string) string {
	return strings.TrimRight(c.TargetURL, "/") + path
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := ParseScenario(string(c.Scenario)); err != nil {
		return err
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("target url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target url %q must be an absolute http(s) address", c.TargetURL)
	}
	for name, d := range map[string]time.Duration{
		"navigation":   c.Timeouts.Navigation,
		"heading_wait": c.Timeouts.HeadingWait,
		"dialog_wait":  c.Timeouts.DialogWait,
		"settle":       c.Timeouts.Settle,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive, got %s", name, d)
		}
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport %dx%d must be positive", c.Viewport.Width, c.Viewport.Height)
	}
	switch c.SettleMode {
	case SettleCondition, SettleSleep:
	default:
		return fmt.Errorf("unknown settle mode %q", c.SettleMode)
	}
	return nil
}

// envOverrides are read from the process environment. Nil fields were unset.
type envOverrides struct {
	TargetURL      *string        `envconfig:"UIVERIFY_TARGET_URL"`
	OutputDir      *string        `envconfig:"UIVERIFY_OUTPUT_DIR"`
	Headless       *bool          `envconfig:"UIVERIFY_HEADLESS"`
	NavTimeout     *time.Duration `envconfig:"UIVERIFY_NAV_TIMEOUT"`
	HeadingTimeout *time.Duration `envconfig:"UIVERIFY_HEADING_TIMEOUT"`
	DialogTimeout  *time.Duration `envconfig:"UIVERIFY_DIALOG_TIMEOUT"`
	SettleTimeout  *time.Duration `envconfig:"UIVERIFY_SETTLE_TIMEOUT"`
	SettleMode     *string        `envconfig:"UIVERIFY_SETTLE_MODE"`
}

func (e envOverrides) apply(c *Config) {
	if e.TargetURL != nil {
		c.TargetURL = *e.TargetURL
	}
	if e.OutputDir != nil {
		c.OutputDir = *e.OutputDir
	}
	if e.Headless != nil {
		c.Headless = *e.Headless
	}
	if e.NavTimeout != nil {
		c.Timeouts.Navigation = *e.NavTimeout
	}
	if e.HeadingTimeout != nil {
		c.Timeouts.HeadingWait = *e.HeadingTimeout
	}
	if e.DialogTimeout != nil {
		c.Timeouts.DialogWait = *e.DialogTimeout
	}
	if e.SettleTimeout != nil {
		c.Timeouts.Settle = *e.SettleTimeout
	}
	if e.SettleMode != nil {
		c.SettleMode = SettleMode(*e.SettleMode)
	}
}

// Loader layers scenario defaults, an optional YAML file and the environment.
type Loader struct {
	Fs        afero.Fs
	LookupEnv func(key string) (string, bool)
}

// NewLoader reads from the OS filesystem and process environment.
func NewLoader() *Loader {
	return &Loader{Fs: afero.NewOsFs(), LookupEnv: os.LookupEnv}
}

// Load builds the configuration for a scenario. An empty path skips the file.
// The result is not validated; callers apply flag overrides first.
func (l *Loader) Load(path string, s Scenario) (Config, error) {
	cfg := Default(s)

	if path != "" {
		data, err := afero.ReadFile(l.Fs, path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var env envOverrides
	if err := envconfig.Process("", &env, lookup); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	env.apply(&cfg)
	cfg.Scenario = s

	return cfg, nil
}
