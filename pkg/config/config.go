// Package config loads triage settings from YAML. A file only needs the
// fields it changes; everything else keeps its default.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/triage/pkg/kernel/harness"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/planner"
)

// EnvFile names the config file used when none is given explicitly.
const EnvFile = "TRIAGE_CONFIG"

// Config is the full set of triage settings.
type Config struct {
	Planner        PlannerConfig            `yaml:"planner"`
	Configurations []string                 `yaml:"configurations"`
	Prices         map[string]harness.Price `yaml:"prices"`
	Rules          RulesConfig              `yaml:"rules"`
	Parallel       int                      `yaml:"parallel"`
	Log            LogConfig                `yaml:"log"`
}

// PlannerConfig configures the chat completions planner.
type PlannerConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RulesConfig overrides plan validation rules. Zero values keep the
// defaults.
type RulesConfig struct {
	MinSteps    int      `yaml:"min_steps"`
	MaxSteps    int      `yaml:"max_steps"`
	EntryAction string   `yaml:"entry_action"`
	AllowedVars []string `yaml:"allowed_vars"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			Endpoint:  planner.DefaultEndpoint,
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
		},
		Configurations: []string{"gpt-4.1", "gpt-4.1-mini", "o3-mini", "o1"},
		Prices: map[string]harness.Price{
			"gpt-4.1":      {Prompt: 0.003, Completion: 0.012},
			"gpt-4.1-mini": {Prompt: 0.0008, Completion: 0.0032},
			"o3-mini":      {Prompt: 0.004, Completion: 0.016},
			"o1":           {Prompt: 0.015, Completion: 0.12},
		},
		Parallel: 1,
		Log:      LogConfig{Level: "info", Format: FormatText},
	}
}

// LoadFile reads path and overlays it on the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load decodes YAML from r over the defaults. Unknown fields are rejected.
// Price entries merge with the default table; lists replace it.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads path, or the file named by $TRIAGE_CONFIG when path is
// empty, or the defaults when neither is set.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Rules.MinSteps < 0 || c.Rules.MaxSteps < 0 {
		errs = append(errs, errors.New("rules: step bounds must not be negative"))
	}
	if c.Rules.MinSteps > 0 && c.Rules.MaxSteps > 0 && c.Rules.MinSteps > c.Rules.MaxSteps {
		errs = append(errs, fmt.Errorf("rules: min_steps %d exceeds max_steps %d", c.Rules.MinSteps, c.Rules.MaxSteps))
	}
	if c.Parallel < 0 {
		errs = append(errs, errors.New("parallel must not be negative"))
	}
	for name, p := range c.Prices {
		if p.Prompt < 0 || p.Completion < 0 {
			errs = append(errs, fmt.Errorf("prices.%s: negative price", name))
		}
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Apply returns base with the configured overrides.
func (r RulesConfig) Apply(base validate.Rules) validate.Rules {
	if r.MinSteps > 0 {
		base.MinSteps = r.MinSteps
	}
	if r.MaxSteps > 0 {
		base.MaxSteps = r.MaxSteps
	}
	if r.EntryAction != "" {
		base.EntryAction = r.EntryAction
	}
	if len(r.AllowedVars) > 0 {
		base.AllowedVars = append([]string(nil), r.AllowedVars...)
	}
	return base
}

// OpenAIConfig returns planner settings for the chat completions client.
func (p PlannerConfig) OpenAIConfig() planner.OpenAIConfig {
	return planner.OpenAIConfig{Endpoint: p.Endpoint, Timeout: p.Timeout}
}
