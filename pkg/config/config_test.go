package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/triage/pkg/kernel/validate"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if len(cfg.Configurations) != 4 {
		t.Errorf("configurations = %v", cfg.Configurations)
	}
	for _, c := range cfg.Configurations {
		if _, ok := cfg.Prices[c]; !ok {
			t.Errorf("no price for default configuration %s", c)
		}
	}
	if p := cfg.Prices["o1"]; p.Prompt != 0.015 || p.Completion != 0.12 {
		t.Errorf("o1 price = %+v", p)
	}
}

func TestLoad_Overlay(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
planner:
  timeout: 15s
configurations: [gpt-4.1, local]
prices:
  local: {prompt: 0.0001, completion: 0.0002}
rules:
  max_steps: 6
parallel: 4
log:
  level: debug
  format: json
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Planner.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.Planner.Timeout)
	}
	if cfg.Planner.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("api_key_env lost its default: %q", cfg.Planner.APIKeyEnv)
	}
	if len(cfg.Configurations) != 2 || cfg.Configurations[1] != "local" {
		t.Errorf("configurations = %v", cfg.Configurations)
	}
	if _, ok := cfg.Prices["gpt-4.1"]; !ok {
		t.Error("default prices must merge with the file's")
	}
	if cfg.Prices["local"].Completion != 0.0002 {
		t.Errorf("local price = %+v", cfg.Prices["local"])
	}
	if cfg.Parallel != 4 || cfg.Log.Format != FormatJSON {
		t.Errorf("parallel/log = %d/%+v", cfg.Parallel, cfg.Log)
	}
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if cfg.Planner.Endpoint != Default().Planner.Endpoint {
		t.Errorf("endpoint = %q", cfg.Planner.Endpoint)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "planer: {}\n", "planer"},
		{"step bounds", "rules: {min_steps: 4, max_steps: 2}\n", "exceeds"},
		{"negative price", "prices: {x: {prompt: -1}}\n", "prices.x"},
		{"bad level", "log: {level: loud}\n", "log"},
		{"bad format", "log: {format: xml}\n", "xml"},
		{"bad duration", "planner: {timeout: soon}\n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvFile, "")
	cfg, err := Resolve("")
	if err != nil || cfg.Parallel != 1 {
		t.Fatalf("Resolve(\"\") = %+v, %v", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "triage.yaml")
	if err := os.WriteFile(path, []byte("parallel: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvFile, path)
	cfg, err = Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parallel != 3 {
		t.Errorf("parallel from $%s = %d, want 3", EnvFile, cfg.Parallel)
	}

	if _, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestRulesConfig_Apply(t *testing.T) {
	base := validate.Rules{MinSteps: 2, MaxSteps: 5, EntryAction: "classify_ticket", AllowedVars: []string{"ticket"}}

	if got := (RulesConfig{}).Apply(base); got.MaxSteps != 5 || got.EntryAction != "classify_ticket" {
		t.Errorf("zero overrides changed rules: %+v", got)
	}

	got := RulesConfig{MaxSteps: 8, AllowedVars: []string{"ticket", "owner"}}.Apply(base)
	if got.MinSteps != 2 || got.MaxSteps != 8 || len(got.AllowedVars) != 2 {
		t.Errorf("rules = %+v", got)
	}
	if len(base.AllowedVars) != 1 {
		t.Error("Apply modified the base rules")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := LogConfig{Level: "warn", Format: FormatJSON}.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown", "case", "csv")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %q, want one warning", lines)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "shown" || rec["case"] != "csv" {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	text, err := LogConfig{Format: FormatText, NoColor: true}.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	text.Info("plan executed", "steps", 5)
	if !strings.Contains(buf.String(), "plan executed") || !strings.Contains(buf.String(), "steps=5") {
		t.Errorf("text output = %q", buf.String())
	}

	if _, err := (LogConfig{Format: "xml"}).NewLogger(&buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
