package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, ".propelrc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataDir != ".propel" {
		t.Errorf("DataDir = %q, want .propel", cfg.DataDir)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0] != "builder" {
		t.Errorf("Agents = %v, want [builder]", cfg.Agents)
	}
	if cfg.ReasoningTimeout != 30*time.Second {
		t.Errorf("ReasoningTimeout = %s, want 30s", cfg.ReasoningTimeout)
	}
	if cfg.ReasoningAttempts != 3 {
		t.Errorf("ReasoningAttempts = %d, want 3", cfg.ReasoningAttempts)
	}
	if cfg.RecallWeights != DefaultRecallWeights() {
		t.Errorf("RecallWeights = %+v, want defaults", cfg.RecallWeights)
	}
}

func TestLoadConfigReadsValues(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
data_dir: .workspace
agents:
  - builder
  - reviewer
reasoning:
  timeout: 45s
  max_attempts: 5
recall:
  description: 0.4
  tags: 0.3
  task_type: 0.1
  recency: 0.1
  complexity: 0.1
`)
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataDir != ".workspace" {
		t.Errorf("DataDir = %q, want .workspace", cfg.DataDir)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[1] != "reviewer" {
		t.Errorf("Agents = %v", cfg.Agents)
	}
	if cfg.ReasoningTimeout != 45*time.Second {
		t.Errorf("ReasoningTimeout = %s, want 45s", cfg.ReasoningTimeout)
	}
	if cfg.ReasoningAttempts != 5 {
		t.Errorf("ReasoningAttempts = %d, want 5", cfg.ReasoningAttempts)
	}
	if cfg.RecallWeights.Description != 0.4 {
		t.Errorf("Description weight = %v, want 0.4", cfg.RecallWeights.Description)
	}
}

func TestLoadConfigMissingKeysKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "data_dir: elsewhere\n")
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataDir != "elsewhere" {
		t.Errorf("DataDir = %q, want elsewhere", cfg.DataDir)
	}
	if cfg.ReasoningTimeout != 30*time.Second {
		t.Errorf("ReasoningTimeout = %s, want default 30s", cfg.ReasoningTimeout)
	}
	if cfg.RecallWeights != DefaultRecallWeights() {
		t.Errorf("RecallWeights = %+v, want defaults", cfg.RecallWeights)
	}
}

func TestLoadConfigParsesCadence(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
cadence:
  - name: daily-standup
    type: standup
    schedule: "0 9 * * 1-5"
    participants:
      - builder
      - reviewer
`)
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Cadence) != 1 {
		t.Fatalf("Cadence has %d entries, want 1", len(cfg.Cadence))
	}
	meeting := cfg.Cadence[0]
	if meeting.Name != "daily-standup" || meeting.Type != models.MeetingStandup {
		t.Errorf("cadence meeting = %+v", meeting)
	}
	if meeting.Schedule != "0 9 * * 1-5" {
		t.Errorf("schedule = %q", meeting.Schedule)
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "data_dir: [unclosed\n")
	cm := NewConfigurationManager(dir)

	if _, err := cm.LoadConfig(); err == nil {
		t.Fatal("LoadConfig() succeeded on malformed YAML")
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(defaultConfig()); err != nil {
		t.Errorf("ValidateConfig(defaults) error = %v", err)
	}
}

func TestValidateConfigCollectsAllProblems(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := &Config{
		DataDir:          "",
		Agents:           nil,
		ReasoningTimeout: -time.Second,
		RecallWeights:    RecallWeights{Description: 1.5},
		Cadence: []CadenceMeeting{
			{Name: "", Type: "retro", Schedule: ""},
		},
	}

	err := cm.ValidateConfig(cfg)
	if err == nil {
		t.Fatal("ValidateConfig() accepted a thoroughly invalid config")
	}
	for _, want := range []string{
		"data_dir must not be empty",
		"agents must name at least one agent",
		"reasoning.timeout must be positive",
		"reasoning.max_attempts must be positive",
		"recall.description 1.5 is invalid",
		"cadence meeting name must not be empty",
		"has no schedule",
		`type "retro" is invalid`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateConfigNil(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("ValidateConfig(nil) succeeded")
	}
}
