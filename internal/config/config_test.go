package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.OutputFormat != "text" {
		t.Errorf("OutputFormat = %q, want %q", cfg.OutputFormat, "text")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.CardinalityWarnThreshold != 10_000 {
		t.Errorf("CardinalityWarnThreshold = %d, want 10000", cfg.CardinalityWarnThreshold)
	}
	if cfg.History.Driver != "sqlite" {
		t.Errorf("History.Driver = %q, want %q", cfg.History.Driver, "sqlite")
	}
	if cfg.History.SQLitePath != "policyproof-history.db" {
		t.Errorf("History.SQLitePath = %q, want %q", cfg.History.SQLitePath, "policyproof-history.db")
	}
	if cfg.AIProposer.Model != "gpt-4o-mini" {
		t.Errorf("AIProposer.Model = %q, want %q", cfg.AIProposer.Model, "gpt-4o-mini")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		OutputFormat:             "json",
		CardinalityWarnThreshold: 500,
		History:                  HistoryConfig{Driver: "postgres", PostgresDSN: "postgres://x"},
	}
	cfg.SetDefaults()

	if cfg.OutputFormat != "json" {
		t.Errorf("OutputFormat was overwritten: got %q, want %q", cfg.OutputFormat, "json")
	}
	if cfg.CardinalityWarnThreshold != 500 {
		t.Errorf("CardinalityWarnThreshold was overwritten: got %d, want 500", cfg.CardinalityWarnThreshold)
	}
	if cfg.History.Driver != "postgres" {
		t.Errorf("History.Driver was overwritten: got %q, want %q", cfg.History.Driver, "postgres")
	}
}

func TestConfig_SetDefaults_DevModeForcesDebugLogging(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q with DevMode set", cfg.LogLevel, "debug")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "policyproof.yaml")
	_ = os.WriteFile(cfgPath, []byte("output_format: json\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "policyproof.yml")
	_ = os.WriteFile(cfgPath, []byte("output_format: json\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "policyproof" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "policyproof"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "policyproof.yaml")
	ymlPath := filepath.Join(dir, "policyproof.yml")
	_ = os.WriteFile(yamlPath, []byte("output_format: json\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("output_format: yaml\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
