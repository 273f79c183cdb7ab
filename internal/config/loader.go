// Package config provides configuration loading for policyproof.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for policyproof.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("policyproof")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: POLICYPROOF_HISTORY_DRIVER, etc.
	viper.SetEnvPrefix("POLICYPROOF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a policyproof config
// file with an explicit YAML extension (.yaml or .yml). The explicit
// extension requirement keeps Viper's SetConfigName from matching the
// "policyproof" binary itself if it's sitting in the search directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".policyproof"),
		"/etc/policyproof",
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for
// policyproof.yaml or .yml, preferring .yaml. Returns the full path of
// the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "policyproof"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every config key for environment variable
// support. The AI proposer's API key is deliberately not among
// these: it is read directly via os.Getenv by the CLI adapter, never
// unmarshaled into Config, so it can never end up in a config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("output_format")
	_ = viper.BindEnv("strict")
	_ = viper.BindEnv("cardinality_warn_threshold")
	_ = viper.BindEnv("default_seed")
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("dev_mode")

	_ = viper.BindEnv("history.driver")
	_ = viper.BindEnv("history.sqlite_path")
	_ = viper.BindEnv("history.postgres_dsn")

	_ = viper.BindEnv("ai_proposer.enabled")
	_ = viper.BindEnv("ai_proposer.model")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: flags and environment variables alone are enough.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if none was found (flags/env only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
