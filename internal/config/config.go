// Package config provides configuration types for policyproof.
//
// policyproof is a CLI, not a long-running server: most invocations need
// no config file at all (flags are enough), but a config file lets a repo
// pin shared defaults — the cardinality warning threshold, the default
// simulation seed, which history backend to record runs against — so
// every engineer's `policyproof prove` behaves identically without
// repeating flags.
package config

// Config is the top-level policyproof configuration.
type Config struct {
	// OutputFormat selects the default report encoding for `simulate`,
	// `prove`, and `explain` when --format is not given on the command line.
	// Valid values: "text", "json", "yaml".
	OutputFormat string `yaml:"output_format" mapstructure:"output_format" validate:"omitempty,oneof=text json yaml"`

	// Strict makes prove/compile treat Warning-severity check failures as
	// rejections, matching the --strict CLI flag's default when unset there.
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// CardinalityWarnThreshold is the distinct-value count at or above which the
	// cardinality-safety check fires a Warning for a field referenced by a
	// Keep-class rule. Defaults to 10000.
	CardinalityWarnThreshold int `yaml:"cardinality_warn_threshold" mapstructure:"cardinality_warn_threshold" validate:"omitempty,min=1"`

	// DefaultSeed seeds the simulation harness (C8) when --seed is not
	// given, so `policyproof simulate --chaos` reproduces the same run
	// across a team without everyone agreeing on a seed by hand.
	DefaultSeed uint64 `yaml:"default_seed" mapstructure:"default_seed"`

	// LogLevel sets the minimum slog level. Valid values: "debug", "info",
	// "warn", "error". Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DevMode enables verbose logging by forcing LogLevel to "debug".
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`

	// History configures where prove/compile run records are persisted.
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// AIProposer configures the optional `policyproof propose` backend.
	AIProposer AIProposerConfig `yaml:"ai_proposer" mapstructure:"ai_proposer"`
}

// HistoryConfig selects and configures the run-history backend.
type HistoryConfig struct {
	// Driver selects the backend. Valid values: "sqlite", "postgres", "none".
	// Defaults to "sqlite".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres none"`

	// SQLitePath is the database file path when Driver is "sqlite".
	// Defaults to "policyproof-history.db" in the working directory.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	// PostgresDSN is the connection string when Driver is "postgres".
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// AIProposerConfig configures the go-openai-backed `propose` subcommand.
// The API key itself is never a config field: it is read directly from
// the POLICYPROOF_AI_PROPOSER_API_KEY environment variable by the CLI
// adapter, so it can never end up committed to a config file or logged
// alongside the rest of Config.
type AIProposerConfig struct {
	// Enabled turns the AI proposer on. When false, `propose` exits 64
	// (usage error) rather than attempting a network call.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Model is the chat-completions model name, e.g. "gpt-4o-mini".
	// Defaults to "gpt-4o-mini".
	Model string `yaml:"model" mapstructure:"model"`
}

// SetDefaults applies sensible default values to the configuration. It
// runs before validation so optional fields never fail a "required" tag
// that only applies once a feature is turned on.
func (c *Config) SetDefaults() {
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CardinalityWarnThreshold == 0 {
		c.CardinalityWarnThreshold = 10_000
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "policyproof-history.db"
	}
	if c.AIProposer.Model == "" {
		c.AIProposer.Model = "gpt-4o-mini"
	}
	if c.DevMode {
		c.LogLevel = "debug"
	}
}
