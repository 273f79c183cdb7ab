// Package cmd provides the CLI commands for policyproof.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/policyproof/policyproof/internal/config"
	"github.com/policyproof/policyproof/internal/observability"
)

// Exit codes, per the documented CLI contract: 0 success, 1 prover
// rejection, 2 warnings-but-approved, 64 usage error, 70 internal error.
const (
	exitSuccess  = 0
	exitRejected = 1
	exitWarnings = 2
	exitUsage    = 64
	exitInternal = 70
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger

	corpusPath  string
	outputPath  string
	format      string
	strictFlag  bool
	dryRun      bool
	diffAgainst string
	seedFlag    uint64

	metricsOutput string
	traceOutput   string

	metrics *observability.Metrics
	tracer  *observability.TracerProvider
	cmdSpan trace.Span
)

var rootCmd = &cobra.Command{
	Use:   "policyproof",
	Short: "policyproof - sampling-policy toolchain for tail-based trace sampling",
	Long: `policyproof parses, simulates, proves, and compiles sampling policies
for a tail-based trace-sampling proxy.

Quick start:
  1. Draft a policy: policyproof init > policy.toon
  2. Check it against a trace corpus: policyproof prove --corpus traces.json policy.toon
  3. Compile it for the downstream proxy: policyproof compile --output rules.yaml policy.toon

Configuration:
  Config is loaded from policyproof.yaml in the current directory,
  $HOME/.policyproof/, or /etc/policyproof/.

  Environment variables can override config values with the POLICYPROOF_ prefix.
  Example: POLICYPROOF_CARDINALITY_WARN_THRESHOLD=50000

Commands:
  init        Emit a starter policy-text document
  propose     Draft a policy via the AI proposer
  prove       Run the fixed safety checks against a corpus
  compile     Prove, then lower an approved policy to a rules document
  explain     Render a simulation report, optionally filtered
  simulate    Run the policy simulator, including chaos scenarios
  version     Print version information`,
}

// Execute runs the root command. cobra.OnInitialize(initConfig) starts
// the command's trace span once flags are parsed and --trace-output is
// known; Execute ends that span and, if --metrics-output is set,
// flushes a Prometheus textfile-collector snapshot on exit.
func Execute() {
	metrics = observability.NewMetrics()

	err := rootCmd.Execute()

	cmdName := "root"
	if len(os.Args) > 1 {
		cmdName = os.Args[1]
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RunsTotal.WithLabelValues(cmdName, outcome).Inc()

	if cmdSpan != nil {
		cmdSpan.End()
	}
	if tracer != nil {
		_ = tracer.Shutdown(context.Background())
	}
	if metricsOutput != "" {
		if writeErr := metrics.WriteTextfile(metricsOutput); writeErr != nil && logger != nil {
			logger.Warn("failed to write metrics textfile", "error", writeErr)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./policyproof.yaml)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "path to the trace corpus JSON file")
	rootCmd.PersistentFlags().StringVar(&outputPath, "output", "", "output path (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "output format: text, json, or yaml")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false, "treat warning-severity checks as rejections")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report what would happen without writing output")
	rootCmd.PersistentFlags().StringVar(&diffAgainst, "diff", "", "compare against another policy-text document")
	rootCmd.PersistentFlags().Uint64Var(&seedFlag, "seed", 0, "deterministic seed for simulate/chaos (default: config default_seed)")
	rootCmd.PersistentFlags().StringVar(&metricsOutput, "metrics-output", "", "write a Prometheus textfile-collector snapshot to this path on exit")
	rootCmd.PersistentFlags().StringVar(&traceOutput, "trace-output", "", "write the command's trace span as JSON to this path")
}

func initConfig() {
	config.InitViper(cfgFile)

	loaded, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "policyproof: %v\n", err)
		os.Exit(exitUsage)
	}
	cfg = loaded

	if format == "" {
		format = cfg.OutputFormat
	}
	if !strictFlag {
		strictFlag = cfg.Strict
	}
	if seedFlag == 0 {
		seedFlag = cfg.DefaultSeed
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	// requestID correlates every log line from this invocation; it has no
	// bearing on policy/decision output, only on where to look for this
	// run's lines among others.
	requestID := uuid.NewString()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("request_id", requestID)

	var traceWriter io.Writer
	if traceOutput != "" {
		f, err := os.Create(traceOutput)
		if err != nil {
			logger.Warn("failed to open trace output, tracing disabled", "error", err)
		} else {
			traceWriter = f
		}
	}
	tp, err := observability.NewTracerProvider(traceWriter)
	if err != nil {
		logger.Warn("failed to build tracer, tracing disabled", "error", err)
		tp, _ = observability.NewTracerProvider(nil)
	}
	tracer = tp

	cmdName := "root"
	if len(os.Args) > 1 {
		cmdName = os.Args[1]
	}
	_, cmdSpan = tracer.StartCommand(context.Background(), cmdName)
}

// writeOutput writes data to outputPath if set, else to stdout.
func writeOutput(data []byte) error {
	if outputPath == "" || outputPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}
