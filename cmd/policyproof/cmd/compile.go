package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/policyproof/policyproof/internal/adapter/outbound/rulesdoc"
	"github.com/policyproof/policyproof/internal/domain/compile"
	"github.com/policyproof/policyproof/internal/domain/prove"
	"github.com/policyproof/policyproof/internal/domain/simulate"
)

var compileCmd = &cobra.Command{
	Use:   "compile <policy-file>",
	Short: "Prove, then lower an approved policy to a rules document",
	Long: `compile runs the same check suite as prove and, if the verdict is
not Rejected, lowers the policy to the downstream rules document: a
Refinery-class YAML rule-based sampler definition plus its SHA-256
lockfile. With --dry-run, it prints the output path and the compiled
document's hash without writing anything to --output.

A Rejected verdict exits 1, the same exit code as prove: the verdict
is printed to stderr and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitUsage)
		}

		corpus, err := loadCorpus()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}

		metrics.CorpusSize.Set(float64(corpus.Len()))

		start := time.Now()
		sim := simulate.Simulate(p, corpus)
		verdict := prove.Prove(p, corpus, sim, prove.Options{CardinalityWarnThreshold: cfg.CardinalityWarnThreshold})
		metrics.ProveDuration.WithLabelValues(verdict.Status.String()).Observe(time.Since(start).Seconds())
		metrics.VerdictStatus.WithLabelValues(verdict.Status.String()).Inc()

		if verdict.Status == prove.Rejected {
			out, renderErr := renderVerdict(verdict)
			if renderErr != nil {
				return renderErr
			}
			fmt.Fprint(os.Stderr, string(out))
			os.Exit(exitRejected)
		}

		result, err := compile.Compile(p, verdict)
		if err != nil {
			return err
		}
		metrics.CompileHashLen.Set(float64(len(result.SHA256)))

		if dryRun {
			fmt.Printf("would write %s (sha256 %s)\n", outputOrDefault(), result.SHA256)
			if verdict.Status == prove.ApprovedWithWarnings {
				if strictFlag {
					os.Exit(exitRejected)
				}
				os.Exit(exitWarnings)
			}
			return nil
		}

		if outputPath == "" || outputPath == "-" {
			if err := writeOutput(result.CanonicalYAML); err != nil {
				return err
			}
		} else {
			writer := rulesdoc.NewWriter(outputPath, logger)
			if err := writer.Write(result); err != nil {
				return err
			}
		}

		recordRun(p, string(mustJSON(verdictReport(verdict))), result.SHA256, "compile")

		if verdict.Status == prove.ApprovedWithWarnings {
			if strictFlag {
				os.Exit(exitRejected)
			}
			os.Exit(exitWarnings)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func outputOrDefault() string {
	if outputPath == "" {
		return "stdout"
	}
	return outputPath
}
