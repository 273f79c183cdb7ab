package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/policyproof/policyproof/internal/domain/prove"
	"github.com/policyproof/policyproof/internal/domain/simulate"
)

var proveCmd = &cobra.Command{
	Use:   "prove <policy-file>",
	Short: "Run the fixed safety checks against a corpus",
	Long: `prove parses a policy-text document, simulates it against the
corpus named by --corpus, and runs the fixed check suite: fallback-rule,
error-coverage, must-keep-coverage, budget-compliance,
cardinality-safety, rule-overlap, and priority-gaps.

Exit codes: 0 approved, 1 rejected, 2 approved with warnings (1 instead
of 2 when --strict is set).`,
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

		out, err := renderVerdict(verdict)
		if err != nil {
			return err
		}
		if err := writeOutput(out); err != nil {
			return err
		}

		recordRun(p, string(mustJSON(verdictReport(verdict))), "", "prove")

		switch verdict.Status {
		case prove.Rejected:
			os.Exit(exitRejected)
		case prove.ApprovedWithWarnings:
			if strictFlag {
				os.Exit(exitRejected)
			}
			os.Exit(exitWarnings)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proveCmd)
}

// renderVerdict encodes a Verdict as text, JSON, or YAML per --format.
func renderVerdict(v prove.Verdict) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(verdictReport(v), "", "  ")
	case "yaml":
		return yaml.Marshal(verdictReport(v))
	default:
		return []byte(renderVerdictText(v)), nil
	}
}

type checkReport struct {
	ID       string `json:"id" yaml:"id"`
	Severity string `json:"severity" yaml:"severity"`
	Passed   bool   `json:"passed" yaml:"passed"`
	Message  string `json:"message" yaml:"message"`
}

type verdictReportT struct {
	Status string        `json:"status" yaml:"status"`
	Checks []checkReport `json:"checks" yaml:"checks"`
}

func verdictReport(v prove.Verdict) verdictReportT {
	out := verdictReportT{Status: v.Status.String()}
	for _, c := range v.Checks {
		out.Checks = append(out.Checks, checkReport{
			ID: c.ID, Severity: c.Severity.String(), Passed: c.Passed, Message: c.Message,
		})
	}
	return out
}

// mustJSON marshals v, falling back to an empty object on the
// essentially-impossible error from marshaling our own report types.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func renderVerdictText(v prove.Verdict) string {
	s := fmt.Sprintf("verdict: %s\n", v.Status)
	for _, c := range v.Checks {
		mark := "pass"
		if !c.Passed {
			mark = "FAIL"
		}
		s += fmt.Sprintf("  [%s] %-22s (%s) %s\n", mark, c.ID, c.Severity, c.Message)
	}
	return s
}
