package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/policyproof/policyproof/internal/domain/harness"
	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/simulate"
)

// parallelShardThreshold is the corpus size above which simulate shards
// across goroutines instead of running a single sequential pass; below
// it, sharding overhead isn't worth the parallelism.
const parallelShardThreshold = 20_000

var chaosScenario string

var simulateCmd = &cobra.Command{
	Use:   "simulate <policy-file>",
	Short: "Run the policy simulator, including chaos scenarios",
	Long: `simulate evaluates a policy against the corpus named by --corpus
and reports per-rule keep/drop counts and the effective sample rate.

With --chaos <scenario>, simulate instead runs one of the fixed
harness scenarios (CompileDeterminism, ProverConsistency, RoundTrip,
ChaosResilience, HighCardinality, PolicyEvolution) under --seed and
ignores the policy-file argument entirely: these scenarios generate
their own policies and corpora from the seed. --chaos all runs every
fixed scenario concurrently and reports all of them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if chaosScenario == "all" {
			reports := harness.RunConcurrent(harness.AllScenarios, seedFlag)
			out, err := renderHarnessReports(reports)
			if err != nil {
				return err
			}
			if err := writeOutput(out); err != nil {
				return err
			}
			for _, r := range reports {
				if !r.Passed {
					os.Exit(exitRejected)
				}
			}
			return nil
		}
		if chaosScenario != "" {
			known := false
			for _, n := range harness.AllScenarios {
				if string(n) == chaosScenario {
					known = true
				}
			}
			if !known {
				fmt.Fprintf(os.Stderr, "simulate: unknown --chaos scenario %q\n", chaosScenario)
				os.Exit(exitUsage)
			}
			report := harness.Run(harness.ScenarioName(chaosScenario), seedFlag)
			out, err := renderHarnessReport(report)
			if err != nil {
				return err
			}
			if err := writeOutput(out); err != nil {
				return err
			}
			if !report.Passed {
				os.Exit(exitRejected)
			}
			return nil
		}

		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "simulate: a policy-file argument is required unless --chaos is set")
			os.Exit(exitUsage)
		}

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

		var result simulate.Result
		if corpus.Len() >= parallelShardThreshold {
			result = simulate.SimulateParallel(p, corpus, runtime.GOMAXPROCS(0))
		} else {
			result = simulate.Simulate(p, corpus)
		}
		out, err := renderSimulateResult(p, result)
		if err != nil {
			return err
		}
		return writeOutput(out)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&chaosScenario, "chaos", "", "run a named harness scenario instead of simulating a policy")
	rootCmd.AddCommand(simulateCmd)
}

type ruleStatsReport struct {
	Rule    string `json:"rule" yaml:"rule"`
	Matched int    `json:"matched" yaml:"matched"`
	Kept    int    `json:"kept" yaml:"kept"`
	Dropped int    `json:"dropped" yaml:"dropped"`
}

type simulateReport struct {
	PerRule             []ruleStatsReport `json:"per_rule" yaml:"per_rule"`
	TotalKept           int               `json:"total_kept" yaml:"total_kept"`
	TotalDropped        int               `json:"total_dropped" yaml:"total_dropped"`
	EffectiveSampleRate float64           `json:"effective_sample_rate" yaml:"effective_sample_rate"`
}

func buildSimulateReport(p policy.Policy, r simulate.Result) simulateReport {
	rep := simulateReport{
		TotalKept:           r.TotalKept,
		TotalDropped:        r.TotalDropped,
		EffectiveSampleRate: r.EffectiveSampleRate,
	}
	// Report rules in evaluation order, then the no-match bucket last, so
	// output order is stable across runs regardless of map iteration.
	seen := make(map[string]bool, len(r.PerRule))
	for _, rule := range p.EvaluationOrder() {
		stats, ok := r.PerRule[rule.Name]
		if !ok {
			continue
		}
		seen[rule.Name] = true
		rep.PerRule = append(rep.PerRule, ruleStatsReport{Rule: rule.Name, Matched: stats.Matched, Kept: stats.Kept, Dropped: stats.Dropped})
	}
	var leftover []string
	for name := range r.PerRule {
		if !seen[name] {
			leftover = append(leftover, name)
		}
	}
	sort.Strings(leftover)
	for _, name := range leftover {
		stats := r.PerRule[name]
		rep.PerRule = append(rep.PerRule, ruleStatsReport{Rule: name, Matched: stats.Matched, Kept: stats.Kept, Dropped: stats.Dropped})
	}
	return rep
}

func renderSimulateResult(p policy.Policy, r simulate.Result) ([]byte, error) {
	rep := buildSimulateReport(p, r)
	switch format {
	case "json":
		return json.MarshalIndent(rep, "", "  ")
	case "yaml":
		return yaml.Marshal(rep)
	default:
		s := fmt.Sprintf("effective sample rate: %.4f (kept %d, dropped %d)\n", rep.EffectiveSampleRate, rep.TotalKept, rep.TotalDropped)
		for _, rs := range rep.PerRule {
			s += fmt.Sprintf("  %-24s matched=%-6d kept=%-6d dropped=%d\n", rs.Rule, rs.Matched, rs.Kept, rs.Dropped)
		}
		return []byte(s), nil
	}
}

type harnessReport struct {
	RunID    string   `json:"run_id" yaml:"run_id"`
	Scenario string   `json:"scenario" yaml:"scenario"`
	Seed     uint64   `json:"seed" yaml:"seed"`
	Passed   bool     `json:"passed" yaml:"passed"`
	Detail   string   `json:"detail" yaml:"detail"`
	Steps    []string `json:"steps,omitempty" yaml:"steps,omitempty"`
}

func buildHarnessReport(r harness.Report) harnessReport {
	rep := harnessReport{RunID: r.RunID, Scenario: string(r.Scenario), Seed: r.Seed, Passed: r.Passed, Detail: r.Detail}
	for _, cp := range r.Checkpoints {
		rep.Steps = append(rep.Steps, fmt.Sprintf("%d:%s:%s", cp.Step, cp.Label, cp.Hash))
	}
	return rep
}

func renderHarnessReportText(rep harnessReport) string {
	status := "PASS"
	if !rep.Passed {
		status = "FAIL"
	}
	s := fmt.Sprintf("[%s] %s (seed %d, run %s): %s\n", status, rep.Scenario, rep.Seed, rep.RunID, rep.Detail)
	for _, step := range rep.Steps {
		s += fmt.Sprintf("  %s\n", step)
	}
	return s
}

func renderHarnessReport(r harness.Report) ([]byte, error) {
	rep := buildHarnessReport(r)
	switch format {
	case "json":
		return json.MarshalIndent(rep, "", "  ")
	case "yaml":
		return yaml.Marshal(rep)
	default:
		return []byte(renderHarnessReportText(rep)), nil
	}
}

func renderHarnessReports(reports []harness.Report) ([]byte, error) {
	reps := make([]harnessReport, len(reports))
	for i, r := range reports {
		reps[i] = buildHarnessReport(r)
	}
	switch format {
	case "json":
		return json.MarshalIndent(reps, "", "  ")
	case "yaml":
		return yaml.Marshal(reps)
	default:
		var s string
		for _, rep := range reps {
			s += renderHarnessReportText(rep)
		}
		return []byte(s), nil
	}
}
