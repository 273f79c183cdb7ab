package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/policyproof/policyproof/internal/adapter/outbound/query"
	"github.com/policyproof/policyproof/internal/domain/policydiff"
	"github.com/policyproof/policyproof/internal/domain/simulate"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

var whereExpr string

var explainCmd = &cobra.Command{
	Use:   "explain <policy-file>",
	Short: "Render a simulation report, optionally filtered",
	Long: `explain simulates a policy against --corpus and prints one row per
trace: which rule matched and whether the trace was kept. --where
filters the rows with a CEL boolean expression over trace_id, rule,
kept, service, status, and duration (nanoseconds).

With --diff <other-policy-file>, explain instead prints the structural
diff between <policy-file> and the other policy and does not simulate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitUsage)
		}

		if diffAgainst != "" {
			other, err := loadPolicy(diffAgainst)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsage)
			}
			out, err := renderDiff(policydiff.Compute(p, other))
			if err != nil {
				return err
			}
			return writeOutput(out)
		}

		corpus, err := loadCorpus()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}

		result := simulate.Simulate(p, corpus)
		rows := buildRows(corpus, result)

		filtered, err := query.Filter(whereExpr, rows)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitUsage)
		}

		out, err := renderRows(filtered)
		if err != nil {
			return err
		}
		return writeOutput(out)
	},
}

func init() {
	explainCmd.Flags().StringVar(&whereExpr, "where", "", "CEL filter expression over trace_id, rule, kept, service, status, duration")
	rootCmd.AddCommand(explainCmd)
}

func buildRows(corpus trace.Corpus, result simulate.Result) []query.Row {
	rows := make([]query.Row, 0, corpus.Len())
	for _, t := range corpus.Traces() {
		d, ok := result.PerTrace[t.TraceID]
		if !ok {
			continue
		}
		row := query.Row{TraceID: t.TraceID, Rule: d.RuleName, Kept: d.Kept, Duration: int64(t.Duration)}
		if t.Service != nil {
			row.Service = *t.Service
		}
		if t.Status != nil {
			row.Status = int64(*t.Status)
		}
		rows = append(rows, row)
	}
	return rows
}

func renderRows(rows []query.Row) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(rows, "", "  ")
	case "yaml":
		return yaml.Marshal(rows)
	default:
		s := ""
		for _, r := range rows {
			keptStr := "drop"
			if r.Kept {
				keptStr = "keep"
			}
			s += fmt.Sprintf("%-16s %-20s %-4s service=%-16s status=%-4d duration=%dns\n", r.TraceID, r.Rule, keptStr, r.Service, r.Status, r.Duration)
		}
		return []byte(s), nil
	}
}

func renderDiff(d policydiff.Diff) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(d, "", "  ")
	case "yaml":
		return yaml.Marshal(d)
	default:
		if d.Empty() {
			return []byte("no differences\n"), nil
		}
		s := ""
		if d.VersionChanged {
			s += "version changed\n"
		}
		if d.BudgetChanged {
			s += "budget changed\n"
		}
		for _, c := range d.Changes {
			s += fmt.Sprintf("  %-18s %-24s %s -> %s\n", c.Kind, c.Rule, c.Before, c.After)
		}
		return []byte(s), nil
	}
}
