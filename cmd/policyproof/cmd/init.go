package cmd

import (
	"github.com/spf13/cobra"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/policytext"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Emit a starter policy-text document",
	Long: `init writes a minimal policy-text document to --output (or stdout):
a keep-errors rule that keeps every trace whose error field is true,
and a fallback rule that samples everything else at 10%. This is a
starting point for hand-editing, not a finished policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		starter, err := policy.New(1, "starter", 1000, []policy.Rule{
			{
				Name:        "keep-errors",
				Description: "always keep error traces",
				Match:       policy.FieldCompare{Field: "error", Op: policy.OpEq, Value: trace.Bool(true)},
				Action:      policy.Keep(),
				Priority:    10,
			},
			{
				Name:        "fallback",
				Description: "sample everything else at 10%",
				Match:       policy.Tautology{},
				Action:      policy.NewSample(0.1),
				Priority:    0,
			},
		})
		if err != nil {
			return err
		}

		return writeOutput([]byte(policytext.Serialize(starter)))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
