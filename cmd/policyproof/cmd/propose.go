package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/policyproof/policyproof/internal/adapter/outbound/aidraft"
	"github.com/policyproof/policyproof/internal/domain/policytext"
)

const apiKeyEnvVar = "POLICYPROOF_AI_PROPOSER_API_KEY"

var (
	proposePrompt string
	showConfig    bool
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Draft a policy via the AI proposer",
	Long: `propose sends a free-text prompt, optionally accompanied by a
summary of the corpus named by --corpus (trace count, error rate and
services), to the configured AI proposer and writes its
response to --output (or stdout) as a policy-text document.

propose requires ai_proposer.enabled: true in config and the
POLICYPROOF_AI_PROPOSER_API_KEY environment variable set; it exits 64
(usage error) otherwise. The key is never read from a config file.
The proposer's output is parsed before being written, so a malformed
response surfaces as a parse error rather than a silently broken
policy file.

--show-config prints the configured model and a one-way fingerprint
of the API key (never the key itself), for confirming which key is
active without exposing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.AIProposer.Enabled {
			fmt.Fprintln(os.Stderr, "propose: ai_proposer.enabled is false in config")
			os.Exit(exitUsage)
		}

		apiKey := os.Getenv(apiKeyEnvVar)
		if apiKey == "" {
			fmt.Fprintf(os.Stderr, "propose: %s is not set\n", apiKeyEnvVar)
			os.Exit(exitUsage)
		}

		if showConfig {
			fingerprint, err := aidraft.Fingerprint(apiKey)
			if err != nil {
				return err
			}
			fmt.Printf("model: %s\napi key fingerprint: %s\n", cfg.AIProposer.Model, fingerprint)
			return nil
		}

		if proposePrompt == "" {
			fmt.Fprintln(os.Stderr, "propose: --prompt is required")
			os.Exit(exitUsage)
		}

		proposer := aidraft.New(apiKey, cfg.AIProposer.Model)

		prompt := proposePrompt
		if corpusPath != "" {
			corpus, err := loadCorpus()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitInternal)
			}
			summary := corpus.Summary()
			prompt = fmt.Sprintf("%s\n\ncorpus summary: %d traces, error rate %.4f, services %v",
				proposePrompt, summary.TotalTraces, summary.ErrorRate, summary.Services)
		}

		raw, err := proposer.Propose(context.Background(), prompt)
		if err != nil {
			return err
		}

		if _, err := policytext.Parse(raw); err != nil {
			return fmt.Errorf("ai proposer returned an unparsable policy: %w", err)
		}

		return writeOutput([]byte(raw))
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposePrompt, "prompt", "", "free-text instruction for the AI proposer")
	proposeCmd.Flags().BoolVar(&showConfig, "show-config", false, "print the configured model and API key fingerprint, then exit")
	rootCmd.AddCommand(proposeCmd)
}
