// Command policyproof is the CLI driver around the sampling-policy
// toolchain: it parses policy-text documents, simulates them against a
// trace corpus, proves them against fixed safety checks, and compiles
// approved policies into a downstream tail-sampling rules document.
package main

import "github.com/policyproof/policyproof/cmd/policyproof/cmd"

func main() {
	cmd.Execute()
}
