package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/policyproof/policyproof/internal/adapter/outbound/history"
	"github.com/policyproof/policyproof/internal/adapter/outbound/pgstore"
	"github.com/policyproof/policyproof/internal/adapter/outbound/traceloader"
	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/policytext"
	"github.com/policyproof/policyproof/internal/domain/trace"
	"github.com/policyproof/policyproof/internal/port"
)

// loadPolicy reads and parses a policy-text document from path.
func loadPolicy(path string) (policy.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return policytext.Parse(string(raw))
}

// loadCorpus loads the trace corpus named by --corpus via the JSON
// trace loader. It is a usage error for --corpus to be unset wherever a
// corpus-consuming command needs one.
func loadCorpus() (trace.Corpus, error) {
	if corpusPath == "" {
		return trace.Corpus{}, fmt.Errorf("--corpus is required")
	}
	loader := traceloader.New()
	return loader.Load(context.Background(), corpusPath)
}

// openHistoryStore opens the configured run-history backend. Returns a
// nil store with no error when history is disabled ("none").
func openHistoryStore() (port.HistoryStore, error) {
	switch cfg.History.Driver {
	case "none":
		return nil, nil
	case "postgres":
		store := pgstore.Open(cfg.History.PostgresDSN)
		if err := store.InitSchema(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return history.Open(cfg.History.SQLitePath)
	}
}

// recordRun persists a run record if history is enabled, logging but not
// failing the command on a history-store error: history is a side
// record, not load-bearing for prove/compile correctness.
func recordRun(p policy.Policy, verdictJSON, artifactSHA, command string) {
	store, err := openHistoryStore()
	if err != nil || store == nil {
		if err != nil && logger != nil {
			logger.Warn("failed to open history store", "error", err)
		}
		return
	}
	defer store.Close()

	hash := policyHash(p)
	_, err = store.Append(context.Background(), port.RunRecord{
		PolicyName:  p.Name,
		PolicyHash:  hash,
		VerdictJSON: verdictJSON,
		ArtifactSHA: artifactSHA,
		Command:     command,
	})
	if err != nil && logger != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}

// policyHash is the content hash used to key a policy's run history: the
// SHA-256 of its canonical serialized text.
func policyHash(p policy.Policy) string {
	sum := sha256.Sum256([]byte(policytext.Serialize(p)))
	return hex.EncodeToString(sum[:])
}
