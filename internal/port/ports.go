// Package port declares the outbound interfaces the core's external
// collaborators implement: trace ingestion, run-history persistence, and
// AI-backed policy drafting. The core (policy, policytext, simulate,
// prove, compile, harness) never imports this package or any concrete
// adapter — ports are consumed only by the CLI driver.
package port

import (
	"context"

	"github.com/policyproof/policyproof/internal/domain/trace"
)

// TraceLoader produces a normalized Corpus from whatever wire format an
// external trace source uses (JSON, NDJSON spans, OTLP). Spec §6 treats
// this as an external collaborator: the core consumes only the
// resulting trace.Corpus.
type TraceLoader interface {
	Load(ctx context.Context, path string) (trace.Corpus, error)
}

// RunRecord is one historical prove/compile invocation, as persisted by
// a HistoryStore.
type RunRecord struct {
	ID          int64
	PolicyName  string
	PolicyHash  string
	VerdictJSON string
	ArtifactSHA string
	Command     string
}

// HistoryStore persists and queries run history. The CLI only appends
// records; no command reads them back.
type HistoryStore interface {
	Append(ctx context.Context, record RunRecord) (int64, error)
	LastForPolicy(ctx context.Context, policyHash string) (RunRecord, bool, error)
	Recent(ctx context.Context, policyName string, limit int) ([]RunRecord, error)
	Close() error
}

// AIProposer is the opaque external collaborator behind `policyproof
// propose`: it emits text in the policy format given a prompt made of
// the user's free-text prompt plus, when --corpus is set, a corpus
// summary. The core never imports
// this interface or any implementation of it.
type AIProposer interface {
	Propose(ctx context.Context, prompt string) (string, error)
}
