package harness

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/policytext"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// Corruption is the closed set of chaos injections spec §4.7 names.
// Closed deliberately: ChaosResilience's reproducibility guarantee (a
// failing seed always replays the same failure) requires the corruption
// space to be fixed and enumerable, not open-ended.
type Corruption int

const (
	InvalidStatus Corruption = iota
	ZeroDuration
	EmptyServiceName
	ExtremeValues
	MalformedMatchExpr
	RemoveFallback
)

func (c Corruption) String() string {
	switch c {
	case InvalidStatus:
		return "invalid-status"
	case ZeroDuration:
		return "zero-duration"
	case EmptyServiceName:
		return "empty-service-name"
	case ExtremeValues:
		return "extreme-values"
	case MalformedMatchExpr:
		return "malformed-match-expr"
	case RemoveFallback:
		return "remove-fallback"
	default:
		return "unknown"
	}
}

var allCorruptions = []Corruption{InvalidStatus, ZeroDuration, EmptyServiceName, ExtremeValues, MalformedMatchExpr, RemoveFallback}

// corruptCorpus applies a trace-level corruption to a fraction
// (intensity, in [0, 0.5]) of the corpus's traces.
func corruptCorpus(rng *rand.Rand, corpus trace.Corpus, kind Corruption, intensity float64) trace.Corpus {
	traces := corpus.Traces()
	mutated := make([]trace.Trace, len(traces))
	copy(mutated, traces)

	for i := range mutated {
		if rng.Float64() >= intensity {
			continue
		}
		switch kind {
		case InvalidStatus:
			s := uint16(999)
			mutated[i].Status = &s
			mutated[i].IsError = true
		case ZeroDuration:
			mutated[i].Duration = 0
		case EmptyServiceName:
			empty := ""
			mutated[i].Service = &empty
		case ExtremeValues:
			mutated[i].Duration = time.Duration(1<<62 - 1)
			huge := uint16(65535)
			mutated[i].Status = &huge
			mutated[i].SpanCount = 1 << 32
		}
	}
	return trace.NewCorpus(mutated)
}

// corruptRemoveFallback strips every tautology rule from a policy,
// bypassing policy.New's constructor (which does not itself require a
// fallback) to produce a structurally valid but fallback-less policy —
// exactly the input shape spec §8 scenario 6 expects the prover to
// reject with a Critical fallback-rule failure.
func corruptRemoveFallback(p policy.Policy) policy.Policy {
	kept := make([]policy.Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if _, ok := r.Match.(policy.Tautology); ok {
			continue
		}
		kept = append(kept, r)
	}
	return policy.Policy{Version: p.Version, Name: p.Name, BudgetPerSecond: p.BudgetPerSecond, Rules: kept}
}

// corruptMalformedMatchExpr serializes p, replaces one rule's match
// column with syntactically invalid text, and reparses — exercising the
// codec's error path directly. The returned error, if non-nil, is
// expected to be an *apperr.ParseError: a structured rejection, not a
// panic.
func corruptMalformedMatchExpr(p policy.Policy) (policy.Policy, error) {
	text := policytext.Serialize(p)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Contains(line, "true,") || strings.Contains(line, "==") || strings.Contains(line, "exists") {
			lines[i] = strings.Replace(line, ",", ",&&&malformed(((,", 1)
			break
		}
	}
	reparsed, err := policytext.Parse(strings.Join(lines, "\n"))
	return reparsed, err
}

// applyCorruption dispatches one corruption onto (p, corpus) at the
// given intensity, returning the corrupted policy/corpus and, for
// MalformedMatchExpr, any reparse error (expected to be a structured
// ParseError).
func applyCorruption(rng *rand.Rand, p policy.Policy, corpus trace.Corpus, kind Corruption, intensity float64) (policy.Policy, trace.Corpus, error) {
	switch kind {
	case RemoveFallback:
		return corruptRemoveFallback(p), corpus, nil
	case MalformedMatchExpr:
		corrupted, err := corruptMalformedMatchExpr(p)
		if err != nil {
			return p, corpus, err
		}
		return corrupted, corpus, nil
	default:
		return p, corruptCorpus(rng, corpus, kind, intensity), nil
	}
}
