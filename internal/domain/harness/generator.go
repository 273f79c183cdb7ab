package harness

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

var fieldPaths = []string{"status", "duration", "service.name", "endpoint", "span_count", "user.id"}
var compareOps = []policy.CompareOp{policy.OpEq, policy.OpNeq, policy.OpGt, policy.OpGte, policy.OpLt, policy.OpLte, policy.OpExists, policy.OpGlob, policy.OpContains}

var stringFields = map[string]bool{"service.name": true, "endpoint": true}
var stringSamples = []string{"checkout", "billing", "/api/health", "*/health", "user-service"}

// GeneratePolicy builds a random, well-formed Policy: a tautology
// fallback rule at priority 0 plus ruleCount-1 random FieldCompare rules
// at distinct higher priorities. Every generated policy satisfies
// policy.Policy.Validate — generator output is always a legal
// construction target for P1/P2's roundtrip properties.
func GeneratePolicy(rng *rand.Rand, ruleCount int) policy.Policy {
	if ruleCount < 1 {
		ruleCount = 1
	}

	rules := make([]policy.Rule, 0, ruleCount)
	rules = append(rules, policy.Rule{
		Name:        "fallback",
		Description: "generated fallback rule",
		Match:       policy.Tautology{},
		Action:      randomAction(rng),
		Priority:    0,
	})

	for i := 1; i < ruleCount; i++ {
		rules = append(rules, policy.Rule{
			Name:        fmt.Sprintf("rule-%d", i),
			Description: fmt.Sprintf("generated rule %d", i),
			Match:       randomFieldCompare(rng),
			Action:      randomAction(rng),
			Priority:    i, // distinct priorities avoid source-order ambiguity under round-trip
		})
	}

	p, err := policy.New(1, "generated-policy", 1_000_000, rules)
	if err != nil {
		// GeneratePolicy's construction is internally consistent by
		// design; a validation failure here is a generator bug.
		panic(err)
	}
	return p
}

func randomAction(rng *rand.Rand) policy.Action {
	switch rng.IntN(3) {
	case 0:
		return policy.Keep()
	case 1:
		return policy.Drop()
	default:
		return policy.NewSample(rng.Float64())
	}
}

func randomFieldCompare(rng *rand.Rand) policy.MatchExpr {
	field := fieldPaths[rng.IntN(len(fieldPaths))]
	op := compareOps[rng.IntN(len(compareOps))]
	switch op {
	case policy.OpExists:
		return policy.FieldCompare{Field: field, Op: op}
	case policy.OpGlob, policy.OpContains:
		// Glob and contains only operate on strings, regardless of the
		// field's usual kind, so both generate string-valued literals —
		// exercising the quoted-literal round-trip through Serialize.
		return policy.FieldCompare{Field: field, Op: op, Value: trace.String(stringSamples[rng.IntN(len(stringSamples))])}
	default:
		if stringFields[field] {
			return policy.FieldCompare{Field: field, Op: op, Value: trace.String(stringSamples[rng.IntN(len(stringSamples))])}
		}
		return policy.FieldCompare{Field: field, Op: op, Value: trace.Int(int64(rng.IntN(1000)))}
	}
}

// GenerateCorpus builds a random corpus of n traces with a mix of error
// and non-error traces, deterministic under rng.
func GenerateCorpus(rng *rand.Rand, n int) trace.Corpus {
	traces := make([]trace.Trace, 0, n)
	for i := 0; i < n; i++ {
		var status *uint16
		if rng.IntN(10) == 0 {
			s := uint16(500 + rng.IntN(100))
			status = &s
		} else {
			s := uint16(200)
			status = &s
		}
		svc := fmt.Sprintf("service-%d", rng.IntN(5))
		dur := time.Duration(rng.IntN(10_000)) * time.Millisecond
		traces = append(traces, trace.New(
			fmt.Sprintf("%d", i),
			dur,
			status,
			&svc,
			nil,
			false,
			map[string]trace.Value{"user.id": trace.Int(int64(rng.IntN(n)))},
			uint64(1+rng.IntN(20)),
		))
	}
	return trace.NewCorpus(traces)
}
