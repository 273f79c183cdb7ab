// Package simulate implements the deterministic simulator (C5):
// evaluating a Policy against every Trace in a Corpus and aggregating
// per-rule and overall keep/drop statistics. Nothing here touches the
// clock, performs I/O, or draws from an RNG — Sample decisions are a
// pure function of trace_id and rate via a fixed, documented hash.
package simulate

import (
	"sync"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// Decision is the keep/drop outcome simulate records for one trace: the
// rule that produced it (policy.NoMatchRuleName for the fail-closed
// path, or the literal rule name, including the fallback rule's own
// name when a Sample action dropped the trace) and whether it was kept.
type Decision struct {
	RuleName string
	Kept     bool
}

// RuleStats aggregates one rule's contribution to a simulation.
type RuleStats struct {
	Matched int
	Kept    int
	Dropped int
}

// Result is the simulator's deterministic output (C5's SimulationResult).
type Result struct {
	PerRule             map[string]RuleStats
	TotalKept           int
	TotalDropped        int
	EffectiveSampleRate float64
	PerTrace            map[string]Decision
}

// Simulate implements `simulate(policy, corpus) -> SimulationResult`
// from spec §4.4: for each trace in corpus order, evaluate the policy,
// resolve Sample actions via the deterministic hash, and aggregate
// per-rule counters keyed by matched rule name (policy.NoMatchRuleName
// for traces no rule matched).
func Simulate(p policy.Policy, corpus trace.Corpus) Result {
	res := Result{
		PerRule:  make(map[string]RuleStats),
		PerTrace: make(map[string]Decision),
	}

	for _, t := range corpus.Traces() {
		d := p.Evaluate(t)
		kept := resolveKeep(d, t.TraceID)

		stats := res.PerRule[d.RuleName]
		stats.Matched++
		if kept {
			stats.Kept++
			res.TotalKept++
		} else {
			stats.Dropped++
			res.TotalDropped++
		}
		res.PerRule[d.RuleName] = stats
		res.PerTrace[t.TraceID] = Decision{RuleName: d.RuleName, Kept: kept}
	}

	denom := res.TotalKept + res.TotalDropped
	if denom < 1 {
		denom = 1
	}
	res.EffectiveSampleRate = float64(res.TotalKept) / float64(denom)

	return res
}

// SimulateParallel shards corpus across shards goroutines and merges their
// partial Results, for large corpora where a single pass over the teacher-
// sized trace volume (the high-cardinality path in particular) becomes the
// CLI's dominant cost. Each shard's decisions depend only on its own
// traces — resolveKeep's hash is a pure function of trace_id — so sharding
// changes nothing about which traces are kept; the merge step sums
// per-rule and total counters, which is commutative, so the merged Result
// is byte-for-byte identical to Simulate's regardless of shard count or
// goroutine scheduling order (P5 still holds). shards <= 1 runs
// sequentially with no goroutines spawned.
func SimulateParallel(p policy.Policy, corpus trace.Corpus, shards int) Result {
	traces := corpus.Traces()
	if shards < 2 || len(traces) < shards {
		return Simulate(p, corpus)
	}

	partials := make([]Result, shards)
	chunk := (len(traces) + shards - 1) / shards

	var wg sync.WaitGroup
	for s := 0; s < shards; s++ {
		start := s * chunk
		if start >= len(traces) {
			continue
		}
		end := start + chunk
		if end > len(traces) {
			end = len(traces)
		}

		wg.Add(1)
		go func(shard int, shardTraces []trace.Trace) {
			defer wg.Done()
			partials[shard] = Simulate(p, trace.NewCorpus(shardTraces))
		}(s, traces[start:end])
	}
	wg.Wait()

	return mergeResults(partials)
}

func mergeResults(partials []Result) Result {
	merged := Result{
		PerRule:  make(map[string]RuleStats),
		PerTrace: make(map[string]Decision),
	}
	for _, r := range partials {
		for name, stats := range r.PerRule {
			agg := merged.PerRule[name]
			agg.Matched += stats.Matched
			agg.Kept += stats.Kept
			agg.Dropped += stats.Dropped
			merged.PerRule[name] = agg
		}
		for id, d := range r.PerTrace {
			merged.PerTrace[id] = d
		}
		merged.TotalKept += r.TotalKept
		merged.TotalDropped += r.TotalDropped
	}

	denom := merged.TotalKept + merged.TotalDropped
	if denom < 1 {
		denom = 1
	}
	merged.EffectiveSampleRate = float64(merged.TotalKept) / float64(denom)
	return merged
}

// resolveKeep turns a Decision's Action into a concrete keep/drop bool,
// using the deterministic hash for Sample actions (P4).
func resolveKeep(d policy.Decision, traceID string) bool {
	switch d.Action.Kind {
	case policy.ActionKeep:
		return true
	case policy.ActionDrop:
		return false
	case policy.ActionSample:
		return decideSample(traceID, d.Action.Rate)
	default:
		return false
	}
}

// decideSample implements `hash64(trace_id) / 2^64 < rate` from spec
// §4.4: a fixed, documented, non-cryptographic 64-bit hash, stable
// across runs, processes, and hosts (P4). Switching this hash would
// silently break reproducibility of every historical simulation, per
// spec §9 — it is fixed for the lifetime of this format.
func decideSample(traceID string, rate float64) bool {
	h := hash64(traceID)
	// h / 2^64 < rate, rearranged to avoid floating-point division of
	// the full 64-bit range: compare h against rate*2^64 directly.
	threshold := rate * 18446744073709551616.0 // 2^64
	return float64(h) < threshold
}
