package simulate

import "github.com/cespare/xxhash/v2"

// hash64 is the fixed, documented 64-bit hash backing sample decisions
// (spec §9's "sample-hash choice" design note). It is xxhash64 — the
// same hash the teacher's policy-evaluation cache keys on — applied
// directly to the trace id's bytes. No seed, no salt: the same trace id
// always hashes to the same value on any run, process, or host.
func hash64(traceID string) uint64 {
	return xxhash.Sum64String(traceID)
}
