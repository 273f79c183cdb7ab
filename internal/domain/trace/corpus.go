package trace

// Corpus is an ordered, immutable collection of Trace values with a set
// of derived aggregate queries. Construction deduplicates by TraceID,
// last occurrence wins, preserving the position of first occurrence —
// matching the teacher's upsert-in-place convention for ordered entity
// lists.
type Corpus struct {
	traces []Trace
	index  map[string]int
}

// NewCorpus builds a Corpus from a sequence of traces, deduplicating by
// TraceID (last-wins) while preserving the order of first appearance.
func NewCorpus(traces []Trace) Corpus {
	index := make(map[string]int, len(traces))
	ordered := make([]Trace, 0, len(traces))
	for _, t := range traces {
		if pos, ok := index[t.TraceID]; ok {
			ordered[pos] = t
			continue
		}
		index[t.TraceID] = len(ordered)
		ordered = append(ordered, t)
	}
	return Corpus{traces: ordered, index: index}
}

// Traces returns the corpus's traces in construction order. The returned
// slice must not be mutated by callers.
func (c Corpus) Traces() []Trace { return c.traces }

// Len returns the number of traces in the corpus.
func (c Corpus) Len() int { return len(c.traces) }

// Get returns the trace with the given id, if present.
func (c Corpus) Get(traceID string) (Trace, bool) {
	pos, ok := c.index[traceID]
	if !ok {
		return Trace{}, false
	}
	return c.traces[pos], true
}

// Filter returns a new Corpus containing only traces for which predicate
// returns true, preserving relative order.
func (c Corpus) Filter(predicate func(Trace) bool) Corpus {
	kept := make([]Trace, 0, len(c.traces))
	for _, t := range c.traces {
		if predicate(t) {
			kept = append(kept, t)
		}
	}
	return NewCorpus(kept)
}

// Errors returns the subset of traces with IsError set.
func (c Corpus) Errors() Corpus {
	return c.Filter(func(t Trace) bool { return t.IsError })
}

// FieldCardinality returns the number of distinct values observed for a
// field path across the corpus. Traces where the field is missing do not
// contribute a value.
func (c Corpus) FieldCardinality(path string) int {
	return len(c.fieldValues(path))
}

// FieldDistribution returns a histogram of the string rendering of each
// distinct value observed for a field path.
func (c Corpus) FieldDistribution(path string) map[string]int {
	dist := make(map[string]int)
	for _, t := range c.traces {
		v, ok := t.Lookup(path)
		if !ok {
			continue
		}
		dist[v.String()]++
	}
	return dist
}

// fieldValues collects the set of distinct rendered values for path,
// keyed by their string rendering (sufficient for cardinality counting:
// two values with the same rendering are the same bucket for this
// purpose even across int/float promotion).
func (c Corpus) fieldValues(path string) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, t := range c.traces {
		v, ok := t.Lookup(path)
		if !ok {
			continue
		}
		seen[v.String()] = struct{}{}
	}
	return seen
}

// ErrorRate returns the fraction of traces with IsError set, in [0, 1].
// An empty corpus has an error rate of 0.
func (c Corpus) ErrorRate() float64 {
	if len(c.traces) == 0 {
		return 0
	}
	errored := 0
	for _, t := range c.traces {
		if t.IsError {
			errored++
		}
	}
	return float64(errored) / float64(len(c.traces))
}

// Summary is a compact aggregate view of a corpus, useful for CLI
// reporting and for assembling an AI-proposal prompt without shipping
// the full trace list.
type Summary struct {
	TotalTraces int
	ErrorRate   float64
	Services    map[string]int
}

// Summary computes the corpus's Summary.
func (c Corpus) Summary() Summary {
	services := make(map[string]int)
	for _, t := range c.traces {
		if t.Service != nil {
			services[*t.Service]++
		}
	}
	return Summary{
		TotalTraces: len(c.traces),
		ErrorRate:   c.ErrorRate(),
		Services:    services,
	}
}
