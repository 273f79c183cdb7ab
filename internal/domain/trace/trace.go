// Package trace defines the normalized trace record (C3) and the corpus
// of traces it is aggregated into (C4). Traces are immutable after
// construction; every derived query is a pure function of the traces it
// was built from.
package trace

import "time"

// Trace is a normalized summary of one completed distributed trace, as
// produced by an external loader (JSON, NDJSON spans, or OTLP) and
// consumed by the simulator and prover. The core never parses the
// loader's wire formats; it only ever sees Trace values.
type Trace struct {
	// TraceID uniquely identifies the trace within a corpus.
	TraceID string
	// Duration is the trace's total wall-clock span.
	Duration time.Duration
	// Status is the HTTP-style status code of the root span, if known.
	Status *uint16
	// Service is the root span's service name, if known.
	Service *string
	// Endpoint is the root span's endpoint/route, if known.
	Endpoint *string
	// IsError is true iff any span in the trace set an error flag, or
	// Status is >= 500. Callers building a Trace are responsible for
	// this aggregation; New recomputes it defensively.
	IsError bool
	// Attributes holds arbitrary trace-level key/value pairs not covered
	// by the fixed summary fields above.
	Attributes map[string]Value
	// SpanCount is the number of spans that made up the trace.
	SpanCount uint64
}

// New constructs a Trace, recomputing IsError from Status per the
// invariant: is_error is true iff any span error flag is set OR
// status >= 500. anySpanError carries the caller's own span-level error
// aggregation (the "any span error flag is set" half of the invariant);
// New only adds the status-code half.
func New(traceID string, duration time.Duration, status *uint16, service, endpoint *string, anySpanError bool, attributes map[string]Value, spanCount uint64) Trace {
	isError := anySpanError
	if status != nil && *status >= 500 {
		isError = true
	}
	if attributes == nil {
		attributes = map[string]Value{}
	}
	return Trace{
		TraceID:    traceID,
		Duration:   duration,
		Status:     status,
		Service:    service,
		Endpoint:   endpoint,
		IsError:    isError,
		Attributes: attributes,
		SpanCount:  spanCount,
	}
}

// Lookup resolves a dotted field path against the fixed set of summary
// fields first, falling back to Attributes[path]. It never panics and
// never returns an error: a field that cannot be resolved simply reports
// ok=false, which the match engine (C2) treats as "missing".
func (t Trace) Lookup(path string) (Value, bool) {
	switch path {
	case "trace_id":
		return String(t.TraceID), true
	case "duration", "duration_ms":
		d := t.Duration
		if path == "duration_ms" {
			return Float(float64(d) / float64(time.Millisecond)), true
		}
		return Duration(d), true
	case "status", "http.status":
		if t.Status == nil {
			return Value{}, false
		}
		return Int(int64(*t.Status)), true
	case "service.name":
		if t.Service == nil {
			return Value{}, false
		}
		return String(*t.Service), true
	case "endpoint":
		if t.Endpoint == nil {
			return Value{}, false
		}
		return String(*t.Endpoint), true
	case "error", "is_error":
		return Bool(t.IsError), true
	case "span_count":
		return Int(int64(t.SpanCount)), true
	default:
		v, ok := t.Attributes[path]
		return v, ok
	}
}
