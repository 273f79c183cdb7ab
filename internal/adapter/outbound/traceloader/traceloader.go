// Package traceloader implements port.TraceLoader for the corpus wire
// format described in spec §6: a JSON array of trace objects, one per
// element, with a fixed set of known fields and an open "attributes" bag.
package traceloader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// wireTrace mirrors the on-disk JSON shape of a single trace record.
type wireTrace struct {
	TraceID      string         `json:"trace_id"`
	DurationMS   float64        `json:"duration_ms"`
	Status       *uint16        `json:"status"`
	Service      *string        `json:"service"`
	Endpoint     *string        `json:"endpoint"`
	AnySpanError bool           `json:"any_span_error"`
	SpanCount    uint64         `json:"span_count"`
	Attributes   map[string]any `json:"attributes"`
}

// Loader reads a JSON corpus file from the local filesystem.
type Loader struct{}

// New builds a Loader. It holds no state; it exists so it can satisfy
// port.TraceLoader by value as well as by pointer.
func New() Loader { return Loader{} }

// Load reads the JSON array at path and normalizes it into a trace.Corpus.
func (Loader) Load(ctx context.Context, path string) (trace.Corpus, error) {
	select {
	case <-ctx.Done():
		return trace.Corpus{}, ctx.Err()
	default:
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return trace.Corpus{}, &apperr.LoaderError{Source: path, Cause: err}
	}

	var wire []wireTrace
	if err := json.Unmarshal(raw, &wire); err != nil {
		return trace.Corpus{}, &apperr.LoaderError{Source: path, Cause: err}
	}

	traces := make([]trace.Trace, 0, len(wire))
	for i, w := range wire {
		if w.TraceID == "" {
			return trace.Corpus{}, &apperr.LoaderError{
				Source: path,
				Cause:  fmt.Errorf("element %d: missing trace_id", i),
			}
		}
		attrs := make(map[string]trace.Value, len(w.Attributes))
		for k, v := range w.Attributes {
			val, err := convertAttribute(v)
			if err != nil {
				return trace.Corpus{}, &apperr.LoaderError{
					Source: path,
					Cause:  fmt.Errorf("trace %s: attribute %q: %w", w.TraceID, k, err),
				}
			}
			attrs[k] = val
		}
		traces = append(traces, trace.New(
			w.TraceID,
			time.Duration(w.DurationMS*float64(time.Millisecond)),
			w.Status,
			w.Service,
			w.Endpoint,
			w.AnySpanError,
			attrs,
			w.SpanCount,
		))
	}

	return trace.NewCorpus(traces), nil
}

// convertAttribute maps a decoded JSON scalar onto a trace.Value. JSON
// numbers decode as float64; we keep them as Float unless they carry no
// fractional part and fit an int64, matching how the policy-text format
// distinguishes "123" from "123.0".
func convertAttribute(v any) (trace.Value, error) {
	switch val := v.(type) {
	case string:
		return trace.String(val), nil
	case bool:
		return trace.Bool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return trace.Int(int64(val)), nil
		}
		return trace.Float(val), nil
	case nil:
		return trace.String(""), nil
	default:
		return trace.Value{}, fmt.Errorf("unsupported attribute type %T", v)
	}
}
