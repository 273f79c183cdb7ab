// Package observability provides the CLI's metrics and tracing
// instrumentation: a Prometheus registry dumped to the textfile
// collector format (policyproof is a one-shot CLI, not a scrape
// target, so push-on-exit via the textfile convention is the natural
// fit) and an OpenTelemetry span wrapping each command invocation.
package observability

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus instruments policyproof records across
// a single CLI invocation.
type Metrics struct {
	reg *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	ProveDuration  *prometheus.HistogramVec
	VerdictStatus  *prometheus.CounterVec
	CorpusSize     prometheus.Gauge
	CompileHashLen prometheus.Gauge
}

// NewMetrics builds a fresh registry and registers all instruments
// against it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		reg: reg,
		RunsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policyproof",
				Name:      "runs_total",
				Help:      "Total CLI command invocations, by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		ProveDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "policyproof",
				Name:      "prove_duration_seconds",
				Help:      "Wall-clock time spent simulating and proving a policy",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		VerdictStatus: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policyproof",
				Name:      "verdict_status_total",
				Help:      "Prover verdicts, by status",
			},
			[]string{"status"},
		),
		CorpusSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "policyproof",
				Name:      "corpus_size",
				Help:      "Number of traces in the corpus used by the last command",
			},
		),
		CompileHashLen: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "policyproof",
				Name:      "last_compile_hash_length",
				Help:      "Length in hex characters of the last compiled artifact's SHA-256 (a liveness signal: 0 means no compile has run)",
			},
		),
	}
}

// WriteTextfile renders every registered metric in the Prometheus
// textfile-collector format to path, atomically via a temp-file
// rename so node_exporter never observes a partial write.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create metrics textfile: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("encode metric family %s: %w", mf.GetName(), err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metrics textfile: %w", err)
	}
	return os.Rename(tmpPath, path)
}
