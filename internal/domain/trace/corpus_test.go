package trace

import (
	"testing"
	"time"
)

func mkTrace(id string, isError bool, svc string) Trace {
	return New(id, time.Second, nil, &svc, nil, isError, nil, 1)
}

func TestNewCorpus_DedupLastWinsPreservesPosition(t *testing.T) {
	t.Parallel()

	c := NewCorpus([]Trace{
		mkTrace("a", false, "svc1"),
		mkTrace("b", false, "svc1"),
		mkTrace("a", true, "svc2"),
	})

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Get(a) ok = false")
	}
	if !got.IsError || *got.Service != "svc2" {
		t.Errorf("Get(a) = %+v, want the second occurrence's fields", got)
	}
	// position preserved: "a" should still be first in Traces().
	if c.Traces()[0].TraceID != "a" {
		t.Errorf("Traces()[0].TraceID = %q, want \"a\"", c.Traces()[0].TraceID)
	}
}

func TestCorpus_Get_Missing(t *testing.T) {
	t.Parallel()

	c := NewCorpus(nil)
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
}

func TestCorpus_Filter(t *testing.T) {
	t.Parallel()

	c := NewCorpus([]Trace{
		mkTrace("a", true, "svc1"),
		mkTrace("b", false, "svc1"),
		mkTrace("c", true, "svc2"),
	})

	errs := c.Errors()
	if errs.Len() != 2 {
		t.Fatalf("Errors().Len() = %d, want 2", errs.Len())
	}
	for _, tr := range errs.Traces() {
		if !tr.IsError {
			t.Errorf("Errors() contained non-error trace %q", tr.TraceID)
		}
	}
}

func TestCorpus_FieldCardinalityAndDistribution(t *testing.T) {
	t.Parallel()

	c := NewCorpus([]Trace{
		mkTrace("a", false, "svc1"),
		mkTrace("b", false, "svc1"),
		mkTrace("c", false, "svc2"),
	})

	if got := c.FieldCardinality("service.name"); got != 2 {
		t.Errorf("FieldCardinality(service.name) = %d, want 2", got)
	}

	dist := c.FieldDistribution("service.name")
	if dist["svc1"] != 2 || dist["svc2"] != 1 {
		t.Errorf("FieldDistribution(service.name) = %v, want svc1:2 svc2:1", dist)
	}
}

func TestCorpus_FieldCardinality_MissingField(t *testing.T) {
	t.Parallel()

	c := NewCorpus([]Trace{mkTrace("a", false, "svc1")})
	if got := c.FieldCardinality("nonexistent.path"); got != 0 {
		t.Errorf("FieldCardinality(nonexistent.path) = %d, want 0", got)
	}
}

func TestCorpus_ErrorRate(t *testing.T) {
	t.Parallel()

	empty := NewCorpus(nil)
	if got := empty.ErrorRate(); got != 0 {
		t.Errorf("empty ErrorRate() = %v, want 0", got)
	}

	c := NewCorpus([]Trace{
		mkTrace("a", true, "svc1"),
		mkTrace("b", false, "svc1"),
		mkTrace("c", false, "svc1"),
		mkTrace("d", true, "svc1"),
	})
	if got := c.ErrorRate(); got != 0.5 {
		t.Errorf("ErrorRate() = %v, want 0.5", got)
	}
}

func TestCorpus_Summary(t *testing.T) {
	t.Parallel()

	c := NewCorpus([]Trace{
		mkTrace("a", true, "svc1"),
		mkTrace("b", false, "svc1"),
		mkTrace("c", false, "svc2"),
	})

	s := c.Summary()
	if s.TotalTraces != 3 {
		t.Errorf("TotalTraces = %d, want 3", s.TotalTraces)
	}
	wantRate := 1.0 / 3.0
	if s.ErrorRate != wantRate {
		t.Errorf("ErrorRate = %v, want %v", s.ErrorRate, wantRate)
	}
	if s.Services["svc1"] != 2 || s.Services["svc2"] != 1 {
		t.Errorf("Services = %v, want svc1:2 svc2:1", s.Services)
	}
}
