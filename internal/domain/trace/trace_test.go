package trace

import (
	"testing"
	"time"
)

func TestNew_IsErrorAggregation(t *testing.T) {
	t.Parallel()

	okStatus := uint16(200)
	errStatus := uint16(503)

	tests := []struct {
		name         string
		status       *uint16
		anySpanError bool
		wantError    bool
	}{
		{"no status, no span error", nil, false, false},
		{"ok status, span error flag set", &okStatus, true, true},
		{"5xx status, no span error flag", &errStatus, false, true},
		{"ok status, no span error", &okStatus, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := New("t1", time.Second, tt.status, nil, nil, tt.anySpanError, nil, 1)
			if tr.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", tr.IsError, tt.wantError)
			}
		})
	}
}

func TestTrace_Lookup(t *testing.T) {
	t.Parallel()

	svc := "checkout"
	endpoint := "/pay"
	status := uint16(500)
	tr := New("t1", 250*time.Millisecond, &status, &svc, &endpoint, false,
		map[string]Value{"user.id": Int(42)}, 3)

	tests := []struct {
		path    string
		wantOK  bool
		wantStr string
	}{
		{"trace_id", true, "t1"},
		{"service.name", true, "checkout"},
		{"endpoint", true, "/pay"},
		{"error", true, "true"},
		{"is_error", true, "true"},
		{"span_count", true, "3"},
		{"status", true, "500"},
		{"user.id", true, "42"},
		{"nonexistent", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			v, ok := tr.Lookup(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && v.String() != tt.wantStr {
				t.Errorf("Lookup(%q) = %q, want %q", tt.path, v.String(), tt.wantStr)
			}
		})
	}
}

func TestTrace_Lookup_MissingOptionalFields(t *testing.T) {
	t.Parallel()

	tr := New("t2", time.Second, nil, nil, nil, false, nil, 1)

	for _, path := range []string{"service.name", "endpoint", "status"} {
		if _, ok := tr.Lookup(path); ok {
			t.Errorf("Lookup(%q) on a trace with no %s should report ok=false", path, path)
		}
	}
}

func TestTrace_Lookup_DurationMS(t *testing.T) {
	t.Parallel()

	tr := New("t3", 1500*time.Millisecond, nil, nil, nil, false, nil, 1)
	v, ok := tr.Lookup("duration_ms")
	if !ok {
		t.Fatal("Lookup(duration_ms) ok = false")
	}
	f, _ := v.AsFloat()
	if f != 1500 {
		t.Errorf("duration_ms = %v, want 1500", f)
	}
}
