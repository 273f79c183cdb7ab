package query

import "testing"

func sampleRows() []Row {
	return []Row{
		{TraceID: "t1", Rule: "keep-errors", Kept: true, Service: "checkout", Status: 500, Duration: 1_000_000},
		{TraceID: "t2", Rule: "fallback", Kept: false, Service: "checkout", Status: 200, Duration: 500_000},
		{TraceID: "t3", Rule: "fallback", Kept: true, Service: "billing", Status: 200, Duration: 2_000_000},
	}
}

func TestFilter_EmptyExpressionReturnsAllRows(t *testing.T) {
	t.Parallel()

	rows, err := Filter("", sampleRows())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("len(rows) = %d, want 3", len(rows))
	}
}

func TestFilter_BoolField(t *testing.T) {
	t.Parallel()

	rows, err := Filter("kept", sampleRows())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if !r.Kept {
			t.Errorf("row %+v should have Kept=true", r)
		}
	}
}

func TestFilter_CompoundExpression(t *testing.T) {
	t.Parallel()

	rows, err := Filter(`service == "checkout" && status >= 500`, sampleRows())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 1 || rows[0].TraceID != "t1" {
		t.Errorf("rows = %+v, want only t1", rows)
	}
}

func TestFilter_InvalidExpressionSyntax(t *testing.T) {
	t.Parallel()

	_, err := Filter("service ==", sampleRows())
	if err == nil {
		t.Fatal("expected a compile error for malformed expression")
	}
}

func TestFilter_NonBoolExpressionIsAnError(t *testing.T) {
	t.Parallel()

	_, err := Filter("duration", sampleRows())
	if err == nil {
		t.Fatal("expected an error: duration is an int, not a bool")
	}
}

func TestFilter_UnknownFieldIsAnError(t *testing.T) {
	t.Parallel()

	_, err := Filter("nonexistent_field == 1", sampleRows())
	if err == nil {
		t.Fatal("expected an error referencing an undeclared variable")
	}
}

func TestFilter_NoMatchesReturnsEmpty(t *testing.T) {
	t.Parallel()

	rows, err := Filter(`service == "nonexistent"`, sampleRows())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}
