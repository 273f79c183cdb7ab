package history

import (
	"context"
	"testing"

	"github.com/policyproof/policyproof/internal/port"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAndLastForPolicy(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, port.RunRecord{
		PolicyName: "prod", PolicyHash: "hash1", VerdictJSON: `{"status":"approved"}`,
		ArtifactSHA: "sha1", Command: "prove",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id == 0 {
		t.Error("Append returned id 0, want a positive row id")
	}

	record, ok, err := s.LastForPolicy(ctx, "hash1")
	if err != nil {
		t.Fatalf("LastForPolicy: %v", err)
	}
	if !ok {
		t.Fatal("LastForPolicy ok = false, want true")
	}
	if record.PolicyName != "prod" || record.Command != "prove" {
		t.Errorf("record = %+v", record)
	}
}

func TestStore_LastForPolicy_NoneRecorded(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, ok, err := s.LastForPolicy(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("LastForPolicy: %v", err)
	}
	if ok {
		t.Error("ok = true, want false for an unrecorded policy hash")
	}
}

func TestStore_LastForPolicy_ReturnsMostRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, port.RunRecord{
			PolicyName: "prod", PolicyHash: "hash1",
			VerdictJSON: "{}", Command: "prove",
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := s.Append(ctx, port.RunRecord{
		PolicyName: "prod", PolicyHash: "hash1", VerdictJSON: "{}", ArtifactSHA: "latest-sha", Command: "compile",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	record, ok, err := s.LastForPolicy(ctx, "hash1")
	if err != nil || !ok {
		t.Fatalf("LastForPolicy: ok=%v err=%v", ok, err)
	}
	if record.Command != "compile" || record.ArtifactSHA != "latest-sha" {
		t.Errorf("LastForPolicy did not return the most recent row: %+v", record)
	}
}

func TestStore_Recent_OrderedMostRecentFirstAndLimited(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, port.RunRecord{
			PolicyName: "prod", PolicyHash: "h", VerdictJSON: "{}", Command: "prove",
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := s.Recent(ctx, "prod", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i := 0; i < len(records)-1; i++ {
		if records[i].ID < records[i+1].ID {
			t.Errorf("Recent() not ordered most-recent-first: %+v", records)
		}
	}
}

func TestStore_Recent_DifferentPolicyNamesDoNotMix(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, port.RunRecord{PolicyName: "prod", PolicyHash: "h1", VerdictJSON: "{}", Command: "prove"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(ctx, port.RunRecord{PolicyName: "staging", PolicyHash: "h2", VerdictJSON: "{}", Command: "prove"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.Recent(ctx, "prod", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].PolicyName != "prod" {
		t.Errorf("Recent(prod) = %+v, want exactly one prod record", records)
	}
}
