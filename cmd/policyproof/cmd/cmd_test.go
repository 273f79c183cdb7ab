package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/policyproof/policyproof/internal/domain/policy"
)

func TestCommands_Registered(t *testing.T) {
	want := []string{"init", "propose", "prove", "compile", "explain", "simulate", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s command not registered with rootCmd", name)
		}
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"corpus", "output", "format", "strict", "dry-run", "diff", "seed", "metrics-output", "trace-output"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not registered", name)
		}
	}
}

func TestOutputOrDefault(t *testing.T) {
	prev := outputPath
	defer func() { outputPath = prev }()

	outputPath = ""
	if got := outputOrDefault(); got != "stdout" {
		t.Errorf("outputOrDefault() = %q, want stdout", got)
	}

	outputPath = "rules.yaml"
	if got := outputOrDefault(); got != "rules.yaml" {
		t.Errorf("outputOrDefault() = %q, want rules.yaml", got)
	}
}

func TestWriteOutput_ToFile(t *testing.T) {
	prevOutputPath := outputPath
	defer func() { outputPath = prevOutputPath }()

	path := filepath.Join(t.TempDir(), "out.txt")
	outputPath = path

	if err := writeOutput([]byte("hello")); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("file contents = %q, want hello", got)
	}
}

func TestPolicyHash_IsStableAndContentSensitive(t *testing.T) {
	p1, err := policy.New(1, "a", 100, nil)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	p2, err := policy.New(2, "a", 100, nil)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}

	h1a := policyHash(p1)
	h1b := policyHash(p1)
	if h1a != h1b {
		t.Errorf("policyHash is not stable across calls: %q != %q", h1a, h1b)
	}
	if h1a == policyHash(p2) {
		t.Error("policyHash did not change when policy content changed")
	}
}

func TestLoadCorpus_RequiresCorpusFlag(t *testing.T) {
	prev := corpusPath
	defer func() { corpusPath = prev }()

	corpusPath = ""
	if _, err := loadCorpus(); err == nil {
		t.Error("expected an error when --corpus is unset")
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := loadPolicy("/nonexistent/policy.toon"); err == nil {
		t.Error("expected an error for a missing policy file")
	}
}
