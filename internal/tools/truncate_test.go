package tools

import (
	"context"
	"strings"
	"testing"
)

func TestTruncateOutput_ShortPassesThrough(t *testing.T) {
	in := "short output"
	if got := TruncateOutput(in, 100); got != in {
		t.Errorf("short output changed: %q", got)
	}
}

func TestTruncateOutput_KeepsHeadAndTail(t *testing.T) {
	in := strings.Repeat("a", 500) + "MIDDLE" + strings.Repeat("z", 500)
	got := TruncateOutput(in, 200)

	if len(got) >= len(in) {
		t.Fatalf("output not shortened: %d chars", len(got))
	}
	if !strings.HasPrefix(got, "aaa") {
		t.Errorf("head lost: %q", got[:10])
	}
	if !strings.HasSuffix(got, "zzz") {
		t.Errorf("tail lost: %q", got[len(got)-10:])
	}
	if !strings.Contains(got, "output truncated") {
		t.Errorf("marker missing: %q", got)
	}
	if strings.Contains(got, "MIDDLE") {
		t.Errorf("middle survived truncation")
	}
}

func TestTruncateOutput_ZeroUsesDefault(t *testing.T) {
	in := strings.Repeat("x", DefaultMaxResultChars+1000)
	got := TruncateOutput(in, 0)
	if len(got) >= len(in) {
		t.Errorf("default cap not applied: %d chars", len(got))
	}
}

func TestRegistryTruncatesOversizedResults(t *testing.T) {
	reg := NewRegistry()
	big := &mockTool{
		name: "dump",
		execFn: func(ctx context.Context, args map[string]interface{}) *Result {
			return NewResult(strings.Repeat("y", 1000))
		},
	}
	if err := reg.Register(big); err != nil {
		t.Fatal(err)
	}
	reg.SetMaxResultChars(100)

	result, err := reg.Execute(context.Background(), "dump", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.ForLLM) >= 1000 {
		t.Errorf("result not truncated: %d chars", len(result.ForLLM))
	}
	if !strings.Contains(result.ForLLM, "output truncated") {
		t.Errorf("marker missing")
	}
}
