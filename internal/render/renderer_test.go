package render

import (
	"strings"
	"testing"

	"github.com/TimelordUK/tailtree/internal/source"
)

func TestPlainRenderer(t *testing.T) {
	line := source.Line{Source: "api.log", Content: "GET /health"}
	if got := NewPlainRenderer(true).Render(line); got != "[api.log] GET /health" {
		t.Fatalf("with source = %q", got)
	}
	if got := NewPlainRenderer(false).Render(line); got != "GET /health" {
		t.Fatalf("without source = %q", got)
	}
}

func TestLogLevelRendererKeepsContent(t *testing.T) {
	r := NewLogLevelRenderer(nil)
	got := r.Render(source.Line{Source: "db.log", Content: "[ERROR] deadlock"})
	if !strings.Contains(got, "deadlock") || !strings.Contains(got, "db.log") {
		t.Fatalf("Render = %q", got)
	}

	r.SetShowSource(false)
	if got := r.Render(source.Line{Source: "db.log", Content: "x"}); strings.Contains(got, "db.log") {
		t.Fatalf("source shown after SetShowSource(false): %q", got)
	}
}

func TestSourceColorStable(t *testing.T) {
	if SourceColor("a.log") != SourceColor("a.log") {
		t.Fatal("color not stable")
	}
	if c := SourceColor(""); c == "" {
		t.Fatal("empty color")
	}
}
