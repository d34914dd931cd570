package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFollowingReturnsLastLines(t *testing.T) {
	path := writeLines(t, 10000)
	l := NewLoader(Options{FollowLines: 100})

	res, err := l.Load(path, Following)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Lines) != 100 {
		t.Fatalf("got %d lines, want 100", len(res.Lines))
	}
	for i, line := range res.Lines {
		if want := fmt.Sprintf("line %d", 9901+i); line != want {
			t.Fatalf("Lines[%d] = %q, want %q", i, line, want)
		}
	}
	if res.Target != -1 || res.Windowed {
		t.Fatalf("following preview should be unmarked: target=%d windowed=%v", res.Target, res.Windowed)
	}
}

func TestFollowingShortFile(t *testing.T) {
	path := writeLines(t, 3)
	res, err := NewLoader(Options{FollowLines: 100}).Load(path, Following)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(res.Lines, ","); got != "line 1,line 2,line 3" {
		t.Fatalf("Lines = %q", got)
	}
}

func TestPausedSmallFileReturnsEverything(t *testing.T) {
	path := writeLines(t, 2500)
	res, err := NewLoader(Options{FollowLines: 10}).Load(path, Paused)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Lines) != 2500 || res.Lines[0] != "line 1" || res.Lines[2499] != "line 2500" {
		t.Fatalf("got %d lines (first %q)", len(res.Lines), res.Lines[0])
	}
}

func TestPausedLargeFileUsesWindow(t *testing.T) {
	path := writeLines(t, 1000)
	l := NewLoader(Options{MmapThreshold: 1024, ContextLines: 5})

	res, err := l.Load(path, Paused)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.Windowed || !res.Mapped {
		t.Fatalf("expected a mapped window: windowed=%v mapped=%v", res.Windowed, res.Mapped)
	}
	if len(res.Lines) != 6 {
		t.Fatalf("got %d lines, want 6: %q", len(res.Lines), res.Lines)
	}
	if res.Target != 5 || res.Lines[5] != ">>> 1000 | line 1000" {
		t.Fatalf("target %d line %q", res.Target, res.Lines[res.Target])
	}
}

func TestWindowMarksTarget(t *testing.T) {
	path := writeLines(t, 500)

	for _, threshold := range []int64{1, 1 << 30} {
		t.Run(fmt.Sprintf("threshold=%d", threshold), func(t *testing.T) {
			l := NewLoader(Options{MmapThreshold: threshold, ContextLines: 2})
			res, err := l.Window(path, 100)
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			want := []string{
				"      98 | line 98",
				"      99 | line 99",
				">>>  100 | line 100",
				"     101 | line 101",
				"     102 | line 102",
			}
			if strings.Join(res.Lines, "\n") != strings.Join(want, "\n") {
				t.Fatalf("Lines =\n%s\nwant\n%s", strings.Join(res.Lines, "\n"), strings.Join(want, "\n"))
			}
			if res.Target != 2 {
				t.Fatalf("Target = %d, want 2", res.Target)
			}
			if res.Mapped != (threshold == 1) {
				t.Fatalf("Mapped = %v at threshold %d", res.Mapped, threshold)
			}
		})
	}
}

func TestWindowNearStart(t *testing.T) {
	path := writeLines(t, 10)
	res, err := NewLoader(Options{ContextLines: 50}).Window(path, 1)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(res.Lines) != 10 || res.Target != 0 {
		t.Fatalf("got %d lines target %d", len(res.Lines), res.Target)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.log")
	if _, err := NewLoader(DefaultOptions()).Load(path, Following); err == nil {
		t.Fatal("expected error for missing file")
	}
	lines := ErrorLines(path, os.ErrNotExist)
	if len(lines) != 2 || !strings.Contains(lines[0], path) {
		t.Fatalf("ErrorLines = %q", lines)
	}
}
