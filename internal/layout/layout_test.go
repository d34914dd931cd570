package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/tailtree/internal/group"
)

const sample = `
name: Production
version: 1
settings:
  poll_interval_ms: 500
  auto_expand_active: false
groups:
  - name: Web
    icon: "🌐"
    collapsed: true
    files:
      - path: nginx/access.log
        name: access
      - path: nginx/error.log
        paused: true
    groups:
      - name: Workers
        files:
          - path: "workers/*.log"
            pattern: true
  - name: Empty
`

func writeTree(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "nginx/access.log", "nginx/error.log", "workers/b.log", "workers/a.log", "workers/skip.txt")
	path := filepath.Join(dir, "layout.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Name != "Production" {
		t.Fatalf("Name = %q", loaded.Name)
	}

	settings := loaded.Tree.Settings()
	if settings.AutoExpandActive || settings.PollInterval != 500*time.Millisecond {
		t.Fatalf("settings = %+v", settings)
	}

	var got []string
	for _, f := range loaded.Files {
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, rel+"="+f.Name)
	}
	want := "nginx/access.log=access,nginx/error.log=error.log,workers/a.log=a.log,workers/b.log=b.log"
	if strings.Join(got, ",") != want {
		t.Fatalf("files = %s\nwant    %s", strings.Join(got, ","), want)
	}
	if !loaded.Files[1].Paused {
		t.Fatal("error.log should be paused")
	}

	roots := loaded.Tree.Roots()
	if len(roots) != 2 {
		t.Fatalf("roots = %v", roots)
	}
	web, _ := loaded.Tree.Node(roots[0])
	if !web.Collapsed || web.TotalFileCount != 4 || len(web.Children) != 1 || web.Icon != "🌐" {
		t.Fatalf("Web node = %+v", web)
	}
	workers, _ := loaded.Tree.Node(web.Children[0])
	if loaded.Files[2].Group != workers.ID || workers.Parent != web.ID {
		t.Fatalf("worker files not in Workers group: %+v", loaded.Files[2])
	}
	if empty, _ := loaded.Tree.Node(roots[1]); empty.TotalFileCount != 0 {
		t.Fatalf("Empty total = %d", empty.TotalFileCount)
	}
}

func TestParseDefaults(t *testing.T) {
	l, err := Parse([]byte("name: x\ngroups:\n  - name: g\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := l.TreeSettings()
	if !s.AutoExpandActive || s.PollInterval != 0 {
		t.Fatalf("defaults = %+v", s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"malformed":    "groups: [",
		"missing name": "groups:\n  - files: []\n",
		"missing path": "groups:\n  - name: g\n    files:\n      - name: nothing\n",
		"nested name":  "groups:\n  - name: g\n    groups:\n      - icon: x\n",
		"bad poll":     "settings:\n  poll_interval_ms: 0\n",
		"wrong type":   "groups: 3\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if err == nil || !strings.Contains(err.Error(), "parse layout") {
				t.Fatalf("err = %v, want parse layout error", err)
			}
		})
	}
}

func TestUnmatchedPattern(t *testing.T) {
	l, err := Parse([]byte("groups:\n  - name: g\n    files:\n      - path: none/*.log\n        pattern: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	loaded, err := l.Build(t.TempDir())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(loaded.Files) != 0 || len(loaded.Unmatched) != 1 {
		t.Fatalf("files=%v unmatched=%v", loaded.Files, loaded.Unmatched)
	}
}

func TestHomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	l, _ := Parse([]byte("groups:\n  - name: g\n    files:\n      - path: ~/logs/app.log\n"))
	loaded, err := l.Build("/elsewhere")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := filepath.Join(home, "logs", "app.log"); loaded.Files[0].Path != want {
		t.Fatalf("Path = %q, want %q", loaded.Files[0].Path, want)
	}
}

func TestFromPaths(t *testing.T) {
	loaded, err := FromPaths("files", []string{"/var/log/a.log", "/var/log/b.log"})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	if len(loaded.Files) != 2 || loaded.Files[0].Group != group.ID(0) {
		t.Fatalf("Files = %+v", loaded.Files)
	}
	empty, err := FromPaths("files", nil)
	if err != nil || empty.Tree.Len() != 0 {
		t.Fatalf("empty FromPaths = %+v, %v", empty, err)
	}
}
