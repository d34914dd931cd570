package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/tailtree/internal/layout"
	"github.com/TimelordUK/tailtree/internal/tail"
)

type cliEnv struct {
	dir        string
	configPath string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	configPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("[engine]\npoll_interval_ms = 50\n\n[logging]\nlevel = \"error\"\nfile = %q\n", filepath.Join(dir, "tailtree.log"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{dir: dir, configPath: configPath}
}

func (e *cliEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestStatusWithLayout(t *testing.T) {
	env := setupCLIEnv(t)
	env.write(t, "logs/api.log", "one\ntwo\n")
	env.write(t, "logs/db.log", "")
	layoutPath := env.write(t, "layout.yaml", `
name: Prod
groups:
  - name: Services
    files:
      - path: logs/api.log
        name: api
      - path: logs/db.log
        paused: true
  - name: Missing
    files:
      - path: "nothing/*.log"
        pattern: true
`)

	out, errOut, err := runCLI(t, env, "status", "--layout", layoutPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"api", "db.log", "Services", "paused", "idle", "Missing (0 files)", "2 files, 1 paused, 0 errors"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "matched no files") {
		t.Fatalf("expected unmatched pattern warning, got %q", errOut)
	}
}

func TestStatusReportsMissingFiles(t *testing.T) {
	env := setupCLIEnv(t)
	present := env.write(t, "present.log", "x\n")
	missing := filepath.Join(env.dir, "missing.log")

	out, errOut, err := runCLI(t, env, "status", present, missing)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(errOut, "missing.log") {
		t.Fatalf("stderr should mention the missing file: %q", errOut)
	}
	if !strings.Contains(out, "present.log") || !strings.Contains(out, "1 files, 0 paused, 1 errors") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestStatusBadLayoutContinuesEmpty(t *testing.T) {
	env := setupCLIEnv(t)
	layoutPath := env.write(t, "layout.yaml", "groups: [\n")

	out, errOut, err := runCLI(t, env, "status", "--layout", layoutPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(errOut, "parse layout") {
		t.Fatalf("stderr = %q, want parse layout warning", errOut)
	}
	if !strings.Contains(out, "No files.") {
		t.Fatalf("stdout = %q", out)
	}
}

func TestCommandsRequireFiles(t *testing.T) {
	env := setupCLIEnv(t)
	for _, name := range []string{"status", "follow"} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := runCLI(t, env, name); err == nil || !strings.Contains(err.Error(), "no files given") {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestInvalidConfigFails(t *testing.T) {
	env := setupCLIEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[engine\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := env.write(t, "a.log", "")
	if _, _, err := runCLI(t, env, "status", p); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("err = %v", err)
	}
}

func TestPreviewCommand(t *testing.T) {
	env := setupCLIEnv(t)
	var b strings.Builder
	for i := 1; i <= 200; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := env.write(t, "big.log", b.String())

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "follow lines",
			args:    []string{"preview", "-n", "3", path},
			want:    []string{"line 198", "line 199", "line 200"},
			notWant: []string{"line 197"},
		},
		{
			name:    "window",
			args:    []string{"preview", "--line", "100", path},
			want:    []string{">>>  100 | line 100", "      50 | line 50", "     150 | line 150"},
			notWant: []string{"| line 49\n", "line 151"},
		},
		{
			name: "paused whole file",
			args: []string{"preview", "--paused", path},
			want: []string{"line 1\n", "line 200"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCLI(t, env, tt.args...)
			if err != nil {
				t.Fatalf("preview: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Fatalf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Fatalf("output should not contain %q", w)
				}
			}
		})
	}

	if _, _, err := runCLI(t, env, "preview", filepath.Join(env.dir, "nope.log")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFollowPlainStreamsNewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := layout.FromPaths("files", []string{path})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	engine := tail.NewEngine(loaded.Tree, tail.Options{PollInterval: 50 * time.Millisecond})
	if err := engine.AddFile(path, tail.FileOptions{Group: loaded.Files[0].Group}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("new 1\nnew 2\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	if err := streamPlain(ctx, &out, engine); err != nil {
		t.Fatalf("streamPlain: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "[app.log] new 1\n[app.log] new 2\n") {
		t.Fatalf("output = %q", got)
	}
	if strings.Contains(got, "old") {
		t.Fatalf("existing content should not be streamed: %q", got)
	}
}

func TestFollowPlainCommandStopsAfterDuration(t *testing.T) {
	env := setupCLIEnv(t)
	path := env.write(t, "svc.log", "")

	start := time.Now()
	_, _, err := runCLI(t, env, "follow", "--plain", "--duration", "150ms", path)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("follow did not stop after --duration")
	}
}
