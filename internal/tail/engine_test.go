package tail

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/tailtree/internal/group"
	"github.com/TimelordUK/tailtree/internal/preview"
)

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	engine *Engine
	tree   *group.Tree
	grp    group.ID
	paths  []string
}

// newFixture tails n empty files in one group named Services.
func newFixture(t *testing.T, n int, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()

	tree := group.New(group.Settings{AutoExpandActive: true})
	grp, err := tree.AddGroup(group.NoGroup, "Services", "", true)
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	var paths []string
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("svc%d.log", i))
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := tree.AddFile(grp, group.FileRef{Path: p}); err != nil {
			t.Fatalf("AddFile: %v", err)
		}
		paths = append(paths, p)
	}
	tree.Finalize()

	e := NewEngine(tree, opts)
	for _, p := range paths {
		if err := e.AddFile(p, FileOptions{Group: grp}); err != nil {
			t.Fatalf("engine AddFile: %v", err)
		}
	}
	return &fixture{engine: e, tree: tree, grp: grp, paths: paths}
}

func (f *fixture) node(t *testing.T) group.Node {
	t.Helper()
	n, ok := f.tree.Node(f.grp)
	if !ok {
		t.Fatal("group missing")
	}
	return n
}

func writeN(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "entry %d\n", i)
	}
	appendFile(t, path, b.String())
}

func TestEngineActivityLifecycle(t *testing.T) {
	f := newFixture(t, 3, Options{})
	e := f.engine

	if res := e.Poll(t0); !res.Polled || len(res.Lines) != 0 {
		t.Fatalf("baseline poll = %+v", res)
	}

	writeN(t, f.paths[0], 5)
	now := t0.Add(250 * time.Millisecond)
	res := e.Poll(now)
	if len(res.Lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(res.Lines))
	}
	if len(res.Transitions) != 1 || !res.Transitions[0].Active {
		t.Fatalf("Transitions = %+v", res.Transitions)
	}
	n := f.node(t)
	if n.ActiveFileCount != 1 || !n.HasActivity || n.Collapsed {
		t.Fatalf("active group: count=%d has=%v collapsed=%v", n.ActiveFileCount, n.HasActivity, n.Collapsed)
	}
	st, _ := e.File(f.paths[0])
	if !st.Active || st.LinesSinceLastRead != 5 || st.TotalLinesRead != 5 {
		t.Fatalf("file status = %+v", st)
	}

	// Quiet but inside the idle threshold: still active.
	now = now.Add(time.Second)
	e.Poll(now)
	if n := f.node(t); n.ActiveFileCount != 1 {
		t.Fatalf("count within threshold = %d", n.ActiveFileCount)
	}

	now = now.Add(1500 * time.Millisecond)
	res = e.Poll(now)
	if len(res.Transitions) != 1 || res.Transitions[0].Active {
		t.Fatalf("idle Transitions = %+v", res.Transitions)
	}
	n = f.node(t)
	if n.ActiveFileCount != 0 || n.HasActivity {
		t.Fatalf("idle group: count=%d has=%v", n.ActiveFileCount, n.HasActivity)
	}
	if n.Collapsed {
		t.Fatal("group must stay expanded after activity ends")
	}
	st, _ = e.File(f.paths[0])
	if st.Active || st.LinesSinceLastRead != 0 {
		t.Fatalf("idle file status = %+v", st)
	}
}

func TestEngineRespectsPollInterval(t *testing.T) {
	f := newFixture(t, 1, Options{PollInterval: time.Second})
	e := f.engine
	e.Poll(t0)

	writeN(t, f.paths[0], 2)
	if res := e.Poll(t0.Add(500 * time.Millisecond)); res.Polled {
		t.Fatal("poll ran before interval elapsed")
	}
	if res := e.Poll(t0.Add(time.Second)); !res.Polled || len(res.Lines) != 2 {
		t.Fatalf("poll at interval = %+v", res)
	}
}

func TestEngineLineMetadata(t *testing.T) {
	f := newFixture(t, 1, Options{})
	e := f.engine
	writeN(t, f.paths[0], 3)
	res := e.Poll(t0)
	writeN(t, f.paths[0], 2)
	res2 := e.Poll(t0.Add(time.Second))

	lines := append(res.Lines, res2.Lines...)
	for i, l := range lines {
		if l.LineNumber != int64(i+1) || l.Source != "svc0.log" {
			t.Fatalf("line %d = %+v", i, l)
		}
	}
	if !lines[3].Timestamp.Equal(t0.Add(time.Second)) {
		t.Fatalf("timestamp = %v", lines[3].Timestamp)
	}
	if got := len(e.Lines()); got != 5 {
		t.Fatalf("buffer holds %d lines, want 5", got)
	}
}

func TestEngineRotationMarker(t *testing.T) {
	f := newFixture(t, 1, Options{})
	e := f.engine
	writeN(t, f.paths[0], 50)
	e.Poll(t0)

	if err := os.Truncate(f.paths[0], 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	res := e.Poll(t0.Add(time.Second))
	if len(res.Lines) != 1 || res.Lines[0].Content != RotationMarker {
		t.Fatalf("rotation lines = %+v", res.Lines)
	}
	st, _ := e.File(f.paths[0])
	if st.Position != 0 || st.Rotations != 1 {
		t.Fatalf("status after rotation = %+v", st)
	}
}

func TestEngineBufferOverflowCounted(t *testing.T) {
	f := newFixture(t, 1, Options{MaxBufferLines: 10})
	e := f.engine
	writeN(t, f.paths[0], 25)
	e.Poll(t0)

	s := e.Stats()
	if s.BufferLen != 10 || s.LinesDropped != 15 || s.TotalLinesReceived != 25 {
		t.Fatalf("stats = %+v", s)
	}
	if s.FillPercent() != 100 {
		t.Fatalf("FillPercent = %v", s.FillPercent())
	}

	e.ClearBuffer()
	if s := e.Stats(); s.BufferLen != 0 || s.LinesDropped != 0 {
		t.Fatalf("after ClearBuffer = %+v", s)
	}
}

func TestEngineThrottlesBurst(t *testing.T) {
	f := newFixture(t, 1, Options{MaxLinesPerPoll: 100})
	e := f.engine
	writeN(t, f.paths[0], 400)

	res := e.Poll(t0)
	if len(res.Lines) != 100 {
		t.Fatalf("kept %d lines, want 100", len(res.Lines))
	}
	if res.Lines[0].Content != "entry 300" || res.Lines[0].LineNumber != 301 {
		t.Fatalf("first kept = %+v", res.Lines[0])
	}
	st, _ := e.File(f.paths[0])
	if st.Throttle.Kind != ThrottleThrottled || st.Throttle.SkipRatio != 0.75 || st.LinesThrottled != 300 {
		t.Fatalf("throttle status = %+v", st)
	}
	if e.Stats().LinesThrottled != 300 {
		t.Fatalf("engine LinesThrottled = %d", e.Stats().LinesThrottled)
	}

	writeN(t, f.paths[0], 10)
	e.Poll(t0.Add(time.Second))
	if st, _ := e.File(f.paths[0]); st.Throttle.Kind != ThrottleNormal {
		t.Fatalf("throttle after calm poll = %v", st.Throttle)
	}
}

func TestEngineIsolatesFileErrors(t *testing.T) {
	f := newFixture(t, 2, Options{})
	e := f.engine
	e.Poll(t0)

	if err := os.Remove(f.paths[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeN(t, f.paths[1], 3)

	res := e.Poll(t0.Add(time.Second))
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0].Err, os.ErrNotExist) {
		t.Fatalf("Errors = %+v", res.Errors)
	}
	if len(res.Lines) != 3 {
		t.Fatalf("healthy file lines = %d, want 3", len(res.Lines))
	}

	// The failing file stays tracked and recovers once it reappears.
	writeN(t, f.paths[0], 1)
	res = e.Poll(t0.Add(2 * time.Second))
	if len(res.Errors) != 0 {
		t.Fatalf("Errors after recovery = %+v", res.Errors)
	}
	if st, ok := e.File(f.paths[0]); !ok || st.LastError != nil {
		t.Fatalf("recovered status = %+v", st)
	}
}

func TestEnginePauseControls(t *testing.T) {
	f := newFixture(t, 2, Options{})
	e := f.engine
	e.Poll(t0)

	e.SetPausedAll(true)
	writeN(t, f.paths[0], 2)
	if res := e.Poll(t0.Add(time.Second)); res.Polled {
		t.Fatal("globally paused engine polled")
	}
	e.SetPausedAll(false)

	if n, err := e.PauseGroup(f.grp, true); err != nil || n != 2 {
		t.Fatalf("PauseGroup = %d, %v", n, err)
	}
	if res := e.Poll(t0.Add(2 * time.Second)); len(res.Lines) != 0 {
		t.Fatalf("paused group produced %d lines", len(res.Lines))
	}
	st, _ := e.File(f.paths[0])
	if !st.Paused || st.Throttle.Reason != ReasonUserPaused {
		t.Fatalf("paused status = %+v", st)
	}

	if err := e.SetFilePaused(f.paths[0], false); err != nil {
		t.Fatalf("SetFilePaused: %v", err)
	}
	if res := e.Poll(t0.Add(3 * time.Second)); len(res.Lines) != 2 {
		t.Fatalf("resumed file produced %d lines, want 2", len(res.Lines))
	}
	if s := e.Stats(); s.PausedFiles != 1 {
		t.Fatalf("PausedFiles = %d, want 1", s.PausedFiles)
	}

	if _, err := e.PauseGroup(group.ID(42), true); !errors.Is(err, group.ErrUnknownGroup) {
		t.Fatalf("PauseGroup unknown = %v", err)
	}
	if err := e.SetFilePaused("/nope.log", true); !errors.Is(err, ErrUnknownFile) {
		t.Fatalf("SetFilePaused unknown = %v", err)
	}
}

func TestEngineAddFileErrors(t *testing.T) {
	f := newFixture(t, 1, Options{})
	e := f.engine

	if err := e.AddFile(f.paths[0], FileOptions{Group: group.NoGroup}); !errors.Is(err, ErrDuplicateFile) {
		t.Fatalf("duplicate AddFile = %v", err)
	}
	if err := e.AddFile(filepath.Join(t.TempDir(), "missing.log"), FileOptions{Group: group.NoGroup}); err == nil {
		t.Fatal("AddFile of missing path succeeded")
	}
	if err := e.AddFile(f.paths[0], FileOptions{Group: group.ID(9)}); !errors.Is(err, group.ErrUnknownGroup) {
		t.Fatalf("AddFile unknown group = %v", err)
	}
	if got := len(e.Files()); got != 1 {
		t.Fatalf("Files = %d, want 1", got)
	}
}

func TestEngineSetPollIntervalClamps(t *testing.T) {
	e := NewEngine(nil, Options{})
	if got := e.SetPollInterval(time.Millisecond); got != 50*time.Millisecond {
		t.Fatalf("low clamp = %v", got)
	}
	if got := e.SetPollInterval(time.Minute); got != 5*time.Second {
		t.Fatalf("high clamp = %v", got)
	}
	if got := e.SetPollInterval(500 * time.Millisecond); got != e.PollInterval() {
		t.Fatalf("PollInterval = %v, want %v", e.PollInterval(), got)
	}
}

func TestEngineLayoutPollIntervalOverride(t *testing.T) {
	tree := group.New(group.Settings{PollInterval: time.Second})
	tree.Finalize()
	e := NewEngine(tree, Options{PollInterval: 100 * time.Millisecond})
	if e.PollInterval() != time.Second {
		t.Fatalf("PollInterval = %v, want layout override", e.PollInterval())
	}
}

func TestEngineFollowingPreviewReloads(t *testing.T) {
	f := newFixture(t, 2, Options{Preview: preview.Options{FollowLines: 3}})
	e := f.engine

	if err := e.SelectPreview(f.paths[0]); err != nil {
		t.Fatalf("SelectPreview: %v", err)
	}
	writeN(t, f.paths[1], 4)
	if res := e.Poll(t0); res.PreviewReloaded {
		t.Fatal("activity on another file reloaded the preview")
	}

	writeN(t, f.paths[0], 5)
	res := e.Poll(t0.Add(time.Second))
	if !res.PreviewReloaded {
		t.Fatal("preview not reloaded")
	}
	p, err := e.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if strings.Join(p.Lines, ",") != "entry 2,entry 3,entry 4" {
		t.Fatalf("preview lines = %q", p.Lines)
	}

	e.SetPreviewMode(preview.Paused)
	writeN(t, f.paths[0], 1)
	if res := e.Poll(t0.Add(2 * time.Second)); res.PreviewReloaded {
		t.Fatal("paused preview was reloaded")
	}
	if p, _ := e.Preview(); len(p.Lines) != 5 {
		t.Fatalf("paused preview has %d lines, want whole file (5)", len(p.Lines))
	}
}

func TestEnginePreviewErrorReplacesContent(t *testing.T) {
	f := newFixture(t, 1, Options{})
	e := f.engine
	if err := e.SelectPreview(f.paths[0]); err != nil {
		t.Fatalf("SelectPreview: %v", err)
	}
	if err := os.Remove(f.paths[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	e.SetPreviewMode(preview.Paused)

	p, err := e.Preview()
	if err == nil {
		t.Fatal("expected preview error")
	}
	if len(p.Lines) == 0 || !strings.Contains(p.Lines[0], "unavailable") {
		t.Fatalf("error preview lines = %q", p.Lines)
	}
}
