package tail

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/group"
	"github.com/TimelordUK/tailtree/internal/logging"
	"github.com/TimelordUK/tailtree/internal/preview"
)

// Options configures an Engine.
type Options struct {
	PollInterval    time.Duration
	IdleThreshold   time.Duration
	MaxBufferLines  int
	MaxLinesPerPoll int // per file; 0 disables throttling
	ReadWorkers     int
	Preview         preview.Options
	Logger          *slog.Logger
}

// OptionsFromConfig maps application config onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		PollInterval:    cfg.PollInterval(),
		IdleThreshold:   cfg.IdleThreshold(),
		MaxBufferLines:  cfg.Engine.MaxBufferLines,
		MaxLinesPerPoll: cfg.Engine.MaxLinesPerPoll,
		ReadWorkers:     cfg.Engine.ReadWorkers,
		Preview: preview.Options{
			FollowLines:   cfg.Preview.FollowLines,
			MmapThreshold: cfg.Preview.MmapThresholdBytes,
			ContextLines:  cfg.Preview.ContextLines,
		},
	}
}

// FileOptions describes a file being added to the engine.
type FileOptions struct {
	Name   string // display name; defaults to the base name
	Group  group.ID
	Paused bool
}

// FileError is a per-file failure observed during one poll.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

// Transition records a file flipping between active and idle.
type Transition struct {
	Path   string
	Group  group.ID
	Active bool
}

// PollResult reports what one Poll did.
type PollResult struct {
	Polled          bool
	Lines           []LogLine
	Errors          []FileError
	Transitions     []Transition
	PreviewReloaded bool
}

// FileStatus is a read-only snapshot of one tailed file.
type FileStatus struct {
	Path               string
	Name               string
	Group              group.ID
	Size               int64
	Position           int64
	Active             bool
	Paused             bool
	LastActivity       time.Time
	LinesSinceLastRead int
	TotalLinesRead     int64
	TotalBytesRead     int64
	LinesThrottled     int64
	Rotations          int
	Throttle           ThrottleState
	LastError          error
}

// Stats are engine-wide counters.
type Stats struct {
	Session            string
	Files              int
	ActiveFiles        int
	PausedFiles        int
	Paused             bool
	PollInterval       time.Duration
	TotalLinesReceived int64
	LinesDropped       int64
	LinesThrottled     int64
	BufferLen          int
	BufferCap          int
}

// FillPercent returns buffer usage as a percentage.
func (s Stats) FillPercent() float64 {
	if s.BufferCap == 0 {
		return 0
	}
	return float64(s.BufferLen) / float64(s.BufferCap) * 100
}

type tailedFile struct {
	reader *Reader
	name   string
	group  group.ID

	active             bool
	lastActivity       time.Time
	linesSinceLastRead int

	paused         bool
	throttle       ThrottleState
	linesThrottled int64
	lastErr        error
}

type readResult struct {
	delta Delta
	err   error
}

// Engine owns the tailed files, the combined buffer and the group tree, and
// advances all of them on Poll. It is driven by a single caller loop and is
// not safe for concurrent use.
type Engine struct {
	opts   Options
	logger *slog.Logger

	files  []*tailedFile
	byPath map[string]*tailedFile
	buffer *Buffer
	tree   *group.Tree
	loader *preview.Loader

	session      string
	pollInterval time.Duration
	lastPoll     time.Time
	paused       bool

	totalReceived  int64
	linesThrottled int64

	previewPath   string
	previewMode   preview.Mode
	previewResult preview.Result
	previewErr    error
}

// NewEngine creates an engine over tree. A nil tree yields an empty one.
func NewEngine(tree *group.Tree, opts Options) *Engine {
	if tree == nil {
		tree = group.New(group.Settings{AutoExpandActive: true})
		tree.Finalize()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if tree.Settings().PollInterval > 0 {
		opts.PollInterval = tree.Settings().PollInterval
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = 2 * time.Second
	}
	if opts.ReadWorkers <= 0 {
		opts.ReadWorkers = 4
	}

	session := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "tail", "session", session)

	return &Engine{
		opts:         opts,
		logger:       logger,
		byPath:       make(map[string]*tailedFile),
		buffer:       NewBuffer(opts.MaxBufferLines),
		tree:         tree,
		loader:       preview.NewLoader(opts.Preview),
		session:      session,
		pollInterval: config.ClampPollInterval(opts.PollInterval),
	}
}

// AddFile starts tailing path from its current end. Failures leave the
// tracked set unchanged.
func (e *Engine) AddFile(path string, fo FileOptions) error {
	if fo.Group != group.NoGroup {
		if _, ok := e.tree.Node(fo.Group); !ok {
			return fmt.Errorf("add %s: %w: %d", path, group.ErrUnknownGroup, fo.Group)
		}
	}

	reader, err := Open(path)
	if err != nil {
		e.logger.Warn("add file failed", "path", path, "error", err)
		return fmt.Errorf("add %s: %w", path, err)
	}
	if _, dup := e.byPath[reader.Path()]; dup {
		return fmt.Errorf("add %s: %w", reader.Path(), ErrDuplicateFile)
	}

	name := fo.Name
	if name == "" {
		name = reader.Name()
	}
	f := &tailedFile{
		reader:   reader,
		name:     name,
		group:    fo.Group,
		paused:   fo.Paused,
		throttle: normalState(),
	}
	if fo.Paused {
		f.throttle = pausedState(ReasonUserPaused)
	}
	e.files = append(e.files, f)
	e.byPath[reader.Path()] = f

	e.logger.Info("file added", "path", reader.Path(), "name", name, "size", reader.Size(), "group", int(fo.Group))
	return nil
}

// Poll reads new content from every unpaused file when the poll interval
// has elapsed since the previous poll. Reads run in parallel; buffer appends
// and group updates are applied in file order afterwards.
func (e *Engine) Poll(now time.Time) PollResult {
	var res PollResult
	if e.paused {
		return res
	}
	if !e.lastPoll.IsZero() && now.Sub(e.lastPoll) < e.pollInterval {
		return res
	}
	e.lastPoll = now
	res.Polled = true

	results := make([]readResult, len(e.files))
	var g errgroup.Group
	g.SetLimit(e.opts.ReadWorkers)
	for i, f := range e.files {
		if f.paused {
			continue
		}
		g.Go(func() error {
			d, err := f.reader.Poll()
			results[i] = readResult{delta: d, err: err}
			return nil
		})
	}
	_ = g.Wait()

	reloadPreview := false
	for i, f := range e.files {
		r := results[i]
		if !f.paused && r.err != nil {
			f.lastErr = r.err
			res.Errors = append(res.Errors, FileError{Path: f.reader.Path(), Err: r.err})
			e.logger.Warn("poll failed", "path", f.reader.Path(), "error", r.err)
			continue
		}
		f.lastErr = nil

		if f.paused || len(r.delta.Lines) == 0 {
			if f.active && now.Sub(f.lastActivity) > e.opts.IdleThreshold {
				f.active = false
				f.linesSinceLastRead = 0
				res.Transitions = append(res.Transitions, Transition{Path: f.reader.Path(), Group: f.group, Active: false})
			}
			continue
		}

		lines := e.append(f, r.delta, now)
		res.Lines = append(res.Lines, lines...)

		if !f.active {
			res.Transitions = append(res.Transitions, Transition{Path: f.reader.Path(), Group: f.group, Active: true})
		}
		f.active = true
		f.lastActivity = now
		f.linesSinceLastRead += len(lines)

		if e.previewPath == f.reader.Path() && e.previewMode == preview.Following {
			reloadPreview = true
		}
	}

	for _, t := range res.Transitions {
		e.logger.Debug("activity changed", "path", t.Path, "active", t.Active)
		if t.Group == group.NoGroup {
			continue
		}
		if err := e.tree.UpdateActivity(t.Group, group.FileMember(t.Path), t.Active); err != nil {
			e.logger.Warn("group activity update failed", "path", t.Path, "group", int(t.Group), "error", err)
		}
	}

	if reloadPreview {
		e.reloadPreview()
		res.PreviewReloaded = true
	}
	return res
}

// append converts a delta into LogLines, applies the line budget and pushes
// the result into the buffer.
func (e *Engine) append(f *tailedFile, d Delta, now time.Time) []LogLine {
	if d.Rotated {
		e.logger.Info("rotation detected", "path", f.reader.Path(), "size", f.reader.Size())
		line := LogLine{Timestamp: now, Source: f.name, Content: RotationMarker}
		e.buffer.Push(line)
		e.totalReceived++
		return []LogLine{line}
	}

	first := f.reader.TotalLines() - int64(len(d.Lines)) + 1
	kept, skipped := budget(d.Lines, e.opts.MaxLinesPerPoll)
	if skipped > 0 {
		first += int64(skipped)
		f.linesThrottled += int64(skipped)
		e.linesThrottled += int64(skipped)
		if f.throttle.Kind != ThrottleThrottled {
			e.logger.Debug("throttling file", "path", f.reader.Path(), "skipped", skipped, "read", len(d.Lines))
		}
		f.throttle = throttledState(skipped, len(d.Lines))
	} else if f.throttle.Kind == ThrottleThrottled {
		e.logger.Debug("throttling cleared", "path", f.reader.Path())
		f.throttle = normalState()
	}

	out := make([]LogLine, len(kept))
	for i, content := range kept {
		out[i] = LogLine{
			Timestamp:  now,
			Source:     f.name,
			LineNumber: first + int64(i),
			Content:    content,
		}
	}
	e.buffer.Push(out...)
	e.totalReceived += int64(len(out))
	return out
}

// SetPausedAll pauses or resumes polling as a whole.
func (e *Engine) SetPausedAll(paused bool) {
	e.paused = paused
	e.logger.Info("global pause changed", "paused", paused)
}

// Paused reports whether polling is globally paused.
func (e *Engine) Paused() bool { return e.paused }

// SetFilePaused pauses or resumes one file.
func (e *Engine) SetFilePaused(path string, paused bool) error {
	f, err := e.lookup(path)
	if err != nil {
		return err
	}
	e.setPaused(f, paused)
	return nil
}

// ToggleFilePaused flips one file's pause flag and returns the new value.
func (e *Engine) ToggleFilePaused(path string) (bool, error) {
	f, err := e.lookup(path)
	if err != nil {
		return false, err
	}
	e.setPaused(f, !f.paused)
	return f.paused, nil
}

// PauseGroup pauses or resumes every file in the group and its descendants.
// It returns the number of files affected.
func (e *Engine) PauseGroup(id group.ID, paused bool) (int, error) {
	ids, err := e.tree.Subtree(id)
	if err != nil {
		return 0, err
	}
	in := make(map[group.ID]bool, len(ids))
	for _, g := range ids {
		in[g] = true
	}

	n := 0
	for _, f := range e.files {
		if in[f.group] {
			e.setPaused(f, paused)
			n++
		}
	}
	e.logger.Info("group pause changed", "group", int(id), "paused", paused, "files", n)
	return n, nil
}

func (e *Engine) setPaused(f *tailedFile, paused bool) {
	f.paused = paused
	if paused {
		f.throttle = pausedState(ReasonUserPaused)
	} else {
		f.throttle = normalState()
	}
}

// SetPollInterval changes the poll cadence, clamped to the accepted range,
// and returns the effective interval.
func (e *Engine) SetPollInterval(d time.Duration) time.Duration {
	e.pollInterval = config.ClampPollInterval(d)
	e.logger.Info("poll interval changed", "interval", e.pollInterval)
	return e.pollInterval
}

// PollInterval returns the current poll cadence.
func (e *Engine) PollInterval() time.Duration { return e.pollInterval }

// ClearBuffer empties the combined buffer and resets its drop counter.
func (e *Engine) ClearBuffer() {
	e.buffer.Clear()
}

// Lines returns the buffered lines, oldest first.
func (e *Engine) Lines() []LogLine { return e.buffer.Snapshot() }

// Tail returns the newest n buffered lines, oldest first.
func (e *Engine) Tail(n int) []LogLine { return e.buffer.Tail(n) }

// Tree returns the group tree for rendering and collapse actions.
func (e *Engine) Tree() *group.Tree { return e.tree }

// Session returns the engine's session id.
func (e *Engine) Session() string { return e.session }

// Files returns a snapshot of every tailed file in insertion order.
func (e *Engine) Files() []FileStatus {
	out := make([]FileStatus, len(e.files))
	for i, f := range e.files {
		out[i] = f.status()
	}
	return out
}

// File returns the snapshot of one file.
func (e *Engine) File(path string) (FileStatus, bool) {
	f, err := e.lookup(path)
	if err != nil {
		return FileStatus{}, false
	}
	return f.status(), true
}

// Stats returns engine-wide counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Session:            e.session,
		Files:              len(e.files),
		Paused:             e.paused,
		PollInterval:       e.pollInterval,
		TotalLinesReceived: e.totalReceived,
		LinesDropped:       e.buffer.Dropped(),
		LinesThrottled:     e.linesThrottled,
		BufferLen:          e.buffer.Len(),
		BufferCap:          e.buffer.Cap(),
	}
	for _, f := range e.files {
		if f.active {
			s.ActiveFiles++
		}
		if f.paused {
			s.PausedFiles++
		}
	}
	return s
}

// SelectPreview makes path the previewed file and loads it.
func (e *Engine) SelectPreview(path string) error {
	f, err := e.lookup(path)
	if err != nil {
		return err
	}
	e.previewPath = f.reader.Path()
	e.reloadPreview()
	return e.previewErr
}

// SetPreviewMode switches between following and paused previews and reloads.
func (e *Engine) SetPreviewMode(mode preview.Mode) {
	e.previewMode = mode
	if e.previewPath != "" {
		e.reloadPreview()
	}
}

// PreviewMode returns the current preview mode.
func (e *Engine) PreviewMode() preview.Mode { return e.previewMode }

// Preview returns the most recently loaded preview. After a failed load the
// lines describe the error instead of showing stale content.
func (e *Engine) Preview() (preview.Result, error) {
	if e.previewErr != nil {
		return preview.Result{
			Path:   e.previewPath,
			Mode:   e.previewMode,
			Lines:  preview.ErrorLines(e.previewPath, e.previewErr),
			Target: -1,
		}, e.previewErr
	}
	return e.previewResult, nil
}

func (e *Engine) reloadPreview() {
	res, err := e.loader.Load(e.previewPath, e.previewMode)
	if err != nil {
		e.logger.Warn("preview reload failed", "path", e.previewPath, "error", err)
		e.previewResult = preview.Result{}
		e.previewErr = err
		return
	}
	e.previewResult = res
	e.previewErr = nil
}

func (e *Engine) lookup(path string) (*tailedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	f, ok := e.byPath[abs]
	if !ok {
		return nil, fmt.Errorf("%s: %w", abs, ErrUnknownFile)
	}
	return f, nil
}

func (f *tailedFile) status() FileStatus {
	return FileStatus{
		Path:               f.reader.Path(),
		Name:               f.name,
		Group:              f.group,
		Size:               f.reader.Size(),
		Position:           f.reader.Position(),
		Active:             f.active,
		Paused:             f.paused,
		LastActivity:       f.lastActivity,
		LinesSinceLastRead: f.linesSinceLastRead,
		TotalLinesRead:     f.reader.TotalLines(),
		TotalBytesRead:     f.reader.TotalBytes(),
		LinesThrottled:     f.linesThrottled,
		Rotations:          f.reader.Rotations(),
		Throttle:           f.throttle,
		LastError:          f.lastErr,
	}
}
