package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/group"
	"github.com/TimelordUK/tailtree/internal/logging"
	"github.com/TimelordUK/tailtree/internal/preview"
	"github.com/TimelordUK/tailtree/internal/render"
	"github.com/TimelordUK/tailtree/internal/source"
	"github.com/TimelordUK/tailtree/internal/tail"
	"github.com/TimelordUK/tailtree/internal/view"
	"github.com/TimelordUK/tailtree/pkg/logformat"
)

// Focus is the pane receiving navigation keys
type Focus int

const (
	FocusTree Focus = iota
	FocusOutput
	FocusPreview
)

// pollRates are the presets stepped through with +/-.
var pollRates = []time.Duration{
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
}

// levelSteps are the minimum levels cycled by the level filter key.
var levelSteps = []logformat.Level{logformat.LevelUnknown, logformat.LevelInfo, logformat.LevelWarn, logformat.LevelError}

const treeWidth = 34

// Options configure the UI.
type Options struct {
	Engine *tail.Engine
	Config *config.Config
	Title  string
	Logger *slog.Logger
}

// Model is the main application model. Each tick polls the engine once and
// redraws; all engine access happens on the bubbletea update goroutine.
type Model struct {
	engine *tail.Engine
	cfg    *config.Config
	logger *slog.Logger
	title  string

	keys keyMap
	help help.Model

	output  *view.Viewport
	preview *view.Viewport
	filter  *source.FilteredProvider

	rows   []row
	byPath map[string]tail.FileStatus
	cursor int
	focus  Focus
	level  int

	width  int
	height int

	lastErrors []tail.FileError
	styles     styles
}

type styles struct {
	tree      treeStyles
	status    lipgloss.Style
	statusHot lipgloss.Style
	title     lipgloss.Style
	border    lipgloss.Style
	focused   lipgloss.Style
}

// NewModel creates the application model.
func NewModel(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	renderer := render.NewLogLevelRenderer(cfg)
	detector := logformat.NewLevelDetector(&cfg.LogLevels)

	output := view.NewViewport(80, 20)
	output.SetRenderer(renderer)

	pv := view.NewViewport(80, 10)
	pv.SetRenderer(render.NewPlainRenderer(false))
	pv.SetShowLineNumbers(false)

	theme := cfg.Theme
	m := &Model{
		engine:  opts.Engine,
		cfg:     cfg,
		logger:  logger,
		title:   opts.Title,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		output:  output,
		preview: pv,
		filter:  source.NewFilteredProvider(nil, detector.Detect),
		byPath:  make(map[string]tail.FileStatus),
		styles: styles{
			tree: treeStyles{
				active:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.ActiveGroup)).Bold(true),
				idle:    lipgloss.NewStyle().Foreground(lipgloss.Color(theme.IdleGroup)),
				paused:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.PausedFile)),
				errored: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Dropped)),
				cursor:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
				dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
			},
			status:    lipgloss.NewStyle().Background(lipgloss.Color(theme.StatusBar)).Foreground(lipgloss.Color(theme.StatusBarText)),
			statusHot: lipgloss.NewStyle().Background(lipgloss.Color(theme.StatusBar)).Foreground(lipgloss.Color(theme.Dropped)).Bold(true),
			title:     lipgloss.NewStyle().Bold(true),
			border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")),
			focused:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")),
		},
	}
	m.refresh()
	return m
}

// Messages

type tickMsg time.Time

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tickCmd(m.engine.PollInterval())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.poll(time.Time(msg))
		return m, tickCmd(m.engine.PollInterval())

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil
	}

	return m, nil
}

func (m *Model) poll(now time.Time) {
	res := m.engine.Poll(now)
	if !res.Polled {
		return
	}
	m.lastErrors = res.Errors
	m.refresh()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	case key.Matches(msg, m.keys.Tab):
		m.cycleFocus()
	case key.Matches(msg, m.keys.PauseAll):
		m.engine.SetPausedAll(!m.engine.Paused())
	case key.Matches(msg, m.keys.Faster):
		m.stepPollRate(-1)
	case key.Matches(msg, m.keys.Slower):
		m.stepPollRate(1)
	case key.Matches(msg, m.keys.ClearBuffer):
		m.engine.ClearBuffer()
	case key.Matches(msg, m.keys.LevelFilter):
		m.cycleLevel()
	case key.Matches(msg, m.keys.PreviewMode):
		m.togglePreviewMode()
	default:
		switch m.focus {
		case FocusTree:
			m.handleTreeKey(msg)
		case FocusOutput:
			m.handleViewportKey(m.output, msg)
		case FocusPreview:
			m.handleViewportKey(m.preview, msg)
		}
	}
	m.refresh()
	return m, nil
}

func (m *Model) handleTreeKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, max(len(m.rows)-1, 0))
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = max(len(m.rows)-1, 0)
	case key.Matches(msg, m.keys.Toggle):
		m.activateRow()
	case key.Matches(msg, m.keys.Pause):
		m.pauseRow()
	case key.Matches(msg, m.keys.AutoHand):
		if r, ok := m.currentRow(); ok && r.kind == rowGroup {
			_ = m.engine.Tree().ClearOverride(r.group)
		}
	}
}

func (m *Model) handleViewportKey(v *view.Viewport, msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		v.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		v.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		v.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		v.PageDown()
	case key.Matches(msg, m.keys.Top):
		v.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		v.SetFollow(true)
	case key.Matches(msg, m.keys.Follow):
		v.SetFollow(!v.Following())
	}
}

func (m *Model) currentRow() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

// activateRow toggles a group or previews a file.
func (m *Model) activateRow() {
	r, ok := m.currentRow()
	if !ok {
		return
	}
	if r.kind == rowGroup {
		if _, err := m.engine.Tree().ToggleCollapsed(r.group); err != nil {
			m.logger.Warn("toggle group failed", "group", int(r.group), "error", err)
		}
		return
	}
	if err := m.engine.SelectPreview(r.path); err != nil {
		m.logger.Warn("preview failed", "path", r.path, "error", err)
	}
	m.preview.SetFollow(m.engine.PreviewMode() == preview.Following)
	m.layout()
}

// pauseRow pauses a file, or every file under a group.
func (m *Model) pauseRow() {
	r, ok := m.currentRow()
	if !ok {
		return
	}
	if r.kind == rowFile {
		if _, err := m.engine.ToggleFilePaused(r.path); err != nil {
			m.logger.Warn("pause file failed", "path", r.path, "error", err)
		}
		return
	}

	// Pause the group unless every file in it is already paused.
	ids, err := m.engine.Tree().Subtree(r.group)
	if err != nil {
		return
	}
	in := make(map[group.ID]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	allPaused := true
	for _, f := range m.byPath {
		if in[f.Group] && !f.Paused {
			allPaused = false
			break
		}
	}
	if _, err := m.engine.PauseGroup(r.group, !allPaused); err != nil {
		m.logger.Warn("pause group failed", "group", int(r.group), "error", err)
	}
}

func (m *Model) cycleFocus() {
	m.focus = (m.focus + 1) % 3
	if m.focus == FocusPreview {
		if p, _ := m.engine.Preview(); p.Path == "" {
			m.focus = FocusTree
		}
	}
}

func (m *Model) stepPollRate(dir int) {
	current := m.engine.PollInterval()
	idx := 0
	for i, r := range pollRates {
		if r <= current {
			idx = i
		}
	}
	idx = min(max(idx+dir, 0), len(pollRates)-1)
	m.engine.SetPollInterval(pollRates[idx])
}

func (m *Model) cycleLevel() {
	m.level = (m.level + 1) % len(levelSteps)
	if levelSteps[m.level] == logformat.LevelUnknown {
		m.filter.ClearFilter()
		return
	}
	m.filter.SetLevelAndAbove(levelSteps[m.level])
}

func (m *Model) togglePreviewMode() {
	mode := preview.Paused
	if m.engine.PreviewMode() == preview.Paused {
		mode = preview.Following
	}
	m.engine.SetPreviewMode(mode)
	m.preview.SetFollow(mode == preview.Following)
}

// refresh pulls fresh snapshots from the engine into the panes.
func (m *Model) refresh() {
	files := m.engine.Files()
	clear(m.byPath)
	for _, f := range files {
		m.byPath[f.Path] = f
	}
	m.rows = buildRows(m.engine.Tree(), files)
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))

	m.filter.SetSource(source.FromLogLines(m.engine.Lines()))
	m.output.UpdateProvider(m.filter)

	if p, _ := m.engine.Preview(); p.Path != "" {
		m.preview.UpdateProvider(source.FromText(p.Lines, p.Target))
		if p.Target >= 0 && !m.preview.Following() {
			m.preview.GotoLine(p.Target)
		}
	}
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	bodyHeight := m.bodyHeight()
	outWidth := max(m.width-treeWidth-4, 10)

	if p, _ := m.engine.Preview(); p.Path != "" {
		previewHeight := bodyHeight / 3
		m.output.SetSize(outWidth, bodyHeight-previewHeight-4)
		m.preview.SetSize(outWidth, max(previewHeight-2, 1))
		return
	}
	m.output.SetSize(outWidth, bodyHeight-2)
}

func (m *Model) bodyHeight() int {
	return max(m.height-2-lipgloss.Height(m.help.View(m.keys)), 3)
}

// View implements tea.Model
func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}
	bodyHeight := m.bodyHeight()

	treeBox := m.box(m.focus == FocusTree).Width(treeWidth).Height(bodyHeight - 2)
	tree := treeBox.Render(renderTree(m.engine.Tree(), m.byPath, m.rows, m.cursor, m.focus == FocusTree, m.styles.tree, treeWidth, bodyHeight-2))

	outWidth := max(m.width-treeWidth-4, 10)
	right := m.box(m.focus == FocusOutput).Width(outWidth).Render(m.output.Render())
	if p, _ := m.engine.Preview(); p.Path != "" {
		header := m.styles.title.Render(fmt.Sprintf("%s (%s)", p.Path, p.Mode))
		pane := m.box(m.focus == FocusPreview).Width(outWidth).Render(header + "\n" + m.preview.Render())
		right = lipgloss.JoinVertical(lipgloss.Left, right, pane)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, tree, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine(), m.help.View(m.keys))
}

func (m *Model) box(focused bool) lipgloss.Style {
	if focused {
		return m.styles.focused
	}
	return m.styles.border
}

func (m *Model) statusLine() string {
	s := m.engine.Stats()

	parts := []string{
		fmt.Sprintf(" %s", m.title),
		fmt.Sprintf("● %d/%d active", s.ActiveFiles, s.Files),
		fmt.Sprintf("poll %s", s.PollInterval),
		fmt.Sprintf("lines %s", humanize.Comma(s.TotalLinesReceived)),
		fmt.Sprintf("buffer %.0f%%", s.FillPercent()),
	}
	if lvl := m.filter.MinLevel(); lvl != logformat.LevelUnknown {
		parts = append(parts, fmt.Sprintf("level ≥ %s", lvl))
	}
	if !m.output.Following() {
		parts = append(parts, fmt.Sprintf("scrolled %.0f%%", m.output.PercentScrolled()))
	}
	line := m.styles.status.Render(strings.Join(parts, " │ "))

	var hot []string
	if s.LinesDropped > 0 {
		hot = append(hot, fmt.Sprintf("dropped %s", humanize.Comma(s.LinesDropped)))
	}
	if s.LinesThrottled > 0 {
		hot = append(hot, fmt.Sprintf("throttled %s", humanize.Comma(s.LinesThrottled)))
	}
	if n := len(m.lastErrors); n > 0 {
		hot = append(hot, fmt.Sprintf("%d file error(s): %s", n, m.lastErrors[0].Error()))
	}
	if s.Paused {
		hot = append(hot, "PAUSED")
	}
	if len(hot) > 0 {
		line += m.styles.statusHot.Render(" │ " + strings.Join(hot, " │ "))
	}
	return lipgloss.NewStyle().Width(m.width).MaxHeight(1).Background(lipgloss.Color(m.cfg.Theme.StatusBar)).Render(line)
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := NewModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
