package render

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/source"
	"github.com/TimelordUK/tailtree/pkg/logformat"
)

// Renderer applies styling to lines
type Renderer interface {
	Render(line source.Line) string
}

// sourcePalette colors per-file prefixes in the combined output
var sourcePalette = []string{"39", "78", "170", "208", "75", "142", "204", "117"}

// LogLevelRenderer colors lines based on log level
type LogLevelRenderer struct {
	detector     *logformat.LevelDetector
	styles       map[logformat.Level]lipgloss.Style
	sourceStyles map[string]lipgloss.Style
	markStyle    lipgloss.Style
	showSource   bool
}

// NewLogLevelRenderer creates a renderer with config
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	detector := logformat.NewLevelDetector(&cfg.LogLevels)

	styles := map[logformat.Level]lipgloss.Style{
		logformat.LevelUnknown: lipgloss.NewStyle(),
		logformat.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Trace)),
		logformat.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Debug)),
		logformat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Info)),
		logformat.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Warn)),
		logformat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Error)),
		logformat.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Fatal)).Bold(true),
	}

	return &LogLevelRenderer{
		detector:     detector,
		styles:       styles,
		sourceStyles: make(map[string]lipgloss.Style),
		markStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		showSource:   true,
	}
}

// SetShowSource toggles the "[file] " prefix
func (r *LogLevelRenderer) SetShowSource(show bool) {
	r.showSource = show
}

// Render applies log level styling to a line
func (r *LogLevelRenderer) Render(line source.Line) string {
	if line.Marked {
		return r.markStyle.Render(line.Content)
	}

	// Detect level if not already set
	level := line.Level
	if level == logformat.LevelUnknown {
		level = r.detector.Detect(line.Content)
	}

	body := r.styles[level].Render(line.Content)
	if !r.showSource || line.Source == "" {
		return body
	}
	return r.sourceStyle(line.Source).Render("["+line.Source+"]") + " " + body
}

func (r *LogLevelRenderer) sourceStyle(name string) lipgloss.Style {
	if s, ok := r.sourceStyles[name]; ok {
		return s
	}
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(SourceColor(name)))
	r.sourceStyles[name] = s
	return s
}

// SourceColor picks a stable palette color for a file name
func SourceColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return sourcePalette[h.Sum32()%uint32(len(sourcePalette))]
}

// PlainRenderer renders without styling
type PlainRenderer struct {
	showSource bool
}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer(showSource bool) *PlainRenderer {
	return &PlainRenderer{showSource: showSource}
}

// Render returns the line content, prefixed with its source when enabled
func (r *PlainRenderer) Render(line source.Line) string {
	if r.showSource && line.Source != "" {
		return "[" + line.Source + "] " + line.Content
	}
	return line.Content
}
