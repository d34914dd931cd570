package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/TimelordUK/tailtree/internal/render"
	"github.com/TimelordUK/tailtree/internal/source"
)

// Viewport manages the visible portion of content.
// It knows nothing about log formats, files or the engine;
// it only knows how to display lines from a LineProvider.
type Viewport struct {
	provider source.LineProvider
	renderer render.Renderer

	// Dimensions
	width  int
	height int

	// Scroll position
	scrollOffset int

	// Follow keeps the view pinned to the newest line as content arrives
	follow bool

	// Styling
	lineNumberStyle lipgloss.Style
	emptyStyle      lipgloss.Style

	// Options
	showLineNumbers bool
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:           width,
		height:          height,
		follow:          true,
		showLineNumbers: true,
		lineNumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		emptyStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		renderer:        render.NewPlainRenderer(true),
	}
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetProvider sets a new line provider and scrolls to the top, or to the
// bottom when following
func (v *Viewport) SetProvider(provider source.LineProvider) {
	v.provider = provider
	v.scrollOffset = 0
	v.settle()
}

// UpdateProvider swaps in refreshed content, keeping the scroll position
func (v *Viewport) UpdateProvider(provider source.LineProvider) {
	v.provider = provider
	v.settle()
}

func (v *Viewport) settle() {
	if v.follow {
		v.GotoBottom()
		return
	}
	v.clampScroll()
}

// SetFollow pins or unpins the view to the newest line
func (v *Viewport) SetFollow(follow bool) {
	v.follow = follow
	v.settle()
}

// Following reports whether the view tracks the newest line
func (v *Viewport) Following() bool {
	return v.follow
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = max(height, 1)
	v.settle()
}

// ScrollDown scrolls down by n lines
func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

// ScrollUp scrolls up by n lines and stops following
func (v *Viewport) ScrollUp(n int) {
	v.follow = false
	v.scrollOffset -= n
	v.clampScroll()
}

// PageDown scrolls down by one page
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height - 1)
}

// PageUp scrolls up by one page
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height - 1)
}

// GotoTop scrolls to the beginning
func (v *Viewport) GotoTop() {
	v.follow = false
	v.scrollOffset = 0
}

// GotoBottom scrolls to the end
func (v *Viewport) GotoBottom() {
	if v.provider == nil {
		return
	}
	v.scrollOffset = v.provider.LineCount() - v.height
	v.clampScroll()
}

// GotoLine scrolls so that line (0-based) is near the middle of the view
func (v *Viewport) GotoLine(line int) {
	v.follow = false
	v.scrollOffset = line - v.height/2
	v.clampScroll()
}

// CurrentLine returns the current top line index
func (v *Viewport) CurrentLine() int {
	return v.scrollOffset
}

// clampScroll ensures scroll offset is within valid bounds
func (v *Viewport) clampScroll() {
	if v.provider == nil {
		v.scrollOffset = 0
		return
	}

	maxScroll := max(v.provider.LineCount()-v.height, 0)
	v.scrollOffset = min(max(v.scrollOffset, 0), maxScroll)
}

// Render returns the viewport content as a string
func (v *Viewport) Render() string {
	var lines []source.Line
	lineNumWidth := 0
	if v.provider != nil {
		lines = v.provider.GetLines(v.scrollOffset, v.height)
		for _, line := range lines {
			lineNumWidth = max(lineNumWidth, len(fmt.Sprintf("%d", line.Number)))
		}
	}

	var builder strings.Builder
	for i, line := range lines {
		if i > 0 {
			builder.WriteString("\n")
		}

		var row strings.Builder
		if v.showLineNumbers && line.Number > 0 {
			row.WriteString(v.lineNumberStyle.Render(fmt.Sprintf("%*d ", lineNumWidth, line.Number)))
		}
		row.WriteString(v.renderer.Render(line))

		if v.width > 0 {
			builder.WriteString(ansi.Truncate(row.String(), v.width, "…"))
		} else {
			builder.WriteString(row.String())
		}
	}

	// Pad with empty lines if needed
	for i := len(lines); i < v.height; i++ {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(v.emptyStyle.Render("~"))
	}

	return builder.String()
}

// PercentScrolled returns how far through the content we are
func (v *Viewport) PercentScrolled() float64 {
	if v.provider == nil || v.provider.LineCount() == 0 {
		return 0
	}

	total := v.provider.LineCount()
	if total <= v.height {
		return 100
	}

	return float64(v.scrollOffset) / float64(total-v.height) * 100
}

// SetShowLineNumbers toggles line numbers
func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}

// ShowLineNumbers reports whether line numbers are drawn
func (v *Viewport) ShowLineNumbers() bool {
	return v.showLineNumbers
}
