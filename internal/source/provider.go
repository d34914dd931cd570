package source

import (
	"github.com/TimelordUK/tailtree/internal/tail"
	"github.com/TimelordUK/tailtree/pkg/logformat"
)

// Line is a displayable line with optional metadata
type Line struct {
	Content string
	Source  string // display name of the originating file, empty for previews
	Number  int64  // line number shown in the gutter; 0 hides it
	Level   logformat.Level
	Marked  bool // target line of a windowed preview
}

// LineProvider is the core abstraction for accessing lines.
// The viewport only interacts with this interface.
type LineProvider interface {
	// LineCount returns total number of lines
	LineCount() int

	// GetLines returns up to count lines starting at the 0-based index start
	GetLines(start, count int) []Line
}

// Static serves a fixed slice of lines
type Static struct {
	lines []Line
}

// NewStatic wraps lines without copying
func NewStatic(lines []Line) *Static {
	return &Static{lines: lines}
}

// FromLogLines builds a provider over a combined buffer snapshot
func FromLogLines(logLines []tail.LogLine) *Static {
	lines := make([]Line, len(logLines))
	for i, l := range logLines {
		lines[i] = Line{Content: l.Content, Source: l.Source, Number: l.LineNumber}
	}
	return NewStatic(lines)
}

// FromText builds a provider over preview text. target is the index of the
// marked line, or -1.
func FromText(text []string, target int) *Static {
	lines := make([]Line, len(text))
	for i, t := range text {
		lines[i] = Line{Content: t, Marked: i == target}
	}
	return NewStatic(lines)
}

// LineCount returns total number of lines
func (s *Static) LineCount() int { return len(s.lines) }

// GetLines returns a range of lines
func (s *Static) GetLines(start, count int) []Line {
	if start < 0 {
		start = 0
	}
	end := min(start+count, len(s.lines))
	if start >= end {
		return nil
	}
	return s.lines[start:end]
}
