package source

import "github.com/TimelordUK/tailtree/pkg/logformat"

// LevelDetectFunc detects log level from content
type LevelDetectFunc func(content string) logformat.Level

// FilteredProvider wraps a LineProvider, detects each line's level and
// optionally hides lines below a minimum level.
type FilteredProvider struct {
	source   LineProvider
	detector LevelDetectFunc

	// Level filter: if set, only show lines with these levels
	levelFilter map[logformat.Level]bool

	// Lines that pass the filter, with levels filled in
	filtered []Line
	dirty    bool
}

// NewFilteredProvider creates a filtered provider
func NewFilteredProvider(source LineProvider, detector LevelDetectFunc) *FilteredProvider {
	return &FilteredProvider{
		source:      source,
		detector:    detector,
		levelFilter: make(map[logformat.Level]bool),
		dirty:       true,
	}
}

// SetSource swaps the underlying provider, keeping the filter
func (f *FilteredProvider) SetSource(source LineProvider) {
	f.source = source
	f.dirty = true
}

// ToggleLevel toggles a level in the filter
func (f *FilteredProvider) ToggleLevel(level logformat.Level) {
	if f.levelFilter[level] {
		delete(f.levelFilter, level)
	} else {
		f.levelFilter[level] = true
	}
	f.dirty = true
}

// SetLevelAndAbove sets filter to show this level and all higher severity
func (f *FilteredProvider) SetLevelAndAbove(level logformat.Level) {
	f.levelFilter = make(map[logformat.Level]bool)
	for l := logformat.LevelTrace; l <= logformat.LevelFatal; l++ {
		if l >= level {
			f.levelFilter[l] = true
		}
	}
	f.dirty = true
}

// ClearFilter removes all level filters
func (f *FilteredProvider) ClearFilter() {
	f.levelFilter = make(map[logformat.Level]bool)
	f.dirty = true
}

// IsFiltered returns true if any filter is active
func (f *FilteredProvider) IsFiltered() bool {
	return len(f.levelFilter) > 0
}

// MinLevel returns the lowest level that passes, or LevelUnknown when
// nothing is filtered
func (f *FilteredProvider) MinLevel() logformat.Level {
	for l := logformat.LevelTrace; l <= logformat.LevelFatal; l++ {
		if f.levelFilter[l] {
			return l
		}
	}
	return logformat.LevelUnknown
}

func (f *FilteredProvider) rebuild() {
	if !f.dirty {
		return
	}
	f.dirty = false
	f.filtered = nil
	if f.source == nil {
		return
	}

	for _, line := range f.source.GetLines(0, f.source.LineCount()) {
		if line.Level == logformat.LevelUnknown && f.detector != nil {
			line.Level = f.detector(line.Content)
		}
		if len(f.levelFilter) > 0 && !f.levelFilter[line.Level] {
			continue
		}
		f.filtered = append(f.filtered, line)
	}
}

// LineCount returns total number of filtered lines
func (f *FilteredProvider) LineCount() int {
	f.rebuild()
	return len(f.filtered)
}

// GetLines returns a range of filtered lines
func (f *FilteredProvider) GetLines(start, count int) []Line {
	f.rebuild()
	return NewStatic(f.filtered).GetLines(start, count)
}
