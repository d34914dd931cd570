// Package preview materializes a window of one file's content for display:
// the last N lines while following, or a region around a target line.
package preview

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TimelordUK/tailtree/internal/index"
	tailio "github.com/TimelordUK/tailtree/internal/io"
)

// Mode selects how a preview is loaded.
type Mode int

const (
	// Following shows the most recent lines and is reloaded as the file grows.
	Following Mode = iota
	// Paused shows a fixed snapshot of the file.
	Paused
)

func (m Mode) String() string {
	if m == Paused {
		return "paused"
	}
	return "following"
}

// Options tunes the loader.
type Options struct {
	FollowLines   int
	MmapThreshold int64
	ContextLines  int
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		FollowLines:   1000,
		MmapThreshold: 10 * 1024 * 1024,
		ContextLines:  50,
	}
}

// Result is one loaded preview.
type Result struct {
	Path  string
	Mode  Mode
	Lines []string
	// Target is the index into Lines of the marked line, or -1.
	Target   int
	Size     int64
	Windowed bool
	Mapped   bool
}

// Loader loads previews. It keeps no state between calls.
type Loader struct {
	opts Options
}

// NewLoader returns a loader; zero option fields fall back to defaults.
func NewLoader(opts Options) *Loader {
	def := DefaultOptions()
	if opts.FollowLines <= 0 {
		opts.FollowLines = def.FollowLines
	}
	if opts.MmapThreshold <= 0 {
		opts.MmapThreshold = def.MmapThreshold
	}
	if opts.ContextLines < 0 {
		opts.ContextLines = def.ContextLines
	}
	return &Loader{opts: opts}
}

// Options returns the effective options.
func (l *Loader) Options() Options { return l.opts }

// Load returns the last FollowLines lines in Following mode. In Paused mode
// it returns the whole file when it is below the mmap threshold, otherwise a
// marked window around the last line.
func (l *Loader) Load(path string, mode Mode) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("preview %s: %w", path, err)
	}

	if mode == Following {
		lines, err := l.lastLines(path, l.opts.FollowLines)
		if err != nil {
			return Result{}, err
		}
		return Result{Path: path, Mode: mode, Lines: lines, Target: -1, Size: info.Size()}, nil
	}

	if info.Size() < l.opts.MmapThreshold {
		lines, err := l.lastLines(path, 0)
		if err != nil {
			return Result{}, err
		}
		return Result{Path: path, Mode: mode, Lines: lines, Target: -1, Size: info.Size()}, nil
	}

	return l.Window(path, 0)
}

// Window returns the lines within ContextLines of target (1-based), each
// prefixed with its line number and the target marked with ">>>". A target
// of zero or less selects the last line. Files at or above the mmap
// threshold are scanned through a memory mapping.
func (l *Loader) Window(path string, target int) (Result, error) {
	src, err := tailio.OpenSnapshot(path, l.opts.MmapThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("preview %s: %w", path, err)
	}
	defer src.Close()
	size := src.Size()

	if target <= 0 {
		total, err := index.CountLines(src, size)
		if err != nil {
			return Result{}, fmt.Errorf("preview %s: %w", path, err)
		}
		target = max(total, 1)
	}

	res := Result{
		Path:     path,
		Mode:     Paused,
		Target:   -1,
		Size:     size,
		Windowed: true,
		Mapped:   src.Mapped(),
	}

	err = index.ScanLines(src, size, target-l.opts.ContextLines, target+l.opts.ContextLines, func(s index.Span) error {
		buf, err := src.ReadRange(s.Start, s.End)
		if err != nil {
			return err
		}
		text := strings.TrimSuffix(string(buf), "\r")
		if s.Line == target {
			res.Target = len(res.Lines)
			res.Lines = append(res.Lines, fmt.Sprintf(">>> %4d | %s", s.Line, text))
		} else {
			res.Lines = append(res.Lines, fmt.Sprintf("    %4d | %s", s.Line, text))
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("preview %s: %w", path, err)
	}
	return res, nil
}

// lastLines returns the final n lines of path, or every line when n is zero,
// keeping at most n lines in memory.
func (l *Loader) lastLines(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", path, err)
	}
	defer file.Close()

	var (
		ring  []string
		idx   int
		count int
		all   []string
	)
	if n > 0 {
		ring = make([]string, n)
	}

	br := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if n > 0 {
				ring[idx] = line
				idx = (idx + 1) % n
				count = min(count+1, n)
			} else {
				all = append(all, line)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("preview %s: %w", path, err)
		}
	}

	if n == 0 {
		return all, nil
	}
	lines := make([]string, count)
	if count == n {
		for i := range lines {
			lines[i] = ring[(idx+i)%n]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// ErrorLines renders a load failure as preview content so stale lines are
// never left on screen.
func ErrorLines(path string, err error) []string {
	return []string{fmt.Sprintf("[preview unavailable: %s]", path), err.Error()}
}
