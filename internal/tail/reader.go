package tail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RotationMarker is emitted in place of content when a file shrinks.
const RotationMarker = "[FILE TRUNCATED/ROTATED]"

var (
	ErrNotRegular    = errors.New("not a regular file")
	ErrDuplicateFile = errors.New("file already tailed")
	ErrUnknownFile   = errors.New("file not tailed")
)

// Delta is the outcome of one Reader poll.
type Delta struct {
	Lines   []string
	Bytes   int64
	Rotated bool
}

// Reader tracks the read cursor of one growing file. It starts at the end of
// the file and only ever reads the bytes appended since the previous poll.
type Reader struct {
	path string
	name string

	lastSize     int64
	lastPosition int64

	totalLines int64
	totalBytes int64
	rotations  int
}

// Open resolves path and positions a new Reader at the current end of file.
func Open(path string) (*Reader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRegular)
	}

	return &Reader{
		path:         abs,
		name:         filepath.Base(abs),
		lastSize:     info.Size(),
		lastPosition: info.Size(),
	}, nil
}

// Poll re-reads the file size and returns whatever was appended since the
// last call. A shrinking file is treated as rotation: the cursor resets to
// zero and a single marker line is returned. The new incarnation's content is
// read from byte zero on the following poll.
func (r *Reader) Poll() (Delta, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return Delta{}, fmt.Errorf("stat %s: %w", r.path, err)
	}
	size := info.Size()

	switch {
	case size < r.lastSize:
		r.lastSize = size
		r.lastPosition = 0
		r.rotations++
		return Delta{Lines: []string{RotationMarker}, Rotated: true}, nil
	case size <= r.lastPosition:
		return Delta{}, nil
	}

	lines, err := r.readRange(r.lastPosition, size)
	if err != nil {
		return Delta{}, err
	}

	read := size - r.lastPosition
	r.lastPosition = size
	r.lastSize = size
	r.totalBytes += read
	r.totalLines += int64(len(lines))

	return Delta{Lines: lines, Bytes: read}, nil
}

// readRange splits [from, to) into lines. Bytes past to, written after the
// size was sampled, are left for the next poll.
func (r *Reader) readRange(from, to int64) ([]string, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer file.Close()

	if _, err := file.Seek(from, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", r.path, err)
	}

	br := bufio.NewReaderSize(io.LimitReader(file, to-from), 64*1024)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.path, err)
		}
	}
	return lines, nil
}

// Path returns the absolute path.
func (r *Reader) Path() string { return r.path }

// Name returns the base name used for display.
func (r *Reader) Name() string { return r.name }

// Size returns the file size observed at the last poll.
func (r *Reader) Size() int64 { return r.lastSize }

// Position returns the byte offset of the next read.
func (r *Reader) Position() int64 { return r.lastPosition }

// TotalLines returns the number of content lines read this session.
func (r *Reader) TotalLines() int64 { return r.totalLines }

// TotalBytes returns the number of bytes read this session.
func (r *Reader) TotalBytes() int64 { return r.totalBytes }

// Rotations returns how many times a shrink was observed.
func (r *Reader) Rotations() int { return r.rotations }
