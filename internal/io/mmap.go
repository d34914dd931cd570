// Package io gives the preview loader random access to file contents,
// through a memory mapping once a file is large enough to be worth it.
package io

import (
	"errors"
	"fmt"
	stdio "io"
	"os"

	"golang.org/x/exp/mmap"
)

// Snapshot is random read access to a file's bytes as they were when it was
// opened. Appends made later are not visible.
type Snapshot struct {
	src    stdio.ReaderAt
	size   int64
	mapped bool
	close  func() error
}

// OpenSnapshot opens path, memory-mapping it when its size is at least
// mmapThreshold bytes. A threshold of zero or less always maps.
func OpenSnapshot(path string, mmapThreshold int64) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	if info.Size() >= mmapThreshold && info.Size() > 0 {
		reader, err := mmap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		return &Snapshot{src: reader, size: int64(reader.Len()), mapped: true, close: reader.Close}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Snapshot{src: f, size: info.Size(), close: f.Close}, nil
}

// ReadAt implements io.ReaderAt.
func (s *Snapshot) ReadAt(p []byte, off int64) (int, error) {
	return s.src.ReadAt(p, off)
}

// Size is the snapshot length in bytes.
func (s *Snapshot) Size() int64 { return s.size }

// Mapped reports whether the snapshot is memory mapped.
func (s *Snapshot) Mapped() bool { return s.mapped }

// Close releases the mapping or file handle.
func (s *Snapshot) Close() error { return s.close() }

// ReadRange returns the bytes in [start, end), clipped to the snapshot.
func (s *Snapshot) ReadRange(start, end int64) ([]byte, error) {
	end = min(end, s.size)
	start = max(start, 0)
	if start >= end {
		return nil, nil
	}

	buf := make([]byte, end-start)
	n, err := s.src.ReadAt(buf, start)
	if err != nil && !(errors.Is(err, stdio.EOF) && int64(n) == end-start) {
		return nil, err
	}
	return buf, nil
}
