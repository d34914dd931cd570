package index

import (
	"bytes"
	"io"
)

const chunkSize = 64 * 1024

// Span is the byte range of one line, excluding its terminator
type Span struct {
	Line  int // 1-based line number
	Start int64
	End   int64
}

// ScanLines walks r from offset 0 to size counting newlines and calls fn for
// each line whose 1-based number lies in [first, last]. Scanning stops once
// last has been passed, so the cost is proportional to the position of the
// window rather than to the file size. A final line without a terminator is
// reported too.
func ScanLines(r io.ReaderAt, size int64, first, last int, fn func(Span) error) error {
	if first < 1 {
		first = 1
	}
	if last < first || size <= 0 {
		return nil
	}

	buf := make([]byte, chunkSize)
	line := 1
	var lineStart int64
	var pos int64

	for pos < size {
		readSize := int64(chunkSize)
		if pos+readSize > size {
			readSize = size - pos
		}
		n, err := r.ReadAt(buf[:readSize], pos)
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			break
		}

		chunk := buf[:n]
		offset := 0
		for {
			idx := bytes.IndexByte(chunk[offset:], '\n')
			if idx == -1 {
				break
			}
			lineEnd := pos + int64(offset+idx)
			if line >= first {
				if err := fn(Span{Line: line, Start: lineStart, End: lineEnd}); err != nil {
					return err
				}
			}
			line++
			lineStart = lineEnd + 1
			offset += idx + 1
			if line > last {
				return nil
			}
		}
		pos += int64(n)
	}

	if lineStart < size && line >= first && line <= last {
		return fn(Span{Line: line, Start: lineStart, End: size})
	}
	return nil
}

// CountLines returns the number of lines in r, counting a final
// unterminated line.
func CountLines(r io.ReaderAt, size int64) (int, error) {
	buf := make([]byte, chunkSize)
	count := 0
	var pos int64
	last := byte('\n')

	for pos < size {
		readSize := int64(chunkSize)
		if pos+readSize > size {
			readSize = size - pos
		}
		n, err := r.ReadAt(buf[:readSize], pos)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 0 {
			break
		}
		count += bytes.Count(buf[:n], []byte{'\n'})
		last = buf[n-1]
		pos += int64(n)
	}

	if size > 0 && last != '\n' {
		count++
	}
	return count, nil
}
