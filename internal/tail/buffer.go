package tail

import "time"

// DefaultBufferLines is the combined buffer capacity when none is configured.
const DefaultBufferLines = 10000

// LogLine is one line read from a tailed file. Values are never mutated after
// creation.
type LogLine struct {
	Timestamp  time.Time
	Source     string // display name of the file
	LineNumber int64  // per-file running count; 0 for rotation markers
	Content    string
}

// Buffer is a bounded FIFO of LogLines. When full, pushing evicts the oldest
// line and counts it as dropped.
type Buffer struct {
	lines   []LogLine
	head    int // index of the oldest line
	size    int
	dropped int64
}

// NewBuffer returns an empty buffer holding at most capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferLines
	}
	return &Buffer{lines: make([]LogLine, capacity)}
}

// Push appends lines in order, evicting from the front on overflow.
func (b *Buffer) Push(lines ...LogLine) {
	capacity := len(b.lines)
	for _, line := range lines {
		if b.size == capacity {
			b.lines[b.head] = line
			b.head = (b.head + 1) % capacity
			b.dropped++
			continue
		}
		b.lines[(b.head+b.size)%capacity] = line
		b.size++
	}
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.lines) }

// Dropped returns how many lines were evicted since the last Clear.
func (b *Buffer) Dropped() int64 { return b.dropped }

// Snapshot copies the buffered lines oldest first.
func (b *Buffer) Snapshot() []LogLine {
	return b.Tail(b.size)
}

// Tail copies the newest n lines, oldest first.
func (b *Buffer) Tail(n int) []LogLine {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]LogLine, n)
	start := b.head + b.size - n
	for i := range out {
		out[i] = b.lines[(start+i)%len(b.lines)]
	}
	return out
}

// Clear empties the buffer and resets the drop counter.
func (b *Buffer) Clear() {
	clear(b.lines)
	b.head = 0
	b.size = 0
	b.dropped = 0
}
