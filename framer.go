package serialmon

import (
	"bytes"
	"iter"
	"strings"
)

// DefaultMaxLineLength caps the pending partial line of a Framer.
const DefaultMaxLineLength = 64 * 1024

// Framer turns a byte stream into complete, trimmed text lines split on
// '\n'. It is not safe for concurrent use.
//
// Decoding is done per line, after splitting, so a multi-byte rune that
// arrives in two chunks is decoded intact. Invalid UTF-8 is replaced with
// the configured marker and never causes an error.
type Framer struct {
	buf         []byte
	replacement string
	maxLine     int
	overflows   uint64
}

type FramerOption func(*Framer)

// WithReplacement sets the marker substituted for invalid UTF-8. The
// default is the empty string, which drops invalid bytes.
func WithReplacement(marker string) FramerOption {
	return func(f *Framer) { f.replacement = marker }
}

// WithMaxLineLength bounds the pending partial line. Once n bytes are
// pending without a terminator, they are emitted as a line of their own.
// Zero disables the limit.
func WithMaxLineLength(n int) FramerOption {
	return func(f *Framer) {
		if n < 0 {
			n = 0
		}
		f.maxLine = n
	}
}

func NewFramer(opts ...FramerOption) *Framer {
	f := &Framer{maxLine: DefaultMaxLineLength}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feed appends p and returns the lines that are complete so far. Lines are
// extracted lazily as the sequence is consumed; whatever is not consumed,
// including the trailing partial line, stays buffered for the next Feed.
func (f *Framer) Feed(p []byte) iter.Seq[string] {
	f.buf = append(f.buf, p...)
	return func(yield func(string) bool) {
		for {
			line, ok := f.next()
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

// next extracts one raw segment. Blank segments come back as "" so the
// caller can skip them while still consuming the terminator.
func (f *Framer) next() (string, bool) {
	idx := bytes.IndexByte(f.buf, '\n')
	if idx < 0 {
		if f.maxLine == 0 || len(f.buf) < f.maxLine {
			return "", false
		}
		f.overflows++
		return f.take(f.maxLine, 0), true
	}
	if f.maxLine > 0 && idx > f.maxLine {
		f.overflows++
		return f.take(f.maxLine, 0), true
	}
	return f.take(idx, 1), true
}

func (f *Framer) take(n, skip int) string {
	raw := bytes.TrimRight(f.buf[:n], "\r")
	line := strings.ToValidUTF8(string(raw), f.replacement)
	// Shift the remainder down so the backing array is reused.
	rest := copy(f.buf, f.buf[n+skip:])
	f.buf = f.buf[:rest]
	return line
}

// Buffered returns the length of the pending partial line.
func (f *Framer) Buffered() int { return len(f.buf) }

// Overflows counts lines forced out by the max line length.
func (f *Framer) Overflows() uint64 { return f.overflows }
