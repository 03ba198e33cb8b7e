package analyzer

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the number of lines sent to the model per request.
const DefaultChunkSize = 1000

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunk is an ordered slice of a file's lines analyzed as one unit.
type Chunk struct {
	Index int
	Lines []string
}

func (c Chunk) Text() string { return strings.Join(c.Lines, "\n") }

// Split groups lines into consecutive chunks of at most size lines. The
// chunks cover the input exactly once, in order.
func Split(lines []string, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	chunks := make([]Chunk, 0, (len(lines)+size-1)/size)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		chunks = append(chunks, Chunk{Index: len(chunks), Lines: lines[start:end]})
	}
	return chunks, nil
}

// SplitLines breaks text at every line boundary: \n, \r\n, \r, \v, \f,
// \x1c-\x1e, U+0085, U+2028 and U+2029. A trailing boundary does not start an
// extra empty line, and empty text has no lines.
func SplitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		if !isLineBoundary(r) {
			i += w
			continue
		}
		lines = append(lines, text[start:i])
		i += w
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isLineBoundary(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
