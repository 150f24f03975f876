// Package chunk splits decoded document text into line-addressed chunks.
//
// The chunker uses sentence accumulation: text is split into sentence-like
// units at punctuation boundaries, units are greedily packed into chunks of
// about ChunkSize characters, and each new chunk is seeded with the tail
// units of the previous one for overlap. Line spans are computed over the
// raw unit ranges, so consecutive chunk spans are always contiguous and
// their union covers every line of the input.
package chunk

import (
	"regexp"
	"strings"
)

// Default sizing for chunk accumulation, in characters.
const (
	DefaultChunkSize    = 500
	DefaultMinChunkSize = 100
	DefaultOverlapSize  = 50
)

// Chunk is one bounded slice of a document with its 1-indexed, inclusive
// line-range address.
type Chunk struct {
	// Index is the zero-based position of the chunk within its content.
	Index int
	// Text is the chunk text, trimmed of surrounding whitespace.
	Text string
	// StartLine is the first line covered by the chunk (1-indexed).
	StartLine int
	// EndLine is the last line covered by the chunk (inclusive).
	EndLine int
}

// Options controls chunk sizing.
type Options struct {
	// ChunkSize is the target maximum chunk length.
	ChunkSize int
	// MinChunkSize is the minimum length a chunk must reach before a
	// boundary is honored.
	MinChunkSize int
	// OverlapSize bounds the tail text carried into the next chunk.
	OverlapSize int
}

// DefaultOptions returns the default sizing.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		MinChunkSize: DefaultMinChunkSize,
		OverlapSize:  DefaultOverlapSize,
	}
}

// Chunker splits text into overlapping, line-addressed chunks.
type Chunker struct {
	opts Options
}

// New creates a Chunker. Zero or negative option fields fall back to defaults.
func New(opts Options) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.OverlapSize < 0 {
		opts.OverlapSize = DefaultOverlapSize
	}
	return &Chunker{opts: opts}
}

// Sentence boundary: terminal punctuation, an optional closing quote or
// bracket, then whitespace. The whitespace is consumed into the preceding
// unit so every unit starts at a non-whitespace character.
var boundaryRe = regexp.MustCompile(`[.!?]["')\]]?\s+`)

// unit is a sentence-like slice of the input, addressed by byte offsets.
// end includes the trailing whitespace consumed by the boundary match.
type unit struct {
	start int
	end   int
}

// Chunk splits text into ordered chunks. Whitespace-only input yields nil.
func (c *Chunker) Chunk(text string) []Chunk {
	units := splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	var buf []unit
	bufLen := 0

	emit := func() {
		if len(buf) == 0 {
			return
		}
		rawStart := buf[0].start
		rawEnd := buf[len(buf)-1].end
		trimmed := strings.TrimSpace(text[rawStart:rawEnd])
		if trimmed == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      trimmed,
			StartLine: lineAt(text, rawStart),
			EndLine:   lineAt(text, rawEnd-1),
		})
	}

	for _, u := range units {
		uLen := u.end - u.start
		if bufLen > 0 && bufLen+uLen > c.opts.ChunkSize && bufLen >= c.opts.MinChunkSize {
			emit()
			buf, bufLen = c.overlapSeed(buf)
		}
		buf = append(buf, u)
		bufLen += uLen
	}
	emit()

	return chunks
}

// overlapSeed walks backward through a just-closed chunk's units,
// accumulating tail units until the overlap budget would be exceeded.
// The seed starts the next chunk.
func (c *Chunker) overlapSeed(closed []unit) ([]unit, int) {
	var seed []unit
	seedLen := 0
	for i := len(closed) - 1; i >= 0; i-- {
		l := closed[i].end - closed[i].start
		if seedLen+l > c.opts.OverlapSize {
			break
		}
		seed = append([]unit{closed[i]}, seed...)
		seedLen += l
	}
	return seed, seedLen
}

// splitUnits cuts text into sentence-like units. Text with no boundary is a
// single unit spanning the whole input.
func splitUnits(text string) []unit {
	if text == "" {
		return nil
	}
	var units []unit
	start := 0
	for _, m := range boundaryRe.FindAllStringIndex(text, -1) {
		units = append(units, unit{start: start, end: m[1]})
		start = m[1]
	}
	if start < len(text) {
		units = append(units, unit{start: start, end: len(text)})
	}
	return units
}

// lineAt returns the 1-indexed line number containing byte offset i.
func lineAt(text string, i int) int {
	if i < 0 {
		i = 0
	}
	if i > len(text) {
		i = len(text)
	}
	return 1 + strings.Count(text[:i], "\n")
}

// CountLines returns the number of lines in text. A trailing newline does
// not start an additional empty line; empty text has zero lines.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
