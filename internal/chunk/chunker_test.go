package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(DefaultOptions())

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunkShortInputSingleChunk(t *testing.T) {
	// Given text shorter than the chunk size with no sentence boundary
	c := New(DefaultOptions())
	text := "  hello world\nno boundary here  "

	// When chunked
	chunks := c.Chunk(text)

	// Then exactly one chunk spans the whole text
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, CountLines(text), chunks[0].EndLine)
}

func TestChunkSingleSentenceScenario(t *testing.T) {
	c := New(DefaultOptions())
	text := "The cat sat. The dog ran fast today."

	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestChunkOverlapSeedsNextChunk(t *testing.T) {
	// Given three sentences where the third overflows the chunk size
	c := New(Options{ChunkSize: 40, MinChunkSize: 10, OverlapSize: 15})
	text := "Alpha beta gamma. " + "Delta epsilon. " + "Zeta eta theta iota."

	chunks := c.Chunk(text)

	// Then the second chunk is seeded with the last sentence of the first
	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha beta gamma. Delta epsilon.", chunks[0].Text)
	assert.Equal(t, "Delta epsilon. Zeta eta theta iota.", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunkLineSpansAreContiguous(t *testing.T) {
	c := New(Options{ChunkSize: 30, MinChunkSize: 10, OverlapSize: 0})
	text := "One two three.\nFour five six.\nSeven eight nine."

	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, 3, chunks[1].StartLine)
	assert.Equal(t, 3, chunks[1].EndLine)
}

func TestChunkSpansCoverAllLines(t *testing.T) {
	// Given a multi-paragraph document chunked with small sizes
	c := New(Options{ChunkSize: 80, MinChunkSize: 20, OverlapSize: 10})

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is a sentence about document number one.\n")
		if i%5 == 0 {
			b.WriteString("\n")
		}
	}
	text := b.String()

	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	// Then the union of line spans covers [1, CountLines] with no gaps
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, CountLines(text), chunks[len(chunks)-1].EndLine)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqualf(t, chunks[i].StartLine, chunks[i-1].EndLine+1,
			"gap between chunk %d and %d", i-1, i)
		assert.LessOrEqual(t, chunks[i-1].StartLine, chunks[i].StartLine)
	}
	for i, ch := range chunks {
		assert.NotEmpty(t, ch.Text)
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
	}
}

func TestChunkRespectsMinChunkSize(t *testing.T) {
	// Short sentences must accumulate past MinChunkSize before a boundary
	// closes a chunk
	c := New(Options{ChunkSize: 40, MinChunkSize: 35, OverlapSize: 0})
	text := strings.Repeat("Tiny one. ", 12)

	chunks := c.Chunk(text)

	require.NotEmpty(t, chunks)
	for i, ch := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqualf(t, len(ch.Text), 30, "chunk %d too small", i)
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"\n", 1},
		{"a\n\nb", 3},
	}

	for _, tt := range tests {
		assert.Equalf(t, tt.want, CountLines(tt.text), "CountLines(%q)", tt.text)
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultChunkSize, c.opts.ChunkSize)
	assert.Equal(t, DefaultMinChunkSize, c.opts.MinChunkSize)
	assert.Equal(t, DefaultOverlapSize, c.opts.OverlapSize)
}
