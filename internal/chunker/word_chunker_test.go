package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name:    "windows at 0 and 3",
			text:    "one two three four five six",
			size:    4,
			overlap: 1,
			want:    []string{"one two three four", "four five six"},
		},
		{
			name:    "shorter than one window",
			text:    "seven eight nine",
			size:    4,
			overlap: 1,
			want:    []string{"seven eight nine"},
		},
		{
			name:    "whitespace is normalized",
			text:    "  alpha\tbeta\n\ngamma   delta  ",
			size:    2,
			overlap: 0,
			want:    []string{"alpha beta", "gamma delta"},
		},
		{
			name:    "exact fit does not emit a tail window",
			text:    "a b c d",
			size:    4,
			overlap: 1,
			want:    []string{"a b c d"},
		},
		{
			name:    "contained suffix window is not emitted",
			text:    "1 2 3 4 5 6 7 8 9 10",
			size:    4,
			overlap: 2,
			want:    []string{"1 2 3 4", "3 4 5 6", "5 6 7 8", "7 8 9 10"},
		},
		{
			name:    "empty text",
			text:    " \n\t ",
			size:    4,
			overlap: 1,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitRejectsInvalidWindow(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0},
		{-3, 0},
		{4, 4},
		{4, 9},
		{4, -1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size=%d overlap=%d", tt.size, tt.overlap), func(t *testing.T) {
			_, err := Split("a b c", tt.size, tt.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))

			_, err = NewWordChunker(tt.size, tt.overlap)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestSplitCountAndCoverage(t *testing.T) {
	for words := 0; words <= 40; words++ {
		text := numberedWords(words)
		for size := 1; size <= 9; size++ {
			for overlap := 0; overlap < size; overlap++ {
				first, err := Split(text, size, overlap)
				require.NoError(t, err)
				second, err := Split(text, size, overlap)
				require.NoError(t, err)
				assert.Equal(t, first, second, "chunking must be deterministic")

				assert.Len(t, first, expectedCount(words, size, overlap),
					"words=%d size=%d overlap=%d", words, size, overlap)

				seen := make(map[string]bool)
				for _, c := range first {
					fields := strings.Fields(c)
					assert.LessOrEqual(t, len(fields), size)
					for _, w := range fields {
						seen[w] = true
					}
				}
				for _, w := range strings.Fields(text) {
					assert.True(t, seen[w], "word %q dropped (size=%d overlap=%d)", w, size, overlap)
				}
			}
		}
	}
}

func TestWordChunkerAssignsIDs(t *testing.T) {
	c, err := NewWordChunker(4, 1)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{
		Path:    "kb/a.md",
		RelPath: "a.md",
		Content: "one two three four five six",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "a.md::chunk0", chunks[0].ChunkID)
	assert.Equal(t, "a.md::chunk1", chunks[1].ChunkID)
	assert.Equal(t, "four five six", chunks[1].Text)
	assert.Equal(t, domain.ChunkMeta{SourcePath: "kb/a.md", ChunkIndex: 1}, chunks[1].Meta)

	named, err := c.Chunk(domain.Document{Path: "kb/x/a.md", Name: "x/a.md", Content: "hello"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "x/a.md::chunk0", named[0].ChunkID)
}

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

// expectedCount is ceil(max(0, W-size)/step) + 1 for W > 0.
func expectedCount(words, size, overlap int) int {
	if words == 0 {
		return 0
	}
	step := size - overlap
	rest := max(0, words-size)
	return (rest+step-1)/step + 1
}
