package chunker

import (
	"path/filepath"
	"strconv"
	"strings"

	"ragchat/internal/domain"
)

// WordChunker splits text into fixed-size word windows with overlap.
type WordChunker struct {
	chunkSize int
	overlap   int
}

// NewWordChunker validates the window parameters and returns a chunker.
func NewWordChunker(chunkSize, overlap int) (*WordChunker, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits the document content and assigns ids "<name>::chunk<ordinal>".
// Ordinals restart at 0 for every document.
func (c *WordChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts, err := Split(document.Content, c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}
	name := document.Name
	if name == "" {
		name = filepath.Base(document.Path)
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ChunkID: ChunkID(name, idx),
			Text:    text,
			Meta: domain.ChunkMeta{
				SourcePath: document.Path,
				ChunkIndex: idx,
			},
		})
	}
	return chunks, nil
}

// ChunkID builds the id of the ordinal-th chunk of a document.
func ChunkID(name string, ordinal int) string {
	return name + "::chunk" + strconv.Itoa(ordinal)
}

// Split breaks text into windows of chunkSize whitespace-delimited words.
// Consecutive windows start chunkSize-overlap words apart; the walk stops at
// the first window that reaches the last word, so the final window may be short.
// A document of W words yields ceil(max(0, W-chunkSize)/step)+1 windows. A
// plain "while start < W" walk would add trailing windows already contained in
// the previous one ("9 10" after "7 8 9 10" for ten words, size 4, overlap 2);
// those are not emitted.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	var out []string
	for i := 0; i < len(words); i += step {
		end := min(i+chunkSize, len(words))
		chunk := strings.TrimSpace(strings.Join(words[i:end], " "))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return out, nil
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return domain.NewError("chunk", domain.ErrConfiguration, "", "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return domain.NewError("chunk", domain.ErrConfiguration, "", "overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return nil
}
