// Package kb builds, persists and queries the local knowledge base: chunked
// documents embedded into a flat inner-product index.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ragchat/internal/chunker"
	"ragchat/internal/corpus"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/flat"
)

// Store owns one embedder and, once built or loaded, the chunk list and the
// index whose row i holds the vector of chunks[i]. Build replaces the whole
// state; queries only read it.
type Store struct {
	embedder domain.Embedder
	log      *slog.Logger
	discover corpus.Options

	mu        sync.RWMutex
	modelName string
	chunks    []domain.Chunk
	index     vectorstore.Index
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for build and load progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDiscovery sets the corpus discovery options used by BuildFromCorpus.
func WithDiscovery(opts corpus.Options) Option {
	return func(s *Store) { s.discover = opts }
}

// New returns an unbuilt store that embeds with emb.
func New(emb domain.Embedder, opts ...Option) *Store {
	s := &Store{embedder: emb, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.discover.Logger == nil {
		s.discover.Logger = s.log
	}
	return s
}

// BuildFromCorpus discovers the documents under root and builds the store
// from them. It fails with ErrConfiguration when the corpus yields no chunks.
func (s *Store) BuildFromCorpus(ctx context.Context, root string, chunkSize, overlap int) error {
	docs, err := corpus.Discover(root, s.discover)
	if err != nil {
		return err
	}
	s.log.Info("corpus loaded", "root", root, "documents", len(docs))
	if err := s.Build(ctx, docs, chunkSize, overlap); err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Path == "" {
			de.Path = root
		}
		return err
	}
	return nil
}

// Build chunks docs in order, embeds every chunk in one batch and replaces the
// store's state with the result.
func (s *Store) Build(ctx context.Context, docs []domain.Document, chunkSize, overlap int) error {
	wc, err := chunker.NewWordChunker(chunkSize, overlap)
	if err != nil {
		return err
	}
	var chunks []domain.Chunk
	seen := make(map[string]string)
	for _, d := range docs {
		cs, err := wc.Chunk(d)
		if err != nil {
			return err
		}
		for _, c := range cs {
			if prev, ok := seen[c.ChunkID]; ok {
				return domain.NewError("build", domain.ErrConfiguration, d.Path,
					"chunk id %q also produced by %s; document names must be unique", c.ChunkID, prev)
			}
			seen[c.ChunkID] = d.Path
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return domain.NewError("build", domain.ErrConfiguration, "", "corpus yielded no chunks (%d documents)", len(docs))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, dim, err := embedding.Matrix(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	index, err := flat.Build(vectors)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	s.mu.Lock()
	s.modelName = s.embedder.Name()
	s.chunks = chunks
	s.index = index
	s.mu.Unlock()

	s.log.Info("knowledge base built", "chunks", len(chunks), "dimension", dim, "model", s.embedder.Name())
	return nil
}

// Retrieve embeds query and returns up to k results in descending score order.
// A blank query returns no results without calling the embedder; any other
// query is embedded exactly as given. Index hits
// without a matching chunk are dropped.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	index, chunks := s.index, s.chunks
	s.mu.RUnlock()

	if index == nil {
		return nil, domain.NewError("retrieve", domain.ErrNotBuilt, "", "build or load the knowledge base first")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		return nil, domain.NewError("retrieve", domain.ErrConfiguration, "", "k must be positive, got %d", k)
	}

	vecs, dim, err := embedding.Matrix(ctx, s.embedder, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if dim != index.Dim() {
		return nil, domain.NewError("retrieve", domain.ErrModelMismatch, "",
			"query dimension %d, index dimension %d", dim, index.Dim())
	}
	// Padding past the row count is dropped below, so never ask for it.
	scores, ids, err := index.Search(vecs[0], min(k, index.Len()))
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(ids))
	for n, id := range ids {
		if id < 0 || id >= len(chunks) {
			continue
		}
		c := chunks[id]
		results = append(results, domain.RetrievalResult{
			Score:   clamp(scores[n]),
			ChunkID: c.ChunkID,
			Text:    c.Text,
			Meta:    c.Meta,
		})
	}
	return results, nil
}

// ModelName is the identity of the embedder the current index was built with.
func (s *Store) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelName
}

// CheckEmbedder reports ErrModelMismatch when the store's embedder is not the
// model the index was built with.
func (s *Store) CheckEmbedder() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return domain.NewError("check embedder", domain.ErrNotBuilt, "", "no index")
	}
	if got := s.embedder.Name(); got != s.modelName {
		return domain.NewError("check embedder", domain.ErrModelMismatch, "",
			"index built with %q, embedder is %q", s.modelName, got)
	}
	return nil
}

// Ready reports whether the store can answer queries.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Chunks returns a copy of the indexed chunks in row order.
func (s *Store) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...)
}

// float32 rounding can push the dot product of two unit vectors past 1.
func clamp(v float32) float32 {
	return min(max(v, -1), 1)
}
