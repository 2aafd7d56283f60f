package kb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ragchat/internal/domain"
	"ragchat/internal/fsutil"
	"ragchat/internal/vectorstore/flat"
)

// File names inside a knowledge base directory. Both are required.
const (
	IndexFile  = "kb.index"
	ChunksFile = "kb_chunks.json"
)

type chunksFile struct {
	ModelName string         `json:"model_name"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// Wire shapes with pointer fields so absent keys can be told apart from zero values.
type (
	chunksRecord struct {
		ModelName *string       `json:"model_name"`
		Chunks    []chunkRecord `json:"chunks"`
	}
	chunkRecord struct {
		ChunkID *string     `json:"chunk_id"`
		Text    *string     `json:"text"`
		Meta    *metaRecord `json:"meta"`
	}
	metaRecord struct {
		SourcePath *string `json:"source_path"`
		ChunkIndex *int    `json:"chunk_index"`
	}
)

// Save writes the index and the chunk metadata to dir. Both files are staged
// next to their targets first; the old metadata file is removed before the
// index is swapped in and the new metadata lands last, so a reader never sees
// metadata paired with a foreign index.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	index, chunks, model := s.index, s.chunks, s.modelName
	s.mu.RUnlock()
	if index == nil {
		return domain.NewError("save", domain.ErrNotBuilt, dir, "build or load the knowledge base first")
	}

	indexData, err := index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("save: encode index: %w", err)
	}
	meta, err := json.MarshalIndent(chunksFile{ModelName: model, Chunks: chunks}, "", "  ")
	if err != nil {
		return fmt.Errorf("save: encode chunks: %w", err)
	}

	indexPath := filepath.Join(dir, IndexFile)
	chunksPath := filepath.Join(dir, ChunksFile)

	indexTmp, err := fsutil.WriteTemp(indexPath, indexData, 0o644)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	chunksTmp, err := fsutil.WriteTemp(chunksPath, append(meta, '\n'), 0o644)
	if err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("save: %w", err)
	}
	cleanup := func() {
		_ = os.Remove(indexTmp)
		_ = os.Remove(chunksTmp)
	}

	if err := os.Remove(chunksPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cleanup()
		return fmt.Errorf("save: %w", err)
	}
	if err := os.Rename(indexTmp, indexPath); err != nil {
		cleanup()
		return fmt.Errorf("save: %w", err)
	}
	if err := os.Rename(chunksTmp, chunksPath); err != nil {
		_ = os.Remove(chunksTmp)
		return fmt.Errorf("save: %w", err)
	}

	s.log.Info("knowledge base saved", "dir", dir, "chunks", len(chunks), "model", model)
	return nil
}

// Load restores a store saved with Save. The recorded model identity is kept
// as is; use CheckEmbedder to compare it with emb.
func Load(dir string, emb domain.Embedder, opts ...Option) (*Store, error) {
	indexPath := filepath.Join(dir, IndexFile)
	chunksPath := filepath.Join(dir, ChunksFile)

	var missing []string
	for _, p := range []string{indexPath, chunksPath} {
		if _, err := os.Stat(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load: %w", err)
			}
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewError("load", domain.ErrMissingArtifact, dir, "missing %v", missing)
	}

	model, chunks, err := readChunks(chunksPath)
	if err != nil {
		return nil, err
	}
	index, err := flat.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if index.Len() != len(chunks) {
		return nil, domain.NewError("load", domain.ErrCorruptArtifact, dir,
			"index has %d vectors for %d chunks", index.Len(), len(chunks))
	}

	s := New(emb, opts...)
	s.modelName = model
	s.chunks = chunks
	s.index = index

	s.log.Info("knowledge base loaded", "dir", dir, "chunks", len(chunks), "model", model)
	if emb != nil && emb.Name() != model {
		s.log.Warn("embedder differs from index model", "index_model", model, "embedder", emb.Name())
	}
	return s, nil
}

func readChunks(path string) (string, []domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("load: %w", err)
	}
	corrupt := func(format string, args ...any) error {
		return domain.NewError("load", domain.ErrCorruptArtifact, path, format, args...)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var rec chunksRecord
	if err := dec.Decode(&rec); err != nil {
		return "", nil, corrupt("%v", err)
	}
	if dec.More() {
		return "", nil, corrupt("trailing data after chunk metadata")
	}
	if rec.ModelName == nil || *rec.ModelName == "" {
		return "", nil, corrupt("model_name is missing")
	}
	if len(rec.Chunks) == 0 {
		return "", nil, corrupt("no chunks")
	}

	chunks := make([]domain.Chunk, len(rec.Chunks))
	seen := make(map[string]struct{}, len(rec.Chunks))
	for i, c := range rec.Chunks {
		if c.ChunkID == nil || c.Text == nil || c.Meta == nil || c.Meta.SourcePath == nil || c.Meta.ChunkIndex == nil {
			return "", nil, corrupt("chunk %d is missing required fields", i)
		}
		if _, dup := seen[*c.ChunkID]; dup {
			return "", nil, corrupt("duplicate chunk id %q", *c.ChunkID)
		}
		seen[*c.ChunkID] = struct{}{}
		chunks[i] = domain.Chunk{
			ChunkID: *c.ChunkID,
			Text:    *c.Text,
			Meta:    domain.ChunkMeta{SourcePath: *c.Meta.SourcePath, ChunkIndex: *c.Meta.ChunkIndex},
		}
	}
	return *rec.ModelName, chunks, nil
}
