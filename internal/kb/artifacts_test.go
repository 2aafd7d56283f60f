package kb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, emb, _ := scenarioStore(t)
	dir := filepath.Join(t.TempDir(), "kb")
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir, emb, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, s.ModelName(), loaded.ModelName())
	assert.Equal(t, s.Chunks(), loaded.Chunks())
	require.NoError(t, loaded.CheckEmbedder())

	queries := []string{"seven eight nine", "four five", "one", "nothing matches this"}
	for _, q := range queries {
		want, err := s.Retrieve(context.Background(), q, 5)
		require.NoError(t, err)
		got, err := loaded.Retrieve(context.Background(), q, 5)
		require.NoError(t, err)
		require.Len(t, got, len(want), q)
		for i := range want {
			assert.Equal(t, want[i].ChunkID, got[i].ChunkID, q)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-5, q)
		}
	}
}

func TestSaveWritesDocumentedLayout(t *testing.T) {
	s, _, _ := scenarioStore(t)
	dir := t.TempDir()
	require.NoError(t, s.Save(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{IndexFile, ChunksFile}, names)

	data, err := os.ReadFile(filepath.Join(dir, ChunksFile))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "hashing-tf-384", doc["model_name"])
	chunks := doc["chunks"].([]any)
	require.Len(t, chunks, 3)
	first := chunks[0].(map[string]any)
	assert.Equal(t, "a.md::chunk0", first["chunk_id"])
	assert.Equal(t, "one two three four", first["text"])
	meta := first["meta"].(map[string]any)
	assert.Contains(t, meta, "source_path")
	assert.Equal(t, float64(0), meta["chunk_index"])
}

func TestSaveOverwritesPreviousBuild(t *testing.T) {
	s, emb, _ := scenarioStore(t)
	dir := t.TempDir()
	require.NoError(t, s.Save(dir))

	require.NoError(t, s.Build(context.Background(), []domain.Document{{Name: "z.md", Content: "zeta eta theta"}}, 4, 1))
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir, emb, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, "z.md::chunk0", loaded.Chunks()[0].ChunkID)
}

func TestLoadMissingArtifacts(t *testing.T) {
	s, emb, _ := scenarioStore(t)

	for _, remove := range []string{IndexFile, ChunksFile} {
		t.Run(remove, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, s.Save(dir))
			require.NoError(t, os.Remove(filepath.Join(dir, remove)))

			_, err := Load(dir, emb)
			assert.ErrorIs(t, err, domain.ErrMissingArtifact)
			assert.Contains(t, err.Error(), remove)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent"), emb)
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)
}

func TestLoadRejectsCorruptMetadata(t *testing.T) {
	s, emb, _ := scenarioStore(t)

	valid := func(t *testing.T) string {
		dir := t.TempDir()
		require.NoError(t, s.Save(dir))
		data, err := os.ReadFile(filepath.Join(dir, ChunksFile))
		require.NoError(t, err)
		return string(data)
	}

	tests := map[string]func(string) string{
		"not json":      func(string) string { return "{not json" },
		"unknown field": func(v string) string { return strings.Replace(v, `"model_name"`, `"extra": 1, "model_name"`, 1) },
		"missing model": func(v string) string { return strings.Replace(v, `"model_name"`, `"model_name_x"`, 1) },
		"missing meta": func(string) string {
			return `{"model_name":"hashing-tf-384","chunks":[{"chunk_id":"a","text":"t"},{"chunk_id":"b","text":"t","meta":{"source_path":"x","chunk_index":0}},{"chunk_id":"c","text":"t","meta":{"source_path":"x","chunk_index":1}}]}`
		},
		"count mismatch": func(string) string {
			return `{"model_name":"hashing-tf-384","chunks":[{"chunk_id":"a","text":"t","meta":{"source_path":"x","chunk_index":0}}]}`
		},
		"duplicate ids": func(string) string {
			c := `{"chunk_id":"a","text":"t","meta":{"source_path":"x","chunk_index":0}}`
			return `{"model_name":"hashing-tf-384","chunks":[` + c + "," + c + "," + c + `]}`
		},
		"trailing data": func(v string) string { return v + "{}" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, s.Save(dir))
			path := filepath.Join(dir, ChunksFile)
			require.NoError(t, os.WriteFile(path, []byte(mutate(valid(t))), 0o644))

			_, err := Load(dir, emb)
			assert.ErrorIs(t, err, domain.ErrCorruptArtifact)
		})
	}
}

func TestLoadRejectsCorruptIndex(t *testing.T) {
	s, emb, _ := scenarioStore(t)
	dir := t.TempDir()
	require.NoError(t, s.Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte("garbage"), 0o644))

	_, err := Load(dir, emb)
	assert.ErrorIs(t, err, domain.ErrCorruptArtifact)
}

func TestLoadSurfacesModelIdentity(t *testing.T) {
	s, emb, _ := scenarioStore(t)
	dir := t.TempDir()
	require.NoError(t, s.Save(dir))

	other := namedEmbedder{Embedder: emb, name: "text-embedding-3-small"}
	loaded, err := Load(dir, other, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, "hashing-tf-384", loaded.ModelName())
	assert.ErrorIs(t, loaded.CheckEmbedder(), domain.ErrModelMismatch)
}
