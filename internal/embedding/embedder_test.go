package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vecs [][]float32
	err  error
}

func (s stubEmbedder) Name() string { return "stub" }

func (s stubEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return s.vecs, s.err
}

func TestMatrixNormalizesRows(t *testing.T) {
	emb := stubEmbedder{vecs: [][]float32{{3, 4}, {0, 2}}}

	vecs, dim, err := Matrix(context.Background(), emb, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, vecs[0], 1e-6)
	assert.InDeltaSlice(t, []float32{0, 1}, vecs[1], 1e-6)
}

func TestMatrixRejectsMalformedOutput(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		emb  stubEmbedder
	}{
		{"row count", stubEmbedder{vecs: [][]float32{{1, 0}}}},
		{"ragged", stubEmbedder{vecs: [][]float32{{1, 0}, {1}}}},
		{"empty", stubEmbedder{vecs: [][]float32{{}, {}}}},
		{"non-finite", stubEmbedder{vecs: [][]float32{{1, 0}, {nan, 0}}}},
		{"embedder error", stubEmbedder{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Matrix(context.Background(), tt.emb, []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

func TestMatrixEmptyInput(t *testing.T) {
	vecs, dim, err := Matrix(context.Background(), stubEmbedder{err: errors.New("must not be called")}, nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, dim)
}

func TestL2NormalizeLeavesZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	L2Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
