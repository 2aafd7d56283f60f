package embedding

import (
	"context"
	"fmt"
	"math"

	"ragchat/internal/domain"
)

// Matrix embeds texts with emb and validates the result before it reaches an
// index: one row per text, a shared non-zero dimension and finite values.
// Every row is rescaled to unit length.
func Matrix(ctx context.Context, emb domain.Embedder, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed with %s: %w", emb.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, 0, fmt.Errorf("embed with %s: got %d vectors for %d texts", emb.Name(), len(vecs), len(texts))
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, 0, fmt.Errorf("embed with %s: empty vector", emb.Name())
	}
	for i, v := range vecs {
		if len(v) != dim {
			return nil, 0, fmt.Errorf("embed with %s: vector %d has dimension %d, want %d", emb.Name(), i, len(v), dim)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, 0, fmt.Errorf("embed with %s: vector %d has non-finite values", emb.Name(), i)
			}
		}
		L2Normalize(v)
	}
	return vecs, dim, nil
}

// L2Normalize scales v to unit length in place. Zero vectors are left alone.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
