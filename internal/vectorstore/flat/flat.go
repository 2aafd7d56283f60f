package flat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"ragchat/internal/domain"
	"ragchat/internal/fsutil"
)

const (
	// NoMatch is the id reported for padding entries when k exceeds the row count.
	NoMatch = -1

	headerSize    = 20
	formatVersion = 1
)

// NoMatchScore accompanies NoMatch ids.
const NoMatchScore = -math.MaxFloat32

var magic = [8]byte{'K', 'B', 'F', 'L', 'A', 'T', 'I', 'P'}

type header struct {
	Magic   [8]byte
	Version uint32
	Dim     uint32
	Count   uint32
}

// Index is an exact inner-product index over a fixed set of vectors.
// Row i of the index keeps the position it was built with. An Index is
// immutable after Build, so concurrent searches are safe.
type Index struct {
	dim  int
	rows int
	data []float32 // row-major rows×dim
}

// Build copies vectors into a new index. All vectors must share one non-zero dimension.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, errors.New("flat: no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("flat: zero dimension")
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("flat: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Index{dim: dim, rows: len(vectors), data: data}, nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return ix.rows }

// Dim returns the vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Search returns the k rows with the highest inner product against query,
// in descending score order. Equal scores keep the smaller row first. When k
// exceeds Len the tail is padded with NoMatch ids and NoMatchScore.
func (ix *Index) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("flat: query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	scores := make([]float32, ix.rows)
	for i := range ix.rows {
		scores[i] = dot(query, ix.data[i*ix.dim:(i+1)*ix.dim])
	}
	order := make([]int, ix.rows)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})

	outScores := make([]float32, k)
	outIDs := make([]int, k)
	for n := range k {
		if n < len(order) {
			outIDs[n] = order[n]
			outScores[n] = scores[order[n]]
			continue
		}
		outIDs[n] = NoMatch
		outScores[n] = NoMatchScore
	}
	return outScores, outIDs, nil
}

// MarshalBinary stores: magic(8) version(u32) dim(u32) n(u32), then n×dim
// little-endian float32 values.
func (ix *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + 4*len(ix.data))
	h := header{Magic: magic, Version: formatVersion, Dim: uint32(ix.dim), Count: uint32(ix.rows)}
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, ix.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (ix *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return corrupt("truncated header")
	}
	var h header
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return corrupt(err.Error())
	}
	if h.Magic != magic {
		return corrupt("bad magic")
	}
	if h.Version != formatVersion {
		return corrupt(fmt.Sprintf("unsupported version %d", h.Version))
	}
	if h.Dim == 0 || h.Count == 0 {
		return corrupt("empty index")
	}
	values := uint64(h.Dim) * uint64(h.Count)
	if uint64(len(data)-headerSize) != 4*values {
		return corrupt(fmt.Sprintf("payload is %d bytes, want %d", len(data)-headerSize, 4*values))
	}
	vals := make([]float32, values)
	if err := binary.Read(r, binary.LittleEndian, vals); err != nil {
		return corrupt(err.Error())
	}
	ix.dim = int(h.Dim)
	ix.rows = int(h.Count)
	ix.data = vals
	return nil
}

// WriteFile persists the index atomically.
func (ix *Index) WriteFile(path string) error {
	data, err := ix.MarshalBinary()
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// ReadFile restores an index persisted with WriteFile.
func ReadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ix := &Index{}
	if err := ix.UnmarshalBinary(data); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return ix, nil
}

func corrupt(detail string) error {
	return domain.NewError("restore index", domain.ErrCorruptArtifact, "", "%s", detail)
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
