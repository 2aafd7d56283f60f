package vectorstore

import "encoding"

// Index stores unit vectors by position and answers top-k inner-product queries.
type Index interface {
	encoding.BinaryMarshaler

	Len() int
	Dim() int
	// Search returns k scores and row ids, best first. Rows past Len are reported
	// with id -1.
	Search(query []float32, k int) ([]float32, []int, error)
	WriteFile(path string) error
}
