package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// FlatIndex is an exhaustive inner-product index. Rows are unit-normalized
// on insert, so scores are cosine similarities. Row i is the i-th vector
// added, which lets a parallel docstore address chunks by row.
//
// A FlatIndex is not safe for concurrent mutation; once built it is only read.
type FlatIndex struct {
	dims int
	data []float32 // rows*dims, row major
}

// NewFlatIndex creates an empty index of the given width.
func NewFlatIndex(dims int) *FlatIndex {
	return &FlatIndex{dims: dims}
}

// Dimensions returns the vector width.
func (f *FlatIndex) Dimensions() int {
	return f.dims
}

// Rows returns the number of vectors.
func (f *FlatIndex) Rows() int {
	if f.dims == 0 {
		return 0
	}
	return len(f.data) / f.dims
}

// Add appends normalized copies of vectors. Either all are added or none.
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(v), f.dims)
		}
	}
	f.data = slices.Grow(f.data, len(vectors)*f.dims)
	for _, v := range vectors {
		start := len(f.data)
		f.data = append(f.data, v...)
		NormalizeInPlace(f.data[start:])
	}
	return nil
}

// Row returns row i. The slice aliases index storage and must not be modified.
func (f *FlatIndex) Row(i int) []float32 {
	return f.data[i*f.dims : (i+1)*f.dims : (i+1)*f.dims]
}

// Search returns the min(k, Rows()) rows with the highest inner product
// against query, best first. Equal scores keep row order.
func (f *FlatIndex) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != f.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), f.dims)
	}
	rows := f.Rows()
	if k > rows {
		k = rows
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, rows)
	for i := 0; i < rows; i++ {
		results[i] = SearchResult{Row: i, Score: dot(query, f.Row(i))}
	}
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results[:k], nil
}

// Vectors returns every row. The slices alias index storage.
func (f *FlatIndex) Vectors() [][]float32 {
	out := make([][]float32, f.Rows())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Save writes the index to path atomically.
func (f *FlatIndex) Save(path string) error {
	return SaveMatrix(path, f.dims, f.Vectors())
}

// LoadFlatIndex reads an index written by Save. Rows are stored normalized
// and are loaded as is.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	dims, vectors, err := LoadMatrix(path)
	if err != nil {
		return nil, err
	}
	f := &FlatIndex{dims: dims, data: make([]float32, 0, len(vectors)*dims)}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return f, nil
}

// NormalizeInPlace scales v to unit length. Zero vectors are left as is.
func NormalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
