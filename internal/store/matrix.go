package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Matrix file layout (little endian):
//
//	magic   [4]byte "TFLT"
//	version uint32
//	dims    uint32
//	rows    uint32
//	data    rows*dims float32
const (
	matrixMagic   = "TFLT"
	matrixVersion = 1
	maxDimensions = 1 << 16
)

// ErrCorruptMatrix is returned when a matrix file cannot be decoded.
var ErrCorruptMatrix = errors.New("corrupt matrix file")

// WriteMatrix encodes vectors, which must all have length dims.
func WriteMatrix(w io.Writer, dims int, vectors [][]float32) error {
	header := make([]byte, 16)
	copy(header[0:4], matrixMagic)
	binary.LittleEndian.PutUint32(header[4:8], matrixVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(dims))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(vectors)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	row := make([]byte, 4*dims)
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
		for j, x := range v {
			binary.LittleEndian.PutUint32(row[4*j:], math.Float32bits(x))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("write matrix row %d: %w", i, err)
		}
	}
	return nil
}

// readMatrix decodes a matrix written by WriteMatrix. size must equal the
// encoded length so a corrupt header cannot drive the allocation.
func readMatrix(r io.Reader, size int64) (dims int, vectors [][]float32, err error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("%w: header: %v", ErrCorruptMatrix, err)
	}
	if string(header[0:4]) != matrixMagic {
		return 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptMatrix, header[0:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != matrixVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptMatrix, v)
	}
	dims = int(binary.LittleEndian.Uint32(header[8:12]))
	rows := int(binary.LittleEndian.Uint32(header[12:16]))
	if (dims == 0 && rows > 0) || dims > maxDimensions {
		return 0, nil, fmt.Errorf("%w: invalid dimensions %d", ErrCorruptMatrix, dims)
	}
	if size != 16+int64(rows)*int64(dims)*4 {
		return 0, nil, fmt.Errorf("%w: size %d does not match %d rows of %d dimensions", ErrCorruptMatrix, size, rows, dims)
	}

	flat := make([]float32, rows*dims)
	buf := make([]byte, 4*dims)
	vectors = make([][]float32, rows)
	for i := 0; i < rows; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("%w: row %d: %v", ErrCorruptMatrix, i, err)
		}
		row := flat[i*dims : (i+1)*dims : (i+1)*dims]
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors[i] = row
	}

	// Trailing bytes mean the header and payload disagree.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return 0, nil, fmt.Errorf("%w: trailing data", ErrCorruptMatrix)
	}
	return dims, vectors, nil
}

// SaveMatrix writes a matrix file atomically.
func SaveMatrix(path string, dims int, vectors [][]float32) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return WriteMatrix(w, dims, vectors)
	})
}

// LoadMatrix reads a matrix file.
func LoadMatrix(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, err
	}
	return readMatrix(bufio.NewReader(f), info.Size())
}
