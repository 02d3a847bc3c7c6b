// Package accumulate keeps the running sum of per-instant shadow rasters and turns it
// into a mean once the sampling sequence ends.
package accumulate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoValidSamples is returned by Finalize when nothing was folded in, e.g. a
	// polar night date where the sun never clears the horizon.
	ErrNoValidSamples = errors.New("no valid samples to average")

	// ErrShape is returned when a folded raster does not match the buffer.
	ErrShape = errors.New("raster shape does not match accumulation buffer")
)

// Buffer is an elementwise running sum plus a count of folded samples. It is not
// safe for concurrent use; parallel callers keep one Buffer each and Merge them.
type Buffer struct {
	rows, cols int
	sum        *mat.Dense
	count      int
}

// New creates an empty buffer for rows x cols rasters.
func New(rows, cols int) *Buffer {
	return &Buffer{
		rows: rows,
		cols: cols,
		sum:  mat.NewDense(rows, cols, nil),
	}
}

// Dims returns the raster shape the buffer accepts.
func (b *Buffer) Dims() (rows, cols int) {
	return b.rows, b.cols
}

// Count returns the number of folded samples.
func (b *Buffer) Count() int {
	return b.count
}

// Fold adds sample into the running sum.
func (b *Buffer) Fold(sample mat.Matrix) error {
	r, c := sample.Dims()
	if r != b.rows || c != b.cols {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShape, r, c, b.rows, b.cols)
	}

	b.sum.Add(b.sum, sample)
	b.count++
	return nil
}

// Merge folds another buffer's partial sum and count into b.
func (b *Buffer) Merge(other *Buffer) error {
	if other == nil || other.count == 0 {
		return nil
	}
	if other.rows != b.rows || other.cols != b.cols {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShape, other.rows, other.cols, b.rows, b.cols)
	}

	b.sum.Add(b.sum, other.sum)
	b.count += other.count
	return nil
}

// Finalize returns the elementwise mean of every folded sample.
func (b *Buffer) Finalize() (*mat.Dense, error) {
	if b.count == 0 {
		return nil, ErrNoValidSamples
	}

	var mean mat.Dense
	mean.Scale(1/float64(b.count), b.sum)
	return &mean, nil
}
