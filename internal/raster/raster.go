// Package raster holds the grid helpers shared by the shading packages and the
// msgpack file format rasters are persisted in.
package raster

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when two rasters that must align differ in shape.
var ErrShapeMismatch = errors.New("raster shape mismatch")

// Georef carries the affine geotransform (GDAL ordering) and CRS of a raster.
type Georef struct {
	GeoTransform [6]float64 `json:"geotransform" msgpack:"geotransform"`
	CRS          string     `json:"crs" msgpack:"crs"`
}

// Scale returns the pixels-per-unit scale implied by the geotransform, or 0 when the
// pixel width is unknown.
func (g Georef) Scale() float64 {
	if g.GeoTransform[1] == 0 {
		return 0
	}
	return 1 / math.Abs(g.GeoTransform[1])
}

// Filled returns a rows x cols raster with every cell set to v.
func Filled(rows, cols int, v float64) *mat.Dense {
	data := make([]float64, rows*cols)
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return mat.NewDense(rows, cols, data)
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}

// CheckShape returns ErrShapeMismatch, naming the layer, unless layer matches ref.
func CheckShape(name string, ref, layer mat.Matrix) error {
	if SameShape(ref, layer) {
		return nil
	}
	rr, rc := ref.Dims()
	lr, lc := layer.Dims()
	return fmt.Errorf("%w: %s is %dx%d, elevation grid is %dx%d", ErrShapeMismatch, name, lr, lc, rr, rc)
}

// ToRadians returns a copy of m converted from degrees to radians.
func ToRadians(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(math.Pi/180.0, m)
	return &out
}

// Clamp limits every cell of m to [lo, hi] in place and returns the number of cells
// that were moved.
func Clamp(m *mat.Dense, lo, hi float64) int {
	moved := 0
	m.Apply(func(_, _ int, v float64) float64 {
		switch {
		case v < lo:
			moved++
			return lo
		case v > hi:
			moved++
			return hi
		}
		return v
	}, m)
	return moved
}

// Median returns the median cell value, averaging the two middle values of an
// even-sized raster.
func Median(m mat.Matrix) float64 {
	r, c := m.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			values = append(values, m.At(i, j))
		}
	}
	if len(values) == 0 {
		return math.NaN()
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
