// Package vegetation derives the static vegetation rasters the shadow casters need:
// canopy and trunk-zone surfaces lifted onto the DSM, the bush mask and the amplitude
// bound.
package vegetation

import (
	"errors"
	"fmt"

	"github.com/songololo/umep-core/internal/raster"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultTrunkZonePercent is the trunk zone height as a share of canopy height
	// when no trunk zone raster is supplied.
	DefaultTrunkZonePercent = 25.0

	// LeafOffTransmissivity is the canopy transmissivity outside the leaf-on season.
	LeafOffTransmissivity = 0.5
)

// ErrTransmissivity is returned for a transmissivity outside its valid range.
var ErrTransmissivity = errors.New("vegetation transmissivity out of range")

// Geometry is the derived vegetation input shared by every instant of a run.
type Geometry struct {
	// AmaxValue bounds the height range the casters march through
	AmaxValue float64

	// CanopyTop and CanopyBase are absolute elevations, zero where there is no vegetation
	CanopyTop  *mat.Dense
	CanopyBase *mat.Dense

	// Bush marks canopy cells without a trunk zone below them
	Bush *mat.Dense
}

// Prepare lifts the canopy (top) and trunk zone (base) heights onto the DSM and
// derives the bush mask and amplitude value.
//
// A lifted cell equal to the DSM is taken to have no vegetation and is zeroed. This
// comparison is the only vegetation-presence test, so it cannot tell a zero-height
// cell from any other cell whose sum happens to equal the ground elevation.
func Prepare(dsm, canopyTop, canopyBase *mat.Dense) (Geometry, error) {
	if err := raster.CheckShape("canopy", dsm, canopyTop); err != nil {
		return Geometry{}, err
	}
	if err := raster.CheckShape("trunk zone", dsm, canopyBase); err != nil {
		return Geometry{}, err
	}

	top := elevate(dsm, canopyTop)
	base := elevate(dsm, canopyBase)

	var bush mat.Dense
	bush.Apply(func(i, j int, v float64) float64 {
		if base.At(i, j)*v == 0 {
			return v
		}
		return 0
	}, top)

	amax := mat.Max(dsm) - mat.Min(dsm)
	if vegMax := mat.Max(canopyTop); vegMax > amax {
		amax = vegMax
	}

	return Geometry{
		AmaxValue:  amax,
		CanopyTop:  top,
		CanopyBase: base,
		Bush:       &bush,
	}, nil
}

func elevate(dsm, heights *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Add(heights, dsm)
	out.Apply(func(i, j int, v float64) float64 {
		if v == dsm.At(i, j) {
			return 0
		}
		return v
	}, &out)
	return &out
}

// TrunkZoneFromCanopy estimates trunk zone heights as percent of the canopy height.
func TrunkZoneFromCanopy(canopyTop mat.Matrix, percent float64) (*mat.Dense, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("trunk zone percent %v outside 0-100", percent)
	}
	var out mat.Dense
	out.Scale(percent/100.0, canopyTop)
	return &out, nil
}

// TransmissivityFromPercent converts a 0-100 percent transmissivity to a fraction.
func TransmissivityFromPercent(percent float64) (float64, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: %v%%", ErrTransmissivity, percent)
	}
	return percent / 100.0, nil
}

// CheckTransmissivity validates a transmissivity fraction.
func CheckTransmissivity(psi float64) error {
	if psi < 0 || psi > 1 {
		return fmt.Errorf("%w: %v", ErrTransmissivity, psi)
	}
	return nil
}

// Season is the leaf-on window of deciduous vegetation in day-of-year terms.
// LeafStart greater than LeafEnd describes a window wrapping the new year.
type Season struct {
	LeafStart int
	LeafEnd   int
	Conifer   bool
}

// LeafOn reports whether the canopy carries leaves on the given day of year. Both
// window ends are exclusive.
func (s Season) LeafOn(doy int) bool {
	if s.Conifer {
		return true
	}
	if s.LeafStart > s.LeafEnd {
		return doy > s.LeafStart || doy < s.LeafEnd
	}
	return doy > s.LeafStart && doy < s.LeafEnd
}

// Transmissivity returns psi during leaf-on and LeafOffTransmissivity otherwise.
func (s Season) Transmissivity(doy int, psi float64) float64 {
	if s.LeafOn(doy) {
		return psi
	}
	return LeafOffTransmissivity
}
