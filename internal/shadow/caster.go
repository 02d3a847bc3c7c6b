// Package shadow dispatches each sampling instant to the pixel-level shadow caster
// matching the run's vegetation and wall settings, and normalizes what the caster
// returns into a shadow fraction raster.
package shadow

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/songololo/umep-core/internal/raster"
	"gonum.org/v1/gonum/mat"
)

// ErrOutOfRange is returned by Verify when a shadow raster leaves [0,1].
var ErrOutOfRange = errors.New("shadow fraction out of range")

// Sun is the solar position of one instant, in degrees.
type Sun struct {
	AltitudeDeg float64
	AzimuthDeg  float64
}

// AboveHorizon reports whether casting makes sense for this instant.
func (s Sun) AboveHorizon() bool {
	return s.AltitudeDeg > 0
}

// VegetationShadow is returned by the building+vegetation caster.
type VegetationShadow struct {
	Building   *mat.Dense
	Vegetation *mat.Dense
}

// WallShadow is returned by the wall-aware building caster.
type WallShadow struct {
	Ground *mat.Dense
	Facade *mat.Dense
}

// WallVegetationShadow is returned by the wall-aware building+vegetation caster.
type WallVegetationShadow struct {
	Ground           *mat.Dense
	Vegetation       *mat.Dense
	Facade           *mat.Dense
	VegetationFacade *mat.Dense
}

// Caster is the pixel-level shadow casting primitive. Ground rasters use 1 for sunlit
// and 0 for shadowed cells. Angles are in degrees except wall aspect (radians); scale
// is the DSM pixel size in elevation units.
type Caster interface {
	BuildingOnly(dsm *mat.Dense, azimuth, altitude, scale float64) (*mat.Dense, error)
	BuildingVegetation(dsm, canopyTop, canopyBase *mat.Dense, azimuth, altitude, scale, amaxvalue float64, bush *mat.Dense) (VegetationShadow, error)
	WallBuildingOnly(dsm *mat.Dense, azimuth, altitude, scale float64, wallHeight, wallAspectRad *mat.Dense) (WallShadow, error)
	WallBuildingVegetation(dsm, canopyTop, canopyBase *mat.Dense, azimuth, altitude, scale, amaxvalue float64, bush, wallHeight, wallAspectRad *mat.Dense) (WallVegetationShadow, error)
}

// Unobstructed is a baseline caster for open terrain: every ground cell is sunlit
// and no facade is shaded.
type Unobstructed struct{}

func (Unobstructed) BuildingOnly(dsm *mat.Dense, _, _, _ float64) (*mat.Dense, error) {
	r, c := dsm.Dims()
	return raster.Filled(r, c, 1), nil
}

func (Unobstructed) BuildingVegetation(dsm, _, _ *mat.Dense, _, _, _, _ float64, _ *mat.Dense) (VegetationShadow, error) {
	r, c := dsm.Dims()
	return VegetationShadow{
		Building:   raster.Filled(r, c, 1),
		Vegetation: raster.Filled(r, c, 1),
	}, nil
}

func (Unobstructed) WallBuildingOnly(dsm *mat.Dense, _, _, _ float64, _, _ *mat.Dense) (WallShadow, error) {
	r, c := dsm.Dims()
	return WallShadow{
		Ground: raster.Filled(r, c, 1),
		Facade: raster.Filled(r, c, 0),
	}, nil
}

func (Unobstructed) WallBuildingVegetation(dsm, _, _ *mat.Dense, _, _, _, _ float64, _, _, _ *mat.Dense) (WallVegetationShadow, error) {
	r, c := dsm.Dims()
	return WallVegetationShadow{
		Ground:           raster.Filled(r, c, 1),
		Vegetation:       raster.Filled(r, c, 1),
		Facade:           raster.Filled(r, c, 0),
		VegetationFacade: raster.Filled(r, c, 0),
	}, nil
}

// Factory builds a caster by name.
type Factory func() Caster

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"unobstructed": func() Caster { return Unobstructed{} },
	}
)

// Register makes a caster available to Lookup. Registering a name twice replaces
// the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Lookup returns a new caster registered under name.
func Lookup(name string) (Caster, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown shadow caster %q (available: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists the registered casters in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify returns ErrOutOfRange if any cell lies outside [0,1] or is NaN.
func Verify(sample mat.Matrix) error {
	r, c := sample.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := sample.At(i, j)
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("%w: cell (%d,%d) = %v", ErrOutOfRange, i, j, v)
			}
		}
	}
	return nil
}
