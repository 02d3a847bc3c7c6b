package engine

import (
	"errors"
	"fmt"

	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/schedule"
	"github.com/songololo/umep-core/internal/vegetation"
	"github.com/songololo/umep-core/pkg/solar"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned before any instant is processed when a vegetation or
// wall layer does not match the elevation grid.
var ErrShapeMismatch = raster.ErrShapeMismatch

// Layers are the static input rasters of a run. The engine never modifies them.
type Layers struct {
	DSM *mat.Dense

	// CanopyTop and CanopyBase are vegetation heights above ground. A nil CanopyBase
	// is derived from CanopyTop using Config.TrunkZonePercent.
	CanopyTop  *mat.Dense
	CanopyBase *mat.Dense

	WallHeight *mat.Dense

	// WallAspect is in degrees
	WallAspect *mat.Dense
}

// Output controls which rasters are handed to the sink.
type Output struct {
	// Steps persists every sweep instant and, in one-time mode, the final facade
	// rasters
	Steps bool

	// Mean persists the finalized shadow fraction
	Mean bool
}

// Config describes one shading run.
type Config struct {
	Layers

	// Scale is pixels per elevation unit. Zero falls back to the georeference.
	Scale  float64
	Georef raster.Georef

	// Location altitude is replaced by the median DSM elevation.
	Location solar.Location

	Year  int
	Month int
	Day   int

	// UTCOffset and DST are in hours
	UTCOffset float64
	DST       float64

	Schedule schedule.Scheduler

	VegetationActive bool
	WallShadowActive bool

	// Transmissivity is the canopy transmissivity fraction (0-1)
	Transmissivity   float64
	TrunkZonePercent float64

	// Season, when set, swaps Transmissivity for the leaf-off value outside the
	// leaf-on window
	Season *vegetation.Season

	Output Output

	// VerifySamples checks every ground sample lies in [0,1]
	VerifySamples bool

	// Workers above one computes instants concurrently
	Workers int
}

// Validate checks the configuration and the shape of every active layer. It does not
// touch the raster contents.
func (c *Config) Validate() error {
	if c.DSM == nil {
		return errors.New("elevation grid is required")
	}
	rows, cols := c.DSM.Dims()
	if rows == 0 || cols == 0 {
		return errors.New("elevation grid is empty")
	}

	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	if c.scale() <= 0 {
		return fmt.Errorf("scale must be positive, got %v", c.Scale)
	}

	if c.VegetationActive {
		if c.CanopyTop == nil {
			return errors.New("vegetation is active but no canopy raster was supplied")
		}
		if err := raster.CheckShape("canopy", c.DSM, c.CanopyTop); err != nil {
			return err
		}
		if c.CanopyBase != nil {
			if err := raster.CheckShape("trunk zone", c.DSM, c.CanopyBase); err != nil {
				return err
			}
		}
		if err := vegetation.CheckTransmissivity(c.Transmissivity); err != nil {
			return err
		}
	}

	if c.WallShadowActive {
		if c.WallHeight == nil || c.WallAspect == nil {
			return errors.New("wall shadows are active but wall height or aspect is missing")
		}
		if err := raster.CheckShape("wall height", c.DSM, c.WallHeight); err != nil {
			return err
		}
		if err := raster.CheckShape("wall aspect", c.DSM, c.WallAspect); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) scale() float64 {
	if c.Scale != 0 {
		return c.Scale
	}
	return c.Georef.Scale()
}

func (c *Config) trunkZonePercent() float64 {
	if c.TrunkZonePercent == 0 {
		return vegetation.DefaultTrunkZonePercent
	}
	return c.TrunkZonePercent
}
