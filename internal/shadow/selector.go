package shadow

import (
	"errors"
	"fmt"

	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/vegetation"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrBelowHorizon is returned when Cast is asked for a sun at or below the horizon.
	ErrBelowHorizon = errors.New("sun at or below the horizon")

	// ErrMissingOutput is returned when a caster leaves a raster its mode requires nil.
	ErrMissingOutput = errors.New("shadow caster returned no raster")
)

// Walls are the facade inputs of the wall-aware casters.
type Walls struct {
	Height    *mat.Dense
	AspectRad *mat.Dense
}

// Mode is one of BuildingOnly, BuildingVegetation, WallBuildingOnly or
// WallBuildingVegetation.
type Mode interface {
	fmt.Stringer
	isMode()
}

// BuildingOnly casts building shadows only.
type BuildingOnly struct{}

// BuildingVegetation casts building and vegetation shadows.
type BuildingVegetation struct {
	Vegetation     vegetation.Geometry
	Transmissivity float64
}

// WallBuildingOnly casts building shadows onto the ground and facades.
type WallBuildingOnly struct {
	Walls Walls
}

// WallBuildingVegetation casts building and vegetation shadows onto the ground and
// facades.
type WallBuildingVegetation struct {
	Vegetation     vegetation.Geometry
	Transmissivity float64
	Walls          Walls
}

func (BuildingOnly) isMode()           {}
func (BuildingVegetation) isMode()     {}
func (WallBuildingOnly) isMode()       {}
func (WallBuildingVegetation) isMode() {}

func (BuildingOnly) String() string           { return "building" }
func (BuildingVegetation) String() string     { return "building+vegetation" }
func (WallBuildingOnly) String() string       { return "wall+building" }
func (WallBuildingVegetation) String() string { return "wall+building+vegetation" }

// NewMode picks the mode for the run. A nil geometry means vegetation is inactive and
// nil walls mean facade shadows were not requested.
func NewMode(geom *vegetation.Geometry, transmissivity float64, walls *Walls) Mode {
	switch {
	case geom == nil && walls == nil:
		return BuildingOnly{}
	case walls == nil:
		return BuildingVegetation{Vegetation: *geom, Transmissivity: transmissivity}
	case geom == nil:
		return WallBuildingOnly{Walls: *walls}
	default:
		return WallBuildingVegetation{Vegetation: *geom, Transmissivity: transmissivity, Walls: *walls}
	}
}

// Sample is the output of one instant. Facade rasters are nil unless the mode is
// wall-aware, and VegetationFacade is nil unless vegetation is active too.
type Sample struct {
	Ground           *mat.Dense
	Facade           *mat.Dense
	VegetationFacade *mat.Dense
}

// Selector binds a caster, the static DSM and a mode.
type Selector struct {
	caster Caster
	dsm    *mat.Dense
	scale  float64
	mode   Mode
	logger *zap.SugaredLogger
}

// NewSelector creates a Selector. The DSM and every raster held by mode are shared
// read-only across instants.
func NewSelector(caster Caster, dsm *mat.Dense, scale float64, mode Mode, logger *zap.SugaredLogger) *Selector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Selector{
		caster: caster,
		dsm:    dsm,
		scale:  scale,
		mode:   mode,
		logger: logger,
	}
}

// Mode returns the selector's mode.
func (s *Selector) Mode() Mode {
	return s.mode
}

// Cast computes the shadow sample for one sun position.
func (s *Selector) Cast(sun Sun) (Sample, error) {
	if !sun.AboveHorizon() {
		return Sample{}, fmt.Errorf("%w: altitude %.3f", ErrBelowHorizon, sun.AltitudeDeg)
	}

	azi, alt := sun.AzimuthDeg, sun.AltitudeDeg

	switch m := s.mode.(type) {
	case BuildingOnly:
		sh, err := s.caster.BuildingOnly(s.dsm, azi, alt, s.scale)
		if err == nil {
			err = s.checkOutputs(output{"building shadow", sh})
		}
		if err != nil {
			return Sample{}, fmt.Errorf("building shadow caster: %w", err)
		}
		return Sample{Ground: sh}, nil

	case BuildingVegetation:
		v := m.Vegetation
		res, err := s.caster.BuildingVegetation(s.dsm, v.CanopyTop, v.CanopyBase, azi, alt, s.scale, v.AmaxValue, v.Bush)
		if err == nil {
			err = s.checkOutputs(output{"building shadow", res.Building}, output{"vegetation shadow", res.Vegetation})
		}
		if err != nil {
			return Sample{}, fmt.Errorf("vegetation shadow caster: %w", err)
		}
		return Sample{Ground: s.combine(res.Building, res.Vegetation, m.Transmissivity)}, nil

	case WallBuildingOnly:
		res, err := s.caster.WallBuildingOnly(s.dsm, azi, alt, s.scale, m.Walls.Height, m.Walls.AspectRad)
		if err == nil {
			err = s.checkOutputs(output{"ground shadow", res.Ground}, output{"facade shadow", res.Facade})
		}
		if err != nil {
			return Sample{}, fmt.Errorf("wall shadow caster: %w", err)
		}
		return Sample{Ground: res.Ground, Facade: res.Facade}, nil

	case WallBuildingVegetation:
		v := m.Vegetation
		res, err := s.caster.WallBuildingVegetation(s.dsm, v.CanopyTop, v.CanopyBase, azi, alt, s.scale, v.AmaxValue, v.Bush, m.Walls.Height, m.Walls.AspectRad)
		if err == nil {
			err = s.checkOutputs(
				output{"ground shadow", res.Ground},
				output{"vegetation shadow", res.Vegetation},
				output{"facade shadow", res.Facade},
				output{"vegetation facade shadow", res.VegetationFacade},
			)
		}
		if err != nil {
			return Sample{}, fmt.Errorf("wall vegetation shadow caster: %w", err)
		}
		return Sample{
			Ground:           s.combine(res.Ground, res.Vegetation, m.Transmissivity),
			Facade:           res.Facade,
			VegetationFacade: res.VegetationFacade,
		}, nil

	default:
		panic(fmt.Sprintf("shadow: unhandled mode %T", s.mode))
	}
}

// output is a named raster returned by a caster.
type output struct {
	name string
	m    *mat.Dense
}

// checkOutputs rejects caster rasters that are nil or do not match the DSM grid.
func (s *Selector) checkOutputs(outs ...output) error {
	for _, o := range outs {
		if o.m == nil {
			return fmt.Errorf("%w: %s", ErrMissingOutput, o.name)
		}
		if err := raster.CheckShape(o.name, s.dsm, o.m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Selector) combine(building, veg *mat.Dense, psi float64) *mat.Dense {
	sh, clamped := Combine(building, veg, psi)
	if clamped > 0 {
		s.logger.Debugw("clamped combined shadow", "mode", s.mode.String(), "cells", clamped)
	}
	return sh
}

// Combine attenuates the building shadow by the vegetation shadow,
// building - (1 - veg) * (1 - psi), and clamps the result to [0,1]. It returns the
// number of cells the clamp moved.
func Combine(building, veg mat.Matrix, psi float64) (*mat.Dense, int) {
	var sh mat.Dense
	sh.Apply(func(i, j int, b float64) float64 {
		return b - (1-veg.At(i, j))*(1-psi)
	}, building)
	return &sh, raster.Clamp(&sh, 0, 1)
}
