// Package runs turns a run configuration into an engine invocation, loading the
// input rasters and recording the run in the catalogue.
package runs

import (
	"fmt"

	"github.com/songololo/umep-core/internal/engine"
	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/schedule"
	"github.com/songololo/umep-core/internal/shadow"
	"github.com/songololo/umep-core/internal/vegetation"
	"github.com/songololo/umep-core/pkg/config"
	"github.com/songololo/umep-core/pkg/solar"
	"gonum.org/v1/gonum/mat"
)

// RasterError reports an input raster that could not be read. Layer is the
// configuration key of the raster, Path its location.
type RasterError struct {
	Layer string
	Path  string
	Err   error
}

func (e *RasterError) Error() string {
	return fmt.Sprintf("rasters.%s: %v", e.Layer, e.Err)
}

func (e *RasterError) Unwrap() error {
	return e.Err
}

// Job is a validated run with its rasters loaded.
type Job struct {
	Config   *config.ConfigData
	Engine   *engine.Config
	Caster   shadow.Caster
	Provider solar.Provider
	Georef   raster.Georef
}

// NewJob validates cfg and loads every raster it names.
func NewJob(cfg *config.ConfigData) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	caster, err := shadow.Lookup(cfg.Caster)
	if err != nil {
		return nil, err
	}
	provider, err := solar.NewProvider(solar.Algorithm(cfg.Solar.Algorithm))
	if err != nil {
		return nil, err
	}

	dsm, georef, err := raster.Read(cfg.Rasters.DSM)
	if err != nil {
		return nil, &RasterError{Layer: "dsm", Path: cfg.Rasters.DSM, Err: err}
	}

	ec := &engine.Config{
		Layers:    engine.Layers{DSM: dsm},
		Scale:     cfg.Scale,
		Georef:    georef,
		Location:  solar.Location{Latitude: cfg.Location.Latitude, Longitude: cfg.Location.Longitude},
		Year:      cfg.Date.Year,
		Month:     cfg.Date.Month,
		Day:       cfg.Date.Day,
		UTCOffset: cfg.UTCOffset,
		DST:       cfg.DST,
		Output: engine.Output{
			Steps: cfg.Output.PersistSteps,
			Mean:  cfg.Output.SaveMean,
		},
		Workers:       cfg.Workers,
		VerifySamples: cfg.VerifySamples,
	}

	switch schedule.Mode(cfg.Schedule.Mode) {
	case schedule.ModeOneTime:
		ec.Schedule = schedule.OneTime(cfg.Schedule.Hour, cfg.Schedule.Minute)
	default:
		ec.Schedule = schedule.Sweep(cfg.Schedule.IntervalMinutes)
	}

	if v := cfg.Vegetation; v != nil {
		ec.VegetationActive = true
		if ec.Transmissivity, err = vegetation.TransmissivityFromPercent(v.TransmissivityPercent); err != nil {
			return nil, err
		}
		ec.TrunkZonePercent = v.TrunkZonePercent
		if s := v.Season; s != nil {
			ec.Season = &vegetation.Season{LeafStart: s.LeafStart, LeafEnd: s.LeafEnd, Conifer: s.Conifer}
		}
		if ec.CanopyTop, err = readLayer("canopy", cfg.Rasters.Canopy); err != nil {
			return nil, err
		}
		if cfg.Rasters.TrunkZone != "" {
			if ec.CanopyBase, err = readLayer("trunk-zone", cfg.Rasters.TrunkZone); err != nil {
				return nil, err
			}
		}
	}

	if cfg.WallShadows {
		ec.WallShadowActive = true
		if ec.WallHeight, err = readLayer("wall-height", cfg.Rasters.WallHeight); err != nil {
			return nil, err
		}
		if ec.WallAspect, err = readLayer("wall-aspect", cfg.Rasters.WallAspect); err != nil {
			return nil, err
		}
	}

	if err := ec.Validate(); err != nil {
		return nil, err
	}

	return &Job{
		Config:   cfg,
		Engine:   ec,
		Caster:   caster,
		Provider: provider,
		Georef:   georef,
	}, nil
}

func readLayer(layer, path string) (*mat.Dense, error) {
	grid, _, err := raster.Read(path)
	if err != nil {
		return nil, &RasterError{Layer: layer, Path: path, Err: err}
	}
	return grid, nil
}
