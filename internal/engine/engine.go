// Package engine runs the temporal shadow accumulation: it walks the scheduled
// instants of a day, casts a shadow sample for every instant the sun is up and
// averages the samples into a shadow fraction raster.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/songololo/umep-core/internal/calendar"
	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/schedule"
	"github.com/songololo/umep-core/internal/shadow"
	"github.com/songololo/umep-core/internal/vegetation"
	"github.com/songololo/umep-core/pkg/solar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Sink persists named rasters. Names are slash-separated paths without extension.
type Sink interface {
	Save(ctx context.Context, name string, grid mat.Matrix) error
}

// Deps are the collaborators of a run.
type Deps struct {
	Caster   shadow.Caster
	Provider solar.Provider
	Sink     Sink
	Logger   *zap.SugaredLogger
}

// Result is the outcome of a run.
type Result struct {
	Mean *mat.Dense

	// Last is the timestamp of the final scheduled instant, whether or not the sun
	// was up
	Last calendar.Timestamp

	// Facade and VegetationFacade come from the latest instant that produced them
	Facade           *mat.Dense
	VegetationFacade *mat.Dense

	Mode         string
	ValidSamples int
	TotalSamples int
}

// step is the outcome of one instant.
type step struct {
	index  int
	ts     calendar.Timestamp
	sun    shadow.Sun
	sample *shadow.Sample
}

type runner struct {
	cfg      *Config
	sel      *shadow.Selector
	provider solar.Provider
	sink     Sink
	location solar.Location
	logger   *zap.SugaredLogger
}

// Run executes a shading run. Failures from the provider, caster or sink abort the
// run; accumulate.ErrNoValidSamples is returned when the sun never rose above the
// horizon at any scheduled instant.
func Run(ctx context.Context, cfg *Config, deps Deps) (*Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if deps.Caster == nil || deps.Provider == nil {
		return nil, errors.New("a shadow caster and a solar position provider are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if (cfg.Output.Steps || cfg.Output.Mean) && deps.Sink == nil {
		return nil, errors.New("output persistence requested without a raster sink")
	}

	doy, err := calendar.DayOfYear(cfg.Year, cfg.Month, cfg.Day)
	if err != nil {
		return nil, err
	}

	mode, err := buildMode(cfg, doy)
	if err != nil {
		return nil, err
	}

	location := cfg.Location
	location.Altitude = raster.Median(cfg.DSM)

	daylight := solar.CalculateDaylight(cfg.Year, doy, location.Latitude, location.Longitude)
	switch {
	case !daylight.Sunlit():
		logger.Warnw("sun does not rise on the requested date", "year", cfg.Year, "day_of_year", doy)
	case daylight.PolarDay:
		logger.Infow("sun does not set on the requested date", "year", cfg.Year, "day_of_year", doy)
	default:
		zone := calendar.Timestamp{UTCOffset: cfg.UTCOffset}.Location()
		logger.Infow("daylight window",
			"sunrise", solar.FormatSunTime(daylight.Sunrise, zone),
			"sunset", solar.FormatSunTime(daylight.Sunset, zone),
		)
	}

	r := &runner{
		cfg:      cfg,
		sel:      shadow.NewSelector(deps.Caster, cfg.DSM, cfg.scale(), mode, logger),
		provider: deps.Provider,
		sink:     deps.Sink,
		location: location,
		logger:   logger,
	}

	logger.Infow("starting shading run",
		"mode", mode.String(),
		"schedule", cfg.Schedule.Mode,
		"instants", cfg.Schedule.Len(),
		"workers", cfg.Workers,
		"site_altitude", location.Altitude,
	)

	var res *Result
	if cfg.Workers > 1 {
		res, err = r.runParallel(ctx)
	} else {
		res, err = r.runSequential(ctx)
	}
	if err != nil {
		return nil, err
	}
	res.Mode = mode.String()

	if err := r.persistFinal(ctx, res, doy); err != nil {
		return nil, err
	}

	logger.Infow("shading run complete", "valid_samples", res.ValidSamples, "total_samples", res.TotalSamples)
	return res, nil
}

// buildMode prepares the static vegetation and wall inputs and picks the caster mode.
func buildMode(cfg *Config, doy int) (shadow.Mode, error) {
	var geom *vegetation.Geometry
	psi := cfg.Transmissivity
	if cfg.VegetationActive {
		base := cfg.CanopyBase
		if base == nil {
			var err error
			base, err = vegetation.TrunkZoneFromCanopy(cfg.CanopyTop, cfg.trunkZonePercent())
			if err != nil {
				return nil, err
			}
		}
		g, err := vegetation.Prepare(cfg.DSM, cfg.CanopyTop, base)
		if err != nil {
			return nil, err
		}
		geom = &g
		if cfg.Season != nil {
			psi = cfg.Season.Transmissivity(doy, psi)
		}
	}

	var walls *shadow.Walls
	if cfg.WallShadowActive {
		walls = &shadow.Walls{
			Height:    cfg.WallHeight,
			AspectRad: raster.ToRadians(cfg.WallAspect),
		}
	}

	return shadow.NewMode(geom, psi, walls), nil
}

func (r *runner) runSequential(ctx context.Context) (*Result, error) {
	rows, cols := r.cfg.DSM.Dims()
	p := newPartial(rows, cols)

	for in := range r.cfg.Schedule.Instants() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := r.step(ctx, in)
		if err != nil {
			return nil, err
		}
		if err := p.add(st); err != nil {
			return nil, err
		}
	}

	return p.result()
}

func (r *runner) runParallel(ctx context.Context) (*Result, error) {
	rows, cols := r.cfg.DSM.Dims()
	instants := r.cfg.Schedule.All()

	workers := r.cfg.Workers
	if workers > len(instants) {
		workers = len(instants)
	}
	partials := make([]*partial, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		p := newPartial(rows, cols)
		partials[w] = p
		g.Go(func() error {
			for i := w; i < len(instants); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				st, err := r.step(gctx, instants[i])
				if err != nil {
					return err
				}
				if err := p.add(st); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newPartial(rows, cols)
	for _, p := range partials {
		if err := total.merge(p); err != nil {
			return nil, err
		}
	}
	return total.result()
}

// step resolves one instant, looks up the sun and casts its shadow sample. The
// sample is nil when the sun is at or below the horizon.
func (r *runner) step(ctx context.Context, in schedule.Instant) (step, error) {
	cfg := r.cfg
	ts, err := calendar.ResolveTimestamp(cfg.Year, cfg.Month, cfg.Day, in.Hour, in.Minute, cfg.UTCOffset, cfg.DST)
	if err != nil {
		return step{}, err
	}

	pos, err := r.provider.Position(ts.SolarTime(), r.location)
	if err != nil {
		return step{}, fmt.Errorf("solar position for %s: %w", ts.Stamp(), err)
	}
	sun := shadow.Sun{AltitudeDeg: pos.AltitudeDeg, AzimuthDeg: pos.AzimuthDeg}
	st := step{index: in.Index, ts: ts, sun: sun}

	if !sun.AboveHorizon() {
		r.logger.Debugw("sun below horizon", "index", in.Index, "time", ts.Stamp(), "altitude", sun.AltitudeDeg)
		return st, nil
	}

	sample, err := r.sel.Cast(sun)
	if err != nil {
		return step{}, fmt.Errorf("instant %s: %w", ts.Stamp(), err)
	}
	if cfg.VerifySamples {
		if err := shadow.Verify(sample.Ground); err != nil {
			return step{}, fmt.Errorf("instant %s: %w", ts.Stamp(), err)
		}
	}
	st.sample = &sample

	r.logger.Debugw("instant cast", "index", in.Index, "time", ts.Stamp(),
		"altitude", sun.AltitudeDeg, "azimuth", sun.AzimuthDeg)

	if cfg.Output.Steps && cfg.Schedule.Mode == schedule.ModeSweep {
		if err := r.persistStep(ctx, st); err != nil {
			return step{}, err
		}
	}
	return st, nil
}

// persistStep saves the rasters of one sweep instant.
func (r *runner) persistStep(ctx context.Context, st step) error {
	stamp := st.ts.Stamp()
	s := st.sample

	if s.Facade == nil {
		return r.save(ctx, StepName(stamp), s.Ground)
	}

	if s.VegetationFacade != nil {
		if err := r.save(ctx, VegetationFacadeName(stamp), s.VegetationFacade); err != nil {
			return err
		}
	}
	if err := r.save(ctx, GroundName(stamp), s.Ground); err != nil {
		return err
	}
	return r.save(ctx, FacadeName(stamp), s.Facade)
}

// persistFinal saves the one-time facade rasters and the mean, as configured.
func (r *runner) persistFinal(ctx context.Context, res *Result, doy int) error {
	if r.cfg.Output.Steps && r.cfg.Schedule.Mode == schedule.ModeOneTime && res.Facade != nil {
		stamp := res.Last.Stamp()
		if err := r.save(ctx, FacadeName(stamp), res.Facade); err != nil {
			return err
		}
		if res.VegetationFacade != nil {
			if err := r.save(ctx, VegetationFacadeName(stamp), res.VegetationFacade); err != nil {
				return err
			}
		}
	}

	if r.cfg.Output.Mean {
		return r.save(ctx, MeanName(r.cfg.Year, doy), res.Mean)
	}
	return nil
}

func (r *runner) save(ctx context.Context, name string, grid mat.Matrix) error {
	if err := r.sink.Save(ctx, name, grid); err != nil {
		return fmt.Errorf("error saving raster %s: %w", name, err)
	}
	return nil
}
