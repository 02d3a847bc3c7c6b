package runs

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/songololo/umep-core/internal/calendar"
	"github.com/songololo/umep-core/internal/catalog"
	"github.com/songololo/umep-core/internal/engine"
	"github.com/songololo/umep-core/internal/raster"
	"go.uber.org/zap"
)

// Runner executes jobs, recording them in an optional catalogue.
type Runner struct {
	catalog    *catalog.Catalog
	outputRoot string
	logger     *zap.SugaredLogger
}

// NewRunner creates a Runner. With a non-empty outputRoot each catalogued run
// writes below outputRoot/<run id> instead of its configured output folder.
func NewRunner(cat *catalog.Catalog, outputRoot string, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{catalog: cat, outputRoot: outputRoot, logger: logger}
}

// Register records job in the catalogue as running.
func (r *Runner) Register(ctx context.Context, job *Job) (catalog.Run, error) {
	if r.catalog == nil {
		return catalog.Run{}, errors.New("no run catalog configured")
	}

	cfg := job.Config
	return r.catalog.StartRun(ctx, catalog.Run{
		Schedule:        cfg.Schedule.Mode,
		IntervalMinutes: job.Engine.Schedule.IntervalMinutes,
		Year:            cfg.Date.Year,
		Month:           cfg.Date.Month,
		Day:             cfg.Date.Day,
		Latitude:        cfg.Location.Latitude,
		Longitude:       cfg.Location.Longitude,
	})
}

// Execute runs job. When run is non-nil the outcome and every persisted raster are
// recorded against it.
func (r *Runner) Execute(ctx context.Context, job *Job, run *catalog.Run) (*engine.Result, error) {
	logger := r.logger
	folder := job.Config.Output.Folder
	if run != nil {
		logger = logger.With("run", run.ID.String())
		if r.outputRoot != "" {
			folder = filepath.Join(r.outputRoot, run.ID.String())
		}
	}

	deps := engine.Deps{
		Caster:   job.Caster,
		Provider: job.Provider,
		Logger:   logger,
	}

	var fileSink *raster.FileSink
	if folder != "" {
		fileSink = raster.NewFileSink(folder, job.Georef, logger)
		deps.Sink = fileSink
		if run != nil && r.catalog != nil {
			deps.Sink = r.catalog.NewRecordingSink(fileSink, run.ID)
		}
	}

	res, err := engine.Run(ctx, job.Engine, deps)
	if err != nil {
		if run != nil && r.catalog != nil {
			// The run context may be gone; the failure still needs recording.
			if ferr := r.catalog.FailRun(context.WithoutCancel(ctx), run.ID, err); ferr != nil {
				logger.Errorw("could not record failed run", "error", ferr)
			}
		}
		return nil, err
	}

	if run != nil && r.catalog != nil {
		summary := catalog.Summary{
			Mode:          res.Mode,
			ValidSamples:  res.ValidSamples,
			TotalSamples:  res.TotalSamples,
			LastTimestamp: res.Last.Stamp(),
		}
		if job.Engine.Output.Mean && fileSink != nil {
			doy, _ := calendar.DayOfYear(job.Engine.Year, job.Engine.Month, job.Engine.Day)
			summary.MeanRaster = fileSink.Path(engine.MeanName(job.Engine.Year, doy))
		}
		if err := r.catalog.FinishRun(ctx, run.ID, summary); err != nil {
			return nil, err
		}
	}

	return res, nil
}
