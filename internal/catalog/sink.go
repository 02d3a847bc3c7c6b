package catalog

import (
	"context"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// PathSink is a raster sink that can report where a name is written.
type PathSink interface {
	Save(ctx context.Context, name string, grid mat.Matrix) error
	Path(name string) string
}

// RecordingSink saves through another sink and records every raster against a run.
type RecordingSink struct {
	sink  PathSink
	cat   *Catalog
	runID uuid.UUID
}

// NewRecordingSink wraps sink for the given run.
func (c *Catalog) NewRecordingSink(sink PathSink, runID uuid.UUID) *RecordingSink {
	return &RecordingSink{sink: sink, cat: c, runID: runID}
}

// Save persists grid and records it.
func (s *RecordingSink) Save(ctx context.Context, name string, grid mat.Matrix) error {
	if err := s.sink.Save(ctx, name, grid); err != nil {
		return err
	}
	return s.cat.RecordRaster(ctx, s.runID, name, s.sink.Path(name))
}

// Path returns the wrapped sink's path for name.
func (s *RecordingSink) Path(name string) string {
	return s.sink.Path(name)
}
