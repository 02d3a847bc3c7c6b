package raster

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Extension is appended to every raster file name written by a FileSink.
const Extension = ".msgpack"

// File is the on-disk representation of a georeferenced raster.
type File struct {
	Rows   int       `json:"rows" msgpack:"rows"`
	Cols   int       `json:"cols" msgpack:"cols"`
	Data   []float64 `json:"data" msgpack:"data"`
	Georef Georef    `json:"georef" msgpack:"georef"`
}

// NewFile copies grid into a File.
func NewFile(grid mat.Matrix, georef Georef) *File {
	r, c := grid.Dims()
	f := &File{Rows: r, Cols: c, Data: make([]float64, 0, r*c), Georef: georef}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			f.Data = append(f.Data, grid.At(i, j))
		}
	}
	return f
}

// Dense returns the raster as a gonum matrix.
func (f *File) Dense() (*mat.Dense, error) {
	if f.Rows <= 0 || f.Cols <= 0 {
		return nil, fmt.Errorf("raster has empty shape %dx%d", f.Rows, f.Cols)
	}
	if len(f.Data) != f.Rows*f.Cols {
		return nil, fmt.Errorf("raster holds %d cells, shape %dx%d needs %d", len(f.Data), f.Rows, f.Cols, f.Rows*f.Cols)
	}
	return mat.NewDense(f.Rows, f.Cols, append([]float64(nil), f.Data...)), nil
}

// Write encodes grid to path, creating parent directories as needed.
func Write(path string, grid mat.Matrix, georef Georef) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating raster directory: %w", err)
	}

	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating raster file %s: %w", path, err)
	}

	w := bufio.NewWriter(fh)
	if err := msgpack.NewEncoder(w).Encode(NewFile(grid, georef)); err != nil {
		fh.Close()
		return fmt.Errorf("error encoding raster %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		fh.Close()
		return fmt.Errorf("error writing raster %s: %w", path, err)
	}
	return fh.Close()
}

// Read decodes the raster stored at path.
func Read(path string) (*mat.Dense, Georef, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, Georef{}, fmt.Errorf("error opening raster %s: %w", path, err)
	}
	defer fh.Close()

	var f File
	if err := msgpack.NewDecoder(bufio.NewReader(fh)).Decode(&f); err != nil {
		return nil, Georef{}, fmt.Errorf("error decoding raster %s: %w", path, err)
	}

	grid, err := f.Dense()
	if err != nil {
		return nil, Georef{}, fmt.Errorf("invalid raster %s: %w", path, err)
	}
	return grid, f.Georef, nil
}

// FileSink persists named rasters below a folder, all sharing one georeference.
type FileSink struct {
	folder string
	georef Georef
	logger *zap.SugaredLogger
}

// NewFileSink creates a sink rooted at folder.
func NewFileSink(folder string, georef Georef, logger *zap.SugaredLogger) *FileSink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileSink{folder: folder, georef: georef, logger: logger}
}

// Path returns the file a raster name is written to.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.folder, filepath.FromSlash(name)+Extension)
}

// Save writes grid under name (a slash-separated path relative to the folder).
func (s *FileSink) Save(ctx context.Context, name string, grid mat.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(name)
	if err := Write(path, grid, s.georef); err != nil {
		return err
	}
	s.logger.Debugw("raster saved", "name", name, "path", path)
	return nil
}
