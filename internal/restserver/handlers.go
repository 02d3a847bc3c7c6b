package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/songololo/umep-core/internal/catalog"
	"github.com/songololo/umep-core/internal/log"
	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/runs"
	"github.com/songololo/umep-core/internal/shadow"
	"github.com/songololo/umep-core/pkg/config"
)

// maxConfigBytes bounds a submitted run configuration
const maxConfigBytes = 1 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{controller: ctrl}
}

// RunDetail is a run with the rasters it persisted
type RunDetail struct {
	Run     catalog.Run      `json:"run"`
	Rasters []catalog.Raster `json:"rasters"`
}

// CreateRun validates a submitted configuration, registers the run and executes it
// in the background
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	c := h.controller

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, "could not read request body")
		return
	}

	cfg, err := decodeRunConfig(r.Header.Get("Content-Type"), body)
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, fmt.Sprintf("could not decode run configuration: %v", err))
		return
	}
	if cfg.Output.Folder == "" {
		cfg.Output.Folder = c.outputRoot
	}

	if err := cfg.Rasters.Confine(c.cfg.InputRoot); err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := runs.NewJob(cfg)
	if err != nil {
		var re *runs.RasterError
		if errors.As(err, &re) {
			c.logger.Warnw("could not read raster", "layer", re.Layer, "path", re.Path, "error", re.Err)
			c.formatter.WriteError(w, r, http.StatusBadRequest, "could not read raster "+re.Layer)
			return
		}
		c.formatter.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case c.slots <- struct{}{}:
	default:
		c.formatter.WriteError(w, r, http.StatusTooManyRequests, "too many runs in progress")
		return
	}

	run, err := c.runner.Register(r.Context(), job)
	if err != nil {
		<-c.slots
		c.logger.Errorw("could not register run", "error", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not register run")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.slots }()

		if _, err := c.runner.Execute(c.ctx, job, &run); err != nil {
			c.logger.Warnw("run failed", "run", run.ID.String(), "error", err)
		}
	}()

	w.Header().Set("Location", apiPrefix+"/runs/"+run.ID.String())
	c.formatter.WriteResponse(w, r, http.StatusAccepted, run)
}

// decodeRunConfig accepts JSON bodies (snake_case keys) and YAML bodies (the
// configuration file format)
func decodeRunConfig(contentType string, body []byte) (*config.ConfigData, error) {
	if strings.Contains(contentType, "json") {
		var cfg config.ConfigData
		if err := json.Unmarshal(body, &cfg); err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		return &cfg, nil
	}
	return config.ParseYAML(body)
}

// ListRuns returns the most recent runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	c := h.controller

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.formatter.WriteError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := c.catalog.ListRuns(r.Context(), limit)
	if err != nil {
		c.logger.Errorw("could not list runs", "error", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not list runs")
		return
	}
	if list == nil {
		list = []catalog.Run{}
	}
	c.formatter.WriteResponse(w, r, http.StatusOK, list)
}

// GetRun returns one run and its rasters
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	c := h.controller

	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	rasters, err := c.catalog.Rasters(r.Context(), run.ID)
	if err != nil {
		c.logger.Errorw("could not list rasters", "run", run.ID.String(), "error", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not list rasters")
		return
	}
	if rasters == nil {
		rasters = []catalog.Raster{}
	}
	c.formatter.WriteResponse(w, r, http.StatusOK, RunDetail{Run: run, Rasters: rasters})
}

// GetMean returns the finalized shadow fraction raster of a run
func (h *Handlers) GetMean(w http.ResponseWriter, r *http.Request) {
	c := h.controller

	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	if run.MeanRaster == "" {
		c.formatter.WriteError(w, r, http.StatusNotFound, fmt.Sprintf("run is %s and has no mean raster", run.Status))
		return
	}

	grid, georef, err := raster.Read(run.MeanRaster)
	if err != nil {
		c.logger.Errorw("could not read mean raster", "run", run.ID.String(), "error", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not read mean raster")
		return
	}
	c.formatter.WriteResponse(w, r, http.StatusOK, raster.NewFile(grid, georef))
}

// ListCasters returns the registered shadow casters
func (h *Handlers) ListCasters(w http.ResponseWriter, r *http.Request) {
	h.controller.formatter.WriteResponse(w, r, http.StatusOK, shadow.Names())
}

// GetHTTPLogs returns the recent request log
func (h *Handlers) GetHTTPLogs(w http.ResponseWriter, r *http.Request) {
	h.controller.formatter.WriteResponse(w, r, http.StatusOK, log.GetHTTPLogBuffer().Entries())
}

func (h *Handlers) lookupRun(w http.ResponseWriter, r *http.Request) (catalog.Run, bool) {
	c := h.controller

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, "invalid run id")
		return catalog.Run{}, false
	}

	run, err := c.catalog.GetRun(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.formatter.WriteError(w, r, http.StatusNotFound, err.Error())
		return catalog.Run{}, false
	}
	if err != nil {
		c.logger.Errorw("could not load run", "run", id.String(), "error", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not load run")
		return catalog.Run{}, false
	}
	return run, true
}
