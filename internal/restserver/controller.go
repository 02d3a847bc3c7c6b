// Package restserver serves the shading run API: runs are submitted as YAML or JSON
// configurations, executed in the background and catalogued.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/songololo/umep-core/internal/catalog"
	"github.com/songololo/umep-core/internal/log"
	"github.com/songololo/umep-core/internal/runs"
	"github.com/songololo/umep-core/pkg/config"
	"github.com/songololo/umep-core/pkg/responseformat"
	"go.uber.org/zap"
)

// apiPrefix is the path every API route is mounted under
const apiPrefix = "/api"

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	cfg        config.ServerData
	outputRoot string
	Server     http.Server
	catalog    *catalog.Catalog
	runner     *runs.Runner
	formatter  *responseformat.Formatter
	slots      chan struct{}
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller. Submitted raster paths
// resolve below sc.InputRoot and runs write their rasters below outputRoot/<run id>.
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, outputRoot string, cat *catalog.Catalog, logger *zap.SugaredLogger) (*Controller, error) {
	if cat == nil {
		return nil, fmt.Errorf("the REST server requires a run catalog")
	}
	if sc.InputRoot == "" {
		return nil, fmt.Errorf("the REST server requires server.input-root")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}
	if sc.Port == 0 {
		sc.Port = config.DefaultPort
	}
	if sc.MaxRuns < 1 {
		sc.MaxRuns = config.DefaultMaxRuns
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		cfg:        sc,
		outputRoot: outputRoot,
		catalog:    cat,
		runner:     runs.NewRunner(cat, outputRoot, logger),
		formatter:  responseformat.NewFormatter(sc.EnableCORS),
		slots:      make(chan struct{}, sc.MaxRuns),
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.cfg.Cert != "" && c.cfg.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.cfg.Cert, c.cfg.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)

	// Routes hang off the root router so a method mismatch answers 405, not 404
	router.HandleFunc(apiPrefix+"/runs", c.handlers.CreateRun).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/runs/{id}/mean", c.handlers.GetMean).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/casters", c.handlers.ListCasters).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/logs/http", c.handlers.GetHTTPLogs).Methods(http.MethodGet)
	router.MethodNotAllowedHandler = http.HandlerFunc(c.methodNotAllowed)

	return router
}

// methodNotAllowed answers a known path requested with the wrong method
func (c *Controller) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c.formatter.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	log.LogHTTPRequest(r.Method, r.URL.Path, http.StatusMethodNotAllowed, time.Since(start), 0, r.RemoteAddr, nil)
}

// statusRecorder captures the status and size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// loggingMiddleware records every request in the HTTP log buffer
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.LogHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start), rec.size, r.RemoteAddr, nil)
	})
}
