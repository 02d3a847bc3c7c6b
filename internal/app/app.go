// Package app wires configuration, the run catalogue and the shading engine into
// the two ways the module is used: a single run from the command line and the
// long-running REST server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/songololo/umep-core/internal/catalog"
	"github.com/songololo/umep-core/internal/engine"
	"github.com/songololo/umep-core/internal/log"
	"github.com/songololo/umep-core/internal/restserver"
	"github.com/songololo/umep-core/internal/runs"
	"github.com/songololo/umep-core/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Shade executes the configured run once. When output.catalog is set the run and
// its rasters are recorded there.
func (a *App) Shade(ctx context.Context) (*engine.Result, error) {
	job, err := runs.NewJob(a.cfg)
	if err != nil {
		return nil, err
	}

	var cat *catalog.Catalog
	if a.cfg.Output.Catalog != "" {
		cat, err = catalog.Open(a.cfg.Output.Catalog, a.logger.Named("catalog"))
		if err != nil {
			return nil, err
		}
		defer cat.Close()
	}

	runner := runs.NewRunner(cat, "", a.logger.Named("engine"))

	var run *catalog.Run
	if cat != nil {
		r, err := runner.Register(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("error registering run: %w", err)
		}
		run = &r
		a.logger.Infow("registered run", "run", r.ID.String())
	}

	return runner.Execute(ctx, job, run)
}

// Run starts the REST server and blocks until a shutdown signal arrives or ctx is
// cancelled. In-flight runs are waited for before the catalogue is closed.
func (a *App) Run(ctx context.Context) error {
	if err := a.cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cat, err := catalog.Open(a.cfg.Output.Catalog, a.logger.Named("catalog"))
	if err != nil {
		return err
	}
	defer cat.Close()

	if n, err := cat.FailInterrupted(ctx); err != nil {
		return err
	} else if n > 0 {
		a.logger.Warnw("closed runs interrupted by a previous shutdown", "runs", n)
	}

	ctrl, err := restserver.NewController(ctx, &wg, *a.cfg.Server, a.cfg.Output.Folder, cat, a.logger.Named("restserver"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
