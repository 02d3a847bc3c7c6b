package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/songololo/umep-core/internal/app"
	"github.com/songololo/umep-core/internal/constants"
	"github.com/songololo/umep-core/internal/log"
	"github.com/songololo/umep-core/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "shading.yaml", "Path to the YAML run configuration")
	workers := flag.Int("workers", 0, "Override the number of parallel workers (0 keeps the configured value)")
	debug := flag.Bool("debug", false, "Turn on debugging output and shadow sample range checks")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dailyshading %s\n", constants.Version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfgData, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		log.Fatalf("error reading config file %s: %v", filename, err)
	}
	if *workers > 0 {
		cfgData.Workers = *workers
	}
	if *debug {
		cfgData.VerifySamples = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.New(cfgData, log.GetSugaredLogger()).Shade(ctx)
	if err != nil {
		log.Errorf("shading run failed: %v", err)
		os.Exit(1)
	}

	log.Infow("shading run complete",
		"mode", res.Mode,
		"valid_samples", res.ValidSamples,
		"total_samples", res.TotalSamples,
		"last_timestamp", res.Last.Stamp(),
	)
}
