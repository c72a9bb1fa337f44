package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/example/go-l8ard/l8ard/config"
	"github.com/example/go-l8ard/l8ard/model"
)

const (
	exitConfig  = 1
	exitFailed  = 2
	exitPartial = 3
)

// exitError carries the process exit status of a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, model.ErrConfiguration) {
		return exitConfig
	}
	return exitFailed
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "l8ard",
		Usage:   "Generate Landsat-8 Collection-2 ARD rasters on Sentinel-2 tiles",
		Version: config.Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			newGenerateCommand(),
			newPlanCommand(),
			newTilesCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "l8ard:", err)
		os.Exit(exitCode(err))
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "YAML configuration file",
			Sources: cli.EnvVars("L8ARD_CONFIG"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
		&cli.StringFlag{
			Name:    "out-dir",
			Aliases: []string{"o"},
			Usage:   "Working directory for scratch files and local outputs",
		},
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "Destination bucket, or file:///path to publish on the local disk",
			Sources: cli.EnvVars("L8ARD_BUCKET"),
		},
		&cli.StringFlag{
			Name:  "prod-id",
			Usage: "Production id prefixed to published keys (default 0000_000_<timestamp>)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Keep scratch files and local outputs",
		},
		&cli.BoolFlag{
			Name:  "no-upload",
			Usage: "Write rasters locally and skip publishing",
		},
		&cli.BoolFlag{
			Name:  "only-sr",
			Usage: "Process the surface reflectance bands and the cloud mask only",
		},
		&cli.BoolFlag{
			Name:  "only-sr-mask",
			Usage: "Process the cloud mask only",
		},
		&cli.BoolFlag{
			Name:  "only-tir",
			Usage: "Process the thermal band and its quality band only",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Bands processed in parallel per group",
		},
		&cli.IntFlag{
			Name:  "plan-concurrency",
			Usage: "Groups processed in parallel per plan",
		},
		&cli.BoolFlag{
			Name:  "stream",
			Usage: "Read sources through /vsis3 instead of downloading them",
		},
		&cli.StringFlag{
			Name:    "tile-db",
			Usage:   "SQLite database holding the s2_tiles table",
			Sources: cli.EnvVars("L8ARD_TILE_DB"),
		},
		&cli.StringFlag{
			Name:    "tile-geojson",
			Usage:   "GeoJSON Sentinel-2 grid with SRS, UL0 and UL1 properties",
			Sources: cli.EnvVars("L8ARD_TILE_GEOJSON"),
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Exit with status 3 when some bands failed",
		},
	}
}

func newGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate the ARD rasters of one product group on a tile",
		ArgsUsage: "TILE PRODUCT_ID...",
		Action:    executeGenerate,
	}
}

func newPlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Generate the ARD rasters of every group of a JSON or YAML workplan",
		ArgsUsage: "FILE",
		Action:    executePlan,
	}
}

func newTilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiles",
		Usage: "Manage the tile registry",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Copy a GeoJSON Sentinel-2 grid into the --tile-db database",
				ArgsUsage: "GEOJSON",
				Action:    executeTilesImport,
			},
		},
	}
}
