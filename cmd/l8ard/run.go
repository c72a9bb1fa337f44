package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/go-l8ard/l8ard"
	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/config"
	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/raster"
	"github.com/example/go-l8ard/l8ard/storage"
	"github.com/example/go-l8ard/l8ard/tile"
	"github.com/example/go-l8ard/pkg/workplan"
)

const filePrefix = "file://"

// session bundles everything a processing command needs.
type session struct {
	mode      band.Mode
	proc      *l8ard.Processor
	registry  tile.Registry
	logger    *zap.Logger
	noUpload  bool
	strict    bool
	closeFunc func() error
}

func (s *session) Close() {
	s.logger.Sync()
	if s.closeFunc != nil {
		s.closeFunc()
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// loadConfig merges the YAML file, the environment and the command line flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	root := cmd.Root()
	cfg, err := config.Load(strings.TrimSpace(root.String("config")))
	if err != nil {
		return config.Config{}, err
	}
	if v := strings.TrimSpace(root.String("out-dir")); v != "" {
		cfg.WorkDir = v
	}
	if v := strings.TrimSpace(root.String("bucket")); v != "" {
		cfg.Output.Name = v
	}
	if v := strings.TrimSpace(root.String("prod-id")); v != "" {
		cfg.ProductionID = v
	}
	if v := strings.TrimSpace(root.String("tile-db")); v != "" {
		cfg.TileDB = v
	}
	if v := strings.TrimSpace(root.String("tile-geojson")); v != "" {
		cfg.TileGeoJSON = v
	}
	if root.IsSet("concurrency") {
		cfg.Concurrency = root.Int("concurrency")
	}
	if root.IsSet("plan-concurrency") {
		cfg.PlanConcurrency = root.Int("plan-concurrency")
	}
	if root.Bool("stream") {
		cfg.StreamSources = true
	}
	return cfg, cfg.Validate()
}

func openRegistry(cfg config.Config) (tile.Registry, func() error, error) {
	switch {
	case cfg.TileDB != "":
		db, err := tile.OpenSQLite(cfg.TileDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open tile database: %w", err)
		}
		return db, db.Close, nil
	case cfg.TileGeoJSON != "":
		reg, err := tile.LoadGeoJSON(cfg.TileGeoJSON)
		if err != nil {
			return nil, nil, err
		}
		return reg, nil, nil
	}
	return nil, nil, model.Configf("a tile registry is required (--tile-db or --tile-geojson)")
}

func newPublisher(ctx context.Context, cfg config.Config) (storage.Publisher, error) {
	if strings.HasPrefix(cfg.Output.Name, filePrefix) {
		return storage.LocalPublisher{Root: strings.TrimPrefix(cfg.Output.Name, filePrefix)}, nil
	}
	client, err := storage.NewS3Client(ctx, cfg.Output.S3())
	if err != nil {
		return nil, err
	}
	return storage.NewS3Publisher(client, cfg.Output.Name), nil
}

// newSession validates the request and wires the processor. Mode conflicts are
// reported before any collaborator is built.
func newSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	root := cmd.Root()
	mode, err := band.ModeFromFlags(root.Bool("only-sr"), root.Bool("only-sr-mask"), root.Bool("only-tir"))
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(root.Bool("verbose"))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	registry, closeFunc, err := openRegistry(cfg)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	fail := func(err error) (*session, error) {
		if closeFunc != nil {
			closeFunc()
		}
		logger.Sync()
		return nil, err
	}
	sourceClient, err := storage.NewS3Client(ctx, cfg.Source.S3())
	if err != nil {
		return fail(err)
	}

	noUpload := root.Bool("no-upload")
	engine := raster.NewGDAL(
		raster.WithBinDir(cfg.GDALBinDir),
		raster.WithConfigOption("AWS_REGION", cfg.Source.Region),
		raster.WithEngineLogger(logger),
	)
	opts := []l8ard.Option{
		l8ard.WithLogger(logger),
		l8ard.WithEngine(engine),
		l8ard.WithCatalog(storage.NewS3Catalog(sourceClient, cfg.Source.Name)),
		l8ard.WithWorkDir(cfg.WorkDir),
		l8ard.WithProductionID(cfg.ProductionID),
		l8ard.WithNoUpload(noUpload),
		l8ard.WithDebug(root.Bool("debug")),
		l8ard.WithConcurrency(cfg.Concurrency),
		l8ard.WithPlanConcurrency(cfg.PlanConcurrency),
		l8ard.WithStepTimeout(cfg.StepTimeout),
		l8ard.WithStreamSources(cfg.StreamSources),
		l8ard.WithSoftware(cfg.SoftwareVersion()),
	}
	if !noUpload {
		pub, err := newPublisher(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, l8ard.WithPublisher(pub))
	}
	proc, err := l8ard.New(opts...)
	if err != nil {
		return fail(err)
	}
	logger.Info("processor ready",
		zap.String("production_id", proc.ProductionID()),
		zap.Stringer("mode", mode),
		zap.String("work_dir", cfg.WorkDir),
		zap.Bool("no_upload", noUpload),
	)
	return &session{
		mode:      mode,
		proc:      proc,
		registry:  registry,
		logger:    logger,
		noUpload:  noUpload,
		strict:    root.Bool("strict"),
		closeFunc: closeFunc,
	}, nil
}

func executeGenerate(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return model.Configf("usage: l8ard generate TILE PRODUCT_ID...")
	}
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.proc.ProcessIDs(ctx, args[0], args[1:], s.registry, s.mode)
	if err != nil {
		return err
	}
	printGroup(os.Stdout, report, s.noUpload)
	return groupStatus(report, s.strict)
}

func executePlan(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return model.Configf("usage: l8ard plan FILE")
	}
	plan, err := workplan.Load(cmd.Args().First())
	if err != nil {
		return withCode(exitConfig, err)
	}
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("plan loaded", zap.Int("tiles", len(plan)), zap.Int("groups", plan.Groups()))
	report, err := s.proc.ProcessPlan(ctx, plan, s.registry, s.mode)
	if err != nil {
		return err
	}
	for _, g := range report.Groups {
		printGroup(os.Stdout, g, s.noUpload)
	}
	if err := report.Err(); err != nil {
		return withCode(exitFailed, err)
	}
	if s.strict {
		for _, g := range report.Groups {
			if !g.Complete() {
				return withCode(exitPartial, fmt.Errorf("%d bands failed on tile %s", len(g.Failed()), g.Tile))
			}
		}
	}
	return nil
}

func executeTilesImport(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return model.Configf("usage: l8ard tiles import GEOJSON")
	}
	path := strings.TrimSpace(cmd.Root().String("tile-db"))
	if path == "" {
		return model.Configf("--tile-db is required")
	}
	grid, err := tile.LoadGeoJSON(cmd.Args().First())
	if err != nil {
		return err
	}
	db, err := tile.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	tiles := grid.Tiles()
	for _, t := range tiles {
		if err := db.Put(ctx, t.TileID, t.CRS, t.BBox.Min.X(), t.BBox.Max.Y()); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "Imported %d tiles into %s\n", len(tiles), path)
	return nil
}

func printGroup(w io.Writer, report l8ard.GroupReport, noUpload bool) {
	if !noUpload {
		fmt.Fprintln(w, report.Summary())
	}
	for _, b := range report.Failed() {
		fmt.Fprintf(w, "  %s failed: %v\n", b.Band, b.Err)
	}
}

func groupStatus(report l8ard.GroupReport, strict bool) error {
	ok := len(report.Bands) - len(report.Failed())
	if ok == 0 {
		return withCode(exitFailed, fmt.Errorf("no band produced on tile %s", report.Tile))
	}
	if strict && !report.Complete() {
		return withCode(exitPartial, fmt.Errorf("%d of %d bands failed on tile %s", len(report.Failed()), len(report.Bands), report.Tile))
	}
	return nil
}
