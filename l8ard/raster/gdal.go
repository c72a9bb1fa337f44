package raster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// waitDelay bounds how long Wait blocks on output pipes held open by children of a
// killed command.
var waitDelay = 5 * time.Second

// ExecRunner runs commands with os/exec. A command killed because ctx ended returns
// an error wrapping ctx.Err().
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.Bytes(), fmt.Errorf("%s: %w (%v)", name, ctxErr, err)
		}
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return out.Bytes(), fmt.Errorf("%s: %w", name, err)
		}
		return out.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return out.Bytes(), nil
}

// DefaultConfigOptions are the GDAL options needed to read the requester-pays USGS bucket.
func DefaultConfigOptions() map[string]string {
	return map[string]string{
		"AWS_REQUEST_PAYER":                "requester",
		"AWS_REGION":                       "us-west-2",
		"CPL_VSIL_CURL_ALLOWED_EXTENSIONS": ".tif",
		"GDAL_DISABLE_READDIR_ON_OPEN":     "YES",
	}
}

// GDAL is an Engine driving the GDAL command line utilities.
type GDAL struct {
	binDir string
	config map[string]string
	run    Runner
	logger *zap.Logger
}

// GDALOption configures a GDAL engine.
type GDALOption func(*GDAL)

// WithRunner replaces the command runner.
func WithRunner(r Runner) GDALOption {
	return func(g *GDAL) {
		if r != nil {
			g.run = r
		}
	}
}

// WithBinDir runs the utilities from dir instead of PATH.
func WithBinDir(dir string) GDALOption {
	return func(g *GDAL) {
		g.binDir = dir
	}
}

// WithConfigOption sets a GDAL configuration option passed as --config on every call.
// An empty value removes the option.
func WithConfigOption(key, value string) GDALOption {
	return func(g *GDAL) {
		if value == "" {
			delete(g.config, key)
			return
		}
		g.config[key] = value
	}
}

// WithEngineLogger sets the logger used for command tracing.
func WithEngineLogger(l *zap.Logger) GDALOption {
	return func(g *GDAL) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGDAL returns a GDAL engine with the default configuration options.
func NewGDAL(opts ...GDALOption) *GDAL {
	g := &GDAL{
		config: DefaultConfigOptions(),
		run:    ExecRunner,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GDAL) exec(ctx context.Context, tool string, args ...string) error {
	name := tool
	if g.binDir != "" {
		name = filepath.Join(g.binDir, tool)
	}
	keys := make([]string, 0, len(g.config))
	for k := range g.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	full := make([]string, 0, len(args)+3*len(keys))
	for _, k := range keys {
		full = append(full, "--config", k, g.config[k])
	}
	full = append(full, args...)
	g.logger.Debug("running gdal", zap.String("tool", tool), zap.Strings("args", full))
	if _, err := g.run(ctx, name, full...); err != nil {
		return fmt.Errorf("raster: %s: %w", tool, err)
	}
	return nil
}

// Reproject warps src into a VRT at dst in the target CRS and resolution.
func (g *GDAL) Reproject(ctx context.Context, src, dst string, opts ReprojectOptions) error {
	if opts.TargetCRS == "" || opts.ResolutionMeters <= 0 {
		return fmt.Errorf("raster: reproject %s: target crs and resolution required", src)
	}
	res := strconv.Itoa(opts.ResolutionMeters)
	args := []string{"-q", "-overwrite", "-of", "VRT",
		"-tr", res, res,
		"-r", string(opts.Resampling),
		"-t_srs", opts.TargetCRS,
	}
	if opts.ForcedNodata != nil {
		args = append(args, "-dstnodata", formatFloat(*opts.ForcedNodata))
	}
	args = append(args, src, dst)
	return g.exec(ctx, "gdalwarp", args...)
}

// Mosaic combines srcs into a single VRT at dst.
func (g *GDAL) Mosaic(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("raster: mosaic %s: no inputs", dst)
	}
	args := append([]string{"-q", "-overwrite", dst}, srcs...)
	return g.exec(ctx, "gdalbuildvrt", args...)
}

// Clip crops src to bbox and writes a GeoTIFF at dst.
func (g *GDAL) Clip(ctx context.Context, src, dst string, bbox orb.Bound) error {
	return g.exec(ctx, "gdalwarp", "-q", "-overwrite",
		"-te",
		formatFloat(bbox.Min.X()), formatFloat(bbox.Min.Y()),
		formatFloat(bbox.Max.X()), formatFloat(bbox.Max.Y()),
		src, dst)
}

// ReadGrid loads the first band of src into memory.
func (g *GDAL) ReadGrid(ctx context.Context, src string) (*Grid, error) {
	dir, err := os.MkdirTemp(filepath.Dir(src), ".grid-*")
	if err != nil {
		return nil, fmt.Errorf("raster: read %s: %w", src, err)
	}
	defer os.RemoveAll(dir)

	raw := filepath.Join(dir, "grid.raw")
	if err := g.exec(ctx, "gdal_translate", "-q", "-of", "ENVI", "-b", "1", src, raw); err != nil {
		return nil, err
	}
	hdr := headerPath(raw)
	if _, err := os.Stat(hdr); err != nil {
		hdr = raw + ".hdr"
	}
	grid, err := readENVI(hdr, raw)
	if err != nil {
		return nil, fmt.Errorf("raster: read %s: %w", src, err)
	}
	return grid, nil
}

// WriteGrid writes grid as a tiled, deflate compressed GeoTIFF at dst.
func (g *GDAL) WriteGrid(ctx context.Context, grid *Grid, dst string, opts WriteOptions) error {
	if grid == nil {
		return fmt.Errorf("raster: write %s: nil grid", dst)
	}
	dir, err := os.MkdirTemp(filepath.Dir(dst), ".grid-*")
	if err != nil {
		return fmt.Errorf("raster: write %s: %w", dst, err)
	}
	defer os.RemoveAll(dir)

	raw := filepath.Join(dir, "grid.raw")
	if _, err := writeENVI(grid, raw, opts.Nodata); err != nil {
		return fmt.Errorf("raster: write %s: %w", dst, err)
	}
	block := opts.BlockSize
	if block <= 0 {
		block = 512
	}
	args := []string{"-q", "-of", "GTiff", "-ot", string(grid.DataType),
		"-co", "TILED=YES",
		"-co", "BLOCKXSIZE=" + strconv.Itoa(block),
		"-co", "BLOCKYSIZE=" + strconv.Itoa(block),
		"-co", "COMPRESS=DEFLATE",
	}
	if opts.Nodata != nil {
		args = append(args, "-a_nodata", formatFloat(*opts.Nodata))
	} else {
		args = append(args, "-a_nodata", "none")
	}
	tags := make([]string, 0, len(opts.Tags))
	for k := range opts.Tags {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	for _, k := range tags {
		args = append(args, "-mo", k+"="+opts.Tags[k])
	}
	args = append(args, raw, dst)
	return g.exec(ctx, "gdal_translate", args...)
}
