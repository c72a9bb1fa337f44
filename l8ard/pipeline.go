package l8ard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/naming"
	"github.com/example/go-l8ard/l8ard/raster"
)

// qualityNodata is forced during reprojection of QA_PIXEL so that pixels outside the
// footprint decode as fill.
const qualityNodata = 1

// BandResult is the outcome of one band of a product group.
type BandResult struct {
	Band band.Code
	// Uploaded is 1 when the raster was published, 0 otherwise.
	Uploaded int
	Bytes    int64
	// Key is the published key (production id included).
	Key    string
	Bucket string
	// LocalPath is set when the raster is kept on disk.
	LocalPath string
	Err       error
}

// OK reports whether the band produced a raster.
func (r BandResult) OK() bool {
	return r.Err == nil
}

type sourceSet struct {
	ids       []string
	keys      []string
	reference string
	acquired  time.Time
}

// resolveSources dedupes and sorts the group, derives the per-band source keys and
// checks that every member was acquired on the same day.
func resolveSources(ids []string, code band.Code) (sourceSet, error) {
	if len(ids) == 0 {
		return sourceSet{}, errors.New("empty product group")
	}
	seen := make(map[string]model.ProductID, len(ids))
	for _, raw := range ids {
		id, err := model.ParseProductID(raw)
		if err != nil {
			return sourceSet{}, err
		}
		seen[id.Raw] = id
	}
	set := sourceSet{ids: make([]string, 0, len(seen))}
	for raw := range seen {
		set.ids = append(set.ids, raw)
	}
	sort.Strings(set.ids)
	set.reference = set.ids[0]
	set.acquired = seen[set.reference].AcquisitionDate
	for _, raw := range set.ids {
		if d := seen[raw].AcquisitionDate; !d.Equal(set.acquired) {
			return sourceSet{}, fmt.Errorf("group spans several acquisition dates (%s, %s)",
				set.acquired.Format("20060102"), d.Format("20060102"))
		}
		key, err := naming.SourceKey(raw, code)
		if err != nil {
			return sourceSet{}, err
		}
		set.keys = append(set.keys, key)
	}
	return set, nil
}

// ProcessBand produces the ARD raster of one band for a product group on a tile.
// Failures are returned in the result; the caller is expected to continue with
// other bands.
func (p *Processor) ProcessBand(ctx context.Context, ids []string, code band.Code, tile model.TileContext) BandResult {
	if p == nil {
		return BandResult{Band: code, Err: ErrNilProcessor}
	}
	res := BandResult{Band: code, Bucket: p.location()}
	log := p.logger.With(
		zap.String("band", code.String()),
		zap.String("tile", tile.TileID),
		zap.Strings("group", ids),
	)
	fail := func(stage model.Stage, kind, err error) BandResult {
		res.Uploaded, res.Bytes = 0, 0
		res.Key, res.Bucket = "", ""
		res.Err = &model.BandError{Band: code.String(), Group: ids, Stage: stage, Kind: kind, Err: err}
		log.Error("band failed", zap.String("stage", string(stage)), zap.Error(err))
		return res
	}

	d, err := band.DescriptorFor(code)
	if err != nil {
		return fail(model.StageResolve, model.ErrConfiguration, err)
	}
	srcs, err := resolveSources(ids, code)
	if err != nil {
		if errors.Is(err, model.ErrConfiguration) {
			return fail(model.StageResolve, model.ErrConfiguration, err)
		}
		return fail(model.StageResolve, model.ErrInputUnavailable, err)
	}
	outputKey, err := naming.OutputKey(srcs.reference, code, tile.TileID)
	if err != nil {
		return fail(model.StageResolve, model.ErrConfiguration, err)
	}
	res.Key = naming.PublishKey(p.productionID, outputKey)
	log = log.With(zap.String("key", res.Key))

	log.Debug("checking source assets", zap.Strings("sources", srcs.keys))
	for _, key := range srcs.keys {
		var ok bool
		err := p.step(ctx, func(ctx context.Context) error {
			var err error
			ok, err = p.catalog.Exists(ctx, key)
			return err
		})
		if err != nil {
			return fail(model.StageCheck, model.ErrInputUnavailable, err)
		}
		if !ok {
			return fail(model.StageCheck, model.ErrInputUnavailable, fmt.Errorf("source %s does not exist", path.Base(key)))
		}
	}

	scratch, err := p.scratchDir(srcs.acquired, code, tile.TileID)
	if err != nil {
		return fail(model.StageScratch, model.ErrProcessing, err)
	}
	defer p.removeScratch(log, scratch)

	inputs, err := p.inputs(ctx, srcs.keys, scratch)
	if err != nil {
		return fail(model.StageCheck, model.ErrInputUnavailable, err)
	}

	log.Info("reprojecting", zap.Int("sources", len(inputs)), zap.String("crs", tile.CRS))
	opts := raster.ReprojectOptions{
		TargetCRS:        tile.CRS,
		ResolutionMeters: d.ResolutionMeters,
		Resampling:       d.Resampling,
	}
	if d.Quality() {
		opts.ForcedNodata = raster.Float(qualityNodata)
	}
	warped := make([]string, 0, len(inputs))
	for i, in := range inputs {
		dst := filepath.Join(scratch, strconv.Itoa(i)+"_"+trimExt(path.Base(in))+".vrt")
		if err := p.engineStep(ctx, func(ctx context.Context) error {
			return p.engine.Reproject(ctx, in, dst, opts)
		}); err != nil {
			return fail(model.StageReproject, model.ErrProcessing, err)
		}
		warped = append(warped, dst)
	}

	mosaic := filepath.Join(scratch, "mosaic.vrt")
	if err := p.engineStep(ctx, func(ctx context.Context) error {
		return p.engine.Mosaic(ctx, warped, mosaic)
	}); err != nil {
		return fail(model.StageMosaic, model.ErrProcessing, err)
	}

	clipped := filepath.Join(scratch, "clip.tif")
	if err := p.engineStep(ctx, func(ctx context.Context) error {
		return p.engine.Clip(ctx, mosaic, clipped, tile.BBox)
	}); err != nil {
		return fail(model.StageClip, model.ErrProcessing, err)
	}

	var grid *raster.Grid
	if err := p.engineStep(ctx, func(ctx context.Context) error {
		var err error
		grid, err = p.engine.ReadGrid(ctx, clipped)
		return err
	}); err != nil {
		return fail(model.StageFinish, model.ErrProcessing, err)
	}
	finished, nodata, err := raster.Finish(d, grid)
	if err != nil {
		return fail(model.StageFinish, model.ErrProcessing, err)
	}

	wopts := raster.WriteOptions{
		BlockSize: raster.BlockSize(code),
		Nodata:    nodata,
		Tags:      raster.Tags(srcs.acquired, p.now(), p.software, srcs.ids),
	}
	local, err := p.writeOutput(ctx, outputKey, finished, wopts)
	if err != nil {
		return fail(model.StageWrite, model.ErrProcessing, err)
	}

	if p.noUpload {
		res.LocalPath = local
		log.Info("raster written", zap.String("path", local))
		return res
	}
	var size int64
	if err := p.step(ctx, func(ctx context.Context) error {
		var err error
		size, err = p.publisher.Publish(ctx, local, res.Key)
		return err
	}); err != nil {
		p.removeOutput(log, local)
		return fail(model.StagePublish, model.ErrProcessing, err)
	}
	res.Uploaded, res.Bytes = 1, size
	if p.debug {
		res.LocalPath = local
	} else {
		p.removeOutput(log, local)
	}
	log.Info("raster published", zap.String("uri", p.publisher.URI(res.Key)), zap.Int64("bytes", size))
	return res
}

// inputs returns the paths the engine reads: /vsis3 URIs when streaming, local copies
// fetched into the scratch directory otherwise.
func (p *Processor) inputs(ctx context.Context, keys []string, scratch string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if p.stream {
			out = append(out, naming.SourceURI(key))
			continue
		}
		dest := filepath.Join(scratch, "src", path.Base(key))
		if err := p.step(ctx, func(ctx context.Context) error {
			_, err := p.catalog.Fetch(ctx, key, dest)
			return err
		}); err != nil {
			return nil, err
		}
		out = append(out, dest)
	}
	return out, nil
}

func (p *Processor) outputRoot() string {
	return filepath.Join(p.workDir, p.productionID)
}

// writeOutput creates the destination directory of outputKey and writes the finished
// grid into it. Pruning waits until the raster is on disk.
func (p *Processor) writeOutput(ctx context.Context, outputKey string, g *raster.Grid, opts raster.WriteOptions) (string, error) {
	p.tree.RLock()
	defer p.tree.RUnlock()
	dir, err := p.dirs.Create(p.outputRoot(), outputKey)
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, path.Base(outputKey))
	if err := p.engineStep(ctx, func(ctx context.Context) error {
		return p.engine.WriteGrid(ctx, g, local, opts)
	}); err != nil {
		return "", err
	}
	return local, nil
}

// removeOutput deletes a local raster that is no longer needed, unless debugging.
func (p *Processor) removeOutput(log *zap.Logger, local string) {
	if p.debug {
		return
	}
	if err := os.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("could not remove local raster", zap.String("path", local), zap.Error(err))
		return
	}
	p.pruneEmpty(filepath.Dir(local))
}

func (p *Processor) scratchDir(acquired time.Time, code band.Code, tileID string) (string, error) {
	p.tree.RLock()
	defer p.tree.RUnlock()
	parent := filepath.Join(p.workDir, "tmp", acquired.Format("20060102"))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, code.String()+"-"+tileID+"-*")
}

func (p *Processor) removeScratch(log *zap.Logger, dir string) {
	if p.debug {
		log.Debug("keeping scratch directory", zap.String("dir", dir))
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("scratch cleanup failed", zap.String("dir", dir),
			zap.Error(fmt.Errorf("%w: %w", model.ErrScratchCleanup, err)))
		return
	}
	p.pruneEmpty(filepath.Dir(dir))
}

// pruneEmpty removes dir and its empty parents up to, not including, the work dir.
func (p *Processor) pruneEmpty(dir string) {
	p.tree.Lock()
	defer p.tree.Unlock()
	root, err := filepath.Abs(p.workDir)
	if err != nil {
		return
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return
	}
	for ; strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func trimExt(name string) string {
	return name[:len(name)-len(path.Ext(name))]
}
