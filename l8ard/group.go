package l8ard

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/model"
)

// GroupReport summarises the bands of one product group.
type GroupReport struct {
	Tile     string
	Mode     band.Mode
	Uploaded int
	Bytes    int64
	// Bands holds one result per band, in processing order.
	Bands       []BandResult
	OpticalPath string
	ThermalPath string
}

// Failed returns the bands that produced no raster.
func (r GroupReport) Failed() []BandResult {
	var failed []BandResult
	for _, b := range r.Bands {
		if !b.OK() {
			failed = append(failed, b)
		}
	}
	return failed
}

// Complete reports whether every band succeeded.
func (r GroupReport) Complete() bool {
	return len(r.Failed()) == 0
}

// Summary renders the upload summary line.
func (r GroupReport) Summary() string {
	var paths []string
	for _, p := range []string{r.ThermalPath, r.OpticalPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return fmt.Sprintf("Uploaded %d tif files to bucket | %s", r.Uploaded, strings.Join(paths, " ; "))
}

// ProcessGroup runs every band of mode for a product group on tile. Configuration
// errors are returned before any external call; band failures are only reported.
func (p *Processor) ProcessGroup(ctx context.Context, ids []string, tile model.TileContext, mode band.Mode) (GroupReport, error) {
	if p == nil {
		return GroupReport{}, ErrNilProcessor
	}
	bands, err := band.Bands(mode)
	if err != nil {
		return GroupReport{}, err
	}
	if err := model.ValidateTileID(tile.TileID); err != nil {
		return GroupReport{}, err
	}
	if tile.CRS == "" {
		return GroupReport{}, model.Configf("tile %s: missing target CRS", tile.TileID)
	}
	for _, id := range ids {
		if _, err := model.ParseProductID(id); err != nil {
			return GroupReport{}, err
		}
	}

	p.logger.Info("processing group",
		zap.String("tile", tile.TileID),
		zap.Strings("group", ids),
		zap.Stringer("mode", mode),
		zap.Int("bands", len(bands)),
	)
	results := make([]BandResult, len(bands))
	run := func(i int) {
		results[i] = p.ProcessBand(ctx, ids, bands[i], tile)
		if p.progress != nil {
			p.progress(results[i])
		}
	}
	if p.concurrency <= 1 {
		for i := range bands {
			run(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i := range bands {
			i := i
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		g.Wait()
	}

	report := GroupReport{Tile: tile.TileID, Mode: mode, Bands: results}
	for _, r := range results {
		report.Uploaded += r.Uploaded
		report.Bytes += r.Bytes
		if r.Uploaded == 0 || r.Key == "" {
			continue
		}
		d, err := band.DescriptorFor(r.Band)
		if err != nil {
			continue
		}
		uri := p.publisher.URI(path.Dir(r.Key))
		switch d.Class {
		case band.Thermal:
			report.ThermalPath = uri
		case band.Optical:
			report.OpticalPath = uri
		}
	}
	p.logger.Info("group done",
		zap.String("tile", tile.TileID),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("failed", len(report.Failed())),
	)
	return report, ctx.Err()
}
