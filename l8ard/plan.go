package l8ard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/tile"
	"github.com/example/go-l8ard/pkg/workplan"
)

// PlanFailure records a tile or group that could not be processed at all.
type PlanFailure struct {
	Tile  string
	Group []string
	Err   error
}

// Error implements the error interface.
func (f PlanFailure) Error() string {
	if len(f.Group) == 0 {
		return fmt.Sprintf("tile %s: %v", f.Tile, f.Err)
	}
	return fmt.Sprintf("tile %s group %v: %v", f.Tile, f.Group, f.Err)
}

// Unwrap returns the underlying error.
func (f PlanFailure) Unwrap() error {
	return f.Err
}

// PlanReport aggregates the group reports of a workplan run.
type PlanReport struct {
	Groups   []GroupReport
	Failures []PlanFailure
}

// Uploaded returns the total number of published rasters.
func (r PlanReport) Uploaded() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Uploaded
	}
	return n
}

// Err returns the plan level failures as a model.BatchError, or nil.
func (r PlanReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return model.BatchError{Errors: errs}
}

type planJob struct {
	tile  model.TileContext
	group []string
}

// ProcessPlan processes every group of every tile of plan, tiles in sorted order.
// Tiles that cannot be looked up and groups that fail validation are recorded in
// the report and do not stop the others.
func (p *Processor) ProcessPlan(ctx context.Context, plan workplan.Plan, registry tile.Registry, mode band.Mode) (PlanReport, error) {
	if p == nil {
		return PlanReport{}, ErrNilProcessor
	}
	if _, err := band.Bands(mode); err != nil {
		return PlanReport{}, err
	}
	if registry == nil {
		return PlanReport{}, model.Configf("tile registry required")
	}

	var report PlanReport
	var jobs []planJob
	for _, id := range plan.Tiles() {
		tc, err := registry.Lookup(ctx, id)
		if err != nil {
			p.logger.Error("tile lookup failed", zap.String("tile", id), zap.Error(err))
			report.Failures = append(report.Failures, PlanFailure{Tile: id, Err: err})
			continue
		}
		for _, group := range plan[id].L8Thermal {
			jobs = append(jobs, planJob{tile: tc, group: group})
		}
	}

	groups := make([]GroupReport, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(p.planConcurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			groups[i], errs[i] = p.ProcessGroup(ctx, job.group, job.tile, mode)
			return nil
		})
	}
	g.Wait()

	for i, job := range jobs {
		if errs[i] != nil {
			report.Failures = append(report.Failures, PlanFailure{Tile: job.tile.TileID, Group: job.group, Err: errs[i]})
		}
		if groups[i].Tile != "" {
			report.Groups = append(report.Groups, groups[i])
		}
	}
	return report, ctx.Err()
}

// ProcessIDs processes one product group on tileID, resolving the tile through registry.
func (p *Processor) ProcessIDs(ctx context.Context, tileID string, ids []string, registry tile.Registry, mode band.Mode) (GroupReport, error) {
	if p == nil {
		return GroupReport{}, ErrNilProcessor
	}
	if _, err := band.Bands(mode); err != nil {
		return GroupReport{}, err
	}
	if registry == nil {
		return GroupReport{}, model.Configf("tile registry required")
	}
	tc, err := registry.Lookup(ctx, tileID)
	if err != nil {
		return GroupReport{}, fmt.Errorf("l8ard: %w", err)
	}
	return p.ProcessGroup(ctx, ids, tc, mode)
}
