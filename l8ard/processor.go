// Package l8ard turns groups of Landsat-8 Collection-2 Level-2 products into
// Analysis Ready Data rasters aligned to Sentinel-2 MGRS tiles.
//
// A Processor runs the band pipeline for every band of a processing mode, for one
// product group (ProcessGroup), a list of identifiers (ProcessIDs) or a whole
// workplan (ProcessPlan). Band failures never abort their siblings; they are
// reported in the returned reports.
package l8ard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/go-l8ard/l8ard/config"
	"github.com/example/go-l8ard/l8ard/internal/retry"
	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/naming"
	"github.com/example/go-l8ard/l8ard/raster"
	"github.com/example/go-l8ard/l8ard/storage"
)

var (
	// ErrNilProcessor is returned when methods are invoked on a nil Processor.
	ErrNilProcessor = errors.New("l8ard: nil processor")
	// ErrNoEngine indicates a Processor built without a raster engine.
	ErrNoEngine = errors.New("l8ard: raster engine required")
	// ErrNoCatalog indicates a Processor built without a source catalog.
	ErrNoCatalog = errors.New("l8ard: source catalog required")
	// ErrNoPublisher indicates uploads were requested without a publisher.
	ErrNoPublisher = errors.New("l8ard: publisher required unless uploads are disabled")
)

// ProgressFunc receives every finished band.
type ProgressFunc func(BandResult)

// Processor runs the ARD pipeline. It is safe for concurrent use.
type Processor struct {
	catalog         storage.SourceCatalog
	publisher       storage.Publisher
	engine          raster.Engine
	logger          *zap.Logger
	workDir         string
	productionID    string
	noUpload        bool
	debug           bool
	stream          bool
	concurrency     int
	planConcurrency int
	stepTimeout     time.Duration
	software        string
	retry           retry.Policy
	now             func() time.Time
	progress        ProgressFunc
	dirs            *naming.DirCreator
	// tree guards pruning of empty work directories against bands creating them.
	tree sync.RWMutex
}

// New builds a Processor. A catalog and an engine are required, and a publisher
// unless WithNoUpload is set.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		logger:          zap.NewNop(),
		workDir:         os.TempDir(),
		concurrency:     1,
		planConcurrency: 1,
		stepTimeout:     30 * time.Minute,
		software:        config.Default().SoftwareVersion(),
		retry:           retry.DefaultPolicy(),
		now:             time.Now,
		dirs:            naming.NewDirCreator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	switch {
	case p.engine == nil:
		return nil, errors.Join(model.ErrConfiguration, ErrNoEngine)
	case p.catalog == nil:
		return nil, errors.Join(model.ErrConfiguration, ErrNoCatalog)
	case p.publisher == nil && !p.noUpload:
		return nil, errors.Join(model.ErrConfiguration, ErrNoPublisher)
	}
	if p.productionID == "" {
		p.productionID = config.DefaultProductionID(p.now())
	}
	return p, nil
}

// ProductionID returns the prefix of published keys.
func (p *Processor) ProductionID() string {
	return p.productionID
}

// location is the bucket or directory outputs end up in.
func (p *Processor) location() string {
	if p.noUpload || p.publisher == nil {
		return ""
	}
	return p.publisher.Location()
}

// step runs fn under the step timeout. A step that outlives its deadline fails
// with an error wrapping context.DeadlineExceeded and is never retried.
func (p *Processor) step(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	err := fn(sctx)
	if err == nil {
		return nil
	}
	if sctxErr := sctx.Err(); sctxErr != nil {
		if !errors.Is(err, sctxErr) {
			err = fmt.Errorf("%w: %w", sctxErr, err)
		}
		return retry.Permanent(err)
	}
	return err
}

// engineStep runs an engine call under the step timeout and the retry policy.
func (p *Processor) engineStep(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.step(ctx, fn)
	})
}
