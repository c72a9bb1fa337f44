package l8ard

import (
	"time"

	"go.uber.org/zap"

	"github.com/example/go-l8ard/l8ard/internal/retry"
	"github.com/example/go-l8ard/l8ard/raster"
	"github.com/example/go-l8ard/l8ard/storage"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCatalog sets the source catalog used for existence checks and downloads.
func WithCatalog(c storage.SourceCatalog) Option {
	return func(p *Processor) {
		p.catalog = c
	}
}

// WithPublisher sets the destination of finished rasters.
func WithPublisher(pub storage.Publisher) Option {
	return func(p *Processor) {
		p.publisher = pub
	}
}

// WithEngine sets the raster engine.
func WithEngine(e raster.Engine) Option {
	return func(p *Processor) {
		p.engine = e
	}
}

// WithWorkDir sets the root of scratch directories and local outputs.
func WithWorkDir(dir string) Option {
	return func(p *Processor) {
		if dir != "" {
			p.workDir = dir
		}
	}
}

// WithProductionID sets the prefix of published keys.
func WithProductionID(id string) Option {
	return func(p *Processor) {
		p.productionID = id
	}
}

// WithNoUpload keeps finished rasters on the local disk instead of publishing them.
func WithNoUpload(enabled bool) Option {
	return func(p *Processor) {
		p.noUpload = enabled
	}
}

// WithDebug keeps scratch directories and local outputs after each band.
func WithDebug(enabled bool) Option {
	return func(p *Processor) {
		p.debug = enabled
	}
}

// WithConcurrency sets how many bands of a group are processed in parallel.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPlanConcurrency sets how many groups of a plan are processed in parallel.
func WithPlanConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.planConcurrency = n
		}
	}
}

// WithStepTimeout bounds every external call of the band pipeline.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.stepTimeout = d
		}
	}
}

// WithStreamSources makes the engine read sources through /vsis3 instead of
// downloading them into the scratch directory first.
func WithStreamSources(enabled bool) Option {
	return func(p *Processor) {
		p.stream = enabled
	}
}

// WithSoftware sets the TIFFTAG_SOFTWARE value written into every raster.
func WithSoftware(s string) Option {
	return func(p *Processor) {
		if s != "" {
			p.software = s
		}
	}
}

// WithRetry sets the attempt budget and base backoff of engine steps.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Processor) {
		if maxAttempts <= 1 {
			p.retry = retry.Never{}
			return
		}
		p.retry = retry.NewPolicy(maxAttempts, baseDelay, nil)
	}
}

// WithClock overrides the time source used for tags and default production ids.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithProgress registers a callback invoked after every band. It may be called
// from several goroutines at once.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) {
		p.progress = fn
	}
}
