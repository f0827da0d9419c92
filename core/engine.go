package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hemannep/dvphoto/config"
	apperrors "github.com/hemannep/dvphoto/errors"
	"github.com/hemannep/dvphoto/utils"
)

// Engine is the central orchestrator: it decodes a source, runs the fixed
// analysis stage sequence, and aggregates the findings into a
// ValidationResult.  It is safe for concurrent use; each validation owns
// its ImageBuffer and shares only the read-only configuration.
type Engine struct {
	cfg      config.Config
	registry Registry
	stages   []Stage
	scorer   Aggregator
	enhancer Enhancer
	hooks    []Hook
	logger   Logger
	metrics  MetricsCollector

	// Worker pool for async validation.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// NewEngine creates an Engine over the given registry, ordered stage list,
// and aggregator.  Call Start() before submitting async jobs; Stop() when
// done.  Synchronous Validate works without Start.
func NewEngine(cfg config.Config, reg Registry, stages []Stage, scorer Aggregator) *Engine {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Engine{
		cfg:      cfg,
		registry: reg,
		stages:   stages,
		scorer:   scorer,
		jobQueue: make(chan Job, queueSize),
		shutdown: make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(l Logger) { e.logger = l }

// SetMetrics attaches a metrics collector.
func (e *Engine) SetMetrics(m MetricsCollector) { e.metrics = m }

// SetEnhancer attaches the Enhancer used for enhance-then-validate jobs.
func (e *Engine) SetEnhancer(en Enhancer) { e.enhancer = en }

// AddHook registers a stage observer.
func (e *Engine) AddHook(h Hook) { e.hooks = append(e.hooks, h) }

// Registry returns the underlying registry so callers can register codecs
// after construction.
func (e *Engine) Registry() Registry { return e.registry }

// Start launches the worker pool.  It is idempotent.
func (e *Engine) Start() {
	e.once.Do(func() {
		workerCount := e.workers()
		for i := 0; i < workerCount; i++ {
			e.wg.Add(1)
			go e.worker()
		}
	})
}

// Stop shuts down all workers.
func (e *Engine) Stop() {
	close(e.shutdown)
	e.wg.Wait()
}

func (e *Engine) workers() int {
	if e.cfg.MaxConcurrent > 0 {
		return e.cfg.MaxConcurrent
	}
	return 3
}

// Decode drains src and decodes it into an ImageBuffer.  Corrupt bytes or a
// format outside the registered set abort with a hard decode failure; no
// partial result is produced for undecodable input.
func (e *Engine) Decode(ctx context.Context, src Source) (*ImageBuffer, error) {
	var limitedR = src.Reader
	if e.cfg.MaxImageBytes > 0 {
		limitedR = &utils.LimitedReader{R: src.Reader, Max: e.cfg.MaxImageBytes}
	}

	buf, err := utils.DrainReader(ctx, limitedR, e.cfg.ChunkSize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode.drain", err)
	}
	rawBytes := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if len(rawBytes) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "decode", apperrors.ErrEmptyInput)
	}

	format := Format(utils.DetectFormat(rawBytes))
	dec, ok := e.registry.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrUnsupportedFormat)
	}

	img, err := dec.Decode(ctx, utils.BytesReader(rawBytes))
	if err != nil {
		return nil, err
	}

	img.Data = rawBytes
	img.Meta.SizeBytes = int64(len(rawBytes))
	img.SourcePath = src.Name
	return img, nil
}

// Validate is the primary synchronous API: decode, run every analysis
// stage to completion, and aggregate.  Compliance findings accumulate on
// the result; only decode failures and timeouts surface as errors.
func (e *Engine) Validate(ctx context.Context, src Source) (*ValidationResult, error) {
	if e.cfg.ValidationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ValidationTimeout)
		defer cancel()
	}

	img, err := e.Decode(ctx, src)
	if err != nil {
		atomic.AddInt64(&e.errorCount, 1)
		return nil, e.timeoutOr(ctx, err)
	}
	return e.ValidateBuffer(ctx, img)
}

// ValidateBuffer runs the stage sequence over an already decoded buffer.
// Used directly after an Enhance pre-pass to avoid a redundant decode.
func (e *Engine) ValidateBuffer(ctx context.Context, img *ImageBuffer) (*ValidationResult, error) {
	analysis := &Analysis{Image: img}

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			atomic.AddInt64(&e.errorCount, 1)
			return nil, e.timeoutOr(ctx, apperrors.Wrap(apperrors.CategoryAnalyze, stage.Name(), err))
		}

		e.notifyBefore(ctx, stage.Name(), analysis)
		t := time.Now()
		report, stageErr := stage.Run(ctx, analysis)
		report.Elapsed = time.Since(t)
		e.notifyAfter(ctx, stage.Name(), analysis, report.Elapsed, stageErr)

		if stageErr != nil {
			atomic.AddInt64(&e.errorCount, 1)
			return nil, e.timeoutOr(ctx, stageErr)
		}
		analysis.Reports = append(analysis.Reports, report)
	}

	result := e.scorer.Aggregate(analysis)
	result.SourcePath = img.SourcePath
	result.Timestamp = time.Now().UTC()

	atomic.AddInt64(&e.processedCount, 1)
	if e.metrics != nil {
		e.metrics.RecordThroughput(img.Meta.SizeBytes)
		e.metrics.RecordScore(result.Score)
	}
	return result, nil
}

// ValidateEnhanced runs the Enhancer pre-pass and validates its output,
// yielding a fresh result for the normalized image.
func (e *Engine) ValidateEnhanced(ctx context.Context, src Source) (*ValidationResult, *ImageBuffer, error) {
	if e.enhancer == nil {
		return nil, nil, apperrors.New(apperrors.CategoryEnhance, "enhance", apperrors.ErrNoEnhancer)
	}
	if e.cfg.ValidationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ValidationTimeout)
		defer cancel()
	}

	img, err := e.Decode(ctx, src)
	if err != nil {
		return nil, nil, e.timeoutOr(ctx, err)
	}
	enhanced, err := e.enhancer.Enhance(ctx, img)
	if err != nil {
		return nil, nil, e.timeoutOr(ctx, err)
	}
	result, err := e.ValidateBuffer(ctx, enhanced)
	if err != nil {
		return nil, nil, err
	}
	return result, enhanced, nil
}

// Submit enqueues an async job.  Returns ErrWorkerPoolFull when the queue
// is saturated.
func (e *Engine) Submit(job Job) error {
	select {
	case e.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrWorkerPoolFull)
	}
}

// Batch validates multiple sources concurrently, bounded by the configured
// maximum concurrency so a gallery import cannot saturate the device CPU.
func (e *Engine) Batch(ctx context.Context, sources []Source) ([]*ValidationResult, []error) {
	results := make([]*ValidationResult, len(sources))
	errs := make([]error, len(sources))

	sem := make(chan struct{}, e.workers())
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r, err := e.Validate(ctx, s)
			results[idx] = r
			errs[idx] = err
		}(i, src)
	}
	wg.Wait()
	return results, errs
}

// ── worker pool internals ─────────────────────────────────────────────────────

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.shutdown:
			return
		case job, ok := <-e.jobQueue:
			if !ok {
				return
			}
			e.processJob(job)
		}
	}
}

func (e *Engine) processJob(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result *ValidationResult
		err    error
	)
	if job.Enhance {
		result, _, err = e.ValidateEnhanced(ctx, job.Source)
	} else {
		result, err = e.Validate(ctx, job.Source)
	}
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

// timeoutOr maps a deadline expiry onto the timeout sentinel so callers can
// apply their retry-once policy without unwrapping context internals.
func (e *Engine) timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.New(apperrors.CategoryTransient, "validate", apperrors.ErrValidationTimeout)
	}
	return err
}

func (e *Engine) notifyBefore(ctx context.Context, name string, a *Analysis) {
	for _, h := range e.hooks {
		h.BeforeStage(ctx, name, a)
	}
}

func (e *Engine) notifyAfter(ctx context.Context, name string, a *Analysis, d time.Duration, err error) {
	for _, h := range e.hooks {
		h.AfterStage(ctx, name, a, d, err)
	}
}

// ProcessedCount returns the total number of completed validations.
func (e *Engine) ProcessedCount() int64 { return atomic.LoadInt64(&e.processedCount) }

// ErrorCount returns the total number of hard pipeline failures.
func (e *Engine) ErrorCount() int64 { return atomic.LoadInt64(&e.errorCount) }
