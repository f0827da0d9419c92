// Package dvphoto validates photos against U.S. Diversity Visa submission
// requirements: exact dimensions, file size limits, single centered face,
// plain light background, and even lighting.  Results carry a weighted
// compliance score plus actionable findings, and an optional enhancer
// produces a normalized candidate image for re-validation.
package dvphoto

import (
	"bytes"
	"context"
	"image"
	"io"
	"sync"

	"github.com/hemannep/dvphoto/adapters/decoder"
	"github.com/hemannep/dvphoto/adapters/encoder"
	"github.com/hemannep/dvphoto/analysis"
	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	"github.com/hemannep/dvphoto/enhance"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
)

// DefaultConfig returns the standard adult-photo configuration.
func DefaultConfig() config.Config { return config.Default() }

// BabyConfig returns the relaxed configuration for infant photos.
func BabyConfig() config.Config { return config.Baby() }

// Validator is the primary entry point.
type Validator struct {
	inner *core.Engine
	reg   *core.DefaultRegistry
	det   *detectorRef
}

// New creates a fully wired Validator with the built-in JPEG and PNG
// decoders registered and the default enhancer attached.  Attach a face
// detector with SetDetector before validating; without one the face stage
// fails hard.
func New(cfg config.Config) *Validator {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())

	enc := encoder.NewJPEG(cfg.EnhancedQuality)
	reg.RegisterEncoder(core.FormatJPEG, enc)

	det := &detectorRef{}
	stages := analysis.Stages(cfg, det)
	inner := core.NewEngine(cfg, reg, stages, analysis.NewScorer(cfg))
	inner.SetEnhancer(enhance.New(cfg, enc, enhance.Options{}))

	return &Validator{inner: inner, reg: reg, det: det}
}

// SetDetector attaches (or replaces) the face detector.  Safe to call
// concurrently with validations.
func (v *Validator) SetDetector(d core.FaceDetector) { v.det.set(d) }

// WithDetector is a chainable SetDetector for wiring at construction.
func (v *Validator) WithDetector(d core.FaceDetector) *Validator {
	v.det.set(d)
	return v
}

// SetLogger attaches a structured logger.
func (v *Validator) SetLogger(l core.Logger) { v.inner.SetLogger(l) }

// SetMetrics attaches a metrics collector.
func (v *Validator) SetMetrics(m core.MetricsCollector) { v.inner.SetMetrics(m) }

// SetEnhancer replaces the default enhancer.
func (v *Validator) SetEnhancer(e core.Enhancer) { v.inner.SetEnhancer(e) }

// AddHook registers an observer for stage events.
func (v *Validator) AddHook(h core.Hook) { v.inner.AddHook(h) }

// RegisterDecoder registers a custom decoder for the given format.
func (v *Validator) RegisterDecoder(f core.Format, d core.Decoder) { v.reg.RegisterDecoder(f, d) }

// Start starts the background worker pool.
func (v *Validator) Start() { v.inner.Start() }

// Stop drains and shuts down the worker pool.
func (v *Validator) Stop() { v.inner.Stop() }

// Validate runs the full compliance check synchronously.
func (v *Validator) Validate(ctx context.Context, src core.Source) (*core.ValidationResult, error) {
	return v.inner.Validate(ctx, src)
}

// ValidateBytes validates an in-memory photo.
func (v *Validator) ValidateBytes(ctx context.Context, data []byte) (*core.ValidationResult, error) {
	return v.inner.Validate(ctx, FromBytes(data))
}

// ValidateEnhanced normalizes the photo first and validates the result.
// On success it returns both the result and the enhanced image buffer.
func (v *Validator) ValidateEnhanced(ctx context.Context, src core.Source) (*core.ValidationResult, *core.ImageBuffer, error) {
	return v.inner.ValidateEnhanced(ctx, src)
}

// Batch validates multiple sources concurrently, bounded by the configured
// maximum concurrency.
func (v *Validator) Batch(ctx context.Context, sources []core.Source) ([]*core.ValidationResult, []error) {
	return v.inner.Batch(ctx, sources)
}

// Submit enqueues an async validation job for the worker pool.
func (v *Validator) Submit(job core.Job) error { return v.inner.Submit(job) }

// Stats returns lightweight validation statistics.
func (v *Validator) Stats() (processed, errors int64) {
	return v.inner.ProcessedCount(), v.inner.ErrorCount()
}

// ── Source constructors ────────────────────────────────────────────────────────

// FromReader creates a Source from an io.Reader.
func FromReader(r io.Reader) core.Source { return core.Source{Reader: r, Size: -1} }

// FromBytes creates a Source from an in-memory image.
func FromBytes(data []byte) core.Source {
	return core.Source{Reader: bytes.NewReader(data), Size: int64(len(data))}
}

// FromReaderWithMeta creates a Source with known size and content-type hints.
func FromReaderWithMeta(r io.Reader, size int64, contentType, name string) core.Source {
	return core.Source{Reader: r, Size: size, ContentType: contentType, Name: name}
}

// ── detector indirection ──────────────────────────────────────────────────────

// detectorRef lets the detector be attached after the stage list is built
// and swapped at runtime.
type detectorRef struct {
	mu    sync.RWMutex
	inner core.FaceDetector
}

func (r *detectorRef) set(d core.FaceDetector) {
	r.mu.Lock()
	r.inner = d
	r.mu.Unlock()
}

func (r *detectorRef) Detect(ctx context.Context, img image.Image) ([]core.FaceRegion, error) {
	r.mu.RLock()
	d := r.inner
	r.mu.RUnlock()
	if d == nil {
		return nil, apperrors.New(apperrors.CategoryDetect, "detect", apperrors.ErrNoDetector)
	}
	return d.Detect(ctx, img)
}

var _ core.FaceDetector = (*detectorRef)(nil)
