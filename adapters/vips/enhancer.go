//go:build cgo

// Package vips provides a libvips-backed Enhancer for server-side batch
// processing.  It requires CGO and the libvips system library; the pure-Go
// enhance package is the default backend.
package vips

import (
	"bytes"
	"context"
	"image/jpeg"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// BackendConfig configures the libvips runtime.
type BackendConfig struct {
	Quality      int
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
	SharpenSigma float64
}

// Enhancer normalizes images with vips_thumbnail(): for JPEG input it
// triggers shrink-on-load, so the full source bitmap is never allocated.
// Safe for concurrent use.
type Enhancer struct {
	cfg          BackendConfig
	targetWidth  int
	targetHeight int
}

// NewEnhancer initialises libvips and returns a ready Enhancer.
// Call Shutdown() when the process exits.
func NewEnhancer(cfg config.Config, bc BackendConfig) *Enhancer {
	if bc.Quality <= 0 {
		bc.Quality = cfg.EnhancedQuality
	}
	if bc.MaxWorkers <= 0 {
		bc.MaxWorkers = runtime.NumCPU()
	}
	if bc.SharpenSigma <= 0 {
		bc.SharpenSigma = 0.5
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: bc.MaxWorkers,
		MaxCacheSize:     bc.MaxCacheSize,
		ReportLeaks:      bc.ReportLeaks,
		CollectStats:     true,
	})
	return &Enhancer{
		cfg:          bc,
		targetWidth:  cfg.Rules.TargetWidth,
		targetHeight: cfg.Rules.TargetHeight,
	}
}

// Shutdown releases all libvips resources.  Call once at process exit.
func (e *Enhancer) Shutdown() {
	govips.Shutdown()
}

// Enhance implements core.Enhancer over the encoded source bytes.
func (e *Enhancer) Enhance(ctx context.Context, img *core.ImageBuffer) (*core.ImageBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "vips.enhance", err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryEnhance, "vips.enhance", apperrors.ErrEmptyInput)
	}

	side := img.Meta.Width
	if img.Meta.Height < side {
		side = img.Meta.Height
	}
	if side < e.targetWidth || side < e.targetHeight {
		return nil, apperrors.New(apperrors.CategoryEnhance, "vips.enhance",
			apperrors.ErrInsufficientResolution)
	}

	ref, err := govips.NewThumbnailFromBuffer(img.Data, e.targetWidth, e.targetHeight,
		govips.InterestingCentre)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "vips.thumbnail", err)
	}
	defer ref.Close()

	if err := ref.Sharpen(e.cfg.SharpenSigma, 1.0, 2.0); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "vips.sharpen", err)
	}

	ep := govips.NewJpegExportParams()
	ep.Quality = e.cfg.Quality
	ep.StripMetadata = true
	data, _, err := ref.ExportJpeg(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "vips.export", err)
	}

	// Decode back into a pixel buffer so the analysis stages can run on it.
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "vips.reload", err)
	}

	return &core.ImageBuffer{
		Data:   data,
		Image:  decoded,
		Format: core.FormatJPEG,
		Meta: core.Metadata{
			Width:     e.targetWidth,
			Height:    e.targetHeight,
			Format:    core.FormatJPEG,
			SizeBytes: int64(len(data)),
		},
		SourcePath: img.SourcePath,
	}, nil
}

var _ core.Enhancer = (*Enhancer)(nil)
