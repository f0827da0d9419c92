// Package enhance implements the optional normalization pre-pass: center
// square crop, resize to the exact submission dimensions, a bounded
// photometric adjustment, and a light sharpen.  The output is a new buffer;
// callers re-run the full pipeline against it to obtain a fresh result.
package enhance

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
	"github.com/hemannep/dvphoto/utils"
)

// Options tunes the corrective transforms.  Zero values select defaults.
type Options struct {
	TargetWidth  int
	TargetHeight int
	Quality      int // JPEG quality for the normalized output

	// TargetBrightness is the luma the bounded brightness nudge aims for.
	TargetBrightness float64
	// MaxBrightnessAdjust caps the nudge, in imaging's percent units.
	MaxBrightnessAdjust float64
	// Contrast and Saturation are mild fixed adjustments in percent.
	Contrast   float64
	Saturation float64
	// SharpenSigma controls the final sharpening convolution.
	SharpenSigma float64
}

func (o *Options) defaults() {
	if o.TargetWidth <= 0 {
		o.TargetWidth = 600
	}
	if o.TargetHeight <= 0 {
		o.TargetHeight = 600
	}
	if o.Quality <= 0 {
		o.Quality = 95
	}
	if o.TargetBrightness <= 0 {
		o.TargetBrightness = 150
	}
	if o.MaxBrightnessAdjust <= 0 {
		o.MaxBrightnessAdjust = 12
	}
	if o.Contrast == 0 {
		o.Contrast = 5
	}
	if o.Saturation == 0 {
		o.Saturation = 3
	}
	if o.SharpenSigma <= 0 {
		o.SharpenSigma = 0.6
	}
}

// Enhancer normalizes an image for re-validation.  It never mutates its
// input and never upscales: sources smaller than the target on their
// shorter side fail with ErrInsufficientResolution, since upscaling would
// misrepresent compliance.
type Enhancer struct {
	opts    Options
	encoder core.Encoder
}

// New creates an Enhancer targeting the configured submission dimensions.
func New(cfg config.Config, enc core.Encoder, opts Options) *Enhancer {
	if opts.TargetWidth == 0 {
		opts.TargetWidth = cfg.Rules.TargetWidth
	}
	if opts.TargetHeight == 0 {
		opts.TargetHeight = cfg.Rules.TargetHeight
	}
	if opts.Quality == 0 {
		opts.Quality = cfg.EnhancedQuality
	}
	opts.defaults()
	return &Enhancer{opts: opts, encoder: enc}
}

// Enhance implements core.Enhancer.
func (e *Enhancer) Enhance(ctx context.Context, img *core.ImageBuffer) (*core.ImageBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEnhance, "enhance", err)
	}
	if img == nil || img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEnhance, "enhance", apperrors.ErrEmptyInput)
	}

	w, h := img.Meta.Width, img.Meta.Height
	side := w
	if h < w {
		side = h
	}
	if side < e.opts.TargetWidth || side < e.opts.TargetHeight {
		return nil, apperrors.New(apperrors.CategoryEnhance, "enhance",
			apperrors.ErrInsufficientResolution)
	}

	out := imaging.CropCenter(img.Image, side, side)
	out = imaging.Resize(out, e.opts.TargetWidth, e.opts.TargetHeight, imaging.Lanczos)

	if delta := e.brightnessDelta(out); delta != 0 {
		out = imaging.AdjustBrightness(out, delta)
	}
	out = imaging.AdjustContrast(out, e.opts.Contrast)
	out = imaging.AdjustSaturation(out, e.opts.Saturation)
	out = imaging.Sharpen(out, e.opts.SharpenSigma)

	enhanced := &core.ImageBuffer{
		Image:  out,
		Format: core.FormatJPEG,
		Meta: core.Metadata{
			Width:  e.opts.TargetWidth,
			Height: e.opts.TargetHeight,
			Format: core.FormatJPEG,
		},
		SourcePath: img.SourcePath,
	}

	data, err := e.encoder.Encode(ctx, enhanced, core.EncodeOptions{Quality: e.opts.Quality})
	if err != nil {
		return nil, err
	}
	enhanced.Data = data
	enhanced.Meta.SizeBytes = int64(len(data))
	return enhanced, nil
}

// brightnessDelta computes the bounded percentage nudge toward the target
// brightness.  Sampling every fourth pixel is plenty at 600x600.
func (e *Enhancer) brightnessDelta(img image.Image) float64 {
	bounds := img.Bounds()
	var sum, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 4 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 4 {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += utils.Luminance(r, g, b)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	avg := sum / n
	// Damped correction in imaging's percent scale (-100..100).
	delta := (e.opts.TargetBrightness - avg) / 255 * 100 * 0.4
	return utils.Clamp(delta, -e.opts.MaxBrightnessAdjust, e.opts.MaxBrightnessAdjust)
}

var _ core.Enhancer = (*Enhancer)(nil)
