package analysis

import (
	"context"
	"image"
	"math"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	"github.com/hemannep/dvphoto/utils"
)

// PhotometricStage computes brightness statistics over the full frame and
// over the inferred background region.  The background is every sampled
// pixel outside the face bounding box; without a face region a peripheral
// margin band stands in, since the subject is presumed centered.
type PhotometricStage struct {
	Rules config.Rules
	// StrictBackground promotes background findings to error severity.
	StrictBackground bool
}

// marginFrac is the width of the peripheral band, as a fraction of each
// dimension, used when no face region is available.
const marginFrac = 0.15

func (s *PhotometricStage) Name() string { return StagePhotometric }

func (s *PhotometricStage) Run(ctx context.Context, a *core.Analysis) (core.StageReport, error) {
	report := core.StageReport{
		Stage:    s.Name(),
		Measures: map[string]float64{},
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	img := a.Image.Image
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return report, nil
	}

	var faceBox image.Rectangle
	hasFace := a.Face != nil
	if hasFace {
		faceBox = a.Face.Box
	}

	// Sampling stride bounds the cost on oversized inputs; at the target
	// 600x600 every pixel is visited.
	stride := 1
	if w*h > 1<<20 {
		stride = int(math.Sqrt(float64(w*h) / float64(1<<20)))
		if stride < 1 {
			stride = 1
		}
	}

	marginX := int(float64(w) * marginFrac)
	marginY := int(float64(h) * marginFrac)

	var full, back welford
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := utils.Luminance(r, g, b)
			full.add(luma)

			if hasFace {
				if !(image.Point{X: x, Y: y}).In(faceBox) {
					back.add(luma)
				}
			} else if x < bounds.Min.X+marginX || x >= bounds.Max.X-marginX ||
				y < bounds.Min.Y+marginY || y >= bounds.Max.Y-marginY {
				back.add(luma)
			}
		}
	}

	stats := &core.PhotometricStats{
		AvgBrightness:        full.mean(),
		Variance:             full.variance(),
		BackgroundBrightness: back.mean(),
		BackgroundVariance:   back.variance(),
		BackgroundSampled:    hasFace,
	}
	a.Photo = stats

	report.Measures[MeasureBrightness] = stats.AvgBrightness
	report.Measures[MeasureVariance] = stats.Variance
	report.Measures[MeasureBackBrightness] = stats.BackgroundBrightness
	report.Measures[MeasureBackVariance] = stats.BackgroundVariance

	if stats.AvgBrightness < s.Rules.MinBrightness {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeImageTooDark))
	} else if stats.AvgBrightness > s.Rules.MaxBrightness {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeImageTooBright))
	}
	if stats.Variance > s.Rules.MaxImageVariance {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeShadowsDetected))
	}
	if stats.BackgroundBrightness < s.Rules.MinBackgroundBrightness {
		report.Findings = append(report.Findings, s.backgroundFinding(core.CodeBackgroundNotPlain))
	}
	if stats.BackgroundVariance > s.Rules.MaxBackgroundVariance {
		report.Findings = append(report.Findings, s.backgroundFinding(core.CodeComplexBackground))
	}
	return report, nil
}

func (s *PhotometricStage) backgroundFinding(code core.FindingCode) core.Finding {
	if s.StrictBackground {
		return core.AsError(code)
	}
	return core.NewFinding(code)
}

// welford accumulates mean and variance in a single pass.
type welford struct {
	n  float64
	mu float64
	m2 float64
}

func (w *welford) add(v float64) {
	w.n++
	delta := v - w.mu
	w.mu += delta / w.n
	w.m2 += delta * (v - w.mu)
}

func (w *welford) mean() float64 {
	return w.mu
}

func (w *welford) variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / w.n
}
