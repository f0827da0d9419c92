package analysis

import (
	"math"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	"github.com/hemannep/dvphoto/utils"
)

// Scorer combines the stage findings and raw measurements into the weighted
// compliance score and the final ValidationResult.  Scoring logic lives
// only here; the stages just measure and classify.
type Scorer struct {
	cfg config.Config
}

// NewScorer returns a Scorer bound to the given configuration.
func NewScorer(cfg config.Config) *Scorer { return &Scorer{cfg: cfg} }

// Aggregate implements core.Aggregator.
func (s *Scorer) Aggregate(a *core.Analysis) *core.ValidationResult {
	findings := a.Findings()

	var errs, warns []core.Finding
	for _, f := range findings {
		if f.IsError() {
			errs = append(errs, f)
		} else {
			warns = append(warns, f)
		}
	}

	penalties := s.penalties(a, findings)

	var score float64
	for cat, weight := range s.cfg.Weights {
		p := utils.Clamp(penalties[cat], 0, 1)
		score += weight * (1 - p)
	}
	score = utils.Clamp(score, 0, 100)

	return &core.ValidationResult{
		IsValid:  len(errs) == 0 && score >= s.cfg.ValidityThreshold,
		Score:    score,
		Errors:   errs,
		Warnings: warns,
		Details:  s.details(a),
		Stages:   a.Reports,
	}
}

// penalties computes one penalty in [0, 1] per scoring category.  A
// critical finding in a category forces 1.0; otherwise the penalty grades
// how far the continuous measurement sits outside its valid band, halved
// for advisory-only conditions.
func (s *Scorer) penalties(a *core.Analysis, findings []core.Finding) map[config.Category]float64 {
	r := s.cfg.Rules
	p := make(map[config.Category]float64, len(s.cfg.Weights))

	for _, f := range findings {
		if f.Critical {
			p[categoryOf(f)] = 1
		}
	}

	bump := func(cat config.Category, v float64) {
		if v > p[cat] {
			p[cat] = v
		}
	}

	// Face: framing band, centering, pass-through flags.
	if ratio, ok := measure(a, StageFraming, MeasureFaceRatio); ok {
		bump(config.CategoryFace, gradedBand(ratio, r.MinFaceRatio, r.MaxFaceRatio))
	}
	if offset, ok := measure(a, StageFraming, MeasureCenterOffset); ok {
		grade := gradedBand(offset, 0, r.MaxCenterOffset)
		if offset <= r.ExtremeCenterOffset {
			grade *= advisoryScale
		}
		bump(config.CategoryFace, grade)
	}
	for _, f := range findings {
		switch f.Code {
		case core.CodeEyesClosed:
			bump(config.CategoryFace, 0.75)
		case core.CodeHeadTilted, core.CodeExpressionNotNeutral:
			bump(config.CategoryFace, 0.25)
		}
	}

	// Lighting and shadows.
	if b, ok := measure(a, StagePhotometric, MeasureBrightness); ok {
		bump(config.CategoryLighting, gradedBand(b, r.MinBrightness, r.MaxBrightness))
	}
	if v, ok := measure(a, StagePhotometric, MeasureVariance); ok {
		bump(config.CategoryShadows, advisoryScale*gradedHigh(v, r.MaxImageVariance))
	}

	// Background.
	backScale := advisoryScale
	if s.cfg.StrictBackground {
		backScale = 1
	}
	if b, ok := measure(a, StagePhotometric, MeasureBackBrightness); ok {
		bump(config.CategoryBackground, backScale*gradedLow(b, r.MinBackgroundBrightness, 255))
	}
	if v, ok := measure(a, StagePhotometric, MeasureBackVariance); ok {
		bump(config.CategoryBackground, backScale*gradedHigh(v, r.MaxBackgroundVariance))
	}

	return p
}

// advisoryScale halves the graduated penalty for conditions reported as
// warnings so advisory issues lower the score without dominating it.
const advisoryScale = 0.5

// gradedBand returns 0 while v sits inside [lo, hi] and a penalty rising
// from 0.5 at the band edge to 1.0 one half-band-width beyond it.
func gradedBand(v, lo, hi float64) float64 {
	if v >= lo && v <= hi {
		return 0
	}
	half := (hi - lo) / 2
	if half <= 0 {
		return 1
	}
	var dist float64
	if v < lo {
		dist = lo - v
	} else {
		dist = v - hi
	}
	return 0.5 + 0.5*math.Min(1, dist/half)
}

// gradedHigh grades a one-sided upper bound: 0 at or below max, rising to
// 1.0 at twice the bound.
func gradedHigh(v, max float64) float64 {
	if max <= 0 || v <= max {
		return 0
	}
	return 0.5 + 0.5*math.Min(1, (v-max)/max)
}

// gradedLow grades a one-sided lower bound with ceiling as the scale: 0 at
// or above min, rising to 1.0 when the shortfall spans the headroom above
// the bound.
func gradedLow(v, min, ceiling float64) float64 {
	if v >= min {
		return 0
	}
	scale := ceiling - min
	if scale <= 0 {
		return 1
	}
	return 0.5 + 0.5*math.Min(1, (min-v)/scale)
}

// categoryOf maps a finding onto its scoring bucket.  Format findings are
// graded with the dimension bucket (both are encoding compliance);
// position and expression findings belong to the face bucket; the shadows
// code has its own small bucket inside the lighting kind.
func categoryOf(f core.Finding) config.Category {
	if f.Code == core.CodeShadowsDetected {
		return config.CategoryShadows
	}
	switch f.Kind {
	case core.KindDimension, core.KindFormat:
		return config.CategoryDimensions
	case core.KindFileSize:
		return config.CategoryFileSize
	case core.KindFace, core.KindPosition, core.KindExpression:
		return config.CategoryFace
	case core.KindBackground:
		return config.CategoryBackground
	default:
		return config.CategoryLighting
	}
}

// details flattens the raw stage measurements into the serializable
// per-stage detail structure.
func (s *Scorer) details(a *core.Analysis) core.Details {
	r := s.cfg.Rules

	width, _ := measure(a, StageChecks, MeasureWidth)
	height, _ := measure(a, StageChecks, MeasureHeight)
	sizeKB, _ := measure(a, StageChecks, MeasureSizeKB)
	ratio, hasRatio := measure(a, StageFraming, MeasureFaceRatio)
	brightness, _ := measure(a, StagePhotometric, MeasureBrightness)
	variance, _ := measure(a, StagePhotometric, MeasureVariance)
	backBrightness, _ := measure(a, StagePhotometric, MeasureBackBrightness)
	backVariance, _ := measure(a, StagePhotometric, MeasureBackVariance)

	return core.Details{
		Dimensions: core.DimensionDetail{
			Width:   int(width),
			Height:  int(height),
			IsValid: int(width) == r.TargetWidth && int(height) == r.TargetHeight,
		},
		FileSize: core.FileSizeDetail{
			SizeKB:  sizeKB,
			IsValid: sizeKB >= float64(r.MinFileSizeKB) && sizeKB <= float64(r.MaxFileSizeKB),
		},
		Face: core.FaceDetail{
			FaceRatio: ratio,
			Count:     a.FaceCount,
			IsValid:   a.FaceCount == 1 && hasRatio && ratio >= r.MinFaceRatio && ratio <= r.MaxFaceRatio,
		},
		Background: core.BackgroundDetail{
			AvgBrightness: backBrightness,
			Variance:      backVariance,
			IsValid:       backBrightness >= r.MinBackgroundBrightness && backVariance <= r.MaxBackgroundVariance,
		},
		Lighting: core.LightingDetail{
			AvgBrightness: brightness,
			Variance:      variance,
			IsValid: brightness >= r.MinBrightness && brightness <= r.MaxBrightness &&
				variance <= r.MaxImageVariance,
		},
	}
}

// measure looks up one raw measurement by stage and key.
func measure(a *core.Analysis, stage, key string) (float64, bool) {
	for _, rep := range a.Reports {
		if rep.Stage != stage {
			continue
		}
		v, ok := rep.Measures[key]
		return v, ok
	}
	return 0, false
}

var _ core.Aggregator = (*Scorer)(nil)
