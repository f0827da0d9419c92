// Package analysis implements the validation pipeline stages and the
// weighted scorer.  Each stage is an independent pure evaluator: it reads
// the accumulating Analysis, computes raw measurements, and reports
// findings without short-circuiting, so one pass yields the complete
// diagnostic list.  Scoring happens solely in the Scorer.
package analysis

import (
	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
)

// Stage names, also used as metric and report labels.
const (
	StageChecks      = "checks"
	StageFace        = "face"
	StageFraming     = "framing"
	StagePhotometric = "photometric"
)

// Measurement keys shared between stages and the scorer.
const (
	MeasureWidth          = "width"
	MeasureHeight         = "height"
	MeasureSizeKB         = "size_kb"
	MeasureFaceCount      = "face_count"
	MeasureConfidence     = "confidence"
	MeasureFaceRatio      = "face_ratio"
	MeasureCenterOffset   = "center_offset"
	MeasureBrightness     = "brightness"
	MeasureVariance       = "variance"
	MeasureBackBrightness = "background_brightness"
	MeasureBackVariance   = "background_variance"
)

// Stages returns the canonical ordered stage sequence for one validation:
// numeric checks, face location, framing, photometrics.  The order is fixed
// so findings are deterministic across runs on identical input.
func Stages(cfg config.Config, detector core.FaceDetector) []core.Stage {
	return []core.Stage{
		&ChecksStage{Rules: cfg.Rules},
		&FaceStage{Detector: detector, Rules: cfg.Rules},
		&FramingStage{Rules: cfg.Rules},
		&PhotometricStage{Rules: cfg.Rules, StrictBackground: cfg.StrictBackground},
	}
}
