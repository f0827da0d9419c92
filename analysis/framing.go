package analysis

import (
	"context"
	"math"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
)

// FramingStage grades the authoritative face region against the framing
// band: face-area ratio, centering offset, and the pass-through
// classifications richer detectors supply (head angle, eyes, expression).
// Without a face region the stage reports nothing; the missing face is
// already a critical finding from the face stage.
type FramingStage struct {
	Rules config.Rules
}

func (s *FramingStage) Name() string { return StageFraming }

func (s *FramingStage) Run(_ context.Context, a *core.Analysis) (core.StageReport, error) {
	report := core.StageReport{
		Stage:    s.Name(),
		Measures: map[string]float64{},
	}
	if a.Face == nil {
		return report, nil
	}

	img := a.Image
	face := *a.Face

	ratio := face.Ratio(img.Meta.Width, img.Meta.Height)
	report.Measures[MeasureFaceRatio] = ratio
	if ratio < s.Rules.MinFaceRatio {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeFaceTooSmall))
	} else if ratio > s.Rules.MaxFaceRatio {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeFaceTooLarge))
	}

	offset := centerOffset(face, img.Meta.Width, img.Meta.Height)
	report.Measures[MeasureCenterOffset] = offset
	if offset > s.Rules.ExtremeCenterOffset {
		report.Findings = append(report.Findings, core.AsError(core.CodeOffCenter))
	} else if offset > s.Rules.MaxCenterOffset {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeOffCenter))
	}

	// Pass-through classifications: only a definitive fail raises a finding.
	if face.HeadAngleOK == core.FlagFail {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeHeadTilted))
	}
	if face.EyesOpen == core.FlagFail {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeEyesClosed))
	}
	if face.NeutralExpression == core.FlagFail {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeExpressionNotNeutral))
	}
	return report, nil
}

// centerOffset returns the larger per-axis offset of the face-box center
// from the image center, as a fraction of the respective image dimension.
func centerOffset(face core.FaceRegion, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	c := face.Center()
	dx := math.Abs(float64(c.X)-float64(w)/2) / float64(w)
	dy := math.Abs(float64(c.Y)-float64(h)/2) / float64(h)
	return math.Max(dx, dy)
}
