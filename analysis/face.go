package analysis

import (
	"context"
	"sort"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// FaceStage locates the authoritative face region via the pluggable
// detector.  Zero candidates above the confidence threshold is a critical
// finding; so is more than one, but the best candidate still feeds the
// downstream stages so partial diagnostics remain available.
type FaceStage struct {
	Detector core.FaceDetector
	Rules    config.Rules
}

func (s *FaceStage) Name() string { return StageFace }

func (s *FaceStage) Run(ctx context.Context, a *core.Analysis) (core.StageReport, error) {
	report := core.StageReport{
		Stage:    s.Name(),
		Measures: map[string]float64{},
	}

	if s.Detector == nil {
		return report, apperrors.New(apperrors.CategoryDetect, s.Name(), apperrors.ErrNoDetector)
	}

	candidates, err := s.Detector.Detect(ctx, a.Image.Image)
	if err != nil {
		return report, apperrors.Wrap(apperrors.CategoryDetect, s.Name(), err)
	}

	accepted := candidates[:0:0]
	for _, c := range candidates {
		if c.Confidence >= s.Rules.MinFaceConfidence {
			accepted = append(accepted, c)
		}
	}
	// Highest confidence first; stable so equal-confidence candidates keep
	// detector order and results stay deterministic.
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Confidence > accepted[j].Confidence
	})

	a.FaceCount = len(accepted)
	report.Measures[MeasureFaceCount] = float64(len(accepted))

	switch {
	case len(accepted) == 0:
		report.Findings = append(report.Findings, core.NewFinding(core.CodeNoFaceDetected))
	case len(accepted) > 1:
		report.Findings = append(report.Findings, core.NewFinding(core.CodeMultipleFaces))
		best := accepted[0]
		a.Face = &best
		report.Measures[MeasureConfidence] = best.Confidence
	default:
		best := accepted[0]
		a.Face = &best
		report.Measures[MeasureConfidence] = best.Confidence
	}
	return report, nil
}
