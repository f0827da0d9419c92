package analysis

import (
	"context"

	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
)

// ChecksStage validates dimensions, encoded byte length, and format against
// the fixed submission constants.  The four checks run independently and
// are never short-circuited, so multiple findings can co-occur.
type ChecksStage struct {
	Rules config.Rules
}

func (s *ChecksStage) Name() string { return StageChecks }

func (s *ChecksStage) Run(_ context.Context, a *core.Analysis) (core.StageReport, error) {
	img := a.Image
	sizeKB := float64(img.Meta.SizeBytes) / 1024

	report := core.StageReport{
		Stage: s.Name(),
		Measures: map[string]float64{
			MeasureWidth:  float64(img.Meta.Width),
			MeasureHeight: float64(img.Meta.Height),
			MeasureSizeKB: sizeKB,
		},
	}

	if img.Meta.Width != s.Rules.TargetWidth || img.Meta.Height != s.Rules.TargetHeight {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeInvalidDimensions))
	}
	if sizeKB > float64(s.Rules.MaxFileSizeKB) {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeFileTooLarge))
	}
	if sizeKB < float64(s.Rules.MinFileSizeKB) {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeFileTooSmall))
	}
	if img.Format != core.FormatJPEG {
		report.Findings = append(report.Findings, core.NewFinding(core.CodeWrongFormat))
	}
	return report, nil
}
