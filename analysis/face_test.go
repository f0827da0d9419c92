package analysis

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/hemannep/dvphoto/adapters/detect"
	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

func faceAnalysis() *core.Analysis {
	return &core.Analysis{
		Image: &core.ImageBuffer{
			Image: image.NewRGBA(image.Rect(0, 0, 600, 600)),
			Meta:  core.Metadata{Width: 600, Height: 600},
		},
	}
}

func TestFaceStage_SingleFace(t *testing.T) {
	region := core.FaceRegion{Box: image.Rect(78, 78, 523, 523), Confidence: 0.9}
	stage := &FaceStage{
		Detector: &detect.Static{Regions: []core.FaceRegion{region}},
		Rules:    config.AdultRules(),
	}

	a := faceAnalysis()
	report, err := stage.Run(context.Background(), a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Errorf("unexpected findings: %v", report.Findings)
	}
	if a.FaceCount != 1 || a.Face == nil {
		t.Fatalf("face not recorded: count=%d face=%v", a.FaceCount, a.Face)
	}
	if a.Face.Box != region.Box {
		t.Errorf("face box: got %v, want %v", a.Face.Box, region.Box)
	}
	if report.Measures[MeasureConfidence] != 0.9 {
		t.Errorf("confidence measure: %v", report.Measures)
	}
}

func TestFaceStage_NoFace(t *testing.T) {
	stage := &FaceStage{Detector: &detect.Static{}, Rules: config.AdultRules()}

	a := faceAnalysis()
	report, err := stage.Run(context.Background(), a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Code != core.CodeNoFaceDetected {
		t.Errorf("findings: %v", report.Findings)
	}
	if a.Face != nil {
		t.Error("face set despite empty detection")
	}
}

func TestFaceStage_ConfidenceFilter(t *testing.T) {
	stage := &FaceStage{
		Detector: &detect.Static{Regions: []core.FaceRegion{
			{Box: image.Rect(0, 0, 100, 100), Confidence: 0.3},
			{Box: image.Rect(200, 200, 300, 300), Confidence: 0.69},
		}},
		Rules: config.AdultRules(),
	}

	a := faceAnalysis()
	report, err := stage.Run(context.Background(), a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.FaceCount != 0 {
		t.Errorf("face count: got %d, want 0 (all below threshold)", a.FaceCount)
	}
	if len(report.Findings) != 1 || report.Findings[0].Code != core.CodeNoFaceDetected {
		t.Errorf("findings: %v", report.Findings)
	}
}

func TestFaceStage_MultipleFacesKeepsBest(t *testing.T) {
	best := core.FaceRegion{Box: image.Rect(78, 78, 523, 523), Confidence: 0.95}
	stage := &FaceStage{
		Detector: &detect.Static{Regions: []core.FaceRegion{
			{Box: image.Rect(0, 0, 120, 120), Confidence: 0.8},
			best,
		}},
		Rules: config.AdultRules(),
	}

	a := faceAnalysis()
	report, err := stage.Run(context.Background(), a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Code != core.CodeMultipleFaces {
		t.Errorf("findings: %v", report.Findings)
	}
	if a.FaceCount != 2 {
		t.Errorf("face count: got %d, want 2", a.FaceCount)
	}
	// The best candidate still feeds downstream stages.
	if a.Face == nil || a.Face.Box != best.Box {
		t.Errorf("authoritative face: got %v, want %v", a.Face, best.Box)
	}
}

func TestFaceStage_NilDetector(t *testing.T) {
	stage := &FaceStage{Rules: config.AdultRules()}

	_, err := stage.Run(context.Background(), faceAnalysis())
	if !errors.Is(err, apperrors.ErrNoDetector) {
		t.Errorf("error: got %v, want ErrNoDetector", err)
	}
}

func TestFaceStage_DetectorError(t *testing.T) {
	boom := errors.New("cascade not loaded")
	stage := &FaceStage{
		Detector: &detect.Static{Err: boom},
		Rules:    config.AdultRules(),
	}

	_, err := stage.Run(context.Background(), faceAnalysis())
	if !errors.Is(err, boom) {
		t.Errorf("error: got %v, want wrapped detector error", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryDetect) {
		t.Errorf("error category: got %v, want detect", err)
	}
}
