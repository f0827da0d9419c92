package dvphoto_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	dvphoto "github.com/hemannep/dvphoto"
	"github.com/hemannep/dvphoto/adapters/detect"
	"github.com/hemannep/dvphoto/config"
	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
	"github.com/hemannep/dvphoto/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

var (
	backgroundColor = color.RGBA{R: 225, G: 225, B: 225, A: 255} // luma 225
	subjectColor    = color.RGBA{R: 180, G: 150, B: 130, A: 255} // luma ~157
)

// drawPortrait renders a flat light background with a darker centered block
// standing in for the subject.
func drawPortrait(w, h int, bg color.RGBA, faceBox image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}
	for y := faceBox.Min.Y; y < faceBox.Max.Y; y++ {
		for x := faceBox.Min.X; x < faceBox.Max.X; x++ {
			img.Set(x, y, subjectColor)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// padTo appends trailing bytes after the EOI marker so the encoded size
// clears the minimum; decoders ignore trailing data.
func padTo(raw []byte, minKB int) []byte {
	want := minKB * 1024
	if len(raw) >= want {
		return raw
	}
	return append(raw, make([]byte, want-len(raw))...)
}

// compliantFaceBox is a centered box covering ~55% of a 600x600 frame,
// inside the 50-69% framing band.
func compliantFaceBox() image.Rectangle { return image.Rect(78, 78, 523, 523) }

func compliantJPEG(t *testing.T) []byte {
	t.Helper()
	img := drawPortrait(600, 600, backgroundColor, compliantFaceBox())
	return padTo(encodeJPEG(t, img), 12)
}

func newValidator(t *testing.T, cfg config.Config, regions ...core.FaceRegion) *dvphoto.Validator {
	t.Helper()
	v := dvphoto.New(cfg)
	v.SetDetector(&detect.Static{Regions: regions})
	v.Start()
	t.Cleanup(v.Stop)
	return v
}

func hasCode(findings []core.Finding, code core.FindingCode) bool {
	for _, f := range findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

// ── Compliance scenarios ──────────────────────────────────────────────────────

func TestValidate_CompliantPhoto(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.92})

	result, err := v.ValidateBytes(context.Background(), compliantJPEG(t))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Errorf("compliant photo rejected: score=%.1f errors=%v warnings=%v",
			result.Score, result.Errors, result.Warnings)
	}
	if result.Score < 80 {
		t.Errorf("score: got %.1f, want >= 80", result.Score)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if !result.Details.Dimensions.IsValid || !result.Details.Face.IsValid {
		t.Errorf("details not valid: %+v", result.Details)
	}
}

func TestValidate_WrongDimensions(t *testing.T) {
	// Scaled-down frame with the face band preserved.
	faceBox := image.Rect(52, 52, 349, 349) // ~55% of 400x400
	img := drawPortrait(400, 400, backgroundColor, faceBox)
	raw := padTo(encodeJPEG(t, img), 12)

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: faceBox, Confidence: 0.9})

	result, err := v.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Error("400x400 photo accepted")
	}
	if !hasCode(result.Errors, core.CodeInvalidDimensions) {
		t.Errorf("missing invalid_dimensions, errors=%v", result.Errors)
	}
	if result.Details.Dimensions.Width != 400 {
		t.Errorf("detail width: got %d, want 400", result.Details.Dimensions.Width)
	}
}

func TestValidate_NoFace(t *testing.T) {
	v := newValidator(t, config.Default()) // detector returns nothing

	result, err := v.ValidateBytes(context.Background(), compliantJPEG(t))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Error("photo with no detected face accepted")
	}
	if !hasCode(result.Errors, core.CodeNoFaceDetected) {
		t.Errorf("missing no_face_detected, errors=%v", result.Errors)
	}
	if result.Details.Face.Count != 0 {
		t.Errorf("face count: got %d, want 0", result.Details.Face.Count)
	}
}

func TestValidate_LowConfidenceFiltered(t *testing.T) {
	// A candidate below the confidence threshold must be discarded.
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.45})

	result, err := v.ValidateBytes(context.Background(), compliantJPEG(t))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !hasCode(result.Errors, core.CodeNoFaceDetected) {
		t.Errorf("low-confidence candidate not filtered, errors=%v", result.Errors)
	}
}

func TestValidate_MultipleFaces(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.95},
		core.FaceRegion{Box: image.Rect(0, 0, 120, 120), Confidence: 0.85})

	result, err := v.ValidateBytes(context.Background(), compliantJPEG(t))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Error("photo with two faces accepted")
	}
	if !hasCode(result.Errors, core.CodeMultipleFaces) {
		t.Errorf("missing multiple_faces, errors=%v", result.Errors)
	}
	if result.Details.Face.Count != 2 {
		t.Errorf("face count: got %d, want 2", result.Details.Face.Count)
	}
}

func TestValidate_DarkBackground(t *testing.T) {
	dark := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	img := drawPortrait(600, 600, dark, compliantFaceBox())
	raw := padTo(encodeJPEG(t, img), 12)

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	result, err := v.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !hasCode(result.Warnings, core.CodeBackgroundNotPlain) {
		t.Errorf("missing background_not_plain warning, warnings=%v", result.Warnings)
	}
	// Advisory issue: still valid, but the score must drop.
	if !result.IsValid {
		t.Errorf("dark background should be advisory, errors=%v", result.Errors)
	}
	if result.Score >= 100 {
		t.Errorf("score not reduced: %.1f", result.Score)
	}
}

func TestValidate_StrictBackground(t *testing.T) {
	dark := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	img := drawPortrait(600, 600, dark, compliantFaceBox())
	raw := padTo(encodeJPEG(t, img), 12)

	cfg := config.Default()
	cfg.StrictBackground = true
	v := newValidator(t, cfg,
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	result, err := v.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Error("strict mode accepted a dark background")
	}
	if !hasCode(result.Errors, core.CodeBackgroundNotPlain) {
		t.Errorf("background_not_plain not promoted to error, errors=%v", result.Errors)
	}
}

func TestValidate_BabyMode(t *testing.T) {
	// ~45% face ratio: below the adult band, inside the infant band.
	smallBox := image.Rect(99, 99, 501, 501)
	img := drawPortrait(600, 600, backgroundColor, smallBox)
	raw := padTo(encodeJPEG(t, img), 12)
	region := core.FaceRegion{Box: smallBox, Confidence: 0.9}

	adult := newValidator(t, config.Default(), region)
	result, err := adult.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("adult Validate: %v", err)
	}
	if result.IsValid {
		t.Error("adult profile accepted a 45% face ratio")
	}
	if !hasCode(result.Errors, core.CodeFaceTooSmall) {
		t.Errorf("missing face_too_small, errors=%v", result.Errors)
	}

	baby := newValidator(t, config.Baby(), region)
	result, err = baby.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("baby Validate: %v", err)
	}
	if !result.IsValid {
		t.Errorf("baby profile rejected a 45%% face ratio: score=%.1f errors=%v",
			result.Score, result.Errors)
	}
}

func TestValidate_PNGInput(t *testing.T) {
	img := drawPortrait(600, 600, backgroundColor, compliantFaceBox())
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	result, err := v.ValidateBytes(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Error("PNG submission accepted")
	}
	if !hasCode(result.Errors, core.CodeWrongFormat) {
		t.Errorf("missing wrong_format, errors=%v", result.Errors)
	}
}

func TestValidate_UnsupportedFormat(t *testing.T) {
	v := newValidator(t, config.Default())

	_, err := v.ValidateBytes(context.Background(), []byte("definitely not an image"))
	if err == nil {
		t.Fatal("expected hard decode failure, got nil")
	}
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Errorf("error: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	v := newValidator(t, config.Default())

	_, err := v.ValidateBytes(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty input, got nil")
	}
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Errorf("error: got %v, want ErrEmptyInput", err)
	}
}

func TestValidate_ContextCancel(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := v.ValidateBytes(ctx, compliantJPEG(t))
	if err == nil {
		t.Error("expected context cancellation error, got nil")
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})
	raw := compliantJPEG(t)

	first, err := v.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, err := v.ValidateBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if first.Score != second.Score || first.IsValid != second.IsValid {
		t.Errorf("results differ: first score=%.2f valid=%v, second score=%.2f valid=%v",
			first.Score, first.IsValid, second.Score, second.IsValid)
	}
}

// ── Enhancement ───────────────────────────────────────────────────────────────

func TestValidateEnhanced(t *testing.T) {
	// Oversized but proportional source; the enhancer must bring it to the
	// exact submission dimensions.
	faceBox := image.Rect(91, 91, 610, 610)
	img := drawPortrait(700, 700, backgroundColor, faceBox)
	raw := padTo(encodeJPEG(t, img), 12)

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	result, enhanced, err := v.ValidateEnhanced(context.Background(), dvphoto.FromBytes(raw))
	if err != nil {
		t.Fatalf("ValidateEnhanced: %v", err)
	}
	if enhanced.Meta.Width != 600 || enhanced.Meta.Height != 600 {
		t.Errorf("enhanced dimensions: %dx%d, want 600x600",
			enhanced.Meta.Width, enhanced.Meta.Height)
	}
	if len(enhanced.Data) == 0 {
		t.Error("enhanced encoding is empty")
	}
	if !result.Details.Dimensions.IsValid {
		t.Errorf("enhanced output failed the dimension check: %+v", result.Details.Dimensions)
	}
}

func TestValidateEnhanced_TooSmall(t *testing.T) {
	img := drawPortrait(400, 400, backgroundColor, image.Rect(52, 52, 349, 349))
	raw := encodeJPEG(t, img)

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	_, _, err := v.ValidateEnhanced(context.Background(), dvphoto.FromBytes(raw))
	if !errors.Is(err, apperrors.ErrInsufficientResolution) {
		t.Errorf("error: got %v, want ErrInsufficientResolution", err)
	}
}

// ── Concurrency / batch / async ───────────────────────────────────────────────

func TestValidate_ConcurrentSafety(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})
	raw := compliantJPEG(t)

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = v.ValidateBytes(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: %v", i, err)
		}
	}
}

func TestBatch(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})
	raw := compliantJPEG(t)

	sources := make([]core.Source, 5)
	for i := range sources {
		sources[i] = dvphoto.FromReader(bytes.NewReader(raw))
	}

	results, errs := v.Batch(context.Background(), sources)
	for i, err := range errs {
		if err != nil {
			t.Errorf("batch[%d]: %v", i, err)
		}
		if results[i] == nil {
			t.Errorf("batch[%d]: nil result", i)
		} else if !results[i].IsValid {
			t.Errorf("batch[%d]: rejected, errors=%v", i, results[i].Errors)
		}
	}
}

func TestWorkerPool_Async(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})
	raw := compliantJPEG(t)

	resultCh := make(chan core.JobResult, 1)
	job := core.Job{
		ID:       "test-job-1",
		Ctx:      context.Background(),
		Source:   dvphoto.FromReader(bytes.NewReader(raw)),
		ResultCh: resultCh,
	}

	if err := v.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			t.Fatalf("async job error: %v", res.Err)
		}
		if res.JobID != "test-job-1" {
			t.Errorf("job id: got %q", res.JobID)
		}
		if !res.Result.IsValid {
			t.Errorf("async result rejected, errors=%v", res.Result.Errors)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("async job timed out")
	}
}

// ── Hooks / Metrics ───────────────────────────────────────────────────────────

func TestMetricsHook(t *testing.T) {
	m := hooks.NewInMemoryMetrics()

	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})
	v.SetMetrics(m)
	v.AddHook(hooks.NewMetricsHook(m))

	if _, err := v.ValidateBytes(context.Background(), compliantJPEG(t)); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	snap := m.Snapshot()
	if snap.StageCalls["checks"] == 0 {
		t.Error("checks stage was not recorded in metrics")
	}
	if snap.StageCalls["face"] == 0 {
		t.Error("face stage was not recorded in metrics")
	}
	if snap.ScoreCount == 0 {
		t.Error("score was not recorded in metrics")
	}
}

func TestStats(t *testing.T) {
	v := newValidator(t, config.Default(),
		core.FaceRegion{Box: compliantFaceBox(), Confidence: 0.9})

	if _, err := v.ValidateBytes(context.Background(), compliantJPEG(t)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	processed, _ := v.Stats()
	if processed != 1 {
		t.Errorf("processed count: got %d, want 1", processed)
	}
}

// ── Config validation ─────────────────────────────────────────────────────────

func TestConfigValidation(t *testing.T) {
	cfg := config.Default()
	cfg.EnhancedQuality = 0 // invalid
	if err := config.Validate(cfg); err == nil {
		t.Error("expected validation error for quality=0")
	}

	cfg = config.Default()
	cfg.Weights[config.CategoryFace] = 99 // weights no longer sum to 100
	if err := config.Validate(cfg); err == nil {
		t.Error("expected validation error for broken weight table")
	}
}

// ── Benchmarks ────────────────────────────────────────────────────────────────

func BenchmarkValidate(b *testing.B) {
	cfg := config.Default()
	v := dvphoto.New(cfg)
	v.SetDetector(&detect.Static{Regions: []core.FaceRegion{
		{Box: compliantFaceBox(), Confidence: 0.9},
	}})
	v.Start()
	defer v.Stop()

	img := drawPortrait(600, 600, backgroundColor, compliantFaceBox())
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	raw := padTo(buf.Bytes(), 12)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := v.ValidateBytes(context.Background(), raw); err != nil {
			b.Fatalf("Validate: %v", err)
		}
	}
}
