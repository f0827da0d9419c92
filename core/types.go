package core

import (
	"context"
	"image"
	"io"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// Metadata holds basic information about a decoded image.
type Metadata struct {
	Width     int
	Height    int
	Format    Format
	SizeBytes int64 // byte length of the source encoding
}

// ImageBuffer is the decoded pixel grid passed through a validation run.
// It is owned exclusively by the invocation that decoded it and must not be
// mutated once the stages start; transforms produce new buffers.
type ImageBuffer struct {
	// Encoded source bytes exactly as received.
	Data   []byte
	Format Format

	// Decoded pixel buffer.
	Image image.Image

	Meta Metadata

	// SourcePath is an optional logical name carried into the result.
	SourcePath string
}

// Flag is a tri-state classification supplied by richer face detectors.
// Detectors that cannot judge a property report FlagUnknown and no finding
// is raised for it.
type Flag int8

const (
	FlagUnknown Flag = iota
	FlagPass
	FlagFail
)

// FaceRegion is one detected face candidate.
type FaceRegion struct {
	// Box is the bounding region in source pixel coordinates.
	Box image.Rectangle
	// Confidence is the detector's normalized score in [0, 1].
	Confidence float64

	// Optional classifications passed through by capable detectors.
	EyesOpen          Flag
	NeutralExpression Flag
	HeadAngleOK       Flag
}

// Ratio returns the face area divided by the image area, in [0, 1].
func (r FaceRegion) Ratio(imgW, imgH int) float64 {
	if imgW <= 0 || imgH <= 0 {
		return 0
	}
	area := float64(r.Box.Dx()) * float64(r.Box.Dy())
	ratio := area / (float64(imgW) * float64(imgH))
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// Center returns the center point of the bounding box.
func (r FaceRegion) Center() image.Point {
	return image.Point{
		X: (r.Box.Min.X + r.Box.Max.X) / 2,
		Y: (r.Box.Min.Y + r.Box.Max.Y) / 2,
	}
}

// PhotometricStats holds brightness statistics over the full frame and over
// the inferred background region.
type PhotometricStats struct {
	AvgBrightness float64 // [0, 255] over all pixels
	Variance      float64

	BackgroundBrightness float64
	BackgroundVariance   float64
	// BackgroundSampled is false when no face region was available and the
	// peripheral margin band had to stand in for the background.
	BackgroundSampled bool
}

// StageReport is the outcome of one analysis stage: its findings in the
// order they fired plus the raw measurements the scorer grades.
type StageReport struct {
	Stage    string             `json:"stage"`
	Findings []Finding          `json:"findings,omitempty"`
	Measures map[string]float64 `json:"measures,omitempty"`
	Elapsed  time.Duration      `json:"-"`
}

// Analysis accumulates state across the pipeline stages of one validation.
// Stages append their reports in execution order; that order is what makes
// the findings list deterministic.
type Analysis struct {
	Image *ImageBuffer

	// Face is the authoritative region: the highest-confidence candidate at
	// or above the confidence threshold.  Nil when nothing was detected.
	Face *FaceRegion
	// FaceCount is the number of candidates at or above the threshold.
	FaceCount int

	Photo *PhotometricStats

	Reports []StageReport
}

// Findings returns all findings across stages, preserving stage execution
// order and per-stage firing order.
func (a *Analysis) Findings() []Finding {
	var out []Finding
	for _, r := range a.Reports {
		out = append(out, r.Findings...)
	}
	return out
}

// ── Result ────────────────────────────────────────────────────────────────────

// DimensionDetail reports the measured dimensions.
type DimensionDetail struct {
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	IsValid bool `json:"isValid"`
}

// FileSizeDetail reports the measured encoded size.
type FileSizeDetail struct {
	SizeKB  float64 `json:"sizeKB"`
	IsValid bool    `json:"isValid"`
}

// FaceDetail reports face detection and framing measurements.
type FaceDetail struct {
	FaceRatio float64 `json:"faceRatio"`
	Count     int     `json:"count"`
	IsValid   bool    `json:"isValid"`
}

// BackgroundDetail reports background photometrics.
type BackgroundDetail struct {
	AvgBrightness float64 `json:"avgBrightness"`
	Variance      float64 `json:"variance"`
	IsValid       bool    `json:"isValid"`
}

// LightingDetail reports full-frame photometrics.
type LightingDetail struct {
	AvgBrightness float64 `json:"avgBrightness"`
	Variance      float64 `json:"variance"`
	IsValid       bool    `json:"isValid"`
}

// Details is the flat per-stage measurement map serialized for display and
// persistence.
type Details struct {
	Dimensions DimensionDetail  `json:"dimensions"`
	FileSize   FileSizeDetail   `json:"fileSize"`
	Face       FaceDetail       `json:"face"`
	Background BackgroundDetail `json:"background"`
	Lighting   LightingDetail   `json:"lighting"`
}

// ValidationResult is the immutable outcome of one validation run.
// Errors and Warnings preserve stage execution order and are never
// truncated here; "top N" display is a presentation concern.
type ValidationResult struct {
	IsValid  bool      `json:"isValid"`
	Score    float64   `json:"score"` // clamped to [0, 100]
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Details  Details   `json:"details"`

	SourcePath string    `json:"sourcePath,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	// Stages carries the raw per-stage reports for diagnostics.
	Stages []StageReport `json:"-"`
}

// ── Work units ────────────────────────────────────────────────────────────────

// Source abstracts where raw bytes come from (reader, file, camera buffer).
type Source struct {
	Reader      io.Reader
	ContentType string // optional hint
	Name        string // optional logical name / filename
	Size        int64  // -1 if unknown
}

// Job encapsulates a single async validation for the worker pool.
type Job struct {
	ID     string
	Ctx    context.Context //nolint:containedctx // intentional for async jobs
	Source Source
	// Enhance runs the Enhancer pre-pass and validates its output instead
	// of the raw source.
	Enhance bool
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *ValidationResult
	Err    error
}
