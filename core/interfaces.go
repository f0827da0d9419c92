package core

import (
	"context"
	"image"
	"io"
	"time"
)

// Decoder converts raw bytes / a reader into an in-memory ImageBuffer.
// Implementations live in adapters/decoder/.
type Decoder interface {
	// Decode reads from r and returns a decoded ImageBuffer.
	Decode(ctx context.Context, r io.Reader) (*ImageBuffer, error)
	// CanDecode reports whether this decoder handles the given format.
	CanDecode(format Format) bool
}

// Encoder serialises an ImageBuffer to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageBuffer, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
}

// FaceDetector is the pluggable face location capability.  The pipeline
// only requires candidates with normalized confidence; the detection
// technique behind it (cascade classifier, ML model, remote service) is an
// external concern.  Implementations live in adapters/detect/.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) ([]FaceRegion, error)
}

// Stage is one analysis pass over the accumulating Analysis.  Stages must
// be stateless and safe for concurrent use; they never abort on compliance
// conditions; those become findings on the returned report.
type Stage interface {
	Name() string
	Run(ctx context.Context, a *Analysis) (StageReport, error)
}

// Aggregator turns a completed Analysis into a ValidationResult.
type Aggregator interface {
	Aggregate(a *Analysis) *ValidationResult
}

// Enhancer produces a normalized copy of an image suitable for
// re-validation.  It never mutates its input buffer.
type Enhancer interface {
	Enhance(ctx context.Context, img *ImageBuffer) (*ImageBuffer, error)
}

// Hook is an optional observer invoked around analysis stages.
type Hook interface {
	BeforeStage(ctx context.Context, stageName string, a *Analysis)
	AfterStage(ctx context.Context, stageName string, a *Analysis, d time.Duration, err error)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordStageTime(stageName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordScore(score float64)
	RecordError(stageName string, category string)
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// PhotoKey uniquely identifies a stored photo and its validation summary.
type PhotoKey struct {
	Album string
	Name  string
}

// ReportStore persists the only on-disk artifacts this module owns: an
// encoded JPEG plus its validation summary.  Implementations live in
// adapters/storage/.
type ReportStore interface {
	Save(ctx context.Context, key PhotoKey, jpegData []byte, result *ValidationResult) error
	Load(ctx context.Context, key PhotoKey) ([]byte, *ValidationResult, error)
	Delete(ctx context.Context, key PhotoKey) error
	Exists(ctx context.Context, key PhotoKey) (bool, error)
}
