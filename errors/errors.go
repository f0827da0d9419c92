package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode    Category = "decode"
	CategoryEncode    Category = "encode"
	CategoryDetect    Category = "detect"
	CategoryAnalyze   Category = "analyze"
	CategoryEnhance   Category = "enhance"
	CategoryStorage   Category = "storage"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
	CategoryInput     Category = "input"
)

// PipelineError is the structured error type used throughout the module.
// It marks hard pipeline failures; compliance findings are never Go errors,
// they accumulate on the ValidationResult instead.
type PipelineError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// New creates a non-retryable PipelineError.
func New(category Category, op string, err error) *PipelineError {
	return &PipelineError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable PipelineError.
func Transient(op string, err error) *PipelineError {
	return &PipelineError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat      = errors.New("unsupported image format")
	ErrEmptyInput             = errors.New("empty input")
	ErrInsufficientResolution = errors.New("insufficient source resolution")
	ErrNoDetector             = errors.New("no face detector configured")
	ErrNoEnhancer             = errors.New("no enhancer configured")
	ErrValidationTimeout      = errors.New("validation timed out")
	ErrWorkerPoolFull         = errors.New("worker pool queue full")
	ErrStorageUnavailable     = errors.New("storage unavailable")
)
