// Package config holds the single named configuration structure for the
// validation pipeline.  Every threshold and weight the stages consult lives
// here so profiles (adult vs. baby) can be tuned and tested independently.
package config

import (
	"errors"
	"time"
)

// Category names the scoring buckets used by the weight table.
type Category string

const (
	CategoryDimensions Category = "dimensions"
	CategoryFileSize   Category = "file_size"
	CategoryBackground Category = "background"
	CategoryFace       Category = "face_detection"
	CategoryLighting   Category = "lighting"
	CategoryShadows    Category = "shadows"
)

// Rules carries every compliance threshold consulted by the analysis stages.
// All fields are read-only once the pipeline starts.
type Rules struct {
	// Dimension / encoding targets (exact match required, no tolerance).
	TargetWidth  int
	TargetHeight int

	// File size bounds for the encoded source bytes.
	MinFileSizeKB int
	MaxFileSizeKB int

	// Face framing band: detected face area divided by image area.
	MinFaceRatio float64
	MaxFaceRatio float64

	// Face detection.
	MinFaceConfidence float64
	// Centering: allowed offset of the face-box center from the image
	// center, as a fraction of the image dimension per axis.  Beyond
	// ExtremeCenterOffset the condition is an error rather than a warning.
	MaxCenterOffset     float64
	ExtremeCenterOffset float64

	// Photometrics over the full frame.
	MinBrightness    float64
	MaxBrightness    float64
	MaxImageVariance float64

	// Photometrics over the inferred background region.
	MinBackgroundBrightness float64
	MaxBackgroundVariance   float64
}

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Default() and override what they need.
type Config struct {
	// Compliance thresholds for the active profile.
	Rules Rules

	// BabyMode selects the relaxed framing band for infant photos.  It is
	// threshold-only: scoring weights are identical in both modes.
	BabyMode bool

	// Weights is the category→weight table summing to 100.
	Weights map[Category]float64

	// ValidityThreshold is the minimum score a photo with zero errors must
	// still reach to be valid.
	ValidityThreshold float64

	// StrictBackground promotes background findings from warnings to errors.
	StrictBackground bool

	// EnhancedQuality is the JPEG quality for Enhancer output.
	EnhancedQuality int

	// Worker pool controls for batch / async validation.
	MaxConcurrent     int           // concurrent validations; default 3
	QueueSize         int           // max queued jobs before backpressure
	ValidationTimeout time.Duration // per-validation deadline; default 30s

	// Streaming / memory limits for source reads.
	MaxImageBytes int64 // 0 = no limit
	ChunkSize     int   // streaming chunk size in bytes; default 32 KiB

	LogLevel string // "debug", "info", "warn", "error"
}

// AdultRules returns the canonical DV thresholds for adult photos.
func AdultRules() Rules {
	return Rules{
		TargetWidth:             600,
		TargetHeight:            600,
		MinFileSizeKB:           10,
		MaxFileSizeKB:           240,
		MinFaceRatio:            0.50,
		MaxFaceRatio:            0.69,
		MinFaceConfidence:       0.70,
		MaxCenterOffset:         0.08,
		ExtremeCenterOffset:     0.20,
		MinBrightness:           80,
		MaxBrightness:           220,
		MaxImageVariance:        2000,
		MinBackgroundBrightness: 180,
		MaxBackgroundVariance:   1000,
	}
}

// BabyRules returns the relaxed framing band for infant and toddler photos.
// Only the framing and centering thresholds differ from AdultRules.
func BabyRules() Rules {
	r := AdultRules()
	r.MinFaceRatio = 0.40
	r.MaxFaceRatio = 0.80
	r.MaxCenterOffset = 0.12
	r.ExtremeCenterOffset = 0.25
	return r
}

// DefaultWeights returns the canonical category weight table (sums to 100).
func DefaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryDimensions: 20,
		CategoryFileSize:   15,
		CategoryBackground: 20,
		CategoryFace:       25,
		CategoryLighting:   15,
		CategoryShadows:    5,
	}
}

// Default returns a Config populated with the canonical DV profile.
func Default() Config {
	return Config{
		Rules:             AdultRules(),
		Weights:           DefaultWeights(),
		ValidityThreshold: 80,
		EnhancedQuality:   95,
		MaxConcurrent:     3,
		QueueSize:         64,
		ValidationTimeout: 30 * time.Second,
		MaxImageBytes:     16 * 1024 * 1024,
		ChunkSize:         32 * 1024,
		LogLevel:          "info",
	}
}

// Baby returns the default configuration with the infant threshold profile.
func Baby() Config {
	cfg := Default()
	cfg.BabyMode = true
	cfg.Rules = BabyRules()
	return cfg
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.Rules.TargetWidth <= 0 || c.Rules.TargetHeight <= 0 {
		return errors.New("config: target dimensions must be positive")
	}
	if c.Rules.MinFileSizeKB < 0 || c.Rules.MaxFileSizeKB <= c.Rules.MinFileSizeKB {
		return errors.New("config: file size bounds must satisfy 0 <= min < max")
	}
	if c.Rules.MinFaceRatio < 0 || c.Rules.MaxFaceRatio > 1 || c.Rules.MinFaceRatio >= c.Rules.MaxFaceRatio {
		return errors.New("config: face ratio band must satisfy 0 <= min < max <= 1")
	}
	if c.Rules.MinFaceConfidence < 0 || c.Rules.MinFaceConfidence > 1 {
		return errors.New("config: MinFaceConfidence must be within [0, 1]")
	}
	if c.Rules.MinBrightness < 0 || c.Rules.MaxBrightness > 255 || c.Rules.MinBrightness >= c.Rules.MaxBrightness {
		return errors.New("config: brightness band must satisfy 0 <= min < max <= 255")
	}
	if c.ValidityThreshold < 0 || c.ValidityThreshold > 100 {
		return errors.New("config: ValidityThreshold must be within [0, 100]")
	}
	if c.EnhancedQuality < 1 || c.EnhancedQuality > 100 {
		return errors.New("config: EnhancedQuality must be between 1 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	var total float64
	for cat, w := range c.Weights {
		if w < 0 {
			return errors.New("config: negative weight for category " + string(cat))
		}
		total += w
	}
	if len(c.Weights) > 0 && (total < 99.999 || total > 100.001) {
		return errors.New("config: category weights must sum to 100")
	}
	return nil
}
