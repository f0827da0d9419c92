// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hemannep/dvphoto/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each validation stage.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStage(_ context.Context, stageName string, a *core.Analysis) {
	h.logger.Debug("validation.stage.start",
		"stage", stageName,
		"format", a.Image.Format,
		"width", a.Image.Meta.Width,
		"height", a.Image.Meta.Height,
	)
}

func (h *LoggingHook) AfterStage(_ context.Context, stageName string, a *core.Analysis, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("validation.stage.error",
			"stage", stageName,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	findings := 0
	if n := len(a.Reports); n > 0 {
		findings = len(a.Reports[n-1].Findings)
	}
	h.logger.Debug("validation.stage.done",
		"stage", stageName,
		"duration_ms", d.Milliseconds(),
		"findings", findings,
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stageDurationsMs map[string]int64 // cumulative ms per stage
	stageCalls       map[string]int64 // call count per stage
	stageErrors      map[string]int64

	totalThroughputB int64

	scoreCount int64 // guarded by mu; float sums are not atomic-friendly
	scoreTotal float64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stageDurationsMs: make(map[string]int64),
		stageCalls:       make(map[string]int64),
		stageErrors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordStageTime(stageName string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.stageDurationsMs[stageName] += ms
	m.stageCalls[stageName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordScore(score float64) {
	m.mu.Lock()
	m.scoreTotal += score
	m.scoreCount++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(stageName string, _ string) {
	m.mu.Lock()
	m.stageErrors[stageName]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		StageDurationsMs: make(map[string]int64, len(m.stageDurationsMs)),
		StageCalls:       make(map[string]int64, len(m.stageCalls)),
		StageErrors:      make(map[string]int64, len(m.stageErrors)),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
		ScoreCount:       m.scoreCount,
	}
	if m.scoreCount > 0 {
		snap.AverageScore = m.scoreTotal / float64(m.scoreCount)
	}
	for k, v := range m.stageDurationsMs {
		snap.StageDurationsMs[k] = v
	}
	for k, v := range m.stageCalls {
		snap.StageCalls[k] = v
	}
	for k, v := range m.stageErrors {
		snap.StageErrors[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StageDurationsMs map[string]int64
	StageCalls       map[string]int64
	StageErrors      map[string]int64
	TotalThroughputB int64
	ScoreCount       int64
	AverageScore     float64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds stage events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStage(_ context.Context, _ string, _ *core.Analysis) {}

func (h *MetricsHook) AfterStage(_ context.Context, stageName string, _ *core.Analysis, d time.Duration, err error) {
	h.collector.RecordStageTime(stageName, d)
	if err != nil {
		h.collector.RecordError(stageName, "validation")
	}
}

var (
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.Hook             = (*MetricsHook)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
