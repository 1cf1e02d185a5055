package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks counts and cumulative processing time for the
// casting, verification and tally operations.
type MetricsCollector struct {
	mu sync.RWMutex

	castCount     int
	castTotalTime time.Duration

	verificationCount     int
	verificationTotalTime time.Duration

	tallyCount     int
	tallyTotalTime time.Duration
}

// OperationMetrics contains timing information for one operation kind.
type OperationMetrics struct {
	Count            int   `json:"count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// MetricsSnapshot provides the metrics for all operations.
type MetricsSnapshot struct {
	Casts         OperationMetrics `json:"casts"`
	Verifications OperationMetrics `json:"verifications"`
	Tallies       OperationMetrics `json:"tallies"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) RecordCast(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.castCount++
	mc.castTotalTime += duration
}

func (mc *MetricsCollector) RecordVerification(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.verificationCount++
	mc.verificationTotalTime += duration
}

func (mc *MetricsCollector) RecordTally(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.tallyCount++
	mc.tallyTotalTime += duration
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return MetricsSnapshot{
		Casts: OperationMetrics{
			Count:            mc.castCount,
			ProcessingTimeMs: mc.castTotalTime.Milliseconds(),
		},
		Verifications: OperationMetrics{
			Count:            mc.verificationCount,
			ProcessingTimeMs: mc.verificationTotalTime.Milliseconds(),
		},
		Tallies: OperationMetrics{
			Count:            mc.tallyCount,
			ProcessingTimeMs: mc.tallyTotalTime.Milliseconds(),
		},
	}
}
