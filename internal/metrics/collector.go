// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Triple metrics (only for extraction)
	TotalTriples int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Triple stats (nil if not applicable)
	TotalTriples *int64
	AvgTriples   *float64
}

// Snapshot represents the full pipeline statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Extraction    *OperationSnapshot
	Concepts      *OperationSnapshot
	Dedup         *OperationSnapshot
	LLMGenerate   *OperationSnapshot
	DBQuery       *OperationSnapshot
	Publish       *OperationSnapshot
}

// Operation names for the collector.
const (
	OpExtraction  = "extraction"
	OpConcepts    = "concepts"
	OpDedup       = "dedup"
	OpLLMGenerate = "llm_generate"
	OpDBQuery     = "db_query"
	OpPublish     = "publish"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordExtraction records timing and triple count for an extraction run.
func (c *Collector) RecordExtraction(duration time.Duration, triples int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpExtraction)
	m.Count++
	m.TotalTime += duration
	m.TotalTriples += triples

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTriples bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeTriples && m.TotalTriples > 0 {
		total := m.TotalTriples
		avg := float64(m.TotalTriples) / float64(m.Count)
		snap.TotalTriples = &total
		snap.AvgTriples = &avg
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Extraction:    snapshotOp(c.ops[OpExtraction], true),
		Concepts:      snapshotOp(c.ops[OpConcepts], false),
		Dedup:         snapshotOp(c.ops[OpDedup], false),
		LLMGenerate:   snapshotOp(c.ops[OpLLMGenerate], false),
		DBQuery:       snapshotOp(c.ops[OpDBQuery], false),
		Publish:       snapshotOp(c.ops[OpPublish], false),
	}
}
