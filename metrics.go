package rxdispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/dmartin/rxdispatch/handler"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	// Per-pattern metrics
	patternMetrics map[string]*PatternMetrics

	// Global counters
	totalDispatches uint64
	totalDeclines   uint64
	totalErrors     uint64
	totalNoMatches  uint64
	totalPanics     uint64

	// Timing
	totalDuration time.Duration
}

// PatternMetrics holds metrics for a specific registered pattern.
type PatternMetrics struct {
	Pattern       string
	DispatchCount uint64
	DeclineCount  uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastStatus    handler.Status
	LastDispatch  time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		patternMetrics: make(map[string]*PatternMetrics),
	}
}

// RecordDispatch records a handler invocation for a pattern.
func (m *Metrics) RecordDispatch(pattern string, duration time.Duration, status handler.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration

	switch status {
	case handler.StatusDeclined:
		m.totalDeclines++
	case handler.StatusError:
		m.totalErrors++
	}

	pm := m.patternMetrics[pattern]
	if pm == nil {
		pm = &PatternMetrics{
			Pattern:     pattern,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.patternMetrics[pattern] = pm
	}

	pm.DispatchCount++
	pm.TotalDuration += duration
	pm.LastStatus = status
	pm.LastDispatch = time.Now()

	if duration < pm.MinDuration {
		pm.MinDuration = duration
	}
	if duration > pm.MaxDuration {
		pm.MaxDuration = duration
	}

	switch status {
	case handler.StatusDeclined:
		pm.DeclineCount++
	case handler.StatusError:
		pm.ErrorCount++
	}
}

// RecordNoMatch records a dispatch that exhausted all candidates.
func (m *Metrics) RecordNoMatch(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalNoMatches++
	m.totalDuration += duration
}

// RecordPanic records a panic recovered from a handler.
func (m *Metrics) RecordPanic(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalPanics++

	pm := m.patternMetrics[pattern]
	if pm != nil {
		pm.ErrorCount++
	}
}

// TotalDispatches returns the total number of handler invocations.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalDeclines returns the total number of declined invocations.
func (m *Metrics) TotalDeclines() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDeclines
}

// TotalErrors returns the total number of handler errors.
func (m *Metrics) TotalErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalErrors
}

// TotalNoMatches returns the number of dispatches that matched nothing.
func (m *Metrics) TotalNoMatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalNoMatches
}

// TotalPanics returns the total number of panics recovered.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPanics
}

// TotalDuration returns the total duration of all dispatches.
func (m *Metrics) TotalDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDuration
}

// AverageDuration returns the average handler invocation duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalDispatches == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalDispatches)
}

// PatternStats returns metrics for a specific pattern.
// Returns nil if the pattern has never been invoked.
func (m *Metrics) PatternStats(pattern string) *PatternMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pm := m.patternMetrics[pattern]
	if pm == nil {
		return nil
	}

	// Return a copy
	stats := *pm
	return &stats
}

// TopPatterns returns the top N most dispatched patterns.
func (m *Metrics) TopPatterns(n int) []*PatternMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	patterns := make([]*PatternMetrics, 0, len(m.patternMetrics))
	for _, pm := range m.patternMetrics {
		stats := *pm
		patterns = append(patterns, &stats)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].DispatchCount != patterns[j].DispatchCount {
			return patterns[i].DispatchCount > patterns[j].DispatchCount
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})

	if n > len(patterns) {
		n = len(patterns)
	}
	return patterns[:n]
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patternMetrics = make(map[string]*PatternMetrics)
	m.totalDispatches = 0
	m.totalDeclines = 0
	m.totalErrors = 0
	m.totalNoMatches = 0
	m.totalPanics = 0
	m.totalDuration = 0
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	TotalDispatches uint64
	TotalDeclines   uint64
	TotalErrors     uint64
	TotalNoMatches  uint64
	TotalPanics     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	PatternCount    int
	Timestamp       time.Time
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		TotalDispatches: m.totalDispatches,
		TotalDeclines:   m.totalDeclines,
		TotalErrors:     m.totalErrors,
		TotalNoMatches:  m.totalNoMatches,
		TotalPanics:     m.totalPanics,
		TotalDuration:   m.totalDuration,
		PatternCount:    len(m.patternMetrics),
		Timestamp:       time.Now(),
	}

	if m.totalDispatches > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalDispatches)
	}

	return snapshot
}

// AveragePatternDuration returns the average duration for this pattern.
func (pm *PatternMetrics) AveragePatternDuration() time.Duration {
	if pm.DispatchCount == 0 {
		return 0
	}
	return pm.TotalDuration / time.Duration(pm.DispatchCount)
}

// DeclineRate returns the decline rate as a percentage.
func (pm *PatternMetrics) DeclineRate() float64 {
	if pm.DispatchCount == 0 {
		return 0
	}
	return float64(pm.DeclineCount) / float64(pm.DispatchCount) * 100
}

// ErrorRate returns the error rate as a percentage.
func (pm *PatternMetrics) ErrorRate() float64 {
	if pm.DispatchCount == 0 {
		return 0
	}
	return float64(pm.ErrorCount) / float64(pm.DispatchCount) * 100
}
