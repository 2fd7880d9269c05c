package router

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// History bounds: trimmed down to historyKeep once historyLimit is exceeded
const (
	historyLimit = 1000
	historyKeep  = 500
)

// PerformanceTracker maintains rolling per-venue execution statistics and a
// bounded history of routing results. Safe for concurrent use from multiple
// in-flight routing requests.
type PerformanceTracker struct {
	mu      sync.RWMutex
	records map[string]*VenuePerformanceRecord
	history []*RoutedExecutionResult
}

func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		records: make(map[string]*VenuePerformanceRecord),
	}
}

// RecordResult folds a settled routing result into the per-venue records
// and appends it to the history.
func (pt *PerformanceTracker) RecordResult(result *RoutedExecutionResult) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for _, leg := range result.LegResults {
		pt.updateRecord(leg, result.QualityScore)
	}

	pt.history = append(pt.history, result)
	if len(pt.history) > historyLimit {
		trimmed := make([]*RoutedExecutionResult, historyKeep)
		copy(trimmed, pt.history[len(pt.history)-historyKeep:])
		pt.history = trimmed
	}
}

// caller must hold pt.mu
func (pt *PerformanceTracker) updateRecord(leg LegResult, quality float64) {
	record, exists := pt.records[leg.Venue]
	if !exists {
		record = &VenuePerformanceRecord{Venue: leg.Venue}
		pt.records[leg.Venue] = record
	}

	record.ExecutionCount++
	count := record.ExecutionCount

	sample := 0.0
	if leg.Success {
		sample = 1.0
	}
	// incremental running average keyed by execution count
	record.SuccessRate += (sample - record.SuccessRate) / float64(count)

	if count == 1 {
		record.AvgLatency = leg.Latency
		record.AvgFee = leg.Fee
		record.QualityScore = quality
	} else {
		total := record.AvgLatency*time.Duration(count-1) + leg.Latency
		record.AvgLatency = total / time.Duration(count)

		// recency-biased smoother, deliberately not a true EMA
		record.AvgFee = record.AvgFee.Add(leg.Fee).Div(decimal.NewFromInt(2))
		record.QualityScore = (record.QualityScore + quality) / 2
	}

	record.LastUpdated = time.Now()
}

// Record returns a copy of one venue's performance record, nil if the venue
// has never executed
func (pt *PerformanceTracker) Record(venue string) *VenuePerformanceRecord {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	record, exists := pt.records[venue]
	if !exists {
		return nil
	}
	copied := *record
	return &copied
}

// Records returns a copy of all venue performance records
func (pt *PerformanceTracker) Records() map[string]*VenuePerformanceRecord {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make(map[string]*VenuePerformanceRecord, len(pt.records))
	for venue, record := range pt.records {
		copied := *record
		out[venue] = &copied
	}
	return out
}

// History returns the retained routing results, most recent last
func (pt *PerformanceTracker) History() []*RoutedExecutionResult {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make([]*RoutedExecutionResult, len(pt.history))
	copy(out, pt.history)
	return out
}
