package stats

import (
	"sync"
	"time"
)

// StreamingStats guards an Accumulator with a mutex so that several
// goroutines may feed and read the same series.
type StreamingStats struct {
	mu          sync.RWMutex
	acc         *Accumulator
	lastUpdated int64 // Unix timestamp of last update
}

// NewStreamingStats creates a new StreamingStats instance
func NewStreamingStats(maxLag int) *StreamingStats {
	return &StreamingStats{
		acc:         NewAccumulator(maxLag),
		lastUpdated: time.Now().Unix(),
	}
}

// Update adds a new value to the statistics
func (s *StreamingStats) Update(value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acc.Add(value); err != nil {
		return err
	}
	s.lastUpdated = time.Now().Unix()
	return nil
}

// Count returns the number of values processed
func (s *StreamingStats) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Count()
}

// Mean returns the arithmetic mean of all values
func (s *StreamingStats) Mean() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Mean()
}

// Min returns the minimum value seen
func (s *StreamingStats) Min() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Min()
}

// Max returns the maximum value seen
func (s *StreamingStats) Max() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Max()
}

// Variance returns the population variance
func (s *StreamingStats) Variance() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Variance()
}

// Autocorrelation returns the autocorrelation at the given lag
func (s *StreamingStats) Autocorrelation(lag int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc.Autocorrelation(lag)
}

// Summary is a point-in-time snapshot of a series. Statistics that are not
// defined yet are left nil.
type Summary struct {
	Count            int64           `json:"count"`
	MaxLag           int             `json:"max_lag"`
	Mean             *float64        `json:"mean,omitempty"`
	Variance         *float64        `json:"variance,omitempty"`
	StdDev           *float64        `json:"std_dev,omitempty"`
	Min              *float64        `json:"min,omitempty"`
	Max              *float64        `json:"max,omitempty"`
	Autocorrelations map[int]float64 `json:"autocorrelations,omitempty"`
	LastUpdate       time.Time       `json:"last_update"`
}

// GetSummary returns a consistent snapshot of all statistics
func (s *StreamingStats) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{
		Count:      s.acc.Count(),
		MaxLag:     s.acc.MaxLag(),
		LastUpdate: time.Unix(s.lastUpdated, 0),
	}
	if summary.Count == 0 {
		return summary
	}

	mean := s.acc.Mean()
	summary.Mean = &mean
	if v, err := s.acc.Variance(); err == nil {
		summary.Variance = &v
	}
	if sd, err := s.acc.StandardDeviation(); err == nil {
		summary.StdDev = &sd
	}
	if v, ok := s.acc.Min(); ok {
		summary.Min = &v
	}
	if v, ok := s.acc.Max(); ok {
		summary.Max = &v
	}
	if acf := s.acc.Autocorrelations(); len(acf) > 0 {
		summary.Autocorrelations = acf
	}
	return summary
}
