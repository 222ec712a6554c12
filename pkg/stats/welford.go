package stats

import (
	"fmt"
	"math"

	"github.com/gammazero/deque"
)

// DefaultMaxLag is the lag depth used when the caller has no preference.
const DefaultMaxLag = 1

// Accumulator tracks count, mean, population variance, extrema and lagged
// autocorrelation of a stream of observations in a single pass.
//
// Mean and variance use Welford's update; the lag-k cross-deviation sums use
// West's extension of it, so the only history kept is the last maxLag
// observations. An Accumulator is not safe for concurrent use; see
// StreamingStats for a guarded variant.
type Accumulator struct {
	maxLag int

	count    int64
	mean     float64
	sumSqDev float64

	// lagCrossSum[k-1] holds the running cross-deviation sum for lag k.
	lagCrossSum []float64
	window      deque.Deque[float64]

	min float64
	max float64
}

// NewAccumulator creates an accumulator tracking lags 1..maxLag.
// A maxLag below 1 is treated as 1.
func NewAccumulator(maxLag int) *Accumulator {
	if maxLag < 1 {
		maxLag = 1
	}
	return &Accumulator{
		maxLag:      maxLag,
		lagCrossSum: make([]float64, maxLag),
	}
}

// Add incorporates one observation. Non-finite values, and values whose
// deviation from the running mean would overflow the running sums, are
// rejected with ErrInvalidArgument and leave the accumulator unchanged.
func (a *Accumulator) Add(x float64) error {
	if !isFinite(x) {
		return newStatsError("add", ErrInvalidArgument, "non-finite observation %v", x)
	}

	n := float64(a.count + 1)
	d := x - a.mean
	mean := a.mean + d/n
	sumSqDev := a.sumSqDev + d*d*(n-1)/n
	if !isFinite(d) || !isFinite(mean) || !isFinite(sumSqDev) {
		return newStatsError("add", ErrInvalidArgument, "observation %v overflows the running sums", x)
	}

	// Lag updates are checked before any of them is applied
	scale := (n - 1) / n * d
	lags := a.window.Len()
	if lags > a.maxLag {
		lags = a.maxLag
	}
	last := a.window.Len() - 1
	for j := 1; j <= lags; j++ {
		if !isFinite(a.lagCrossSum[j-1] + scale*(a.window.At(last-j+1)-a.mean)) {
			return newStatsError("add", ErrInvalidArgument, "observation %v overflows the lag %d sum", x, j)
		}
	}
	for j := 1; j <= lags; j++ {
		a.lagCrossSum[j-1] += scale * (a.window.At(last-j+1) - a.mean)
	}

	a.count++
	if a.count == 1 || x < a.min {
		a.min = x
	}
	if a.count == 1 || x > a.max {
		a.max = x
	}

	if a.window.Len() == a.maxLag {
		a.window.PopFront()
	}
	a.window.PushBack(x)

	a.mean = mean
	a.sumSqDev = sumSqDev

	return nil
}

// AddAll adds values in order and stops at the first rejected one.
func (a *Accumulator) AddAll(values ...float64) error {
	for i, v := range values {
		if err := a.Add(v); err != nil {
			return &StatsError{
				Operation: "add_all",
				Detail:    fmt.Sprintf("value %d", i),
				Err:       err,
			}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MaxLag returns the largest lag this accumulator tracks
func (a *Accumulator) MaxLag() int {
	return a.maxLag
}

// Count returns the number of observations added
func (a *Accumulator) Count() int64 {
	return a.count
}

// Mean returns the running mean, 0 before any observation
func (a *Accumulator) Mean() float64 {
	return a.mean
}

// Min returns the smallest observation and whether one exists
func (a *Accumulator) Min() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.min, true
}

// Max returns the largest observation and whether one exists
func (a *Accumulator) Max() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.max, true
}

// Variance returns the population variance of every observation added.
func (a *Accumulator) Variance() (float64, error) {
	if a.count == 0 {
		return 0, newStatsError("variance", ErrPreconditionNotMet, "no observations")
	}
	return a.sumSqDev / float64(a.count), nil
}

// StandardDeviation returns the square root of Variance
func (a *Accumulator) StandardDeviation() (float64, error) {
	v, err := a.Variance()
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Autocorrelation returns the lag-k sample autocorrelation, normalized by
// the full-sample sum of squared deviations.
//
// It fails with ErrOutOfRange for a lag outside [1, MaxLag()], and with
// ErrPreconditionNotMet when fewer than lag+1 observations exist or all
// observations are identical.
func (a *Accumulator) Autocorrelation(lag int) (float64, error) {
	if lag < 1 || lag > a.maxLag {
		return 0, newStatsError("autocorrelation", ErrOutOfRange, "lag %d not in [1, %d]", lag, a.maxLag)
	}
	if a.count <= int64(lag) {
		return 0, newStatsError("autocorrelation", ErrPreconditionNotMet,
			"lag %d needs more than %d observations, have %d", lag, lag, a.count)
	}
	if a.sumSqDev == 0 {
		return 0, newStatsError("autocorrelation", ErrPreconditionNotMet, "zero variance")
	}
	return a.lagCrossSum[lag-1] / a.sumSqDev, nil
}

// Autocorrelations returns every lag whose autocorrelation is defined.
func (a *Accumulator) Autocorrelations() map[int]float64 {
	out := make(map[int]float64)
	for lag := 1; lag <= a.maxLag; lag++ {
		r, err := a.Autocorrelation(lag)
		if err != nil {
			continue
		}
		out[lag] = r
	}
	return out
}

// WindowLen returns how many recent observations are retained
func (a *Accumulator) WindowLen() int {
	return a.window.Len()
}

// Window returns a copy of the retained observations, oldest first.
func (a *Accumulator) Window() []float64 {
	out := make([]float64, a.window.Len())
	for i := range out {
		out[i] = a.window.At(i)
	}
	return out
}
