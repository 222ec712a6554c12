package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

// twoPass computes mean and population variance by re-scanning xs.
func twoPass(xs []float64) (float64, float64) {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, ss / float64(len(xs))
}

// referenceAutocorrelation evaluates the lag-k estimator directly from the
// full history: sum over i of (x_i - m_i)(x_{i-k} - m_{i-1}), where m_i is the
// mean of the first i observations, divided by the total squared deviation.
func referenceAutocorrelation(xs []float64, lag int) float64 {
	prefix := make([]float64, len(xs)+1)
	for i, x := range xs {
		prefix[i+1] = prefix[i] + x
	}
	num := 0.0
	for i := lag; i < len(xs); i++ {
		mi := prefix[i+1] / float64(i+1)
		mp := prefix[i] / float64(i)
		num += (xs[i] - mi) * (xs[i-lag] - mp)
	}
	_, variance := twoPass(xs)
	return num / (variance * float64(len(xs)))
}

func randomSeries(seed int64, n int) []float64 {
	r := rand.New(rand.NewSource(seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = r.NormFloat64()*3 + 10
	}
	return xs
}

func TestNewAccumulatorClampsMaxLag(t *testing.T) {
	tests := []struct {
		name     string
		maxLag   int
		expected int
	}{
		{name: "zero", maxLag: 0, expected: 1},
		{name: "negative", maxLag: -5, expected: 1},
		{name: "one", maxLag: 1, expected: 1},
		{name: "seven", maxLag: 7, expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccumulator(tt.maxLag)
			assert.Equal(t, tt.expected, a.MaxLag())
			assert.Equal(t, int64(0), a.Count())
			assert.Equal(t, 0.0, a.Mean())
			assert.Equal(t, 0, a.WindowLen())
		})
	}
}

func TestEmptyAccumulator(t *testing.T) {
	a := NewAccumulator(DefaultMaxLag)

	_, ok := a.Min()
	assert.False(t, ok)
	_, ok = a.Max()
	assert.False(t, ok)

	_, err := a.Variance()
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	_, err = a.StandardDeviation()
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	_, err = a.Autocorrelation(1)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.Empty(t, a.Autocorrelations())
}

func TestScenarioOneToFive(t *testing.T) {
	a := NewAccumulator(1)
	require.NoError(t, a.AddAll(1, 2, 3, 4, 5))

	assert.Equal(t, int64(5), a.Count())
	assert.InDelta(t, 3.0, a.Mean(), tolerance)

	v, err := a.Variance()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, tolerance)

	minV, ok := a.Min()
	require.True(t, ok)
	assert.Equal(t, 1.0, minV)
	maxV, ok := a.Max()
	require.True(t, ok)
	assert.Equal(t, 5.0, maxV)

	r, err := a.Autocorrelation(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, tolerance)
}

func TestScenarioTextbookSeries(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	a := NewAccumulator(2)
	require.NoError(t, a.AddAll(xs...))

	assert.InDelta(t, 5.0, a.Mean(), tolerance)
	v, err := a.Variance()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, tolerance)

	sd, err := a.StandardDeviation()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sd, tolerance)

	r1, err := a.Autocorrelation(1)
	require.NoError(t, err)
	assert.InDelta(t, referenceAutocorrelation(xs, 1), r1, tolerance)
	assert.InDelta(t, 0.48928571428571427, r1, tolerance)

	r2, err := a.Autocorrelation(2)
	require.NoError(t, err)
	assert.InDelta(t, referenceAutocorrelation(xs, 2), r2, tolerance)
	assert.InDelta(t, 0.16636904761904758, r2, tolerance)
}

func TestSingleObservationAutocorrelation(t *testing.T) {
	a := NewAccumulator(3)
	require.NoError(t, a.Add(10))

	for lag := 1; lag <= 3; lag++ {
		_, err := a.Autocorrelation(lag)
		assert.ErrorIs(t, err, ErrPreconditionNotMet, "lag %d", lag)
	}

	v, err := a.Variance()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	minV, _ := a.Min()
	maxV, _ := a.Max()
	assert.Equal(t, 10.0, minV)
	assert.Equal(t, 10.0, maxV)
}

func TestInsufficientDataPerLag(t *testing.T) {
	a := NewAccumulator(3)
	require.NoError(t, a.AddAll(3, 1, 4))

	_, err := a.Autocorrelation(1)
	assert.NoError(t, err)
	_, err = a.Autocorrelation(2)
	assert.NoError(t, err)
	_, err = a.Autocorrelation(3)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	acf := a.Autocorrelations()
	assert.Len(t, acf, 2)
	assert.NotContains(t, acf, 3)
}

func TestAutocorrelationLagOutOfRange(t *testing.T) {
	a := NewAccumulator(3)
	require.NoError(t, a.AddAll(randomSeries(1, 20)...))

	for _, lag := range []int{-1, 0, 4, 100} {
		_, err := a.Autocorrelation(lag)
		assert.ErrorIs(t, err, ErrOutOfRange, "lag %d", lag)

		var statsErr *StatsError
		require.True(t, errors.As(err, &statsErr))
		assert.Equal(t, "autocorrelation", statsErr.Operation)
	}
}

func TestConstantSeries(t *testing.T) {
	a := NewAccumulator(2)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Add(4.25))
	}

	v, err := a.Variance()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = a.Autocorrelation(1)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
}

func TestAddRejectsNonFinite(t *testing.T) {
	a := NewAccumulator(2)
	require.NoError(t, a.AddAll(1, 2, 3))
	meanBefore := a.Mean()
	varBefore, _ := a.Variance()

	for _, x := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := a.Add(x)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}

	assert.Equal(t, int64(3), a.Count())
	assert.Equal(t, meanBefore, a.Mean())
	varAfter, _ := a.Variance()
	assert.Equal(t, varBefore, varAfter)
	assert.Equal(t, []float64{2, 3}, a.Window())
}

func TestAddAllStopsAtFirstInvalid(t *testing.T) {
	a := NewAccumulator(1)
	err := a.AddAll(1, 2, math.NaN(), 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "value 2")
	assert.Contains(t, err.Error(), "non-finite observation NaN")

	var statsErr *StatsError
	require.True(t, errors.As(err, &statsErr))
	assert.Equal(t, "add_all", statsErr.Operation)
	var inner *StatsError
	require.True(t, errors.As(statsErr.Err, &inner))
	assert.Equal(t, "add", inner.Operation)

	assert.Equal(t, int64(2), a.Count())
}

func TestAddRejectsOverflow(t *testing.T) {
	tests := []struct {
		name  string
		first float64
		next  float64
	}{
		{name: "Deviation overflows", first: 1e308, next: -1e308},
		{name: "Squared deviation overflows", first: 1e200, next: -1e200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccumulator(2)
			require.NoError(t, a.Add(tt.first))

			err := a.Add(tt.next)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)

			assert.Equal(t, int64(1), a.Count())
			assert.Equal(t, tt.first, a.Mean())
			assert.Equal(t, []float64{tt.first}, a.Window())
			v, err := a.Variance()
			require.NoError(t, err)
			assert.Equal(t, 0.0, v)
		})
	}
}

func TestAddRejectsGradualOverflow(t *testing.T) {
	a := NewAccumulator(2)

	var err error
	for i := 0; i < 50; i++ {
		x := 6e153
		if i%2 == 1 {
			x = -x
		}

		count := a.Count()
		mean := a.Mean()
		variance, _ := a.Variance()
		acf := a.Autocorrelations()

		err = a.Add(x)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, count, a.Count())
			assert.Equal(t, mean, a.Mean())
			after, _ := a.Variance()
			assert.Equal(t, variance, after)
			assert.Equal(t, acf, a.Autocorrelations())
			break
		}

		v, verr := a.Variance()
		require.NoError(t, verr)
		require.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
	require.Error(t, err, "sum of squared deviations should overflow within 50 values")
}

func TestAddOverflowLeavesFiniteStatistics(t *testing.T) {
	a := NewAccumulator(1)
	require.NoError(t, a.Add(1e308))

	err := a.Add(-1e308)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, int64(1), a.Count())
	assert.Equal(t, 1e308, a.Mean())
	v, err := a.Variance()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	_, err = a.Autocorrelation(1)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
}

func TestMeanAndVarianceMatchTwoPass(t *testing.T) {
	for _, n := range []int{1, 2, 10, 1000} {
		xs := randomSeries(int64(n), n)
		a := NewAccumulator(4)
		require.NoError(t, a.AddAll(xs...))

		mean, variance := twoPass(xs)
		assert.InDelta(t, mean, a.Mean(), 1e-9, "n=%d", n)
		v, err := a.Variance()
		require.NoError(t, err)
		assert.InDelta(t, variance, v, 1e-9, "n=%d", n)
	}
}

func TestAutocorrelationMatchesReference(t *testing.T) {
	xs := randomSeries(7, 200)
	a := NewAccumulator(5)
	require.NoError(t, a.AddAll(xs...))

	for lag := 1; lag <= 5; lag++ {
		r, err := a.Autocorrelation(lag)
		require.NoError(t, err)
		assert.InDelta(t, referenceAutocorrelation(xs, lag), r, 1e-9, "lag %d", lag)
	}
}

func TestMaxLagOneUpdatesLagSum(t *testing.T) {
	xs := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	a := NewAccumulator(1)
	require.NoError(t, a.AddAll(xs...))

	r, err := a.Autocorrelation(1)
	require.NoError(t, err)
	assert.InDelta(t, referenceAutocorrelation(xs, 1), r, tolerance)
	assert.NotZero(t, r)
}

func TestExtremaTrackRunningValues(t *testing.T) {
	a := NewAccumulator(1)
	xs := []float64{5, 3, 8, -2, 7}
	wantMin := []float64{5, 3, 3, -2, -2}
	wantMax := []float64{5, 5, 8, 8, 8}

	for i, x := range xs {
		require.NoError(t, a.Add(x))
		minV, _ := a.Min()
		maxV, _ := a.Max()
		assert.Equal(t, wantMin[i], minV, "step %d", i)
		assert.Equal(t, wantMax[i], maxV, "step %d", i)
	}
}

func TestPermutationInvariance(t *testing.T) {
	xs := randomSeries(11, 500)
	shuffled := append([]float64(nil), xs...)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a := NewAccumulator(1)
	b := NewAccumulator(1)
	require.NoError(t, a.AddAll(xs...))
	require.NoError(t, b.AddAll(shuffled...))

	assert.InDelta(t, a.Mean(), b.Mean(), 1e-9)
	va, _ := a.Variance()
	vb, _ := b.Variance()
	assert.InDelta(t, va, vb, 1e-9)

	minA, _ := a.Min()
	minB, _ := b.Min()
	maxA, _ := a.Max()
	maxB, _ := b.Max()
	assert.Equal(t, minA, minB)
	assert.Equal(t, maxA, maxB)
}

func TestWindowIsBounded(t *testing.T) {
	const maxLag = 3
	a := NewAccumulator(maxLag)

	for i := 1; i <= maxLag+5; i++ {
		require.NoError(t, a.Add(float64(i)))
		expected := i
		if expected > maxLag {
			expected = maxLag
		}
		assert.Equal(t, expected, a.WindowLen())
	}

	assert.Equal(t, []float64{6, 7, 8}, a.Window())
	assert.Equal(t, int64(maxLag+5), a.Count())
}

func TestLargeOffsetIsStable(t *testing.T) {
	a := NewAccumulator(1)
	require.NoError(t, a.AddAll(1e9+4, 1e9+7, 1e9+13, 1e9+16))

	assert.InDelta(t, 1e9+10, a.Mean(), 1e-6)
	v, err := a.Variance()
	require.NoError(t, err)
	assert.InDelta(t, 22.5, v, 1e-6)
}

func TestStatsErrorMessage(t *testing.T) {
	a := NewAccumulator(2)
	_, err := a.Autocorrelation(5)
	require.Error(t, err)
	assert.Equal(t, "stats: autocorrelation: lag 5 not in [1, 2]: out of range", err.Error())
}
