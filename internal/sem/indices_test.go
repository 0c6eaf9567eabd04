package sem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestNoncentralChiCDFReducesToCentral(t *testing.T) {
	for _, x := range []float64{0.5, 2, 5, 12} {
		want := distuv.ChiSquared{K: 4}.CDF(x)
		assert.InDelta(t, want, noncentralChiCDF(x, 4, 0), 1e-12, "x=%v", x)
	}
}

func TestNoncentralChiCDFDecreasesInNoncentrality(t *testing.T) {
	x, df := 10.0, 5.0
	prev := noncentralChiCDF(x, df, 0)
	for _, lambda := range []float64{1, 5, 20, 50} {
		cur := noncentralChiCDF(x, df, lambda)
		assert.Less(t, cur, prev, "lambda=%v", lambda)
		prev = cur
	}
}

func TestNoncentralChiCDFLargeLambdaApproximation(t *testing.T) {
	// mass far below x gives probability near 1, far above near 0
	assert.InDelta(t, 1.0, noncentralChiCDF(1e5, 5, 2000), 1e-6)
	assert.InDelta(t, 0.0, noncentralChiCDF(10, 5, 2000), 1e-6)
	// the normal approximation branch stays monotone
	assert.Less(t, noncentralChiCDF(2000, 5, 3000), noncentralChiCDF(4000, 5, 3000))
}

func TestInvertNoncentralityRoundTrip(t *testing.T) {
	x, df := 25.0, 5.0
	lam, ok := invertNoncentrality(x, df, 0.05)
	require.True(t, ok)
	assert.InDelta(t, 0.05, noncentralChiCDF(x, df, lam), 1e-6)

	// central CDF already below the target: no positive lambda works
	_, ok = invertNoncentrality(1.0, 5.0, 0.95)
	assert.False(t, ok)
}

func TestRMSEAZeroForSaturatedModel(t *testing.T) {
	point, lower, upper := rmsea(0, 0, 1000)
	assert.Equal(t, 0.0, point)
	assert.Equal(t, 0.0, lower)
	assert.Equal(t, 0.0, upper)
}

func TestRMSEAIntervalBracketsPointEstimate(t *testing.T) {
	// a clearly misfitting statistic
	point, lower, upper := rmsea(80, 10, 500)
	want := math.Sqrt((80.0 - 10) / (10 * 500))
	assert.InDelta(t, want, point, 1e-12)
	assert.Less(t, lower, point)
	assert.Greater(t, upper, point)
	assert.Greater(t, lower, 0.0)
}

func TestComparativeFitBounds(t *testing.T) {
	// perfect model
	assert.Equal(t, 1.0, comparativeFit(3, 5, 200, 10))
	// model no better than baseline
	assert.InDelta(t, 0.0, comparativeFit(200, 10, 200, 10), 1e-12)
	// intermediate
	cfi := comparativeFit(30, 10, 200, 10)
	assert.Greater(t, cfi, 0.0)
	assert.Less(t, cfi, 1.0)
}

func TestTuckerLewisSaturated(t *testing.T) {
	assert.Equal(t, 1.0, tuckerLewis(0, 0, 200, 10))
}

func TestSRMRZeroAtExactFit(t *testing.T) {
	mom := &Moments{
		Names: []string{"a", "b"},
		Cov:   [][]float64{{4, 1}, {1, 9}},
		N:     100,
	}
	s := mom.Vech()
	assert.Equal(t, 0.0, srmr(mom, s, s))
}

func TestSRMRScalesResidualsByStandardDeviations(t *testing.T) {
	mom := &Moments{
		Names: []string{"a", "b"},
		Cov:   [][]float64{{4, 1}, {1, 9}},
		N:     100,
	}
	s := mom.Vech()
	sigma := []float64{4, 1 + 0.6, 9} // off-diagonal residual of 0.6

	// one standardized residual of 0.6/(2*3) = 0.1 across 3 moments
	want := math.Sqrt(0.1 * 0.1 / 3)
	assert.InDelta(t, want, srmr(mom, s, sigma), 1e-12)
}

func TestComputeIndicesBaselineSumsOffDiagonals(t *testing.T) {
	mom := &Moments{
		Names: []string{"a", "b"},
		Cov:   [][]float64{{4, 1}, {1, 9}},
		N:     100,
	}
	s := mom.Vech()
	w := mom.Weights()

	ind := computeIndices(mom, s, s, w, 0, 0)
	assert.Equal(t, 1, ind.BaselineDF)
	assert.InDelta(t, w[1]*1*1, ind.BaselineChiSquare, 1e-12)
	assert.Equal(t, 1.0, ind.PValue)
	assert.Equal(t, 0.0, ind.SRMR)
}
