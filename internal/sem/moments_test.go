package sem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"semfit/domain/core"
	"semfit/domain/model"
	"semfit/internal/errors"
	"semfit/internal/recode"
)

func TestOrdinalThresholdsMatchCumulativeProportions(t *testing.T) {
	// 30% in category 1, 50% in category 2, 20% in category 3
	codes := make([]float64, 0, 100)
	for i := 0; i < 30; i++ {
		codes = append(codes, 1)
	}
	for i := 0; i < 50; i++ {
		codes = append(codes, 2)
	}
	for i := 0; i < 20; i++ {
		codes = append(codes, 3)
	}

	om, err := ordinalMoments("w", codes, 3)
	require.NoError(t, err)

	require.Len(t, om.Thresholds, 2)
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.3), om.Thresholds[0], 1e-12)
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.8), om.Thresholds[1], 1e-12)

	require.Len(t, om.ThresholdSE, 2)
	for _, se := range om.ThresholdSE {
		assert.Greater(t, se, 0.0)
	}
	assert.Greater(t, om.scale, 0.0)
}

func TestOrdinalMomentsRejectsBadCodes(t *testing.T) {
	_, err := ordinalMoments("w", []float64{1, 2, 4}, 3)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataFormat, errors.GetCode(err))

	_, err = ordinalMoments("w", []float64{1.5, 2, 3}, 3)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataFormat, errors.GetCode(err))

	// category 2 never observed
	_, err = ordinalMoments("w", []float64{1, 1, 3}, 3)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataFormat, errors.GetCode(err))
}

func TestVechAndWeightsOrdering(t *testing.T) {
	m := &Moments{
		Names: []string{"a", "b"},
		Cov: [][]float64{
			{4, 1},
			{1, 9},
		},
		N: 100,
	}

	assert.Equal(t, []float64{4, 1, 9}, m.Vech())

	w := m.Weights()
	require.Len(t, w, 3)
	assert.InDelta(t, 100.0/(4*4+4*4), w[0], 1e-12)
	assert.InDelta(t, 100.0/(4*9+1*1), w[1], 1e-12)
	assert.InDelta(t, 100.0/(9*9+9*9), w[2], 1e-12)
}

func TestGammaNormalTheoryMomentCovariances(t *testing.T) {
	m := &Moments{
		Names: []string{"a", "b"},
		Cov: [][]float64{
			{4, 1},
			{1, 9},
		},
		N: 100,
	}

	g := m.Gamma()
	require.Len(t, g, 3)

	// var(s_aa) = 2*s_aa^2/n, var(s_ab) = (s_aa*s_bb + s_ab^2)/n
	assert.InDelta(t, 2.0*4*4/100, g[0][0], 1e-12)
	assert.InDelta(t, (4.0*9+1*1)/100, g[1][1], 1e-12)
	assert.InDelta(t, 2.0*9*9/100, g[2][2], 1e-12)

	// cov(s_aa, s_ab) = 2*s_aa*s_ab/n, cov(s_aa, s_bb) = 2*s_ab^2/n
	assert.InDelta(t, 2.0*4*1/100, g[0][1], 1e-12)
	assert.InDelta(t, 2.0*1*1/100, g[0][2], 1e-12)
	assert.InDelta(t, 2.0*9*1/100, g[1][2], 1e-12)

	// the diagonal inverts the WLS weights
	w := m.Weights()
	for k := range w {
		assert.InDelta(t, 1/w[k], g[k][k], 1e-12, "moment %d", k)
		for l := range w {
			assert.Equal(t, g[k][l], g[l][k])
		}
	}
}

func TestComputeMomentsHybridMatrix(t *testing.T) {
	m, err := model.NewModel().
		Ordinal("w", 2).
		Continuous("x").
		Regress("w", "x").
		Build()
	require.NoError(t, err)

	ds := &recode.Dataset{
		Columns: map[string][]float64{
			"w": {1, 1, 2, 2, 1, 2, 1, 2},
			"x": {0.1, 0.3, 0.9, 1.2, 0.2, 1.0, 0.4, 0.8},
		},
		N: 8,
	}

	mom, err := ComputeMoments(ds, m)
	require.NoError(t, err)

	assert.Equal(t, []string{"w", "x"}, mom.Names)
	// ordinal underlying response is standardized
	assert.Equal(t, 1.0, mom.Cov[0][0])
	// matrix is symmetric
	assert.Equal(t, mom.Cov[0][1], mom.Cov[1][0])
	// the ordinal and continuous variables move together here
	assert.Greater(t, mom.Cov[0][1], 0.0)
	assert.Equal(t, 1, mom.ThresholdCount())
}

func TestComputeMomentsMissingColumn(t *testing.T) {
	m, err := model.NewModel().Continuous("x", "y").Regress("y", "x").Build()
	require.NoError(t, err)

	ds := &recode.Dataset{
		Columns: map[string][]float64{"x": {1, 2, 3}},
		N:       3,
	}
	_, err = ComputeMoments(ds, m)
	require.ErrorIs(t, err, core.ErrVariableNotFound)
}

func TestComputeMomentsNeedsThreeCases(t *testing.T) {
	m, err := model.NewModel().Continuous("x").Build()
	require.NoError(t, err)

	ds := &recode.Dataset{
		Columns: map[string][]float64{"x": {1, 2}},
		N:       2,
	}
	_, err = ComputeMoments(ds, m)
	require.ErrorIs(t, err, core.ErrInsufficientData)
}
