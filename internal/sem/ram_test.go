package sem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semfit/domain/model"
)

func TestRAMParameterEnumeration(t *testing.T) {
	m, err := model.NewModel().
		Latent("eta").
		Continuous("y", "x").
		Loading("eta", "y", 1.0).
		Regress("eta", "x").
		FixResidual("y", 0.2).
		Build()
	require.NoError(t, err)

	r := newRAM(m)

	// free: eta~x, eta~~eta, x~~x
	assert.Equal(t, 3, r.freeParamCount())

	names := make([]string, 0, len(r.params))
	for _, p := range r.params {
		names = append(names, p.name)
	}
	assert.Contains(t, names, "eta~x")
	assert.Contains(t, names, "eta~~eta")
	assert.Contains(t, names, "x~~x")

	// fixed: the loading and the indicator residual
	assert.Len(t, r.fixedPaths, 1)
	assert.Len(t, r.fixedVars, 1)
	assert.Equal(t, 0.2, r.fixedVars[0].value)
}

func TestImpliedCovarianceMatchesHandComputation(t *testing.T) {
	m, err := model.NewModel().
		Latent("eta").
		Continuous("y", "x").
		Loading("eta", "y", 1.0).
		Regress("eta", "x").
		FixResidual("y", 0.2).
		Build()
	require.NoError(t, err)

	r := newRAM(m)

	// order the theta vector by the enumerated names
	theta := make([]float64, 3)
	b, psi, phi := 0.5, 0.3, 1.5
	for k, p := range r.params {
		switch p.name {
		case "eta~x":
			theta[k] = b
		case "eta~~eta":
			theta[k] = math.Log(psi)
		case "x~~x":
			theta[k] = math.Log(phi)
		}
	}

	// eta = b*x + e, var(eta) = b^2*phi + psi
	// y = eta + d,   var(y) = var(eta) + 0.2, cov(y,x) = b*phi
	sigma := r.implied(theta)
	etaVar := b*b*phi + psi
	assert.InDelta(t, etaVar+0.2, sigma.At(0, 0), 1e-12)
	assert.InDelta(t, b*phi, sigma.At(0, 1), 1e-12)
	assert.InDelta(t, phi, sigma.At(1, 1), 1e-12)
	assert.InDelta(t, sigma.At(0, 1), sigma.At(1, 0), 1e-12)
}

func TestImpliedVechMatchesMatrixOrder(t *testing.T) {
	m, err := model.NewModel().
		Continuous("a", "b").
		Build()
	require.NoError(t, err)

	r := newRAM(m)
	theta := r.startValues(&Moments{
		Names: []string{"a", "b"},
		Cov:   [][]float64{{2, 0.5}, {0.5, 3}},
		N:     50,
	})

	v := r.impliedVech(theta)
	require.Len(t, v, 3)
	assert.InDelta(t, 2.0, v[0], 1e-12)
	assert.InDelta(t, 0.5, v[1], 1e-12)
	assert.InDelta(t, 3.0, v[2], 1e-12)
}

func TestStartValuesReproduceSampleMomentsForSaturatedModel(t *testing.T) {
	m, err := model.NewModel().
		Continuous("a", "b", "c").
		Build()
	require.NoError(t, err)

	mom := &Moments{
		Names: []string{"a", "b", "c"},
		Cov: [][]float64{
			{2.0, 0.3, -0.1},
			{0.3, 1.5, 0.4},
			{-0.1, 0.4, 0.9},
		},
		N: 80,
	}

	r := newRAM(m)
	v := r.impliedVech(r.startValues(mom))
	s := mom.Vech()
	require.Len(t, v, len(s))
	for k := range s {
		assert.InDelta(t, s[k], v[k], 1e-12)
	}
}

func TestStartValueForLatentNetsOutFixedResidual(t *testing.T) {
	m, err := model.NewModel().
		Latent("eta").
		Continuous("y").
		Loading("eta", "y", 1.0).
		FixResidual("y", 0.4).
		Build()
	require.NoError(t, err)

	r := newRAM(m)
	mom := &Moments{
		Names: []string{"y"},
		Cov:   [][]float64{{1.0}},
		N:     100,
	}

	x0 := r.startValues(mom)
	require.Len(t, x0, 1)
	assert.InDelta(t, math.Log(0.6), x0[0], 1e-12)
}
