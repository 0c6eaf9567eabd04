package sem

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"semfit/domain/core"
	"semfit/domain/fit"
	"semfit/domain/model"
	"semfit/internal"
	"semfit/internal/errors"
	"semfit/internal/recode"
)

// Estimator fits a structural model to sample moments by diagonally weighted
// least squares. The discrepancy at the minimum is asymptotically chi-square
// distributed, which the fit indices rely on.
type Estimator struct {
	MaxIterations int
	Tolerance     float64
	Log           *internal.Logger
}

// NewEstimator creates an estimator with the given iteration budget and
// convergence tolerance
func NewEstimator(maxIterations int, tolerance float64) *Estimator {
	return &Estimator{
		MaxIterations: maxIterations,
		Tolerance:     tolerance,
		Log:           internal.DefaultLogger,
	}
}

// Fit estimates the model against the dataset and returns the full result:
// parameter estimates with standard errors, thresholds, derived parameters,
// and global fit indices.
func (e *Estimator) Fit(ds *recode.Dataset, m *model.Model) (*fit.Result, error) {
	mom, err := ComputeMoments(ds, m)
	if err != nil {
		return nil, err
	}

	if err := checkLatentVariances(mom, m); err != nil {
		return nil, err
	}

	r := newRAM(m)
	s := mom.Vech()
	w := mom.Weights()

	df := len(s) - r.freeParamCount()
	if df < 0 {
		return nil, errors.UnderidentifiedModel(r.freeParamCount(), len(s))
	}

	discrepancy := func(theta []float64) float64 {
		sigma := r.impliedVech(theta)
		f := 0.0
		for k := range s {
			d := s[k] - sigma[k]
			f += w[k] * d * d
		}
		return f
	}

	// BFGS needs a gradient; central differences keep it accurate enough for
	// the line search near the optimum.
	problem := optimize.Problem{
		Func: discrepancy,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, discrepancy, x, &fd.Settings{Formula: fd.Central, Concurrent: true})
		},
	}
	settings := &optimize.Settings{
		MajorIterations: e.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   e.Tolerance,
			Iterations: 50,
		},
	}

	x0 := r.startValues(mom)
	e.Log.Debug("starting estimation: %d free parameters, %d moments, df=%d",
		r.freeParamCount(), len(s), df)

	opt, optErr := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if opt == nil {
		return nil, errors.NonConvergence(0, math.NaN(), optErr)
	}
	iterations := opt.Stats.MajorIterations

	// The line search can fail with an error when the start values already
	// sit at the minimum and there is nowhere lower to go. A discrepancy
	// below tolerance is convergence, whatever the terminal status says.
	// The negated comparison keeps a NaN discrepancy on the failure path.
	if !convergedStatus(opt.Status) && !(opt.F <= e.Tolerance) {
		return nil, errors.NonConvergence(iterations, opt.F, optErr)
	}

	theta := opt.X
	e.Log.Info("converged after %d iterations, discrepancy %.6g", iterations, opt.F)

	cov, err := e.paramCovariance(r, theta, mom)
	if err != nil {
		return nil, err
	}

	estimates := assembleEstimates(r, m, mom, theta, cov)

	indices := computeIndices(mom, s, r.impliedVech(theta), w, opt.F, df)

	return &fit.Result{
		RunID:       core.RunID(core.NewID()),
		SampleSize:  ds.N,
		DroppedRows: ds.Dropped,
		Converged:   true,
		Iterations:  iterations,
		Discrepancy: opt.F,
		Estimates:   estimates,
		Indices:     indices,
		CreatedAt:   core.Now(),
	}, nil
}

// checkLatentVariances rejects models whose fixed indicator residual leaves a
// non-positive implied latent variance. Caught before optimization so the
// failure mode is a diagnosable error instead of a wandering minimizer.
func checkLatentVariances(mom *Moments, m *model.Model) error {
	for _, l := range m.Latents() {
		ind, ok := m.IndicatorOf(l.Name)
		if !ok {
			continue
		}
		fixed, ok := m.FixedVarianceOf(ind)
		if !ok {
			continue
		}
		pos := varIndex(mom.Names, ind)
		if pos < 0 {
			return core.NewVariableNotFoundError(ind)
		}
		if mom.Cov[pos][pos]-fixed <= 0 {
			return errors.NonPositiveLatentVariance(ind, mom.Cov[pos][pos], fixed)
		}
	}
	return nil
}

func convergedStatus(s optimize.Status) bool {
	switch s {
	case optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

// paramCovariance computes the robust asymptotic covariance of the free
// parameters by the sandwich
//
//	(Delta' W Delta)^-1 Delta' W Gamma W Delta (Delta' W Delta)^-1
//
// where Delta is the Jacobian of the implied moments and Gamma the estimated
// covariance of the sample moments. The diagonal weight matrix W is not the
// inverse of Gamma under DWLS, so the bread alone would understate the
// off-diagonal contributions. Jacobian columns are independent, so they are
// filled in parallel.
func (e *Estimator) paramCovariance(r *ram, theta []float64, mom *Moments) (*mat.Dense, error) {
	w := mom.Weights()
	q := len(theta)
	mlen := len(w)

	jac := mat.NewDense(mlen, q, nil)
	var g errgroup.Group
	for k := 0; k < q; k++ {
		k := k
		g.Go(func() error {
			h := 1e-6 * math.Max(1, math.Abs(theta[k]))
			up := append([]float64(nil), theta...)
			dn := append([]float64(nil), theta...)
			up[k] += h
			dn[k] -= h
			su := r.impliedVech(up)
			sd := r.impliedVech(dn)
			for i := 0; i < mlen; i++ {
				jac.Set(i, k, (su[i]-sd[i])/(2*h))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "jacobian computation failed")
	}

	// Delta' W Delta with diagonal W
	dwd := mat.NewDense(q, q, nil)
	wjac := mat.NewDense(mlen, q, nil) // W Delta
	for a := 0; a < q; a++ {
		for i := 0; i < mlen; i++ {
			wjac.Set(i, a, w[i]*jac.At(i, a))
		}
		for b := 0; b <= a; b++ {
			sum := 0.0
			for i := 0; i < mlen; i++ {
				sum += jac.At(i, a) * w[i] * jac.At(i, b)
			}
			dwd.Set(a, b, sum)
			dwd.Set(b, a, sum)
		}
	}

	var bread mat.Dense
	if err := bread.Inverse(dwd); err != nil {
		return nil, errors.Wrap(err, "information matrix is singular; standard errors are unavailable")
	}

	gammaRows := mom.Gamma()
	gamma := mat.NewDense(mlen, mlen, nil)
	for i, row := range gammaRows {
		gamma.SetRow(i, row)
	}

	var gw, meat mat.Dense
	gw.Mul(gamma, wjac)
	meat.Mul(wjac.T(), &gw)

	var mb, cov mat.Dense
	mb.Mul(&meat, &bread)
	cov.Mul(&bread, &mb)
	return &cov, nil
}

// assembleEstimates builds the report-ordered parameter list: loadings,
// regressions, thresholds, variances, derived parameters.
func assembleEstimates(r *ram, m *model.Model, mom *Moments, theta []float64, cov *mat.Dense) []fit.ParamEstimate {
	var out []fit.ParamEstimate

	for _, p := range m.Paths {
		if p.Fixed != nil {
			out = append(out, fit.ParamEstimate{
				Name:     p.Name(m),
				Op:       fit.OpLoading,
				Estimate: *p.Fixed,
				Fixed:    true,
			})
		}
	}

	for k, p := range r.params {
		if p.kind != paramPath {
			continue
		}
		se := math.Sqrt(cov.At(k, k))
		out = append(out, inferenceRow(p.name, fit.OpRegression, theta[k], se))
	}

	for _, name := range mom.Names {
		om, ok := mom.Ordinal[name]
		if !ok {
			continue
		}
		for t, tau := range om.Thresholds {
			out = append(out, inferenceRow(
				fmt.Sprintf("%s|t%d", name, t+1), fit.OpThreshold, tau, om.ThresholdSE[t]))
		}
	}

	for k, p := range r.params {
		switch p.kind {
		case paramLogVariance:
			v := math.Exp(theta[k])
			se := v * math.Sqrt(cov.At(k, k))
			out = append(out, inferenceRow(p.name, fit.OpVariance, v, se))
		case paramExogCov:
			se := math.Sqrt(cov.At(k, k))
			out = append(out, inferenceRow(p.name, fit.OpVariance, theta[k], se))
		}
	}

	for _, fv := range m.FixedVariances {
		out = append(out, fit.ParamEstimate{
			Name:     fv.Variable + "~~" + fv.Variable,
			Op:       fit.OpVariance,
			Estimate: fv.Value,
			Fixed:    true,
		})
	}

	for _, d := range m.Derived {
		est, se := deltaMethod(r, d, theta, cov)
		out = append(out, inferenceRow(d.Name, fit.OpDerived, est, se))
	}

	return out
}

func inferenceRow(name string, op fit.Op, est, se float64) fit.ParamEstimate {
	z := est / se
	return fit.ParamEstimate{
		Name:     name,
		Op:       op,
		Estimate: est,
		StdErr:   se,
		Z:        z,
		PValue:   2 * distuv.UnitNormal.CDF(-math.Abs(z)),
	}
}

// deltaMethod evaluates a derived parameter (a sum of products of free path
// coefficients) and its standard error from the analytic gradient.
func deltaMethod(r *ram, d model.DerivedParam, theta []float64, cov *mat.Dense) (float64, float64) {
	idx := make(map[model.PathRef]int)
	for k, p := range r.params {
		if p.kind == paramPath {
			idx[p.ref] = k
		}
	}

	value := 0.0
	grad := make([]float64, len(theta))
	for _, term := range d.Terms {
		prod := 1.0
		for _, ref := range term.Paths {
			prod *= theta[idx[ref]]
		}
		value += prod
		// d(term)/d(p) = product of the other factors, summed over occurrences
		for i, ref := range term.Paths {
			partial := 1.0
			for j, other := range term.Paths {
				if j == i {
					continue
				}
				partial *= theta[idx[other]]
			}
			grad[idx[ref]] += partial
		}
	}

	variance := 0.0
	for a, ga := range grad {
		if ga == 0 {
			continue
		}
		for b, gb := range grad {
			if gb == 0 {
				continue
			}
			variance += ga * gb * cov.At(a, b)
		}
	}
	return value, math.Sqrt(variance)
}
