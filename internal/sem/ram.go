package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"semfit/domain/fit"
	"semfit/domain/model"
)

// paramKind distinguishes how a free parameter enters the RAM matrices
type paramKind int

const (
	paramPath paramKind = iota
	// residual/exogenous variances are optimized on the log scale so the
	// minimizer never needs box constraints to keep them positive
	paramLogVariance
	paramExogCov
)

type param struct {
	kind paramKind
	name string
	op   fit.Op
	from int // variable index (paths) or row index (covariances)
	to   int // variable index (paths) or column index (covariances)
	ref  model.PathRef
}

// ram holds the reticular action model structure: x' = A x + e, e ~ (0, S),
// implied covariance F (I-A)^-1 S (I-A)^-T F^T over the observed subset.
type ram struct {
	model    *model.Model
	allNames []string
	obsIdx   []int // positions of observed variables among allNames
	params   []param

	fixedPaths []fixedEntry
	fixedVars  []fixedEntry
}

type fixedEntry struct {
	row, col int
	value    float64
}

func varIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// newRAM enumerates the free parameters of the model: unfixed paths, residual
// variances of latent and endogenous variables, and the saturated covariance
// block of the exogenous observed variables.
func newRAM(m *model.Model) *ram {
	all := make([]string, 0, len(m.Variables))
	for _, v := range m.Variables {
		all = append(all, v.Name)
	}

	r := &ram{model: m, allNames: all}
	for i, v := range m.Variables {
		if v.Kind != model.KindLatent {
			r.obsIdx = append(r.obsIdx, i)
		}
	}

	for _, p := range m.Paths {
		from := varIndex(all, p.From)
		to := varIndex(all, p.To)
		if p.Fixed != nil {
			r.fixedPaths = append(r.fixedPaths, fixedEntry{row: to, col: from, value: *p.Fixed})
			continue
		}
		r.params = append(r.params, param{
			kind: paramPath,
			name: p.Name(m),
			op:   fit.OpRegression,
			from: from,
			to:   to,
			ref:  model.PathRef{From: p.From, To: p.To},
		})
	}

	var exogObserved []int
	for i, v := range m.Variables {
		if fv, ok := m.FixedVarianceOf(v.Name); ok {
			r.fixedVars = append(r.fixedVars, fixedEntry{row: i, col: i, value: fv})
			continue
		}
		r.params = append(r.params, param{
			kind: paramLogVariance,
			name: v.Name + "~~" + v.Name,
			op:   fit.OpVariance,
			from: i,
			to:   i,
		})
		if v.Kind != model.KindLatent && !m.IsEndogenous(v.Name) {
			exogObserved = append(exogObserved, i)
		}
	}

	// saturated exogenous covariance block
	for a := 0; a < len(exogObserved); a++ {
		for b := 0; b < a; b++ {
			i, j := exogObserved[a], exogObserved[b]
			r.params = append(r.params, param{
				kind: paramExogCov,
				name: all[j] + "~~" + all[i],
				op:   fit.OpVariance,
				from: i,
				to:   j,
			})
		}
	}

	return r
}

// freeParamCount returns the number of optimized parameters
func (r *ram) freeParamCount() int {
	return len(r.params)
}

// implied computes the model-implied covariance matrix over the observed
// variables for the given parameter vector.
func (r *ram) implied(theta []float64) *mat.Dense {
	n := len(r.allNames)
	a := mat.NewDense(n, n, nil)
	s := mat.NewDense(n, n, nil)

	for _, f := range r.fixedPaths {
		a.Set(f.row, f.col, f.value)
	}
	for _, f := range r.fixedVars {
		s.Set(f.row, f.col, f.value)
	}

	for k, p := range r.params {
		switch p.kind {
		case paramPath:
			a.Set(p.to, p.from, theta[k])
		case paramLogVariance:
			s.Set(p.from, p.from, math.Exp(theta[k]))
		case paramExogCov:
			s.Set(p.from, p.to, theta[k])
			s.Set(p.to, p.from, theta[k])
		}
	}

	// B = (I - A)^-1
	eye := identity(n)
	var imA mat.Dense
	imA.Sub(eye, a)
	var b mat.Dense
	if err := b.Inverse(&imA); err != nil {
		// A cyclic path structure at these values; return an implied matrix
		// far from any sample so the line search backs off.
		far := mat.NewDense(len(r.obsIdx), len(r.obsIdx), nil)
		for i := 0; i < len(r.obsIdx); i++ {
			far.Set(i, i, math.MaxFloat64/1e10)
		}
		return far
	}

	var bs, sigma mat.Dense
	bs.Mul(&b, s)
	sigma.Mul(&bs, b.T())

	p := len(r.obsIdx)
	out := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			out.Set(i, j, sigma.At(r.obsIdx[i], r.obsIdx[j]))
		}
	}
	return out
}

// impliedVech stacks the lower triangle of the implied covariance in the
// same order as Moments.Vech.
func (r *ram) impliedVech(theta []float64) []float64 {
	sigma := r.implied(theta)
	p := len(r.obsIdx)
	out := make([]float64, 0, p*(p+1)/2)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			out = append(out, sigma.At(i, j))
		}
	}
	return out
}

// startValues builds the initial parameter vector from the sample moments:
// paths at zero, variances at their sample (or implied latent) values,
// exogenous covariances at the sample covariances.
func (r *ram) startValues(mom *Moments) []float64 {
	obsPos := make(map[int]int, len(r.obsIdx))
	for pos, idx := range r.obsIdx {
		obsPos[idx] = pos
	}

	x0 := make([]float64, len(r.params))
	for k, p := range r.params {
		switch p.kind {
		case paramPath:
			x0[k] = 0
		case paramLogVariance:
			if pos, ok := obsPos[p.from]; ok {
				x0[k] = math.Log(mom.Cov[pos][pos])
				continue
			}
			// latent variable: start at the indicator variance net of its
			// fixed residual
			name := r.allNames[p.from]
			if ind, ok := r.model.IndicatorOf(name); ok {
				pos := varIndex(mom.Names, ind)
				fixed, _ := r.model.FixedVarianceOf(ind)
				v := mom.Cov[pos][pos] - fixed
				if v < 1e-3 {
					v = 1e-3
				}
				x0[k] = math.Log(v)
				continue
			}
			x0[k] = 0
		case paramExogCov:
			x0[k] = mom.Cov[obsPos[p.from]][obsPos[p.to]]
		}
	}
	return x0
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
