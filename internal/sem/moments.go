package sem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"semfit/domain/core"
	"semfit/domain/model"
	"semfit/internal/errors"
	"semfit/internal/recode"
)

// OrdinalMoments holds the threshold structure of one ordinal variable.
// The underlying response is standard normal; thresholds are the normal
// quantiles of the cumulative category proportions.
type OrdinalMoments struct {
	Variable    string
	Thresholds  []float64
	ThresholdSE []float64
	// scale maps a Pearson correlation computed on the category codes to
	// the polyserial correlation of the underlying response:
	// r_polyserial = r_pearson * sd(codes) / sum(phi(tau_k)).
	scale float64
}

// Moments is the observed moment structure the estimator fits against:
// a hybrid covariance matrix (Pearson among continuous variables, polyserial
// against ordinal underlying responses with unit variance) plus thresholds,
// and the diagonal WLS weights derived from asymptotic moment variances.
type Moments struct {
	Names   []string // observed variables in model order
	Cov     [][]float64
	Ordinal map[string]*OrdinalMoments
	N       int
}

// ThresholdCount returns the total number of threshold moments
func (m *Moments) ThresholdCount() int {
	count := 0
	for _, o := range m.Ordinal {
		count += len(o.Thresholds)
	}
	return count
}

// Vech returns the lower-triangular (column-major by row, i>=j folded as
// i<=j) stacking of the covariance matrix: s_00, s_10, s_11, s_20, ...
func (m *Moments) Vech() []float64 {
	p := len(m.Names)
	out := make([]float64, 0, p*(p+1)/2)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			out = append(out, m.Cov[i][j])
		}
	}
	return out
}

// Weights returns the diagonal WLS weight for each vech entry. For moment
// s_ij the asymptotic variance under normality is (s_ii*s_jj + s_ij^2)/n,
// so the weight is its reciprocal; the discrepancy scaled this way behaves
// as a chi-square statistic at the optimum.
func (m *Moments) Weights() []float64 {
	p := len(m.Names)
	n := float64(m.N)
	out := make([]float64, 0, p*(p+1)/2)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			av := m.Cov[i][i]*m.Cov[j][j] + m.Cov[i][j]*m.Cov[i][j]
			out = append(out, n/av)
		}
	}
	return out
}

// Gamma returns the normal-theory estimate of the asymptotic covariance of
// the vech moments, cov(s_ij, s_kl) = (s_ik*s_jl + s_il*s_jk)/n. Its diagonal
// is the reciprocal of Weights; the off-diagonals feed the sandwich standard
// errors.
func (m *Moments) Gamma() [][]float64 {
	p := len(m.Names)
	n := float64(m.N)
	idx := make([][2]int, 0, p*(p+1)/2)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			idx = append(idx, [2]int{i, j})
		}
	}

	out := make([][]float64, len(idx))
	for a, ij := range idx {
		out[a] = make([]float64, len(idx))
		i, j := ij[0], ij[1]
		for b, kl := range idx {
			k, l := kl[0], kl[1]
			out[a][b] = (m.Cov[i][k]*m.Cov[j][l] + m.Cov[i][l]*m.Cov[j][k]) / n
		}
	}
	return out
}

// ComputeMoments builds the observed moment structure for the model's
// observed variables, in model declaration order.
func ComputeMoments(ds *recode.Dataset, m *model.Model) (*Moments, error) {
	observed := m.Observed()
	names := make([]string, len(observed))
	cols := make([][]float64, len(observed))
	for i, v := range observed {
		col, ok := ds.Column(v.Name)
		if !ok {
			return nil, core.NewVariableNotFoundError(v.Name)
		}
		names[i] = v.Name
		cols[i] = col
	}

	if ds.N < 3 {
		return nil, errors.Wrap(core.ErrInsufficientData, "need at least 3 complete cases")
	}

	ordinal := make(map[string]*OrdinalMoments)
	for i, v := range observed {
		if v.Kind != model.KindOrdinalObserved {
			continue
		}
		om, err := ordinalMoments(v.Name, cols[i], v.Levels)
		if err != nil {
			return nil, err
		}
		ordinal[v.Name] = om
	}

	p := len(observed)
	cov := make([][]float64, p)
	for i := range cov {
		cov[i] = make([]float64, p)
	}

	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			cov[i][j] = hybridCovariance(observed[i], cols[i], observed[j], cols[j], ordinal)
			cov[j][i] = cov[i][j]
		}
	}

	return &Moments{
		Names:   names,
		Cov:     cov,
		Ordinal: ordinal,
		N:       ds.N,
	}, nil
}

// hybridCovariance computes the covariance entry for a variable pair,
// switching to the polyserial/polychoric scale when ordinals are involved.
func hybridCovariance(vi model.Variable, xi []float64, vj model.Variable, xj []float64, ordinal map[string]*OrdinalMoments) float64 {
	iOrd := vi.Kind == model.KindOrdinalObserved
	jOrd := vj.Kind == model.KindOrdinalObserved

	switch {
	case !iOrd && !jOrd:
		return stat.Covariance(xi, xj, nil)

	case iOrd && jOrd:
		if vi.Name == vj.Name {
			// underlying response is standardized
			return 1.0
		}
		// two-step polychoric approximation from the code correlation
		r := stat.Correlation(xi, xj, nil)
		return clampCorr(r * math.Sqrt(stat.Variance(xi, nil)) * math.Sqrt(stat.Variance(xj, nil)) /
			(sumDensity(ordinal[vi.Name]) * sumDensity(ordinal[vj.Name])))

	case iOrd:
		return polyserialCov(ordinal[vi.Name], xi, xj)

	default:
		return polyserialCov(ordinal[vj.Name], xj, xi)
	}
}

// polyserialCov returns cov(x, y*) where y* is the ordinal variable's
// underlying standard-normal response: the two-step polyserial correlation
// times the continuous variable's standard deviation.
func polyserialCov(om *OrdinalMoments, codes, x []float64) float64 {
	r := stat.Correlation(codes, x, nil)
	rps := clampCorr(r * om.scale)
	return rps * math.Sqrt(stat.Variance(x, nil))
}

func sumDensity(om *OrdinalMoments) float64 {
	sum := 0.0
	for _, tau := range om.Thresholds {
		sum += distuv.UnitNormal.Prob(tau)
	}
	return sum
}

func clampCorr(r float64) float64 {
	if r > 0.999 {
		return 0.999
	}
	if r < -0.999 {
		return -0.999
	}
	return r
}

// ordinalMoments estimates thresholds from the marginal category proportions.
// Category codes are expected to be 1..levels.
func ordinalMoments(name string, codes []float64, levels int) (*OrdinalMoments, error) {
	n := len(codes)
	counts := make([]int, levels)
	for _, c := range codes {
		k := int(c)
		if float64(k) != c || k < 1 || k > levels {
			return nil, errors.DataFormat(fmt.Sprintf("ordinal variable %s: code %v outside 1..%d", name, c, levels))
		}
		counts[k-1]++
	}
	for k, c := range counts {
		if c == 0 {
			return nil, errors.DataFormat(fmt.Sprintf("ordinal variable %s: category %d is empty", name, k+1))
		}
	}

	thresholds := make([]float64, levels-1)
	ses := make([]float64, levels-1)
	cum := 0
	for k := 0; k < levels-1; k++ {
		cum += counts[k]
		p := float64(cum) / float64(n)
		tau := distuv.UnitNormal.Quantile(p)
		phi := distuv.UnitNormal.Prob(tau)
		thresholds[k] = tau
		ses[k] = math.Sqrt(p*(1-p)/float64(n)) / phi
	}

	sd := math.Sqrt(stat.Variance(codes, nil))
	om := &OrdinalMoments{
		Variable:    name,
		Thresholds:  thresholds,
		ThresholdSE: ses,
	}
	om.scale = sd / sumDensity(om)
	return om, nil
}
