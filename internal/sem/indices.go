package sem

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"semfit/domain/fit"
)

// computeIndices derives the global fit statistics from the minimized
// discrepancy. The baseline model fixes every covariance to zero and keeps
// the variances at their sample values, so its chi-square is the weighted sum
// of squared off-diagonal moments.
func computeIndices(mom *Moments, s, sigma, w []float64, fmin float64, df int) fit.Indices {
	t := fmin
	n := float64(mom.N)
	p := len(mom.Names)

	baseChi := 0.0
	k := 0
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			if i != j {
				baseChi += w[k] * s[k] * s[k]
			}
			k++
		}
	}
	baseDF := p * (p - 1) / 2

	ind := fit.Indices{
		ChiSquare:         t,
		DF:                df,
		BaselineChiSquare: baseChi,
		BaselineDF:        baseDF,
	}

	if df > 0 {
		chi := distuv.ChiSquared{K: float64(df)}
		ind.PValue = 1 - chi.CDF(t)
	} else {
		ind.PValue = 1
	}

	ind.CFI = comparativeFit(t, df, baseChi, baseDF)
	ind.TLI = tuckerLewis(t, df, baseChi, baseDF)
	ind.RMSEA, ind.RMSEALower, ind.RMSEAUpper = rmsea(t, df, n)
	ind.SRMR = srmr(mom, s, sigma)

	return ind
}

func comparativeFit(t float64, df int, tb float64, dfb int) float64 {
	num := math.Max(t-float64(df), 0)
	den := math.Max(num, math.Max(tb-float64(dfb), 0))
	if den == 0 {
		return 1
	}
	return 1 - num/den
}

func tuckerLewis(t float64, df int, tb float64, dfb int) float64 {
	if df == 0 || dfb == 0 {
		return 1
	}
	denom := tb/float64(dfb) - 1
	if denom == 0 {
		return 1
	}
	return (tb/float64(dfb) - t/float64(df)) / denom
}

// rmsea returns the point estimate and the 90% confidence interval, obtained
// by inverting the noncentral chi-square distribution in its noncentrality
// parameter.
func rmsea(t float64, df int, n float64) (point, lower, upper float64) {
	if df == 0 {
		return 0, 0, 0
	}
	fdf := float64(df)
	point = math.Sqrt(math.Max(t-fdf, 0) / (fdf * n))

	// lower bound: the lambda with P(X <= t; df, lambda) = 0.95
	if lam, ok := invertNoncentrality(t, fdf, 0.95); ok {
		lower = math.Sqrt(lam / (fdf * n))
	}
	// upper bound: the lambda with P(X <= t; df, lambda) = 0.05
	if lam, ok := invertNoncentrality(t, fdf, 0.05); ok {
		upper = math.Sqrt(lam / (fdf * n))
	}
	return point, lower, upper
}

// invertNoncentrality solves noncentralChiCDF(x; df, lambda) = target for
// lambda by bisection. ok is false when no positive lambda satisfies it, in
// which case the corresponding interval bound collapses to zero.
func invertNoncentrality(x, df, target float64) (float64, bool) {
	if noncentralChiCDF(x, df, 0) < target {
		return 0, false
	}

	lo, hi := 0.0, 1.0
	for noncentralChiCDF(x, df, hi) > target {
		hi *= 2
		if hi > 1e7 {
			return 0, false
		}
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if noncentralChiCDF(x, df, mid) > target {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < 1e-10*(1+hi) {
			break
		}
	}
	return (lo + hi) / 2, true
}

// noncentralChiCDF evaluates the noncentral chi-square CDF as a Poisson
// mixture of central chi-square CDFs. For very large noncentrality the
// Poisson weights underflow, so a normal approximation takes over.
func noncentralChiCDF(x, df, lambda float64) float64 {
	if lambda == 0 {
		return distuv.ChiSquared{K: df}.CDF(x)
	}
	half := lambda / 2
	if half > 700 {
		mean := df + lambda
		sd := math.Sqrt(2 * (df + 2*lambda))
		return distuv.UnitNormal.CDF((x - mean) / sd)
	}

	weight := math.Exp(-half)
	sum := 0.0
	for j := 0; j < 5000; j++ {
		if weight > 1e-18 {
			sum += weight * distuv.ChiSquared{K: df + 2*float64(j)}.CDF(x)
		}
		weight *= half / float64(j+1)
		if float64(j) > half && weight < 1e-18 {
			break
		}
	}
	return sum
}

// srmr is the root mean square of the correlation-scale residuals between
// sample and implied moments. At a just-identified optimum it is numerically
// zero.
func srmr(mom *Moments, s, sigma []float64) float64 {
	p := len(mom.Names)
	sd := make([]float64, p)
	for i := 0; i < p; i++ {
		sd[i] = math.Sqrt(mom.Cov[i][i])
	}

	sum := 0.0
	k := 0
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			resid := (s[k] - sigma[k]) / (sd[i] * sd[j])
			sum += resid * resid
			k++
		}
	}
	return math.Sqrt(sum / float64(p*(p+1)/2))
}
