package fit

import (
	"semfit/domain/core"
)

// Op labels the role of a parameter in the model, lavaan-style.
type Op string

const (
	OpRegression Op = "~"
	OpLoading    Op = "=~"
	OpVariance   Op = "~~"
	OpThreshold  Op = "|"
	OpDerived    Op = ":="
)

// ParamEstimate holds one fitted parameter with its inference columns.
// Fixed parameters carry an estimate but no standard error.
type ParamEstimate struct {
	Name     string  `json:"name"`
	Op       Op      `json:"op"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
	Fixed    bool    `json:"fixed"`
}

// Indices holds the global fit statistics for one estimation run.
type Indices struct {
	ChiSquare         float64 `json:"chi_square"`
	DF                int     `json:"df"`
	PValue            float64 `json:"p_value"`
	BaselineChiSquare float64 `json:"baseline_chi_square"`
	BaselineDF        int     `json:"baseline_df"`
	CFI               float64 `json:"cfi"`
	TLI               float64 `json:"tli"`
	RMSEA             float64 `json:"rmsea"`
	RMSEALower        float64 `json:"rmsea_lower"`
	RMSEAUpper        float64 `json:"rmsea_upper"`
	SRMR              float64 `json:"srmr"`
}

// Result is the immutable outcome of a single estimation run.
type Result struct {
	RunID       core.RunID      `json:"run_id"`
	SampleSize  int             `json:"sample_size"`
	DroppedRows int             `json:"dropped_rows"`
	Converged   bool            `json:"converged"`
	Iterations  int             `json:"iterations"`
	Discrepancy float64         `json:"discrepancy"`
	Estimates   []ParamEstimate `json:"estimates"`
	Indices     Indices         `json:"indices"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// Lookup finds a parameter estimate by name
func (r *Result) Lookup(name string) (ParamEstimate, bool) {
	for _, e := range r.Estimates {
		if e.Name == name {
			return e, true
		}
	}
	return ParamEstimate{}, false
}

// ByOp returns all estimates with the given operator, in report order
func (r *Result) ByOp(op Op) []ParamEstimate {
	var out []ParamEstimate
	for _, e := range r.Estimates {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}
