package report

import (
	"fmt"
	"io"
	"strings"

	"semfit/domain/fit"
)

// Reporter renders an estimation result as a plain-text summary in the
// conventional SEM output layout: header, model test, fit indices, then
// parameter blocks grouped by operator.
type Reporter struct{}

// NewReporter creates a reporter
func NewReporter() *Reporter {
	return &Reporter{}
}

// Write renders the full summary to w
func (rp *Reporter) Write(w io.Writer, r *fit.Result) error {
	var b strings.Builder

	b.WriteString("Structural model estimation results\n\n")
	fmt.Fprintf(&b, "  Estimator                                %10s\n", "DWLS")
	fmt.Fprintf(&b, "  Optimization iterations                  %10d\n", r.Iterations)
	fmt.Fprintf(&b, "  Number of observations                   %10d\n", r.SampleSize)
	fmt.Fprintf(&b, "  Rows dropped (incomplete)                %10d\n\n", r.DroppedRows)

	b.WriteString("Model Test:\n")
	fmt.Fprintf(&b, "  Test statistic                           %10.3f\n", r.Indices.ChiSquare)
	fmt.Fprintf(&b, "  Degrees of freedom                       %10d\n", r.Indices.DF)
	fmt.Fprintf(&b, "  P-value                                  %10.3f\n\n", r.Indices.PValue)

	b.WriteString("Fit Indices:\n")
	fmt.Fprintf(&b, "  Comparative Fit Index (CFI)              %10.3f\n", r.Indices.CFI)
	fmt.Fprintf(&b, "  Tucker-Lewis Index (TLI)                 %10.3f\n", r.Indices.TLI)
	fmt.Fprintf(&b, "  RMSEA                                    %10.3f\n", r.Indices.RMSEA)
	fmt.Fprintf(&b, "  90%% CI RMSEA                  [%.3f, %.3f]\n", r.Indices.RMSEALower, r.Indices.RMSEAUpper)
	fmt.Fprintf(&b, "  SRMR                                     %10.3f\n\n", r.Indices.SRMR)

	writeBlock(&b, "Latent Variables:", r.ByOp(fit.OpLoading))
	writeBlock(&b, "Regressions:", r.ByOp(fit.OpRegression))
	writeBlock(&b, "Thresholds:", r.ByOp(fit.OpThreshold))
	writeBlock(&b, "Variances:", r.ByOp(fit.OpVariance))
	writeBlock(&b, "Defined Parameters:", r.ByOp(fit.OpDerived))

	_, err := io.WriteString(w, b.String())
	return err
}

func writeBlock(b *strings.Builder, title string, params []fit.ParamEstimate) {
	if len(params) == 0 {
		return
	}
	b.WriteString(title + "\n")
	fmt.Fprintf(b, "  %-22s %9s %9s %9s %9s\n", "", "Estimate", "Std.Err", "z-value", "P(>|z|)")
	for _, p := range params {
		if p.Fixed {
			fmt.Fprintf(b, "  %-22s %9.3f %9s %9s %9s\n", p.Name, p.Estimate, "", "", "")
			continue
		}
		fmt.Fprintf(b, "  %-22s %9.3f %9.3f %9.3f %9.3f\n",
			p.Name, p.Estimate, p.StdErr, p.Z, p.PValue)
	}
	b.WriteString("\n")
}
