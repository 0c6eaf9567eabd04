package testkit

import (
	"math"
	"math/rand"
	"strconv"

	"semfit/adapters/tabular"
	"semfit/internal/recode"
)

// SurveyGeneratorConfig configures the synthetic survey generator
type SurveyGeneratorConfig struct {
	RowCount    int
	MissingRate float64
	Seed        int64
}

// DefaultSurveyConfig returns sensible defaults for synthetic survey data
func DefaultSurveyConfig() SurveyGeneratorConfig {
	return SurveyGeneratorConfig{
		RowCount:    500,
		MissingRate: 0.05,
		Seed:        42,
	}
}

// GenerateRawTable produces a raw observation table with realistic marginal
// code distributions and a controlled fraction of missing cells, matching the
// field layout the recoder expects.
func GenerateRawTable(cfg SurveyGeneratorConfig) *tabular.Table {
	rng := rand.New(rand.NewSource(cfg.Seed))
	fields := recode.DefaultFieldMap()
	headers := []string{
		fields.JobFind, fields.Health, fields.Degree,
		fields.Sex, fields.Race, fields.Hispanic, fields.Age,
	}

	rows := make([]tabular.RawRow, 0, cfg.RowCount)
	for i := 0; i < cfg.RowCount; i++ {
		row := tabular.RawRow{
			fields.JobFind:  strconv.Itoa(pick(rng, []float64{0.35, 0.40, 0.25}) + 1),
			fields.Health:   strconv.Itoa(pick(rng, []float64{0.30, 0.45, 0.20, 0.05}) + 1),
			fields.Degree:   strconv.Itoa(pick(rng, []float64{0.10, 0.45, 0.10, 0.23, 0.12})),
			fields.Sex:      strconv.Itoa(pick(rng, []float64{0.48, 0.52}) + 1),
			fields.Race:     strconv.Itoa(pick(rng, []float64{0.72, 0.16, 0.12}) + 1),
			fields.Hispanic: hispanicCode(rng),
			fields.Age:      strconv.Itoa(18 + rng.Intn(72)),
		}
		if rng.Float64() < cfg.MissingRate {
			row[headers[rng.Intn(len(headers))]] = ""
		}
		rows = append(rows, row)
	}

	return &tabular.Table{Headers: headers, Rows: rows}
}

func hispanicCode(rng *rand.Rand) string {
	if rng.Float64() < 0.85 {
		return "1"
	}
	return strconv.Itoa(2 + rng.Intn(10))
}

// pick draws an index from a discrete distribution
func pick(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}

// GenerateLatentDataset builds a two-column analysis dataset where the
// indicator is driven by a latent trait with a known structural coefficient:
//
//	eta = coef*college + e1,  e1 ~ N(0, latentResidVar)
//	srh = eta + e2,           e2 ~ N(0, indicatorResidVar)
//
// Recovery tests fit a single-latent model against this and check the
// coefficient comes back within sampling tolerance.
func GenerateLatentDataset(seed int64, n int, coef, latentResidVar, indicatorResidVar float64) *recode.Dataset {
	rng := rand.New(rand.NewSource(seed))

	college := make([]float64, n)
	srh := make([]float64, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < 0.3 {
			college[i] = 1
		}
		eta := coef*college[i] + rng.NormFloat64()*math.Sqrt(latentResidVar)
		srh[i] = eta + rng.NormFloat64()*math.Sqrt(indicatorResidVar)
	}

	return &recode.Dataset{
		Columns: map[string][]float64{"college": college, "srh": srh},
		N:       n,
	}
}

// GenerateIndicatorColumn builds a one-column dataset of normal draws with
// the given variance, for exercising the fixed-residual decomposition on its
// own.
func GenerateIndicatorColumn(seed int64, n int, variance float64) *recode.Dataset {
	rng := rand.New(rand.NewSource(seed))
	col := make([]float64, n)
	for i := range col {
		col[i] = rng.NormFloat64() * math.Sqrt(variance)
	}
	return &recode.Dataset{
		Columns: map[string][]float64{"srh": col},
		N:       n,
	}
}
