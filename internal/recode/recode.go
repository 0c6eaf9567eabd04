package recode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"semfit/adapters/tabular"
	"semfit/domain/core"
	"semfit/internal/errors"
)

// Columns of the analysis dataset, in canonical order. A row survives
// recoding only when every one of these is defined.
var Columns = []string{
	"occ.worry", "srh", "college", "male", "white", "black", "other.race", "hisp", "age",
}

// FieldMap names the raw survey fields the recoder reads
type FieldMap struct {
	JobFind  string // perceived ease of finding an equally good job
	Health   string // self-rated health
	Degree   string // highest degree code
	Sex      string
	Race     string
	Hispanic string
	Age      string
}

// DefaultFieldMap returns the GSS-style raw field names
func DefaultFieldMap() FieldMap {
	return FieldMap{
		JobFind:  "jobfind",
		Health:   "health",
		Degree:   "degree",
		Sex:      "sex",
		Race:     "race",
		Hispanic: "hispanic",
		Age:      "age",
	}
}

// Dataset is the complete-case analysis dataset, column-major
type Dataset struct {
	Columns map[string][]float64
	N       int
	Dropped int
}

// Column returns a named analysis column
func (d *Dataset) Column(name string) ([]float64, bool) {
	col, ok := d.Columns[name]
	return col, ok
}

// Variance returns the sample variance of a named column
func (d *Dataset) Variance(name string) (float64, error) {
	col, ok := d.Columns[name]
	if !ok {
		return 0, core.NewVariableNotFoundError(name)
	}
	return stats.SampleVariance(col)
}

// Mean returns the sample mean of a named column
func (d *Dataset) Mean(name string) (float64, error) {
	col, ok := d.Columns[name]
	if !ok {
		return 0, core.NewVariableNotFoundError(name)
	}
	return stats.Mean(col)
}

// Recoder derives analysis variables from raw survey codes. It is a pure
// function of the observation table: same input, same output.
type Recoder struct {
	Fields FieldMap
}

// NewRecoder creates a recoder with the default field mapping
func NewRecoder() *Recoder {
	return &Recoder{Fields: DefaultFieldMap()}
}

// Recode builds the analysis dataset, dropping rows with any missing value
// among the nine derived columns. No imputation.
func (r *Recoder) Recode(t *tabular.Table) (*Dataset, error) {
	if err := r.checkFields(t); err != nil {
		return nil, err
	}

	cols := make(map[string][]float64, len(Columns))
	for _, name := range Columns {
		cols[name] = make([]float64, 0, len(t.Rows))
	}

	dropped := 0
	for _, row := range t.Rows {
		derived, ok := r.recodeRow(row)
		if !ok {
			dropped++
			continue
		}
		for _, name := range Columns {
			cols[name] = append(cols[name], derived[name])
		}
	}

	n := len(t.Rows) - dropped
	if n == 0 {
		return nil, errors.Wrap(core.ErrInsufficientData, "no complete cases after recoding")
	}

	return &Dataset{Columns: cols, N: n, Dropped: dropped}, nil
}

func (r *Recoder) checkFields(t *tabular.Table) error {
	required := []string{
		r.Fields.JobFind, r.Fields.Health, r.Fields.Degree,
		r.Fields.Sex, r.Fields.Race, r.Fields.Hispanic, r.Fields.Age,
	}
	have := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		have[h] = true
	}
	var missing []string
	for _, f := range required {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return errors.DataFormat(fmt.Sprintf("raw fields not found in table: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// recodeRow derives all nine analysis values; ok is false when any is missing
func (r *Recoder) recodeRow(row tabular.RawRow) (map[string]float64, bool) {
	out := make(map[string]float64, len(Columns))

	worry, ok := recodeWorry(row[r.Fields.JobFind])
	if !ok {
		return nil, false
	}
	out["occ.worry"] = worry

	srh, ok := recodeSRH(row[r.Fields.Health])
	if !ok {
		return nil, false
	}
	out["srh"] = srh

	college, ok := recodeCollege(row[r.Fields.Degree])
	if !ok {
		return nil, false
	}
	out["college"] = college

	male, ok := recodeMale(row[r.Fields.Sex])
	if !ok {
		return nil, false
	}
	out["male"] = male

	white, black, other, ok := recodeRace(row[r.Fields.Race])
	if !ok {
		return nil, false
	}
	out["white"] = white
	out["black"] = black
	out["other.race"] = other

	hisp, ok := recodeHispanic(row[r.Fields.Hispanic])
	if !ok {
		return nil, false
	}
	out["hisp"] = hisp

	age, ok := recodeAge(row[r.Fields.Age])
	if !ok {
		return nil, false
	}
	out["age"] = age

	return out, true
}

// recodeWorry reverse-codes the 3-point job-finding item so that higher
// values mean more difficulty: 1<->3 swapped, 2 unchanged.
func recodeWorry(raw string) (float64, bool) {
	code, ok := parseCode(raw)
	if !ok {
		return 0, false
	}
	switch code {
	case 1:
		return 3, true
	case 2:
		return 2, true
	case 3:
		return 1, true
	}
	return 0, false
}

// recodeSRH reverse-codes the 4-point health item so that higher values mean
// better health: 4->1, 3->2, 2->3, 1->4.
func recodeSRH(raw string) (float64, bool) {
	code, ok := parseCode(raw)
	if !ok {
		return 0, false
	}
	if code < 1 || code > 4 {
		return 0, false
	}
	return float64(5 - code), true
}

// recodeCollege maps degree codes to a binary indicator: bachelor (3) or
// graduate (4) degree is 1, lower codes (0-2) are 0. Codes outside 0-4 are
// DK/NA sentinels and count as missing, not as zero.
func recodeCollege(raw string) (float64, bool) {
	code, ok := parseCode(raw)
	if !ok {
		return 0, false
	}
	switch code {
	case 3, 4:
		return 1, true
	case 0, 1, 2:
		return 0, true
	}
	return 0, false
}

func recodeMale(raw string) (float64, bool) {
	code, ok := parseCode(raw)
	if !ok {
		return 0, false
	}
	switch code {
	case 1:
		return 1, true
	case 2:
		return 0, true
	}
	return 0, false
}

// recodeRace expands the 3-category race code into three binary indicators
func recodeRace(raw string) (white, black, other float64, ok bool) {
	code, parsed := parseCode(raw)
	if !parsed {
		return 0, 0, 0, false
	}
	switch code {
	case 1:
		return 1, 0, 0, true
	case 2:
		return 0, 1, 0, true
	case 3:
		return 0, 0, 1, true
	}
	return 0, 0, 0, false
}

// recodeHispanic: code 1 means "not hispanic"; 2-50 are specific origins
func recodeHispanic(raw string) (float64, bool) {
	code, ok := parseCode(raw)
	if !ok {
		return 0, false
	}
	if code == 1 {
		return 0, true
	}
	if code >= 2 && code <= 50 {
		return 1, true
	}
	return 0, false
}

// recodeAge keeps ages 18-89; 89 is the top-coded bucket, 98/99 are DK/NA
func recodeAge(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if v < 18 || v > 89 {
		return 0, false
	}
	return v, true
}

// parseCode parses an integer survey code; blank or non-numeric is missing
func parseCode(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Some exports write integer codes as "2.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		v = int(f)
	}
	return v, true
}
