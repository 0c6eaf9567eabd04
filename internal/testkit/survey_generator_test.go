package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semfit/internal/recode"
)

func TestGenerateRawTableIsDeterministic(t *testing.T) {
	cfg := DefaultSurveyConfig()
	a := GenerateRawTable(cfg)
	b := GenerateRawTable(cfg)

	require.Equal(t, len(a.Rows), len(b.Rows))
	assert.Equal(t, a.Rows[0], b.Rows[0])
	assert.Equal(t, a.Rows[len(a.Rows)-1], b.Rows[len(b.Rows)-1])
}

func TestGenerateRawTableRecodesCleanly(t *testing.T) {
	cfg := DefaultSurveyConfig()
	cfg.RowCount = 1000
	table := GenerateRawTable(cfg)

	ds, err := recode.NewRecoder().Recode(table)
	require.NoError(t, err)

	assert.Greater(t, ds.N, 900)
	assert.Greater(t, ds.Dropped, 0)
	assert.Equal(t, cfg.RowCount, ds.N+ds.Dropped)

	// all three worry categories present so thresholds are estimable
	worry, ok := ds.Column("occ.worry")
	require.True(t, ok)
	seen := map[float64]bool{}
	for _, v := range worry {
		seen[v] = true
	}
	assert.Len(t, seen, 3)
}

func TestGenerateLatentDatasetShape(t *testing.T) {
	ds := GenerateLatentDataset(1, 300, 0.25, 0.04, 0.1)

	assert.Equal(t, 300, ds.N)
	college, ok := ds.Column("college")
	require.True(t, ok)
	require.Len(t, college, 300)
	for _, v := range college {
		assert.Contains(t, []float64{0, 1}, v)
	}

	srh, ok := ds.Column("srh")
	require.True(t, ok)
	assert.Len(t, srh, 300)
}

func TestGenerateIndicatorColumnVariance(t *testing.T) {
	ds := GenerateIndicatorColumn(2, 20000, 2.0)
	v, err := ds.Variance("srh")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 0.1)
}
