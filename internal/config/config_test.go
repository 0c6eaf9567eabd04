package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semfit/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.611, cfg.Estimator.Reliability)
	assert.Equal(t, 500, cfg.Estimator.MaxIterations)
	assert.Equal(t, 1e-9, cfg.Estimator.Tolerance)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SURVEY_FILE", "/data/gss.xlsx")
	t.Setenv("SRH_RELIABILITY", "0.75")
	t.Setenv("SEM_MAX_ITERATIONS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/gss.xlsx", cfg.Data.SurveyFile)
	assert.Equal(t, 0.75, cfg.Estimator.Reliability)
	assert.Equal(t, 250, cfg.Estimator.MaxIterations)
}

func TestLoadRejectsReliabilityOutsideUnitInterval(t *testing.T) {
	for _, v := range []string{"0", "1", "1.2", "-0.3"} {
		t.Setenv("SRH_RELIABILITY", v)
		_, err := Load()
		require.Error(t, err, "reliability=%s", v)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	}
}

func TestLoadRejectsNonPositiveIterationBudget(t *testing.T) {
	t.Setenv("SEM_MAX_ITERATIONS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SRH_RELIABILITY", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.611, cfg.Estimator.Reliability)
}
