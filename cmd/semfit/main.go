package main

import (
	"os"

	"github.com/joho/godotenv"

	"semfit/adapters/tabular"
	"semfit/domain/model"
	"semfit/internal"
	"semfit/internal/config"
	"semfit/internal/errors"
	"semfit/internal/recode"
	"semfit/internal/report"
	"semfit/internal/sem"
)

func main() {
	// Load .env file if present (ignore errors, fallback to env vars)
	_ = godotenv.Load()

	logger := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, err)
	}

	surveyFile := cfg.Data.SurveyFile
	if len(os.Args) > 1 {
		surveyFile = os.Args[1]
	}
	if surveyFile == "" {
		fatal(logger, errors.ConfigInvalid("no survey file: pass a path argument or set SURVEY_FILE"))
	}

	logger.Info("reading survey data from %s", surveyFile)
	table, err := tabular.NewReader(surveyFile).Read()
	if err != nil {
		fatal(logger, err)
	}

	ds, err := recode.NewRecoder().Recode(table)
	if err != nil {
		fatal(logger, err)
	}
	if ds.Dropped > 0 {
		logger.Warn("dropped %d of %d rows with missing values", ds.Dropped, ds.N+ds.Dropped)
	}

	srhVar, err := ds.Variance("srh")
	if err != nil {
		fatal(logger, err)
	}
	fixedResidual := (1 - cfg.Estimator.Reliability) * srhVar
	logger.Info("srh variance %.4f, reliability %.3f, fixed residual %.4f",
		srhVar, cfg.Estimator.Reliability, fixedResidual)

	m := model.SurveyModel(fixedResidual)

	estimator := sem.NewEstimator(cfg.Estimator.MaxIterations, cfg.Estimator.Tolerance)
	result, err := estimator.Fit(ds, m)
	if err != nil {
		fatal(logger, err)
	}

	if err := report.NewReporter().Write(os.Stdout, result); err != nil {
		fatal(logger, err)
	}
}

func fatal(logger *internal.Logger, err error) {
	logger.Error("%s: %v", errors.GetCode(err), err)
	os.Exit(1)
}
