package model

import (
	"fmt"

	"semfit/domain/core"
	"semfit/internal/errors"
)

// Builder assembles a model graph through a typed API, replacing the
// string-based model syntax of general SEM packages.
type Builder struct {
	model Model
}

// NewModel creates an empty builder
func NewModel() *Builder {
	return &Builder{}
}

// Latent declares a latent variable
func (b *Builder) Latent(name string) *Builder {
	b.model.Variables = append(b.model.Variables, Variable{Name: name, Kind: KindLatent})
	return b
}

// Ordinal declares an ordinal observed variable with the given category count
func (b *Builder) Ordinal(name string, levels int) *Builder {
	b.model.Variables = append(b.model.Variables, Variable{Name: name, Kind: KindOrdinalObserved, Levels: levels})
	return b
}

// Continuous declares continuous observed variables
func (b *Builder) Continuous(names ...string) *Builder {
	for _, name := range names {
		b.model.Variables = append(b.model.Variables, Variable{Name: name, Kind: KindContinuousObserved})
	}
	return b
}

// Loading adds a fixed factor loading from a latent variable to its indicator
func (b *Builder) Loading(latent, indicator string, fixed float64) *Builder {
	v := fixed
	b.model.Paths = append(b.model.Paths, Path{From: latent, To: indicator, Fixed: &v})
	return b
}

// Regress adds free regression paths from each predictor to the dependent
func (b *Builder) Regress(dep string, predictors ...string) *Builder {
	for _, pred := range predictors {
		b.model.Paths = append(b.model.Paths, Path{From: pred, To: dep})
	}
	return b
}

// FixResidual constrains a variable's residual variance to a constant
func (b *Builder) FixResidual(variable string, value float64) *Builder {
	b.model.FixedVariances = append(b.model.FixedVariances, FixedVariance{Variable: variable, Value: value})
	return b
}

// Derive defines a scalar parameter as a sum of products of path coefficients
func (b *Builder) Derive(name string, terms ...DerivedTerm) *Builder {
	b.model.Derived = append(b.model.Derived, DerivedParam{Name: name, Terms: terms})
	return b
}

// Build validates the graph and returns the immutable model. Validation
// failures carry the INVALID_MODEL code and match core.ErrInvalidModel.
func (b *Builder) Build() (*Model, error) {
	m := b.model
	if err := m.validate(); err != nil {
		return nil, errors.InvalidModel(fmt.Errorf("%w: %w", core.ErrInvalidModel, err))
	}
	return &m, nil
}

// Covariates used by the survey model, in reporting order. White is the
// reference category for race; including all three indicators would make the
// covariate block singular, since they sum to one on every row.
var surveyCovariates = []string{"college", "male", "black", "other.race", "hisp", "age"}

// SurveyModel returns the fixed specification of the job-insecurity study: a
// latent health trait measured by self-rated health with its residual fixed
// from an external reliability estimate, an ordinal worry mediator, and the
// usual demographic covariates. Panics on a bad graph, which would be a
// programming error in the specification itself.
func SurveyModel(fixedResidual float64) *Model {
	worryPreds := surveyCovariates
	healthPreds := append([]string{"occ.worry"}, surveyCovariates...)

	m, err := NewModel().
		Latent("health").
		Ordinal("occ.worry", 3).
		Continuous("srh").
		Continuous(surveyCovariates...).
		Loading("health", "srh", 1.0).
		Regress("occ.worry", worryPreds...).
		Regress("health", healthPreds...).
		FixResidual("srh", fixedResidual).
		Derive("indirect",
			Product(Ref("college", "occ.worry"), Ref("occ.worry", "health"))).
		Derive("total",
			Product(Ref("college", "health")),
			Product(Ref("college", "occ.worry"), Ref("occ.worry", "health"))).
		Build()
	if err != nil {
		panic(err)
	}
	return m
}
