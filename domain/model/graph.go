package model

import (
	"fmt"
)

// VariableKind tags a node in the model graph
type VariableKind string

const (
	KindLatent             VariableKind = "latent"
	KindOrdinalObserved    VariableKind = "ordinal"
	KindContinuousObserved VariableKind = "continuous"
)

// Variable is a node in the model graph
type Variable struct {
	Name   string
	Kind   VariableKind
	Levels int // number of categories, ordinal variables only
}

// Path is a directed edge: a regression (To ~ From) or, when From is latent
// and To is its indicator, a factor loading (From =~ To). A nil Fixed value
// marks the coefficient as a free parameter.
type Path struct {
	From  string
	To    string
	Fixed *float64
}

// IsLoading reports whether the edge is a loading given the owning model
func (p Path) isLoading(m *Model) bool {
	v, ok := m.Variable(p.From)
	return ok && v.Kind == KindLatent
}

// Name returns the lavaan-style label for the edge
func (p Path) Name(m *Model) string {
	if p.isLoading(m) {
		return p.From + "=~" + p.To
	}
	return p.To + "~" + p.From
}

// FixedVariance constrains a variable's residual variance to a constant
// supplied from outside the estimation (e.g. from a reliability estimate).
type FixedVariance struct {
	Variable string
	Value    float64
}

// PathRef identifies a free path coefficient inside a derived parameter
type PathRef struct {
	From string
	To   string
}

// Ref is shorthand for building a PathRef
func Ref(from, to string) PathRef {
	return PathRef{From: from, To: to}
}

// DerivedTerm is a product of path coefficients
type DerivedTerm struct {
	Paths []PathRef
}

// Product builds a DerivedTerm from path references
func Product(paths ...PathRef) DerivedTerm {
	return DerivedTerm{Paths: paths}
}

// DerivedParam is a scalar defined as a sum of products of path coefficients,
// e.g. indirect = a*b and total = c + a*b.
type DerivedParam struct {
	Name  string
	Terms []DerivedTerm
}

// Model is the validated, immutable model graph
type Model struct {
	Variables      []Variable
	Paths          []Path
	FixedVariances []FixedVariance
	Derived        []DerivedParam
}

// Variable looks up a node by name
func (m *Model) Variable(name string) (Variable, bool) {
	for _, v := range m.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Observed returns all non-latent variables in declaration order
func (m *Model) Observed() []Variable {
	out := make([]Variable, 0, len(m.Variables))
	for _, v := range m.Variables {
		if v.Kind != KindLatent {
			out = append(out, v)
		}
	}
	return out
}

// Latents returns all latent variables in declaration order
func (m *Model) Latents() []Variable {
	var out []Variable
	for _, v := range m.Variables {
		if v.Kind == KindLatent {
			out = append(out, v)
		}
	}
	return out
}

// Incoming returns all paths pointing at the named variable
func (m *Model) Incoming(name string) []Path {
	var out []Path
	for _, p := range m.Paths {
		if p.To == name {
			out = append(out, p)
		}
	}
	return out
}

// IsEndogenous reports whether the variable has at least one incoming path
func (m *Model) IsEndogenous(name string) bool {
	return len(m.Incoming(name)) > 0
}

// IndicatorOf returns the single indicator of a latent variable
func (m *Model) IndicatorOf(latent string) (string, bool) {
	for _, p := range m.Paths {
		if p.From == latent {
			if v, ok := m.Variable(p.To); ok && v.Kind != KindLatent {
				return p.To, true
			}
		}
	}
	return "", false
}

// FixedVarianceOf returns the fixed residual variance for a variable, if any
func (m *Model) FixedVarianceOf(name string) (float64, bool) {
	for _, fv := range m.FixedVariances {
		if fv.Variable == name {
			return fv.Value, true
		}
	}
	return 0, false
}

// FreePaths returns all paths whose coefficient is estimated
func (m *Model) FreePaths() []Path {
	var out []Path
	for _, p := range m.Paths {
		if p.Fixed == nil {
			out = append(out, p)
		}
	}
	return out
}

func (m *Model) validate() error {
	names := make(map[string]bool, len(m.Variables))
	for _, v := range m.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable with empty name")
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate variable %q", v.Name)
		}
		if v.Kind == KindOrdinalObserved && v.Levels < 2 {
			return fmt.Errorf("ordinal variable %q needs at least 2 levels, got %d", v.Name, v.Levels)
		}
		names[v.Name] = true
	}

	seen := make(map[string]bool, len(m.Paths))
	for _, p := range m.Paths {
		if !names[p.From] || !names[p.To] {
			return fmt.Errorf("path %s -> %s references an undeclared variable", p.From, p.To)
		}
		if p.From == p.To {
			return fmt.Errorf("self-loop on %q", p.From)
		}
		key := p.From + ">" + p.To
		if seen[key] {
			return fmt.Errorf("duplicate path %s -> %s", p.From, p.To)
		}
		seen[key] = true
	}

	// Single-indicator identification: each latent needs exactly one
	// fixed-loading indicator whose residual variance is constrained.
	for _, l := range m.Latents() {
		var loadings []Path
		for _, p := range m.Paths {
			if p.From == l.Name {
				if v, _ := m.Variable(p.To); v.Kind != KindLatent {
					loadings = append(loadings, p)
				}
			}
		}
		if len(loadings) != 1 {
			return fmt.Errorf("latent %q must have exactly one indicator, got %d", l.Name, len(loadings))
		}
		if loadings[0].Fixed == nil {
			return fmt.Errorf("latent %q: indicator loading must be fixed", l.Name)
		}
		if _, ok := m.FixedVarianceOf(loadings[0].To); !ok {
			return fmt.Errorf("latent %q: indicator %q needs a fixed residual variance", l.Name, loadings[0].To)
		}
	}

	for _, fv := range m.FixedVariances {
		if !names[fv.Variable] {
			return fmt.Errorf("fixed variance references undeclared variable %q", fv.Variable)
		}
		if fv.Value < 0 {
			return fmt.Errorf("fixed variance for %q is negative", fv.Variable)
		}
	}

	free := make(map[PathRef]bool)
	for _, p := range m.FreePaths() {
		free[PathRef{From: p.From, To: p.To}] = true
	}
	for _, d := range m.Derived {
		if d.Name == "" || len(d.Terms) == 0 {
			return fmt.Errorf("derived parameter %q is empty", d.Name)
		}
		for _, t := range d.Terms {
			for _, r := range t.Paths {
				if !free[r] {
					return fmt.Errorf("derived parameter %q references non-free path %s -> %s", d.Name, r.From, r.To)
				}
			}
		}
	}

	return nil
}
