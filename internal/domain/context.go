package domain

import "time"

// CalcContext is the immutable record threaded to every calculator
// invocation. Calculators must not mutate it; the engine builds one context
// per evaluated month.
type CalcContext struct {
	AsOfDate           time.Time
	ScenarioName       string
	IncludeProjections bool

	// AllEntities is the scenario-transformed snapshot the month is being
	// evaluated against. Calculators use it to resolve name references
	// (e.g. project team members) without holding pointers between entities.
	AllEntities []*Entity

	// Assumptions carries the active scenario's global assumptions.
	Assumptions map[string]any

	// Extras carries adapter-supplied values that calculators may consult.
	Extras map[string]any
}

// Assumption returns a numeric scenario assumption, with ok=false when the
// assumption is absent or non-numeric.
func (c CalcContext) Assumption(name string) (float64, bool) {
	return toFloat(c.Assumptions[name])
}

// FindEntity resolves a name reference against the context snapshot.
func (c CalcContext) FindEntity(name string, typ EntityType) (*Entity, bool) {
	for _, e := range c.AllEntities {
		if e.Name == name && (typ == "" || e.Type == typ) {
			return e, true
		}
	}
	return nil, false
}
