// Package calc implements the calculator registry and the built-in
// per-entity-type calculators. A calculator is a pure function
// (entity, context) -> number registered under (entity_type, name); the
// engine dispatches every active entity through the registry each month and
// routes results into fixed category buckets.
package calc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/domain"
)

// Func is a calculator function. It must be pure: a function of the entity
// and the context only, with no I/O and no shared mutable state.
type Func func(e *domain.Entity, ctx domain.CalcContext) (float64, error)

// Meta carries registration metadata for a calculator.
type Meta struct {
	Description  string
	Dependencies []string // names of calculators this one assumes ran
}

// Calculator is a registered calculator with its metadata.
type Calculator struct {
	Type domain.EntityType
	Name string
	Meta Meta
	Fn   Func
}

// Key identifies a calculator by (entity_type, name).
type Key struct {
	Type domain.EntityType
	Name string
}

// Registry is the process-wide dispatch table. It is populated once at
// startup (built-ins plus any user calculators) and treated as read-only
// afterwards; the lock exists for load-time registration and tests.
type Registry struct {
	calculators map[Key]*Calculator
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		calculators: make(map[Key]*Calculator),
		log:         log.With().Str("component", "calc_registry").Logger(),
	}
}

// Register adds a calculator. Idempotent by key; the last writer wins, which
// only matters at load time.
func (r *Registry) Register(typ domain.EntityType, name string, fn Func, meta Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calculators[Key{Type: typ, Name: name}] = &Calculator{
		Type: typ,
		Name: name,
		Meta: meta,
		Fn:   fn,
	}
}

// Get returns a calculator by key, or nil when none is registered.
func (r *Registry) Get(typ domain.EntityType, name string) *Calculator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.calculators[Key{Type: typ, Name: name}]
}

// ForType returns all calculators registered for an entity type, ordered by
// name for deterministic iteration.
func (r *Registry) ForType(typ domain.EntityType) []*Calculator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Calculator
	for key, c := range r.calculators {
		if key.Type == typ {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered calculators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.calculators)
}

// Calculate runs one calculator against an entity. The second return is
// false when no calculator matches (entity.type, name).
func (r *Registry) Calculate(e *domain.Entity, name string, ctx domain.CalcContext) (float64, bool, error) {
	c := r.Get(e.Type, name)
	if c == nil {
		return 0, false, nil
	}
	value, err := r.invoke(c, e, ctx)
	return value, true, err
}

// CalculateAll runs every calculator registered for the entity's type and
// returns name -> value. Per-calculator failures (errors or panics) are
// isolated: logged with entity and calculator context, then skipped. They
// never propagate, so one bad entity cannot take down a whole frame.
func (r *Registry) CalculateAll(e *domain.Entity, ctx domain.CalcContext) map[string]float64 {
	results := make(map[string]float64)
	for _, c := range r.ForType(e.Type) {
		value, err := r.invoke(c, e, ctx)
		if err != nil {
			r.log.Error().
				Err(err).
				Str("entity", e.Name).
				Str("calculator", c.Name).
				Msg("calculator failed, contribution treated as zero")
			continue
		}
		results[c.Name] = value
	}
	return results
}

// invoke runs a calculator with panic recovery. A panicking calculator is
// reported as an error by the caller, keeping exception-style control flow
// out of the engine.
func (r *Registry) invoke(c *Calculator, e *domain.Entity, ctx domain.CalcContext) (value float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = 0
			err = fmt.Errorf("panic in calculator %s/%s: %v", c.Type, c.Name, p)
		}
	}()
	return c.Fn(e, ctx)
}

// ValidateDependencies returns the declared dependencies of (type, name)
// that are not themselves registered for the same type.
func (r *Registry) ValidateDependencies(typ domain.EntityType, name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.calculators[Key{Type: typ, Name: name}]
	if c == nil {
		return nil
	}
	var missing []string
	for _, dep := range c.Meta.Dependencies {
		if _, ok := r.calculators[Key{Type: typ, Name: dep}]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// Names returns all registered calculator names for a type, sorted.
func (r *Registry) Names(typ domain.EntityType) []string {
	calcs := r.ForType(typ)
	names := make([]string, len(calcs))
	for i, c := range calcs {
		names[i] = c.Name
	}
	return names
}
