// Package scenarios implements declarative entity transforms: filters that
// select which entities participate in a calculation, overrides that rewrite
// fields on matching entities, and global assumptions consumed downstream by
// the engine and calculators.
package scenarios

import (
	"fmt"
	"regexp"

	"github.com/aristath/runway/internal/domain"
)

// Assumption keys recognized by the engine and the scenario transform.
const (
	AssumptionRevenueGrowthRate  = "revenue_growth_rate"
	AssumptionOverheadMultiplier = "overhead_multiplier"
	AssumptionHiringDelayMonths  = "hiring_delay_months"
)

// Override rewrites fields on entities it matches. An override matches when
// ANY of its selectors hit: exact entity name, entity type, case-insensitive
// name regex, or a non-empty tag intersection. Exactly one action applies:
// Field+Value (set), Field+Multiplier (numeric scale), or Changes (batch set).
type Override struct {
	Entity      string   `yaml:"entity,omitempty"`
	EntityType  string   `yaml:"entity_type,omitempty"`
	NamePattern string   `yaml:"name_pattern,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`

	Field      string         `yaml:"field,omitempty"`
	Value      any            `yaml:"value,omitempty"`
	Multiplier *float64       `yaml:"multiplier,omitempty"`
	Changes    map[string]any `yaml:"changes,omitempty"`

	pattern *regexp.Regexp // compiled lazily on first match
}

// Matches reports whether the override applies to an entity.
func (o *Override) Matches(e *domain.Entity) bool {
	if o.Entity != "" && o.Entity == e.Name {
		return true
	}
	if o.EntityType != "" && domain.EntityType(o.EntityType) == e.Type {
		return true
	}
	if o.NamePattern != "" {
		if o.pattern == nil {
			compiled, err := regexp.Compile("(?i)" + o.NamePattern)
			if err != nil {
				return false
			}
			o.pattern = compiled
		}
		if o.pattern.MatchString(e.Name) {
			return true
		}
	}
	if len(o.Tags) > 0 && e.HasAnyTag(o.Tags) {
		return true
	}
	return false
}

// Apply rewrites the entity in place (the caller passes a clone).
func (o *Override) Apply(e *domain.Entity) error {
	switch {
	case o.Field != "" && o.Multiplier != nil:
		return e.MultiplyPath(o.Field, *o.Multiplier)
	case o.Field != "":
		return e.SetPath(o.Field, o.Value)
	case len(o.Changes) > 0:
		for field, value := range o.Changes {
			if err := e.SetPath(field, value); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// Validate checks the override's regex compiles and exactly one action is
// configured.
func (o *Override) Validate() error {
	if o.NamePattern != "" {
		if _, err := regexp.Compile("(?i)" + o.NamePattern); err != nil {
			return fmt.Errorf("invalid name_pattern %q: %w", o.NamePattern, err)
		}
	}
	actions := 0
	if o.Field != "" && o.Multiplier != nil {
		actions++
	} else if o.Field != "" {
		actions++
	}
	if len(o.Changes) > 0 {
		actions++
	}
	if actions > 1 {
		return fmt.Errorf("override must apply exactly one of set, multiply, or changes")
	}
	return nil
}

// Filters select which entities participate. Exclude rules always override
// include rules.
type Filters struct {
	IncludeTypes    []string `yaml:"include_types,omitempty"`
	ExcludeTypes    []string `yaml:"exclude_types,omitempty"`
	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	RequireTags     []string `yaml:"require_tags,omitempty"` // any-of
	ExcludeTags     []string `yaml:"exclude_tags,omitempty"` // any-of
}

// ShouldInclude applies the filter rules to an entity.
func (f *Filters) ShouldInclude(e *domain.Entity) bool {
	for _, t := range f.ExcludeTypes {
		if domain.EntityType(t) == e.Type {
			return false
		}
	}
	for _, p := range f.ExcludePatterns {
		if matched, err := regexp.MatchString("(?i)"+p, e.Name); err == nil && matched {
			return false
		}
	}
	if len(f.ExcludeTags) > 0 && e.HasAnyTag(f.ExcludeTags) {
		return false
	}

	if len(f.IncludeTypes) > 0 {
		found := false
		for _, t := range f.IncludeTypes {
			if domain.EntityType(t) == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.IncludePatterns) > 0 {
		found := false
		for _, p := range f.IncludePatterns {
			if matched, err := regexp.MatchString("(?i)"+p, e.Name); err == nil && matched {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.RequireTags) > 0 && !e.HasAnyTag(f.RequireTags) {
		return false
	}
	return true
}

// Scenario is a named declarative transform over an entity set.
type Scenario struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description,omitempty"`
	Assumptions     map[string]any `yaml:"assumptions,omitempty"`
	EntityOverrides []Override     `yaml:"entity_overrides,omitempty"`
	EntityFilters   Filters        `yaml:"entity_filters,omitempty"`
}

// Assumption returns a numeric assumption with ok=false when absent.
func (s *Scenario) Assumption(name string) (float64, bool) {
	switch v := s.Assumptions[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ApplyToEntity produces a transformed copy of the entity: matching
// overrides apply in registration order (later overrides win on the same
// field), then global assumptions. The input entity is never mutated.
func (s *Scenario) ApplyToEntity(e *domain.Entity) (*domain.Entity, error) {
	out := e.Clone()

	for i := range s.EntityOverrides {
		o := &s.EntityOverrides[i]
		if !o.Matches(out) {
			continue
		}
		if err := o.Apply(out); err != nil {
			return nil, fmt.Errorf("scenario %q override %d: %w", s.Name, i, err)
		}
	}

	if err := s.applyAssumptions(out); err != nil {
		return nil, err
	}
	return out, nil
}

// applyAssumptions applies the recognized global assumptions to one entity.
// revenue_growth_rate is not applied here; the engine consumes it as a
// post-aggregation adjustment.
func (s *Scenario) applyAssumptions(e *domain.Entity) error {
	if e.Type != domain.TypeEmployee {
		return nil
	}

	if overhead, ok := s.Assumption(AssumptionOverheadMultiplier); ok {
		if _, has := e.Float("overhead_multiplier"); !has {
			if err := e.SetPath("overhead_multiplier", overhead); err != nil {
				return err
			}
		}
	}

	if delay, ok := s.Assumption(AssumptionHiringDelayMonths); ok && delay != 0 {
		// Hiring delays shift by 30-day increments; negative values pull
		// hires forward.
		shifted := e.StartDate.AddDate(0, 0, int(delay*30))
		if err := e.SetPath("start_date", shifted.Format(domain.DateLayout)); err != nil {
			return err
		}
	}
	return nil
}

// ApplyToSet filters the entity set and transforms the survivors. Input
// entities are never mutated; the result is all clones.
func (s *Scenario) ApplyToSet(entities []*domain.Entity) ([]*domain.Entity, error) {
	out := make([]*domain.Entity, 0, len(entities))
	for _, e := range entities {
		if !s.EntityFilters.ShouldInclude(e) {
			continue
		}
		transformed, err := s.ApplyToEntity(e)
		if err != nil {
			return nil, err
		}
		out = append(out, transformed)
	}
	return out, nil
}

// Validate checks the scenario definition.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	for i := range s.EntityOverrides {
		if err := s.EntityOverrides[i].Validate(); err != nil {
			return fmt.Errorf("scenario %q override %d: %w", s.Name, i, err)
		}
	}
	return nil
}
