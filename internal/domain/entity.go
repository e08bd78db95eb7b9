// Package domain contains the entity model for the cash-flow and cap-table
// engine: typed entity variants over an open schema, the calculation context
// threaded to calculators, monthly frame types, and the error taxonomy.
//
// Entities are tagged records. The tag (`type`) selects a closed variant with
// typed required fields; every other field is preserved verbatim in the
// attribute map so human-edited files round-trip without schema changes.
// Typed accessors and domain methods read lazily from the attribute map, which
// means scenario overrides and Monte-Carlo perturbations only ever mutate one
// representation.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType is the closed set of entity tags.
type EntityType string

const (
	TypeEmployee     EntityType = "employee"
	TypeGrant        EntityType = "grant"
	TypeInvestment   EntityType = "investment"
	TypeSale         EntityType = "sale"
	TypeService      EntityType = "service"
	TypeFacility     EntityType = "facility"
	TypeSoftware     EntityType = "software"
	TypeEquipment    EntityType = "equipment"
	TypeProject      EntityType = "project"
	TypeShareholder  EntityType = "shareholder"
	TypeShareClass   EntityType = "share_class"
	TypeFundingRound EntityType = "funding_round"
)

// AllTypes lists every known entity type in a stable order.
func AllTypes() []EntityType {
	return []EntityType{
		TypeEmployee, TypeGrant, TypeInvestment, TypeSale, TypeService,
		TypeFacility, TypeSoftware, TypeEquipment, TypeProject,
		TypeShareholder, TypeShareClass, TypeFundingRound,
	}
}

// IsKnownType reports whether t is a member of the closed type set.
func IsKnownType(t EntityType) bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// DateLayout is the ISO-8601 day-precision layout used across the system.
const DateLayout = "2006-01-02"

// Entity is a typed descriptor over an open schema. Base fields are parsed
// out of the attribute map at construction; Attrs keeps the full payload
// (including the base fields) so unknown keys survive persistence.
type Entity struct {
	Type       EntityType
	Name       string
	StartDate  time.Time
	EndDate    *time.Time // nil means open-ended
	Tags       []string
	Notes      string
	Attrs      map[string]any
	SourcePath string // file of record, when loaded from disk
}

// New constructs a typed entity from a generic key/value map. The `type`
// field selects the variant; variant-specific required fields and range
// constraints are validated here. Unknown fields are retained.
func New(raw map[string]any) (*Entity, error) {
	name, _ := raw["name"].(string)
	typStr, _ := raw["type"].(string)
	typ := EntityType(typStr)

	if name == "" {
		return nil, &InvalidFieldError{Entity: name, Field: "name", Reason: "must be a non-empty string"}
	}
	if typStr == "" {
		return nil, &InvalidFieldError{Entity: name, Field: "type", Reason: "required"}
	}
	if !IsKnownType(typ) {
		return nil, &InvalidFieldError{Entity: name, Field: "type", Reason: fmt.Sprintf("unknown entity type %q", typStr)}
	}

	e := &Entity{
		Type:  typ,
		Name:  name,
		Attrs: cloneMap(raw),
	}

	start, ok := raw["start_date"]
	if !ok {
		return nil, &InvalidFieldError{Entity: name, Field: "start_date", Reason: "required"}
	}
	startDate, err := coerceDate(start)
	if err != nil {
		return nil, &BadDateError{Entity: name, Field: "start_date", Value: fmt.Sprintf("%v", start)}
	}
	e.StartDate = startDate

	if end, ok := raw["end_date"]; ok && end != nil {
		endDate, err := coerceDate(end)
		if err != nil {
			return nil, &BadDateError{Entity: name, Field: "end_date", Value: fmt.Sprintf("%v", end)}
		}
		if endDate.Before(startDate) {
			return nil, &OutOfRangeError{Entity: name, Field: "end_date", Reason: "end_date must be >= start_date"}
		}
		e.EndDate = &endDate
	}

	e.Tags = coerceStrings(raw["tags"])
	e.Notes, _ = raw["notes"].(string)

	if validate, ok := variantValidators[typ]; ok {
		if err := validate(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// variantValidators holds per-type construction validation. Populated by the
// variant files in this package.
var variantValidators = map[EntityType]func(*Entity) error{}

// IsActive reports whether the entity is live on date d:
// start_date <= d and (no end_date or end_date >= d).
func (e *Entity) IsActive(d time.Time) bool {
	day := Day(d)
	if Day(e.StartDate).After(day) {
		return false
	}
	if e.EndDate != nil && Day(*e.EndDate).Before(day) {
		return false
	}
	return true
}

// ActiveInMonth reports whether the entity's lifetime overlaps the calendar
// month containing m. The engine evaluates entities at month granularity, so
// a mid-month start or end still contributes to that month.
func (e *Entity) ActiveInMonth(m time.Time) bool {
	first := FirstOfMonth(m)
	next := AddMonths(first, 1)
	if !Day(e.StartDate).Before(next) {
		return false
	}
	if e.EndDate != nil && Day(*e.EndDate).Before(first) {
		return false
	}
	return true
}

// Clone returns a deep copy. Scenario transforms and Monte-Carlo perturbations
// always operate on clones; entities in the store are never mutated in place.
func (e *Entity) Clone() *Entity {
	clone := *e
	clone.Attrs = cloneMap(e.Attrs)
	clone.Tags = append([]string(nil), e.Tags...)
	if e.EndDate != nil {
		end := *e.EndDate
		clone.EndDate = &end
	}
	return &clone
}

// HasAnyTag reports a non-empty intersection with the given tags.
func (e *Entity) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// --- attribute accessors -------------------------------------------------

// Float returns a numeric attribute, with ok=false when absent or non-numeric.
func (e *Entity) Float(field string) (float64, bool) {
	return toFloat(e.Attrs[field])
}

// FloatOr returns a numeric attribute or def when absent.
func (e *Entity) FloatOr(field string, def float64) float64 {
	if v, ok := toFloat(e.Attrs[field]); ok {
		return v
	}
	return def
}

// IntOr returns an integer attribute or def when absent.
func (e *Entity) IntOr(field string, def int) int {
	if v, ok := toFloat(e.Attrs[field]); ok {
		return int(v)
	}
	return def
}

// Str returns a string attribute ("" when absent).
func (e *Entity) Str(field string) string {
	s, _ := e.Attrs[field].(string)
	return s
}

// StrOr returns a string attribute or def when absent or empty.
func (e *Entity) StrOr(field, def string) string {
	if s, ok := e.Attrs[field].(string); ok && s != "" {
		return s
	}
	return def
}

// BoolOr returns a boolean attribute or def when absent.
func (e *Entity) BoolOr(field string, def bool) bool {
	if b, ok := e.Attrs[field].(bool); ok {
		return b
	}
	return def
}

// Date returns a date attribute, coercing strings and time values.
func (e *Entity) Date(field string) (time.Time, bool) {
	v, ok := e.Attrs[field]
	if !ok || v == nil {
		return time.Time{}, false
	}
	d, err := coerceDate(v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// MapList returns a list-of-maps attribute (payment schedules, milestones).
// Non-map elements are skipped.
func (e *Entity) MapList(field string) []map[string]any {
	raw, ok := e.Attrs[field].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m := toStringMap(item); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// --- dot-path access -----------------------------------------------------

// GetPath resolves a dot-separated path into nested maps, e.g.
// "equity.shares". List indices are supported as numeric segments.
func (e *Entity) GetPath(path string) (any, bool) {
	return getPath(e.Attrs, strings.Split(path, "."))
}

// SetPath sets a dot-separated path, creating intermediate maps as needed.
// Base fields (name, start_date, end_date, tags, notes) set through the top
// level are re-coerced so the typed view stays consistent.
func (e *Entity) SetPath(path string, value any) error {
	parts := strings.Split(path, ".")
	if err := setPath(e.Attrs, parts, value); err != nil {
		return err
	}
	if len(parts) == 1 {
		return e.refreshBase(parts[0])
	}
	return nil
}

// MultiplyPath multiplies a numeric field in place. Non-numeric targets are
// an error so scenario typos surface instead of silently doing nothing.
func (e *Entity) MultiplyPath(path string, multiplier float64) error {
	current, ok := e.GetPath(path)
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: path, Reason: "field not present"}
	}
	num, ok := toFloat(current)
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: path, Reason: "multiplier applied to non-numeric field"}
	}
	return e.SetPath(path, num*multiplier)
}

// refreshBase re-parses a base field after a top-level attribute write.
func (e *Entity) refreshBase(field string) error {
	switch field {
	case "name":
		if s, ok := e.Attrs["name"].(string); ok && s != "" {
			e.Name = s
		}
	case "start_date":
		d, err := coerceDate(e.Attrs["start_date"])
		if err != nil {
			return &BadDateError{Entity: e.Name, Field: "start_date", Value: fmt.Sprintf("%v", e.Attrs["start_date"])}
		}
		e.StartDate = d
	case "end_date":
		if e.Attrs["end_date"] == nil {
			e.EndDate = nil
			return nil
		}
		d, err := coerceDate(e.Attrs["end_date"])
		if err != nil {
			return &BadDateError{Entity: e.Name, Field: "end_date", Value: fmt.Sprintf("%v", e.Attrs["end_date"])}
		}
		e.EndDate = &d
	case "tags":
		e.Tags = coerceStrings(e.Attrs["tags"])
	case "notes":
		e.Notes, _ = e.Attrs["notes"].(string)
	}
	return nil
}

// --- coercion helpers ----------------------------------------------------

func getPath(m map[string]any, parts []string) (any, bool) {
	var current any = m
	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func setPath(m map[string]any, parts []string, value any) error {
	if len(parts) == 1 {
		m[parts[0]] = value
		return nil
	}
	next, ok := m[parts[0]]
	if !ok || next == nil {
		child := map[string]any{}
		m[parts[0]] = child
		return setPath(child, parts[1:], value)
	}
	switch node := next.(type) {
	case map[string]any:
		return setPath(node, parts[1:], value)
	case []any:
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 || idx >= len(node) {
			return fmt.Errorf("invalid list index %q in path", parts[1])
		}
		if len(parts) == 2 {
			node[idx] = value
			return nil
		}
		child, ok := node[idx].(map[string]any)
		if !ok {
			return fmt.Errorf("path segment %q is not a map", parts[1])
		}
		return setPath(child, parts[2:], value)
	default:
		return fmt.Errorf("path segment %q is not traversable", parts[0])
	}
}

// ToFloat coerces any numeric kind to float64. YAML and msgpack decode
// numbers into different concrete types, so every numeric read funnels
// through here.
func ToFloat(v any) (float64, bool) {
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func coerceDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return Day(d), nil
	case string:
		parsed, err := time.Parse(DateLayout, d)
		if err != nil {
			return time.Time{}, err
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}

func coerceStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toStringMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if key, ok := k.(string); ok {
				out[key] = val
			}
		}
		return out
	default:
		return nil
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)
	case map[any]any:
		return cloneMap(toStringMap(value))
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), value...)
	default:
		return v
	}
}
