package calc

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/domain"
)

func testEntity(t *testing.T, raw map[string]any) *domain.Entity {
	t.Helper()
	e, err := domain.New(raw)
	require.NoError(t, err)
	return e
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(domain.TypeEmployee, "headcount_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		return 1, nil
	}, Meta{Description: "always one"})

	e := testEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})

	value, ok, err := r.Calculate(e, "headcount_calc", domain.CalcContext{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, value)

	// Unmatched (type, name) reports ok=false without an error.
	_, ok, err = r.Calculate(e, "no_such_calc", domain.CalcContext{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_CalculateAllIsolatesFailures(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(domain.TypeEmployee, "good_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		return 42, nil
	}, Meta{})
	r.Register(domain.TypeEmployee, "failing_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		return 0, errors.New("boom")
	}, Meta{})
	r.Register(domain.TypeEmployee, "panicking_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		panic("kaboom")
	}, Meta{})

	e := testEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})

	results := r.CalculateAll(e, domain.CalcContext{})
	assert.Equal(t, map[string]float64{"good_calc": 42}, results)
}

func TestRegistry_ForTypeOrdering(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	fn := func(e *domain.Entity, ctx domain.CalcContext) (float64, error) { return 0, nil }
	r.Register(domain.TypeEmployee, "zeta_calc", fn, Meta{})
	r.Register(domain.TypeEmployee, "alpha_calc", fn, Meta{})
	r.Register(domain.TypeProject, "other_calc", fn, Meta{})

	assert.Equal(t, []string{"alpha_calc", "zeta_calc"}, r.Names(domain.TypeEmployee))
	assert.Equal(t, 3, r.Count())
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(domain.TypeEmployee, "dup_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		return 1, nil
	}, Meta{})
	r.Register(domain.TypeEmployee, "dup_calc", func(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
		return 2, nil
	}, Meta{})

	e := testEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})
	value, ok, err := r.Calculate(e, "dup_calc", domain.CalcContext{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, value)
}

func TestRegistry_ValidateDependencies(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	fn := func(e *domain.Entity, ctx domain.CalcContext) (float64, error) { return 0, nil }
	r.Register(domain.TypeEmployee, "base_calc", fn, Meta{})
	r.Register(domain.TypeEmployee, "derived_calc", fn, Meta{Dependencies: []string{"base_calc", "missing_calc"}})

	missing := r.ValidateDependencies(domain.TypeEmployee, "derived_calc")
	assert.Equal(t, []string{"missing_calc"}, missing)
}
