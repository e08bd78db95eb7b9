package whatif

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

// testDriver builds a driver over a "flat" scenario with no growth
// assumptions, so outcomes are linear in the swept fields.
func testDriver(t *testing.T, startingCash float64, raws ...map[string]any) *Driver {
	t.Helper()
	st, err := store.NewMemory(zerolog.Nop())
	require.NoError(t, err)
	for _, raw := range raws {
		e, err := domain.New(raw)
		require.NoError(t, err)
		require.NoError(t, st.Add(e))
	}
	registry := calc.NewRegistry(zerolog.Nop())
	calc.RegisterBuiltins(registry)
	mgr := scenarios.NewManager(zerolog.Nop())
	require.NoError(t, mgr.Add(&scenarios.Scenario{Name: "flat"}))
	eng := engine.New(st, registry, mgr, engine.Config{StartingCash: startingCash}, zerolog.Nop())
	return NewDriver(eng, st, mgr, zerolog.Nop())
}

func yearRange() (time.Time, time.Time) {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
}

func TestSensitivity(t *testing.T) {
	d := testDriver(t, 200000,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)
	start, end := yearRange()

	p := Parameter{
		Name:   "support_price",
		Entity: "support",
		Field:  "monthly_amount",
		Values: []float64{6000, 8000, 10000},
	}
	result, err := d.Sensitivity(context.Background(), "flat", p, start, end)
	require.NoError(t, err)
	require.Len(t, result.Points, 3)

	// 12 months of revenue against 156000 of salary cost.
	assert.InDelta(t, 200000-156000+12*6000, result.Points[0].FinalCashBalance, 1e-6)
	assert.InDelta(t, 200000-156000+12*10000, result.Points[2].FinalCashBalance, 1e-6)
	assert.InDelta(t, 1.0, result.Correlation, 1e-9)

	// dOutcome/dValue against the sweep midpoints: (48000/140000) / (4000/8000).
	assert.InDelta(t, 48000.0/140000.0/0.5, result.Elasticity, 1e-9)
}

func TestSensitivity_Validation(t *testing.T) {
	d := testDriver(t, 0)
	start, end := yearRange()

	_, err := d.Sensitivity(context.Background(), "flat", Parameter{Name: "p", Field: "amount"}, start, end)
	assert.Error(t, err, "selector is required")

	_, err = d.Sensitivity(context.Background(), "flat", Parameter{
		Name: "p", Entity: "x", Field: "amount", Values: []float64{1},
	}, start, end)
	assert.Error(t, err, "a sweep needs at least two values")
}

func TestMultiParam_GridSubsampling(t *testing.T) {
	d := testDriver(t, 100000,
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
	)
	start, end := yearRange()

	params := []Parameter{
		{Name: "price", Entity: "support", Field: "monthly_amount", Values: []float64{6000, 8000, 10000}},
		{Name: "salary", Entity: "alice", Field: "salary", Values: []float64{100000, 120000, 140000}},
	}

	full, err := d.MultiParam(context.Background(), "flat", params, start, end, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, full.TotalCells)
	assert.Equal(t, 9, full.Evaluated)
	assert.GreaterOrEqual(t, full.Best.FinalCashBalance, full.Worst.FinalCashBalance)
	assert.InDelta(t, 10000.0, full.Best.Values["price"], 1e-9)
	assert.InDelta(t, 100000.0, full.Best.Values["salary"], 1e-9)

	capped, err := d.MultiParam(context.Background(), "flat", params, start, end, 4)
	require.NoError(t, err)
	assert.Equal(t, 9, capped.TotalCells)
	assert.Equal(t, 3, capped.Evaluated, "stride 3 over 9 cells")
}

func TestBreakeven_Converges(t *testing.T) {
	d := testDriver(t, 0,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)
	start, end := yearRange()

	cfg := BreakevenConfig{
		Parameter: Parameter{Name: "support_price", Entity: "support", Field: "monthly_amount"},
		// Default bounds derive from the stored 8000: [800, 24000].
		Target:    0,
		Tolerance: 1.0,
	}
	result, err := d.Breakeven(context.Background(), "flat", cfg, start, end)
	require.NoError(t, err)
	assert.True(t, result.Converged)

	// 12 months of salary cost 13000/month against 12 months of revenue.
	assert.InDelta(t, 13000.0, result.Value, 1.0)
	assert.InDelta(t, 0.0, result.Outcome, 1.0)
	assert.NotEmpty(t, result.History)
	assert.LessOrEqual(t, result.Iterations, 50)
}

func TestBreakeven_RevenueTarget(t *testing.T) {
	d := testDriver(t, 0,
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)
	start, end := yearRange()

	cfg := BreakevenConfig{
		Parameter: Parameter{Name: "support_price", Entity: "support", Field: "monthly_amount"},
		Metric:    MetricTotalRevenue,
		Target:    120000,
		Tolerance: 1.0,
	}
	result, err := d.Breakeven(context.Background(), "flat", cfg, start, end)
	require.NoError(t, err)
	assert.True(t, result.Converged)
	// 12 months of revenue hit 120000 at 10000/month.
	assert.InDelta(t, 10000.0, result.Value, 1.0)

	_, err = d.Breakeven(context.Background(), "flat", BreakevenConfig{
		Parameter: Parameter{Name: "p", Entity: "support", Field: "monthly_amount"},
		Metric:    "roi",
	}, start, end)
	assert.Error(t, err, "unknown metric")
}

func TestBreakeven_UnbracketedTarget(t *testing.T) {
	d := testDriver(t, 0,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)
	start, end := yearRange()

	cfg := BreakevenConfig{
		Parameter: Parameter{Name: "support_price", Entity: "support", Field: "monthly_amount"},
		Target:    0,
		Lo:        20000,
		Hi:        24000,
	}
	result, err := d.Breakeven(context.Background(), "flat", cfg, start, end)
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.InDelta(t, 20000.0, result.Value, 1e-9, "nearest endpoint when the target is outside the bracket")
}

func TestBreakeven_Errors(t *testing.T) {
	d := testDriver(t, 0)
	start, end := yearRange()

	_, err := d.Breakeven(context.Background(), "flat", BreakevenConfig{
		Parameter: Parameter{Name: "p", Entity: "x", Field: "amount"},
		Lo:        10, Hi: 5,
	}, start, end)
	assert.Error(t, err, "inverted bounds")

	_, err = d.Breakeven(context.Background(), "flat", BreakevenConfig{
		Parameter: Parameter{Name: "p", Entity: "missing", Field: "amount"},
	}, start, end)
	assert.Error(t, err, "no stored entity to derive default bounds from")
}
