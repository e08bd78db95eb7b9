package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

func testEngine(t *testing.T, cfg Config, raws ...map[string]any) *Engine {
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
	return New(st, registry, scenarios.NewManager(zerolog.Nop()), cfg, zerolog.Nop())
}

func jan(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestEngine_SingleEmployeeBaseline(t *testing.T) {
	eng := testEngine(t, Config{StartingCash: 200000}, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})

	frame, err := eng.Calculate(jan(2025), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "baseline")
	require.NoError(t, err)
	require.Equal(t, 12, frame.Len())

	// 120000 / 12 * 1.3 overhead, every month, no revenue.
	for i, r := range frame.Records {
		assert.InDelta(t, 13000.0, r.TotalExpenses, 1e-6, "month %d", i)
		assert.Zero(t, r.TotalRevenue)
		assert.Equal(t, 1, r.ActiveEmployees)
	}
	assert.InDelta(t, 156000.0, frame.TotalExpenses(), 1e-6)
	assert.InDelta(t, 200000.0-156000.0, frame.FinalCashBalance(), 1e-6)

	last, ok := frame.Last()
	require.True(t, ok)
	assert.InDelta(t, -156000.0, last.CumulativeCashFlow, 1e-6)
	assert.InDelta(t, 1.0, last.EmployeeCostPct, 1e-9)
}

func TestEngine_RevenueGrowthCompounds(t *testing.T) {
	eng := testEngine(t, Config{}, map[string]any{
		"type": "service", "name": "support-contract", "start_date": "2025-01-01",
		"monthly_amount": 10000.0,
	})

	frame, err := eng.Calculate(jan(2025), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "baseline")
	require.NoError(t, err)
	require.Equal(t, 12, frame.Len())

	// Baseline assumes 10% annual revenue growth, compounded per month.
	assert.InDelta(t, 10000.0, frame.Records[0].ServiceRevenue, 1e-6)
	wantDec := 10000.0 * math.Pow(1.10, 11.0/12)
	assert.InDelta(t, wantDec, frame.Records[11].ServiceRevenue, 1e-6)
	assert.Greater(t, frame.Records[11].ServiceRevenue, frame.Records[0].ServiceRevenue)
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	raws := []map[string]any{
		{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		{"type": "employee", "name": "bob", "start_date": "2025-04-15", "salary": 90000.0},
		{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
		{"type": "sale", "name": "widget-order", "start_date": "2025-01-01", "amount": 25000.0, "delivery_date": "2025-06-10"},
		{"type": "project", "name": "prototype", "start_date": "2025-02-01", "end_date": "2025-07-31", "total_budget": 60000.0},
	}
	eng := testEngine(t, Config{Workers: 4, StartingCash: 500000}, raws...)

	end := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	parallel, err := eng.Calculate(jan(2025), end, "conservative")
	require.NoError(t, err)
	sequential, err := eng.CalculateSequential(jan(2025), end, "conservative")
	require.NoError(t, err)

	require.Equal(t, sequential.Len(), parallel.Len())
	for i := range sequential.Records {
		assert.InDelta(t, sequential.Records[i].TotalRevenue, parallel.Records[i].TotalRevenue, 1e-9, "month %d revenue", i)
		assert.InDelta(t, sequential.Records[i].TotalExpenses, parallel.Records[i].TotalExpenses, 1e-9, "month %d expenses", i)
		assert.InDelta(t, sequential.Records[i].CashBalance, parallel.Records[i].CashBalance, 1e-9, "month %d balance", i)
	}
}

func TestEngine_Cache(t *testing.T) {
	eng := testEngine(t, Config{}, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})

	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	first, err := eng.Calculate(jan(2025), end, "baseline")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.CacheLen())

	second, err := eng.Calculate(jan(2025), end, "baseline")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.CacheLen())

	// Cached frames are cloned on the way out; mutating one copy must not
	// leak into the next read.
	second.Records[0].TotalExpenses = -1
	third, err := eng.Calculate(jan(2025), end, "baseline")
	require.NoError(t, err)
	assert.InDelta(t, first.Records[0].TotalExpenses, third.Records[0].TotalExpenses, 1e-9)

	eng.ClearCache()
	assert.Zero(t, eng.CacheLen())
}

func TestEngine_BadRange(t *testing.T) {
	eng := testEngine(t, Config{})
	_, err := eng.Calculate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), jan(2025), "baseline")
	var badRange *domain.BadRangeError
	require.ErrorAs(t, err, &badRange)
}

func TestEngine_UnknownScenario(t *testing.T) {
	eng := testEngine(t, Config{})
	_, err := eng.Calculate(jan(2025), jan(2025), "no-such-scenario")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEngine_CancelledContext(t *testing.T) {
	eng := testEngine(t, Config{Workers: 2}, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.CalculateContext(ctx, jan(2025), time.Date(2030, 12, 1, 0, 0, 0, 0, time.UTC), "baseline")
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Zero(t, eng.CacheLen(), "cancelled runs leave no cache entry")
}

func TestEngine_CalculateScenarioAdHoc(t *testing.T) {
	eng := testEngine(t, Config{}, map[string]any{
		"type": "sale", "name": "widget-order", "start_date": "2025-01-01",
		"amount": 10000.0, "delivery_date": "2025-02-10",
	})

	adHoc := &scenarios.Scenario{
		Name: "sweep_point",
		EntityOverrides: []scenarios.Override{
			{Entity: "widget-order", Field: "amount", Value: 40000.0},
		},
	}
	frame, err := eng.CalculateScenario(context.Background(), jan(2025), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), adHoc)
	require.NoError(t, err)
	assert.InDelta(t, 40000.0, frame.TotalRevenue(), 1e-6)
	assert.Zero(t, eng.CacheLen(), "ad-hoc frames are never cached")
}

func TestEngine_MidMonthStartCountsThatMonth(t *testing.T) {
	eng := testEngine(t, Config{}, map[string]any{
		"type": "employee", "name": "late-hire", "start_date": "2025-03-20", "salary": 120000.0,
	})

	frame, err := eng.Calculate(jan(2025), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "baseline")
	require.NoError(t, err)
	require.Equal(t, 4, frame.Len())

	assert.Zero(t, frame.Records[1].TotalExpenses, "February precedes the hire")
	assert.Equal(t, 1, frame.Records[2].ActiveEmployees, "a March 20 hire is active in March")
	assert.InDelta(t, 13000.0, frame.Records[2].TotalExpenses, 1e-6)
}
