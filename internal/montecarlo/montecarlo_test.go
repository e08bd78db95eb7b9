package montecarlo

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
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

func TestDistribution_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dist    Distribution
		wantErr bool
	}{
		{"valid normal", Distribution{Type: DistNormal, Mean: 100, StdDev: 10}, false},
		{"normal without std_dev", Distribution{Type: DistNormal, Mean: 100}, true},
		{"valid uniform", Distribution{Type: DistUniform, Min: 1, Max: 2}, false},
		{"uniform inverted bounds", Distribution{Type: DistUniform, Min: 2, Max: 1}, true},
		{"valid triangular", Distribution{Type: DistTriangular, Min: 1, Mode: 2, Max: 3}, false},
		{"triangular mode outside bounds", Distribution{Type: DistTriangular, Min: 1, Mode: 5, Max: 3}, true},
		{"valid lognormal", Distribution{Type: DistLogNormal, Mean: 0, StdDev: 0.5}, false},
		{"valid beta", Distribution{Type: DistBeta, Alpha: 2, Beta: 5, Min: 0, Max: 1}, false},
		{"beta without shape", Distribution{Type: DistBeta, Min: 0, Max: 1}, true},
		{"unknown type", Distribution{Type: "cauchy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dist.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDistribution_Quantile(t *testing.T) {
	normal := Distribution{Type: DistNormal, Mean: 100, StdDev: 10}
	assert.InDelta(t, 100.0, normal.quantile(0.5), 1e-9)
	assert.Less(t, normal.quantile(0.05), normal.quantile(0.95))

	uniform := Distribution{Type: DistUniform, Min: 10, Max: 20}
	assert.InDelta(t, 15.0, uniform.quantile(0.5), 1e-9)
	assert.InDelta(t, 10.0, uniform.quantile(0), 1e-6, "extreme draws clamp instead of diverging")
}

func TestUncertainty_Validate(t *testing.T) {
	u := Uncertainty{Field: "amount", EntityType: "sale", Distribution: Distribution{Type: DistNormal, StdDev: 1}}
	assert.NoError(t, u.Validate())

	noField := Uncertainty{EntityType: "sale", Distribution: Distribution{Type: DistNormal, StdDev: 1}}
	assert.Error(t, noField.Validate())

	noSelector := Uncertainty{Field: "amount", Distribution: Distribution{Type: DistNormal, StdDev: 1}}
	assert.Error(t, noSelector.Validate())

	badPattern := Uncertainty{Field: "amount", NamePattern: "(", Distribution: Distribution{Type: DistNormal, StdDev: 1}}
	assert.Error(t, badPattern.Validate())
}

func testRunner(t *testing.T, raws ...map[string]any) *Runner {
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
	return NewRunner(st, registry, mgr, engine.Config{Workers: 2, StartingCash: 500000}, zerolog.Nop())
}

func simConfig(iterations int, uncertainties ...Uncertainty) Config {
	return Config{
		Iterations:    iterations,
		Seed:          42,
		Start:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Uncertainties: uncertainties,
	}
}

func TestRunner_NoUncertaintiesIsDegenerate(t *testing.T) {
	r := testRunner(t,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)

	summary, err := r.Run(context.Background(), simConfig(8))
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Successful)
	assert.Zero(t, summary.Failed)

	// Without uncertain fields every iteration is the same run.
	first := summary.Results[0].FinalCashBalance
	for _, res := range summary.Results {
		assert.InDelta(t, first, res.FinalCashBalance, 1e-6)
	}
	assert.Zero(t, summary.FinalBalance.StdDev)
	assert.Equal(t, 6, len(summary.TimeSeries.Periods))

	// Every recorded metric gets its own stats block. Baseline growth
	// compounds the service revenue month by month.
	expectedRevenue := 0.0
	for i := 0; i < 6; i++ {
		expectedRevenue += 8000 * math.Pow(1.10, float64(i)/12)
	}
	assert.InDelta(t, expectedRevenue, summary.TotalRevenue.Mean, 1e-6)
	assert.InDelta(t, 78000.0, summary.TotalExpenses.Mean, 1e-6, "13000/month over six months")
	assert.InDelta(t, expectedRevenue-78000, summary.NetCashFlow.Mean, 1e-6)
	assert.InDelta(t, (78000-expectedRevenue)/6, summary.BurnRate.Mean, 1e-6)
	assert.Greater(t, summary.Runway.Mean, 6.0, "500000 of cash outlasts the frame")
	assert.Zero(t, summary.TotalExpenses.StdDev)
}

func TestRunner_SameSeedSameResults(t *testing.T) {
	u := Uncertainty{
		EntityType:   "service",
		Field:        "monthly_amount",
		Distribution: Distribution{Type: DistNormal, Mean: 8000, StdDev: 2000},
	}
	r := testRunner(t,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)

	first, err := r.Run(context.Background(), simConfig(16, u))
	require.NoError(t, err)
	second, err := r.Run(context.Background(), simConfig(16, u))
	require.NoError(t, err)

	require.Equal(t, first.Successful, second.Successful)
	for i := range first.Results {
		assert.InDelta(t, first.Results[i].FinalCashBalance, second.Results[i].FinalCashBalance, 1e-9, "iteration %d", i)
	}

	// The draws must actually spread the outcomes.
	assert.Greater(t, first.FinalBalance.StdDev, 0.0)
	assert.Greater(t, first.TotalRevenue.StdDev, 0.0)
	assert.LessOrEqual(t, first.FinalBalance.P5, first.FinalBalance.P50)
	assert.LessOrEqual(t, first.FinalBalance.P50, first.FinalBalance.P95)
}

func TestRunner_NonPositiveDefiniteMatrix(t *testing.T) {
	r := testRunner(t,
		map[string]any{"type": "service", "name": "support", "start_date": "2025-01-01", "monthly_amount": 8000.0},
	)

	cfg := simConfig(4,
		Uncertainty{
			EntityType: "service", Field: "monthly_amount",
			Distribution:     Distribution{Type: DistNormal, Mean: 8000, StdDev: 1000},
			CorrelationGroup: "revenue",
		},
		Uncertainty{
			EntityType: "service", Field: "annual_increase",
			Distribution:     Distribution{Type: DistNormal, Mean: 0.05, StdDev: 0.02},
			CorrelationGroup: "revenue",
		},
	)
	cfg.Correlations = []CorrelationGroup{{Name: "revenue", Matrix: [][]float64{{1, 2}, {2, 1}}}}

	_, err := r.Run(context.Background(), cfg)
	var badState *domain.BadStateError
	require.ErrorAs(t, err, &badState)
}

func TestRunner_ConfigErrors(t *testing.T) {
	r := testRunner(t)

	_, err := r.Run(context.Background(), simConfig(0))
	assert.Error(t, err)

	cfg := simConfig(4)
	cfg.Scenario = "no-such-scenario"
	_, err = r.Run(context.Background(), cfg)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	cfg = simConfig(4)
	cfg.Correlations = []CorrelationGroup{{Name: "empty", Matrix: [][]float64{{1}}}}
	_, err = r.Run(context.Background(), cfg)
	assert.Error(t, err, "correlation group without members")
}

func TestRunner_Cancelled(t *testing.T) {
	r := testRunner(t,
		map[string]any{"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, simConfig(64))
	require.ErrorIs(t, err, domain.ErrCancelled)
}
