package calc

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/domain"
)

func builtinsRegistry() *Registry {
	r := NewRegistry(zerolog.Nop())
	RegisterBuiltins(r)
	return r
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestEmployeeTotalCost(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01",
		"salary": 120000.0,
	})

	value, ok, err := r.Calculate(e, NameTotalCost, domain.CalcContext{AsOfDate: month(2025, time.March)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 13000.0, value, 1e-9)

	// Before the start month the contribution is zero.
	value, _, err = r.Calculate(e, NameTotalCost, domain.CalcContext{AsOfDate: month(2024, time.December)})
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestEmployeeTotalCost_StartMonthExtras(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-03-15",
		"salary": 120000.0, "signing_bonus": 5000.0, "bonus_percentage": 0.10,
	})

	// Start month: base 13000 + signing 5000 + bonus accrual 1000.
	value, _, err := r.Calculate(e, NameTotalCost, domain.CalcContext{AsOfDate: month(2025, time.March)})
	require.NoError(t, err)
	assert.InDelta(t, 19000.0, value, 1e-9)

	// Following months drop the one-time payment.
	value, _, err = r.Calculate(e, NameTotalCost, domain.CalcContext{AsOfDate: month(2025, time.April)})
	require.NoError(t, err)
	assert.InDelta(t, 14000.0, value, 1e-9)
}

func TestGrantDisbursement_EvenDistribution(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "grant", "name": "research-grant", "start_date": "2025-01-01",
		"end_date": "2025-12-31", "amount": 120000.0,
	})

	for _, m := range []time.Month{time.January, time.June, time.December} {
		value, _, err := r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, m)})
		require.NoError(t, err)
		assert.InDelta(t, 10000.0, value, 1e-9, "month %s", m)
	}
}

func TestGrantDisbursement_Schedule(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "grant", "name": "milestone-grant", "start_date": "2025-01-01",
		"end_date": "2025-12-31", "amount": 100000.0,
		"payment_schedule": []any{
			map[string]any{"date": "2025-02-01", "amount": 60000.0},
			map[string]any{"date": "2025-09-15", "amount": 40000.0},
		},
	})

	value, _, err := r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, time.February)})
	require.NoError(t, err)
	assert.InDelta(t, 60000.0, value, 1e-9)

	value, _, err = r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, time.September)})
	require.NoError(t, err)
	assert.InDelta(t, 40000.0, value, 1e-9)

	value, _, err = r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, time.March)})
	require.NoError(t, err)
	assert.Zero(t, value, "months outside the schedule pay nothing")
}

func TestInvestmentDisbursement_OpenEndedLumpSum(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "investment", "name": "angel-round", "start_date": "2025-04-01",
		"amount": 500000.0,
	})

	value, _, err := r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, time.April)})
	require.NoError(t, err)
	assert.InDelta(t, 500000.0, value, 1e-9)

	value, _, err = r.Calculate(e, NameDisbursement, domain.CalcContext{AsOfDate: month(2025, time.May)})
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestSaleRevenue_DeliveryMonth(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "sale", "name": "widget-order", "start_date": "2025-01-01",
		"amount": 25000.0, "delivery_date": "2025-05-20",
	})

	value, _, err := r.Calculate(e, NameRevenue, domain.CalcContext{AsOfDate: month(2025, time.May)})
	require.NoError(t, err)
	assert.InDelta(t, 25000.0, value, 1e-9)

	value, _, err = r.Calculate(e, NameRevenue, domain.CalcContext{AsOfDate: month(2025, time.January)})
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestEquipmentCalculators(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "equipment", "name": "laser-cutter", "start_date": "2025-01-01",
		"cost": 36000.0, "purchase_date": "2025-02-01",
		"depreciation_years": 3.0, "maintenance_annual": 1200.0,
	})

	ctx := domain.CalcContext{AsOfDate: month(2025, time.February)}
	oneTime, _, err := r.Calculate(e, NameOneTime, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 36000.0, oneTime, 1e-9, "full cost lands in the purchase month")

	depreciation, _, err := r.Calculate(e, NameDepreciation, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, depreciation, 1e-9)

	maintenance, _, err := r.Calculate(e, NameMaintenance, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, maintenance, 1e-9)

	oneTime, _, err = r.Calculate(e, NameOneTime, domain.CalcContext{AsOfDate: month(2025, time.March)})
	require.NoError(t, err)
	assert.Zero(t, oneTime)
}

func TestProjectBurn(t *testing.T) {
	r := builtinsRegistry()
	e := testEntity(t, map[string]any{
		"type": "project", "name": "prototype", "start_date": "2025-01-01",
		"end_date": "2025-06-30", "total_budget": 60000.0, "status": "active",
	})

	value, _, err := r.Calculate(e, NameBurn, domain.CalcContext{AsOfDate: month(2025, time.February)})
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, value, 1e-9, "budget spread over the six project months")
}

func TestRouteCategory(t *testing.T) {
	tests := []struct {
		typ  domain.EntityType
		name string
		want domain.Category
		ok   bool
	}{
		{domain.TypeGrant, NameDisbursement, domain.CatGrantRevenue, true},
		{domain.TypeSale, NameRevenue, domain.CatSalesRevenue, true},
		{domain.TypeEquipment, NameDepreciation, domain.CatEquipmentCosts, true},
		{domain.TypeEquipment, NameOneTime, domain.CatEquipmentCosts, true},
		{domain.TypeEmployee, "custom_metric", "", false},
	}
	for _, tt := range tests {
		cat, ok := RouteCategory(tt.typ, tt.name)
		assert.Equal(t, tt.ok, ok)
		if tt.ok {
			assert.Equal(t, tt.want, cat)
		}
	}
}
