package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEquipment(t *testing.T, raw map[string]any) Equipment {
	t.Helper()
	raw["type"] = "equipment"
	e, err := New(raw)
	require.NoError(t, err)
	eq, ok := AsEquipment(e)
	require.True(t, ok)
	return eq
}

func TestEquipment_MonthlyDepreciation(t *testing.T) {
	eq := mustEquipment(t, map[string]any{
		"name": "laser-cutter", "start_date": "2025-01-01",
		"cost": 36000.0, "purchase_date": "2025-01-10",
		"depreciation_years": 3.0, "residual_value": 0.0,
	})

	tests := []struct {
		date string
		want float64
	}{
		{"2024-12-01", 0},      // before purchase
		{"2025-01-01", 1000.0}, // purchase month
		{"2026-06-01", 1000.0}, // mid window
		{"2027-12-01", 1000.0}, // month 36, last depreciating month
		{"2028-02-01", 0},      // fully depreciated
	}
	for _, tt := range tests {
		d, _ := time.Parse(DateLayout, tt.date)
		assert.InDelta(t, tt.want, eq.MonthlyDepreciation(d), 1e-9, "date %s", tt.date)
	}
}

func TestEquipment_MonthlyDepreciationWithResidual(t *testing.T) {
	eq := mustEquipment(t, map[string]any{
		"name": "van", "start_date": "2025-01-01",
		"cost": 30000.0, "purchase_date": "2025-01-01",
		"depreciation_years": 5.0, "residual_value": 6000.0,
	})
	d, _ := time.Parse(DateLayout, "2025-06-01")
	// (30000 - 6000) / 60
	assert.InDelta(t, 400.0, eq.MonthlyDepreciation(d), 1e-9)
}

func TestEquipment_BookValue(t *testing.T) {
	eq := mustEquipment(t, map[string]any{
		"name": "van", "start_date": "2025-01-01",
		"cost": 30000.0, "purchase_date": "2025-01-01",
		"depreciation_years": 5.0, "residual_value": 6000.0,
	})

	before, _ := time.Parse(DateLayout, "2024-06-01")
	assert.InDelta(t, 30000.0, eq.BookValue(before), 1e-9)

	// Long after the window the floor holds.
	after, _ := time.Parse(DateLayout, "2035-01-01")
	assert.InDelta(t, 6000.0, eq.BookValue(after), 1e-9)
}

func TestEquipment_MonthlyMaintenance(t *testing.T) {
	eq := mustEquipment(t, map[string]any{
		"name": "van", "start_date": "2025-01-01",
		"cost": 30000.0, "purchase_date": "2025-01-01",
		"maintenance_annual": 1200.0, "support_annual": 600.0,
	})
	assert.InDelta(t, 150.0, eq.MonthlyMaintenance(), 1e-9)
}
