package scenarios

// Predefined scenarios registered in every manager. `baseline` leaves the
// entity set untouched apart from the default overhead assumption, so
// applying it to an entity with its own overhead figure is the identity.

func float(v float64) *float64 { return &v }

// Baseline is the neutral planning scenario.
func Baseline() *Scenario {
	return &Scenario{
		Name:        "baseline",
		Description: "Current plan with moderate growth assumptions",
		Assumptions: map[string]any{
			AssumptionRevenueGrowthRate:  0.10,
			AssumptionOverheadMultiplier: 1.3,
		},
	}
}

// Optimistic assumes faster growth and cheaper overhead.
func Optimistic() *Scenario {
	return &Scenario{
		Name:        "optimistic",
		Description: "Strong growth, improved sales and service revenue",
		Assumptions: map[string]any{
			AssumptionRevenueGrowthRate:  0.25,
			AssumptionOverheadMultiplier: 1.2,
		},
		EntityOverrides: []Override{
			{EntityType: "sale", Field: "amount", Multiplier: float(1.5)},
			{EntityType: "service", Field: "monthly_amount", Multiplier: float(1.2)},
		},
	}
}

// Conservative assumes slower growth, costlier overhead, and haircuts on
// sales and grant revenue.
func Conservative() *Scenario {
	return &Scenario{
		Name:        "conservative",
		Description: "Slow growth with revenue haircuts",
		Assumptions: map[string]any{
			AssumptionRevenueGrowthRate:  0.05,
			AssumptionOverheadMultiplier: 1.4,
		},
		EntityOverrides: []Override{
			{EntityType: "sale", Field: "amount", Multiplier: float(0.8)},
			{EntityType: "grant", Field: "amount", Multiplier: float(0.9)},
		},
	}
}

// CashPreservation models a defensive posture: reduced overhead, delayed
// hiring, zeroed bonuses, renegotiated facility costs.
func CashPreservation() *Scenario {
	return &Scenario{
		Name:        "cash_preservation",
		Description: "Defensive plan minimizing burn",
		Assumptions: map[string]any{
			AssumptionRevenueGrowthRate:  0.05,
			AssumptionOverheadMultiplier: 1.25,
			AssumptionHiringDelayMonths:  3,
		},
		EntityOverrides: []Override{
			{EntityType: "employee", Field: "bonus_percentage", Value: 0.0},
			{EntityType: "facility", Field: "monthly_cost", Multiplier: float(0.9)},
		},
	}
}

// Predefined returns the scenario set every manager starts with.
func Predefined() []*Scenario {
	return []*Scenario{Baseline(), Optimistic(), Conservative(), CashPreservation()}
}
