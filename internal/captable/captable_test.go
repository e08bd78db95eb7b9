package captable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/domain"
)

func ctEntity(t *testing.T, raw map[string]any) *domain.Entity {
	t.Helper()
	e, err := domain.New(raw)
	require.NoError(t, err)
	return e
}

// twoClassTable is a founder/investor table: 3.2M common plus 0.8M preferred
// with a 2M aggregate preference (800k shares at 2.5 par, 1x).
func twoClassTable(t *testing.T, participating bool) []*domain.Entity {
	return []*domain.Entity{
		ctEntity(t, map[string]any{
			"type": "shareholder", "name": "founder", "start_date": "2024-01-01",
			"shareholder_type": "founder", "share_class": "common",
			"total_shares": 3200000.0, "board_seats": 2.0,
		}),
		ctEntity(t, map[string]any{
			"type": "shareholder", "name": "investor", "start_date": "2024-06-01",
			"shareholder_type": "investor", "share_class": "preferred_a",
			"total_shares": 800000.0, "board_seats": 1.0,
		}),
		ctEntity(t, map[string]any{
			"type": "share_class", "name": "common-class", "start_date": "2024-01-01",
			"class_name": "common", "shares_authorized": 5000000.0, "shares_outstanding": 3200000.0,
		}),
		ctEntity(t, map[string]any{
			"type": "share_class", "name": "preferred-a-class", "start_date": "2024-06-01",
			"class_name": "preferred_a", "shares_authorized": 1000000.0, "shares_outstanding": 800000.0,
			"par_value": 2.5, "liquidation_preference": 1.0, "liquidation_seniority": 1.0,
			"participating": participating,
		}),
	}
}

func TestBuildSummary(t *testing.T) {
	summary := BuildSummary(twoClassTable(t, false))

	assert.InDelta(t, 4000000.0, summary.FullyDilutedShares, 1e-6)
	assert.InDelta(t, 3.0, summary.TotalBoardSeats, 1e-9)
	require.Len(t, summary.Entries, 2)

	// Sorted by shares descending.
	assert.Equal(t, "founder", summary.Entries[0].Shareholder)
	assert.InDelta(t, 0.8, summary.Entries[0].OwnershipPct, 1e-9)
	assert.Equal(t, "investor", summary.Entries[1].Shareholder)
	assert.InDelta(t, 0.2, summary.Entries[1].OwnershipPct, 1e-9)

	require.Len(t, summary.Classes, 2)
	assert.Equal(t, "common", summary.Classes[0].ClassName)
	preferred := summary.Classes[1]
	assert.InDelta(t, 0.8, preferred.Utilization, 1e-9)
	assert.InDelta(t, 2000000.0, preferred.PreferenceAmount, 1e-6)
}

func TestBuildSummary_PoolSharesDilute(t *testing.T) {
	// Classes report more outstanding than holders have been granted; the
	// bigger denominator wins.
	entities := []*domain.Entity{
		ctEntity(t, map[string]any{
			"type": "shareholder", "name": "founder", "start_date": "2024-01-01",
			"shareholder_type": "founder", "share_class": "common", "total_shares": 900000.0,
		}),
		ctEntity(t, map[string]any{
			"type": "share_class", "name": "common-class", "start_date": "2024-01-01",
			"class_name": "common", "shares_authorized": 2000000.0, "shares_outstanding": 1000000.0,
		}),
	}
	summary := BuildSummary(entities)
	assert.InDelta(t, 1000000.0, summary.FullyDilutedShares, 1e-6)
	assert.InDelta(t, 0.9, summary.Entries[0].OwnershipPct, 1e-9)
}

func TestBuildDilution(t *testing.T) {
	entities := twoClassTable(t, false)
	round := ctEntity(t, map[string]any{
		"type": "funding_round", "name": "seed", "start_date": "2025-01-01",
		"round_type": "seed", "amount_raised": 2000000.0, "pre_money_valuation": 8000000.0,
	})

	result := BuildDilution(entities, round)
	require.NotNil(t, result)

	// Implied price 2/share on 4M pre-round shares: 1M new shares, 20% sold.
	assert.InDelta(t, 0.2, result.DilutionFactor, 1e-9)
	assert.InDelta(t, 4000000.0, result.PreShares, 1e-6)
	assert.InDelta(t, 1000000.0, result.NewShares, 1e-6)
	assert.InDelta(t, 5000000.0, result.PostShares, 1e-6)
	assert.InDelta(t, 10000000.0, result.PostMoney, 1e-6)

	require.Len(t, result.Entries, 2)
	founder := result.Entries[0]
	assert.Equal(t, "founder", founder.Shareholder)
	assert.InDelta(t, 0.8, founder.PreRoundPct, 1e-9)
	assert.InDelta(t, 0.64, founder.PostRoundPct, 1e-9)
}

func TestBuildWaterfall_NonParticipating(t *testing.T) {
	entities := twoClassTable(t, false)

	// At a 10M exit the 2M preference equals the as-converted value, so the
	// preferred stays on its preference and common takes the remainder.
	result := BuildWaterfall(entities, 10000000)
	require.Len(t, result.Classes, 2)

	byClass := make(map[string]ClassDistribution)
	for _, c := range result.Classes {
		byClass[c.ClassName] = c
	}
	assert.InDelta(t, 2000000.0, byClass["preferred_a"].Total, 1e-6)
	assert.False(t, byClass["preferred_a"].Converted)
	assert.InDelta(t, 8000000.0, byClass["common"].Total, 1e-6)
	assert.InDelta(t, 0.0, result.Undistributed, 1e-6)

	require.Len(t, result.Holders, 2)
	assert.Equal(t, "founder", result.Holders[0].Shareholder)
	assert.InDelta(t, 8000000.0, result.Holders[0].Amount, 1e-6)
	assert.InDelta(t, 2000000.0, result.Holders[1].Amount, 1e-6)
}

func TestBuildWaterfall_ConversionBeatsPreference(t *testing.T) {
	entities := twoClassTable(t, false)

	// At a 20M exit the preferred's 20% as-converted stake is worth 4M,
	// double its preference, so it converts to common treatment.
	result := BuildWaterfall(entities, 20000000)
	byClass := make(map[string]ClassDistribution)
	for _, c := range result.Classes {
		byClass[c.ClassName] = c
	}
	assert.True(t, byClass["preferred_a"].Converted)
	assert.InDelta(t, 4000000.0, byClass["preferred_a"].Total, 1e-6)
	assert.InDelta(t, 16000000.0, byClass["common"].Total, 1e-6)
}

func TestBuildWaterfall_Participating(t *testing.T) {
	entities := twoClassTable(t, true)

	// Participating preferred takes its 2M preference plus a 20% share of
	// the remaining 8M.
	result := BuildWaterfall(entities, 10000000)
	byClass := make(map[string]ClassDistribution)
	for _, c := range result.Classes {
		byClass[c.ClassName] = c
	}
	assert.InDelta(t, 2000000.0, byClass["preferred_a"].Preference, 1e-6)
	assert.InDelta(t, 1600000.0, byClass["preferred_a"].Participation, 1e-6)
	assert.InDelta(t, 3600000.0, byClass["preferred_a"].Total, 1e-6)
	assert.InDelta(t, 6400000.0, byClass["common"].Total, 1e-6)
}

func TestBuildWaterfall_ExitBelowPreference(t *testing.T) {
	entities := twoClassTable(t, false)

	// A 1.5M exit is consumed entirely by the senior preference.
	result := BuildWaterfall(entities, 1500000)
	byClass := make(map[string]ClassDistribution)
	for _, c := range result.Classes {
		byClass[c.ClassName] = c
	}
	assert.InDelta(t, 1500000.0, byClass["preferred_a"].Total, 1e-6)
	assert.Zero(t, byClass["common"].Total)
}

func TestBuildWaterfall_Degenerate(t *testing.T) {
	result := BuildWaterfall(nil, 1000000)
	assert.Empty(t, result.Classes)
	assert.InDelta(t, 1000000.0, result.Undistributed, 1e-6)
}

func TestValidateEntities(t *testing.T) {
	t.Run("consistent table is clean", func(t *testing.T) {
		report := ValidateEntities(twoClassTable(t, false))
		for _, issue := range report.Issues {
			assert.NotEqual(t, SeverityError, issue.Severity, issue.Message)
		}
		assert.False(t, report.HasErrors())
		assert.NoError(t, report.Err())
	})

	t.Run("unknown share class", func(t *testing.T) {
		entities := []*domain.Entity{
			ctEntity(t, map[string]any{
				"type": "shareholder", "name": "ghost", "start_date": "2024-01-01",
				"shareholder_type": "investor", "share_class": "phantom", "total_shares": 100.0,
			}),
		}
		report := ValidateEntities(entities)
		require.True(t, report.HasErrors())
		assert.Equal(t, "share_class", report.Issues[0].Field)

		var failed *domain.ValidationFailedError
		require.ErrorAs(t, report.Err(), &failed)
		assert.Equal(t, 1, failed.Issues)
	})

	t.Run("holders exceed outstanding", func(t *testing.T) {
		entities := []*domain.Entity{
			ctEntity(t, map[string]any{
				"type": "shareholder", "name": "founder", "start_date": "2024-01-01",
				"shareholder_type": "founder", "share_class": "common", "total_shares": 200.0,
			}),
			ctEntity(t, map[string]any{
				"type": "share_class", "name": "common-class", "start_date": "2024-01-01",
				"class_name": "common", "shares_authorized": 1000.0, "shares_outstanding": 100.0,
			}),
		}
		report := ValidateEntities(entities)
		assert.True(t, report.HasErrors())
	})

	t.Run("pool nearly exhausted", func(t *testing.T) {
		entities := []*domain.Entity{
			ctEntity(t, map[string]any{
				"type": "share_class", "name": "common-class", "start_date": "2024-01-01",
				"class_name": "common", "shares_authorized": 1000.0, "shares_outstanding": 960.0,
			}),
		}
		report := ValidateEntities(entities)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
		assert.False(t, report.HasErrors())
	})

	t.Run("inconsistent round arithmetic", func(t *testing.T) {
		entities := []*domain.Entity{
			ctEntity(t, map[string]any{
				"type": "funding_round", "name": "seed", "start_date": "2024-06-01",
				"round_type": "seed", "amount_raised": 2000000.0,
				"pre_money_valuation": 8000000.0, "post_money_valuation": 11000000.0,
			}),
		}
		report := ValidateEntities(entities)
		require.True(t, report.HasErrors())
		assert.Equal(t, "post_money", report.Issues[0].Field)
	})

	t.Run("down round severity scales with the drop", func(t *testing.T) {
		mild := []*domain.Entity{
			ctEntity(t, map[string]any{
				"type": "funding_round", "name": "seed", "start_date": "2024-01-01",
				"round_type": "seed", "amount_raised": 2000000.0, "pre_money_valuation": 8000000.0,
			}),
			ctEntity(t, map[string]any{
				"type": "funding_round", "name": "bridge", "start_date": "2025-01-01",
				"round_type": "bridge", "amount_raised": 1000000.0, "pre_money_valuation": 6000000.0,
			}),
		}
		report := ValidateEntities(mild)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, SeverityInfo, report.Issues[0].Severity)

		severe := []*domain.Entity{
			mild[0],
			ctEntity(t, map[string]any{
				"type": "funding_round", "name": "down", "start_date": "2025-01-01",
				"round_type": "bridge", "amount_raised": 1000000.0, "pre_money_valuation": 4000000.0,
			}),
		}
		report = ValidateEntities(severe)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
	})

	t.Run("voting control", func(t *testing.T) {
		report := ValidateEntities(twoClassTable(t, false))
		found := false
		for _, issue := range report.Issues {
			if issue.Severity == SeverityInfo && issue.Entity == "founder" {
				found = true
			}
		}
		assert.True(t, found, "an 80%% holder is flagged for voting control")
	})
}
