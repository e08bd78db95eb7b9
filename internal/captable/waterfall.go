package captable

import (
	"sort"

	"github.com/aristath/runway/internal/domain"
)

// ClassDistribution is one class's payout in a waterfall.
type ClassDistribution struct {
	ClassName     string  `json:"class_name"`
	Shares        float64 `json:"shares"`
	Preference    float64 `json:"preference"`    // paid before participation
	Participation float64 `json:"participation"` // pro-rata share of the remainder
	Total         float64 `json:"total"`
	Converted     bool    `json:"converted"` // non-participating preferred that took common treatment
}

// HolderDistribution is one shareholder's payout.
type HolderDistribution struct {
	Shareholder string  `json:"shareholder"`
	ShareClass  string  `json:"share_class"`
	Amount      float64 `json:"amount"`
}

// WaterfallResult is the full exit distribution.
type WaterfallResult struct {
	ExitValue     float64              `json:"exit_value"`
	Classes       []ClassDistribution  `json:"classes"`
	Holders       []HolderDistribution `json:"holders"`
	Undistributed float64              `json:"undistributed"` // exit value not covered by any class
}

// BuildWaterfall distributes an exit value across the share classes:
// preferences are paid in seniority order (ties broken by preference amount,
// then class name), then the remainder is shared pro-rata among common,
// participating preferred, and any non-participating preferred that does
// better by converting to common.
func BuildWaterfall(entities []*domain.Entity, exitValue float64) *WaterfallResult {
	holders, classes := split(entities)
	result := &WaterfallResult{ExitValue: exitValue}
	if exitValue <= 0 || len(classes) == 0 {
		result.Undistributed = exitValue
		return result
	}

	ordered := append([]domain.ShareClass(nil), classes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.LiquidationSeniority() != b.LiquidationSeniority() {
			return a.LiquidationSeniority() > b.LiquidationSeniority()
		}
		if a.PreferenceAmount() != b.PreferenceAmount() {
			return a.PreferenceAmount() > b.PreferenceAmount()
		}
		return a.ClassName() < b.ClassName()
	})

	// A non-participating preferred class converts to common when its
	// pro-rata as-converted payout beats its preference. Conversion changes
	// the pool everyone shares, so iterate until the choice set is stable.
	converted := make(map[string]bool)
	var dists map[string]*ClassDistribution
	for iter := 0; iter <= len(ordered); iter++ {
		dists = distribute(ordered, exitValue, converted)

		changed := false
		for _, c := range ordered {
			if c.LiquidationPreference() == 0 || c.Participating() {
				continue
			}
			name := c.ClassName()
			asConverted := asConvertedValue(ordered, exitValue, converted, name)
			if !converted[name] && asConverted > dists[name].Total {
				converted[name] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	distributedTotal := 0.0
	for _, c := range ordered {
		d := dists[c.ClassName()]
		d.Converted = converted[c.ClassName()]
		result.Classes = append(result.Classes, *d)
		distributedTotal += d.Total
	}
	result.Undistributed = exitValue - distributedTotal

	// Shareholder payouts follow their share of the class.
	classOutstanding := make(map[string]float64)
	for _, c := range ordered {
		classOutstanding[c.ClassName()] = c.SharesOutstanding()
	}
	for _, h := range holders {
		d, ok := dists[h.ShareClass()]
		if !ok {
			continue
		}
		outstanding := classOutstanding[h.ShareClass()]
		if outstanding <= 0 {
			continue
		}
		result.Holders = append(result.Holders, HolderDistribution{
			Shareholder: h.Name,
			ShareClass:  h.ShareClass(),
			Amount:      h.TotalShares() / outstanding * d.Total,
		})
	}
	sort.Slice(result.Holders, func(i, j int) bool {
		if result.Holders[i].Amount != result.Holders[j].Amount {
			return result.Holders[i].Amount > result.Holders[j].Amount
		}
		return result.Holders[i].Shareholder < result.Holders[j].Shareholder
	})

	return result
}

// distribute runs one waterfall pass for a fixed conversion choice set.
func distribute(ordered []domain.ShareClass, exitValue float64, converted map[string]bool) map[string]*ClassDistribution {
	dists := make(map[string]*ClassDistribution, len(ordered))
	for _, c := range ordered {
		dists[c.ClassName()] = &ClassDistribution{
			ClassName: c.ClassName(),
			Shares:    c.SharesOutstanding(),
		}
	}

	remaining := exitValue
	for _, c := range ordered {
		if c.LiquidationPreference() == 0 || converted[c.ClassName()] {
			continue
		}
		pay := c.LiquidationProceeds(remaining, c.SharesOutstanding())
		dists[c.ClassName()].Preference = pay
		remaining -= pay
	}

	// The remainder is shared by common, converted preferred, and
	// participating preferred, pro-rata by shares.
	poolShares := 0.0
	for _, c := range ordered {
		if participates(c, converted) {
			poolShares += c.SharesOutstanding()
		}
	}
	if remaining > 0 && poolShares > 0 {
		for _, c := range ordered {
			if participates(c, converted) {
				dists[c.ClassName()].Participation = remaining * c.SharesOutstanding() / poolShares
			}
		}
	}

	for _, d := range dists {
		d.Total = d.Preference + d.Participation
	}
	return dists
}

func participates(c domain.ShareClass, converted map[string]bool) bool {
	return c.LiquidationPreference() == 0 || c.Participating() || converted[c.ClassName()]
}

// asConvertedValue computes what a class would receive if it alone flipped
// its conversion choice, holding the others fixed.
func asConvertedValue(ordered []domain.ShareClass, exitValue float64, converted map[string]bool, name string) float64 {
	trial := make(map[string]bool, len(converted)+1)
	for k, v := range converted {
		trial[k] = v
	}
	trial[name] = true
	return distribute(ordered, exitValue, trial)[name].Total
}
