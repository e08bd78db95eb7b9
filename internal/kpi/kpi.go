// Package kpi derives summary indicators from a computed monthly frame:
// runway, burn, efficiency, growth, concentration and risk metrics, rolling
// trends, and threshold-based alerts.
package kpi

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/runway/internal/domain"
)

// Report is the full indicator set for one frame.
type Report struct {
	RunwayMonths      float64 `json:"runway_months"` // +Inf when profitable
	BurnRate          float64 `json:"burn_rate"`     // mean burn across negative months
	CurrentBurnRate   float64 `json:"current_burn_rate"`
	CashEfficiency    float64 `json:"cash_efficiency"` // revenue / expenses
	MonthsToBreakeven float64 `json:"months_to_breakeven"`

	RevenueGrowth          float64 `json:"revenue_growth"` // compounded monthly rate, leading to trailing window
	ExpenseGrowth          float64 `json:"expense_growth"`
	OperatingLeverage      float64 `json:"operating_leverage"` // mean revenue growth over mean expense growth
	RevenueTrend           float64 `json:"revenue_trend"`      // regression slope per month
	NetCashFlowTrend       float64 `json:"net_cash_flow_trend"`
	RevenueConcentration   float64 `json:"revenue_concentration"`   // Herfindahl index
	RevenueDiversification float64 `json:"revenue_diversification"` // 1 - concentration

	TeamSizeMean     float64 `json:"team_size_mean"`
	TeamSizePeak     int     `json:"team_size_peak"`
	ProjectCountMean float64 `json:"project_count_mean"`
	ProjectCountPeak int     `json:"project_count_peak"`

	RevenuePerEmployee float64 `json:"revenue_per_employee"` // final month
	CostPerEmployee    float64 `json:"cost_per_employee"`
	EmployeeCostRatio  float64 `json:"employee_cost_ratio"` // share of total expenses

	RDPercentage             float64 `json:"rd_percentage"` // project costs as % of expenses
	FacilityCostPercentage   float64 `json:"facility_cost_percentage"`
	TechnologyCostPercentage float64 `json:"technology_cost_percentage"` // software plus equipment

	Volatility               float64 `json:"volatility"` // stdev of net cash flow
	CashFlowRisk             float64 `json:"cash_flow_risk"`
	RevenueConcentrationRisk float64 `json:"revenue_concentration_risk"` // largest source's share
	CostFlexibility          float64 `json:"cost_flexibility"`
	FundingDependency        float64 `json:"funding_dependency"` // grants and investments over revenue
}

// ComputeAll derives every indicator from a frame. An empty frame yields a
// zero report with infinite runway.
func ComputeAll(frame *domain.MonthlyFrame) Report {
	report := Report{RunwayMonths: math.Inf(1), MonthsToBreakeven: math.Inf(1)}
	if frame == nil || frame.Len() == 0 {
		return report
	}

	nets := frame.NetCashFlows()

	report.BurnRate = meanBurn(nets)
	report.CurrentBurnRate = meanBurn(tail(nets, 3))
	report.RunwayMonths = runway(frame, report.CurrentBurnRate)
	report.MonthsToBreakeven = monthsToBreakeven(series(frame, func(r domain.MonthRecord) float64 { return r.CumulativeCashFlow }))

	totalRevenue := frame.TotalRevenue()
	totalExpenses := frame.TotalExpenses()
	if totalExpenses > 0 {
		report.CashEfficiency = totalRevenue / totalExpenses
	}

	revenues := series(frame, func(r domain.MonthRecord) float64 { return r.TotalRevenue })
	expenses := series(frame, func(r domain.MonthRecord) float64 { return r.TotalExpenses })
	report.RevenueGrowth = compoundedGrowth(revenues)
	report.ExpenseGrowth = compoundedGrowth(expenses)
	report.RevenueTrend = slope(revenues)
	report.NetCashFlowTrend = slope(nets)

	revMoM := meanGrowth(frame, func(r domain.MonthRecord) float64 { return r.RevenueGrowthRate })
	expMoM := meanGrowth(frame, func(r domain.MonthRecord) float64 { return r.ExpenseGrowthRate })
	if expMoM != 0 {
		report.OperatingLeverage = revMoM / expMoM
	}

	revTotals, revSum := revenueTotals(frame)
	report.RevenueConcentration = herfindahl(revTotals, revSum)
	report.RevenueDiversification = 1 - report.RevenueConcentration
	report.RevenueConcentrationRisk = maxShare(revTotals, revSum)

	report.TeamSizeMean, report.TeamSizePeak = countStats(frame, func(r domain.MonthRecord) int { return r.ActiveEmployees })
	report.ProjectCountMean, report.ProjectCountPeak = countStats(frame, func(r domain.MonthRecord) int { return r.ActiveProjects })

	if last, ok := frame.Last(); ok {
		report.RevenuePerEmployee = last.RevenuePerEmployee
		report.CostPerEmployee = last.CostPerEmployee
	}

	employeeTotal := categoryTotal(frame, domain.CatEmployeeCosts)
	facilityTotal := categoryTotal(frame, domain.CatFacilityCosts)
	softwareTotal := categoryTotal(frame, domain.CatSoftwareCosts)
	equipmentTotal := categoryTotal(frame, domain.CatEquipmentCosts)
	projectTotal := categoryTotal(frame, domain.CatProjectCosts)
	if totalExpenses > 0 {
		report.EmployeeCostRatio = employeeTotal / totalExpenses
		report.RDPercentage = projectTotal / totalExpenses * 100
		report.FacilityCostPercentage = facilityTotal / totalExpenses * 100
		report.TechnologyCostPercentage = (softwareTotal + equipmentTotal) / totalExpenses * 100
		// Fixed costs are the recurring commitments: payroll, rent,
		// subscriptions. Equipment and project spend counts as flexible.
		report.CostFlexibility = 1 - (employeeTotal+facilityTotal+softwareTotal)/totalExpenses
	}
	if totalRevenue > 0 {
		funded := categoryTotal(frame, domain.CatGrantRevenue) + categoryTotal(frame, domain.CatInvestmentRevenue)
		report.FundingDependency = funded / totalRevenue
	}

	if len(nets) > 1 {
		report.Volatility = stat.StdDev(nets, nil)
	}
	report.CashFlowRisk = cashFlowRisk(nets, report.Volatility)

	return report
}

// runway returns months of cash life. When the cash balance turns
// non-positive inside the frame, the crossing month is interpolated linearly
// via prev_balance / |net_cash_flow|. Without an in-frame crossing the final
// balance is projected forward at the current burn; nothing burning means
// infinite runway.
func runway(frame *domain.MonthlyFrame, burn float64) float64 {
	prev := frame.StartingCash
	for i, r := range frame.Records {
		if r.CashBalance <= 0 {
			if prev <= 0 {
				return 0
			}
			if r.NetCashFlow < 0 {
				return float64(i) + prev/-r.NetCashFlow
			}
			return float64(i)
		}
		prev = r.CashBalance
	}
	if burn <= 0 {
		return math.Inf(1)
	}
	return frame.FinalCashBalance() / burn
}

// meanBurn averages the magnitude of negative net cash flows, 0 when every
// month is non-negative.
func meanBurn(nets []float64) float64 {
	total, count := 0.0, 0
	for _, net := range nets {
		if net < 0 {
			total += -net
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// monthsToBreakeven returns the 1-indexed first month whose cumulative cash
// flow is non-negative. When the frame never gets there, the cumulative trend
// is extrapolated; a flat or declining trend yields +Inf.
func monthsToBreakeven(cumulative []float64) float64 {
	for i, c := range cumulative {
		if c >= 0 {
			return float64(i + 1)
		}
	}
	if len(cumulative) < 2 {
		return math.Inf(1)
	}
	alpha, beta := regression(cumulative)
	if beta <= 0 {
		return math.Inf(1)
	}
	// alpha + beta*x = 0 at the zero crossing; convert to 1-indexed months.
	return -alpha/beta + 1
}

// compoundedGrowth derives a monthly growth rate from the ratio of a trailing
// window mean to a leading window mean, compounded over the months between
// the window starts. Windows are up to three months and never overlap.
func compoundedGrowth(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	w := 3
	if w > n/2 {
		w = n / 2
	}
	if w < 1 {
		w = 1
	}
	lead := stat.Mean(values[:w], nil)
	trail := stat.Mean(values[n-w:], nil)
	if lead <= 0 {
		return 0
	}
	return math.Pow(trail/lead, 1/float64(n-w)) - 1
}

func meanGrowth(frame *domain.MonthlyFrame, pick func(domain.MonthRecord) float64) float64 {
	if frame.Len() < 2 {
		return 0
	}
	total := 0.0
	for _, r := range frame.Records[1:] {
		total += pick(r)
	}
	return total / float64(frame.Len()-1)
}

// revenueTotals sums each revenue bucket across the frame.
func revenueTotals(frame *domain.MonthlyFrame) ([]float64, float64) {
	cats := domain.RevenueCategories()
	totals := make([]float64, len(cats))
	sum := 0.0
	for i, cat := range cats {
		totals[i] = categoryTotal(frame, cat)
		sum += totals[i]
	}
	return totals, sum
}

func categoryTotal(frame *domain.MonthlyFrame, cat domain.Category) float64 {
	total := 0.0
	for _, r := range frame.Records {
		total += r.Category(cat)
	}
	return total
}

// herfindahl measures revenue concentration across the category buckets:
// 1.0 is a single source, 1/n is perfectly even.
func herfindahl(totals []float64, sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	index := 0.0
	for _, t := range totals {
		share := t / sum
		index += share * share
	}
	return index
}

// maxShare is the largest single bucket's share of the total.
func maxShare(totals []float64, sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	largest := 0.0
	for _, t := range totals {
		if t > largest {
			largest = t
		}
	}
	return largest / sum
}

func countStats(frame *domain.MonthlyFrame, pick func(domain.MonthRecord) int) (mean float64, peak int) {
	total := 0
	for _, r := range frame.Records {
		v := pick(r)
		total += v
		if v > peak {
			peak = v
		}
	}
	return float64(total) / float64(frame.Len()), peak
}

// cashFlowRisk is the coefficient of variation of net cash flow: volatility
// relative to the typical monthly magnitude.
func cashFlowRisk(nets []float64, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	scale := 0.0
	for _, net := range nets {
		scale += math.Abs(net)
	}
	scale /= float64(len(nets))
	if scale == 0 {
		return 0
	}
	return volatility / scale
}

func series(frame *domain.MonthlyFrame, pick func(domain.MonthRecord) float64) []float64 {
	out := make([]float64, frame.Len())
	for i, r := range frame.Records {
		out[i] = pick(r)
	}
	return out
}

func slope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	_, beta := regression(ys)
	return beta
}

// regression fits y = alpha + beta*x over x = 0..n-1.
func regression(ys []float64) (alpha, beta float64) {
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	return stat.LinearRegression(xs, ys, nil, false)
}

func tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}
