package domain

import "time"

// Category identifies a fixed aggregation bucket in the monthly frame.
type Category string

const (
	CatGrantRevenue      Category = "grant_revenue"
	CatInvestmentRevenue Category = "investment_revenue"
	CatSalesRevenue      Category = "sales_revenue"
	CatServiceRevenue    Category = "service_revenue"
	CatEmployeeCosts     Category = "employee_costs"
	CatFacilityCosts     Category = "facility_costs"
	CatSoftwareCosts     Category = "software_costs"
	CatEquipmentCosts    Category = "equipment_costs"
	CatProjectCosts      Category = "project_costs"
)

// RevenueCategories lists the revenue buckets in frame order.
func RevenueCategories() []Category {
	return []Category{CatGrantRevenue, CatInvestmentRevenue, CatSalesRevenue, CatServiceRevenue}
}

// ExpenseCategories lists the expense buckets in frame order.
func ExpenseCategories() []Category {
	return []Category{CatEmployeeCosts, CatFacilityCosts, CatSoftwareCosts, CatEquipmentCosts, CatProjectCosts}
}

// MonthRecord is one row of a monthly frame, keyed by the first-of-month
// Period. Category totals are filled by the engine's aggregation pass;
// computed columns by the derived-column pass.
type MonthRecord struct {
	Period time.Time `json:"period"`

	GrantRevenue      float64 `json:"grant_revenue"`
	InvestmentRevenue float64 `json:"investment_revenue"`
	SalesRevenue      float64 `json:"sales_revenue"`
	ServiceRevenue    float64 `json:"service_revenue"`

	EmployeeCosts  float64 `json:"employee_costs"`
	FacilityCosts  float64 `json:"facility_costs"`
	SoftwareCosts  float64 `json:"software_costs"`
	EquipmentCosts float64 `json:"equipment_costs"`
	ProjectCosts   float64 `json:"project_costs"`

	ActiveEmployees int `json:"active_employees"`
	ActiveProjects  int `json:"active_projects"`

	TotalRevenue       float64 `json:"total_revenue"`
	TotalExpenses      float64 `json:"total_expenses"`
	NetCashFlow        float64 `json:"net_cash_flow"`
	CumulativeCashFlow float64 `json:"cumulative_cash_flow"`
	CashBalance        float64 `json:"cash_balance"`

	RevenueGrowthRate float64 `json:"revenue_growth_rate"`
	ExpenseGrowthRate float64 `json:"expense_growth_rate"`

	RevenuePerEmployee float64 `json:"revenue_per_employee"`
	CostPerEmployee    float64 `json:"cost_per_employee"`

	EmployeeCostPct  float64 `json:"employee_cost_pct"`
	FacilityCostPct  float64 `json:"facility_cost_pct"`
	SoftwareCostPct  float64 `json:"software_cost_pct"`
	EquipmentCostPct float64 `json:"equipment_cost_pct"`
	ProjectCostPct   float64 `json:"project_cost_pct"`
}

// Add routes a calculator contribution into a category bucket.
func (r *MonthRecord) Add(cat Category, value float64) {
	switch cat {
	case CatGrantRevenue:
		r.GrantRevenue += value
	case CatInvestmentRevenue:
		r.InvestmentRevenue += value
	case CatSalesRevenue:
		r.SalesRevenue += value
	case CatServiceRevenue:
		r.ServiceRevenue += value
	case CatEmployeeCosts:
		r.EmployeeCosts += value
	case CatFacilityCosts:
		r.FacilityCosts += value
	case CatSoftwareCosts:
		r.SoftwareCosts += value
	case CatEquipmentCosts:
		r.EquipmentCosts += value
	case CatProjectCosts:
		r.ProjectCosts += value
	}
}

// Category reads a bucket total by name.
func (r *MonthRecord) Category(cat Category) float64 {
	switch cat {
	case CatGrantRevenue:
		return r.GrantRevenue
	case CatInvestmentRevenue:
		return r.InvestmentRevenue
	case CatSalesRevenue:
		return r.SalesRevenue
	case CatServiceRevenue:
		return r.ServiceRevenue
	case CatEmployeeCosts:
		return r.EmployeeCosts
	case CatFacilityCosts:
		return r.FacilityCosts
	case CatSoftwareCosts:
		return r.SoftwareCosts
	case CatEquipmentCosts:
		return r.EquipmentCosts
	case CatProjectCosts:
		return r.ProjectCosts
	default:
		return 0
	}
}

// MonthlyFrame is an ordered sequence of month records, ascending by Period.
type MonthlyFrame struct {
	Records      []MonthRecord `json:"records"`
	ScenarioName string        `json:"scenario_name"`
	StartingCash float64       `json:"starting_cash"`
}

// Clone returns an owned deep copy. The engine cache hands out clones so
// callers never alias a cached frame.
func (f *MonthlyFrame) Clone() *MonthlyFrame {
	clone := *f
	clone.Records = append([]MonthRecord(nil), f.Records...)
	return &clone
}

// Len returns the number of months in the frame.
func (f *MonthlyFrame) Len() int { return len(f.Records) }

// Last returns the final month record, ok=false for an empty frame.
func (f *MonthlyFrame) Last() (MonthRecord, bool) {
	if len(f.Records) == 0 {
		return MonthRecord{}, false
	}
	return f.Records[len(f.Records)-1], true
}

// TotalRevenue sums total_revenue across the frame.
func (f *MonthlyFrame) TotalRevenue() float64 {
	total := 0.0
	for _, r := range f.Records {
		total += r.TotalRevenue
	}
	return total
}

// TotalExpenses sums total_expenses across the frame.
func (f *MonthlyFrame) TotalExpenses() float64 {
	total := 0.0
	for _, r := range f.Records {
		total += r.TotalExpenses
	}
	return total
}

// NetCashFlow sums net_cash_flow across the frame.
func (f *MonthlyFrame) NetCashFlow() float64 {
	total := 0.0
	for _, r := range f.Records {
		total += r.NetCashFlow
	}
	return total
}

// FinalCashBalance returns the cash balance of the last month (starting cash
// for an empty frame).
func (f *MonthlyFrame) FinalCashBalance() float64 {
	if last, ok := f.Last(); ok {
		return last.CashBalance
	}
	return f.StartingCash
}

// NetCashFlows returns the per-month net cash flow series.
func (f *MonthlyFrame) NetCashFlows() []float64 {
	out := make([]float64, len(f.Records))
	for i, r := range f.Records {
		out[i] = r.NetCashFlow
	}
	return out
}

// CashBalances returns the per-month cash balance series.
func (f *MonthlyFrame) CashBalances() []float64 {
	out := make([]float64, len(f.Records))
	for i, r := range f.Records {
		out[i] = r.CashBalance
	}
	return out
}
