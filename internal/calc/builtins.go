package calc

import (
	"time"

	"github.com/aristath/runway/internal/domain"
)

// Built-in calculator names. User calculators may register arbitrary names;
// these are the ones the category routing table knows about.
const (
	NameTotalCost    = "total_cost_calc"
	NameRecurring    = "recurring_calc"
	NameDepreciation = "depreciation_calc"
	NameMaintenance  = "maintenance_calc"
	NameOneTime      = "one_time_calc"
	NameDisbursement = "disbursement_calc"
	NameRevenue      = "revenue_calc"
	NameBurn         = "burn_calc"
)

// RegisterBuiltins installs the built-in calculator set. Called once at
// process start; after this the registry is read-only.
func RegisterBuiltins(r *Registry) {
	r.Register(domain.TypeEmployee, NameTotalCost, employeeTotalCost, Meta{
		Description: "loaded base cost + allowances + one-time payments in the start month + bonus accrual",
	})

	r.Register(domain.TypeFacility, NameRecurring, facilityRecurring, Meta{
		Description: "monthly facility cost incl. amortized annual, quarterly and certification components",
	})
	r.Register(domain.TypeSoftware, NameRecurring, softwareRecurring, Meta{
		Description: "monthly software spend incl. per-seat licensing",
	})
	r.Register(domain.TypeService, NameRecurring, serviceRecurring, Meta{
		Description: "recurring monthly service revenue",
	})

	r.Register(domain.TypeEquipment, NameDepreciation, equipmentDepreciation, Meta{
		Description: "straight-line depreciation bounded by residual value",
	})
	r.Register(domain.TypeEquipment, NameMaintenance, equipmentMaintenance, Meta{
		Description: "amortized annual maintenance and support contracts",
	})
	r.Register(domain.TypeEquipment, NameOneTime, equipmentOneTime, Meta{
		Description: "full purchase cost in the purchase month",
	})

	r.Register(domain.TypeGrant, NameDisbursement, grantDisbursement, Meta{
		Description: "explicit payment schedule, else even distribution over the active span, else start-month lump sum",
	})
	r.Register(domain.TypeInvestment, NameDisbursement, investmentDisbursement, Meta{
		Description: "explicit disbursement schedule, else even distribution over the active span, else start-month lump sum",
	})

	r.Register(domain.TypeSale, NameRevenue, saleRevenue, Meta{
		Description: "payment schedule when present, else delivery/start-month lump sum",
	})

	r.Register(domain.TypeProject, NameBurn, projectBurn, Meta{
		Description: "budget_categories/12 when set, else total_budget over duration; zero once completed or cancelled",
	})
}

// --- employee --------------------------------------------------------------

func employeeTotalCost(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	emp, ok := domain.AsEmployee(e)
	if !ok {
		return 0, nil
	}
	return emp.MonthlyBaseCost() +
		emp.MonthlyAllowances() +
		emp.OneTimeCosts(ctx.AsOfDate) +
		emp.MonthlyBonusAccrual(), nil
}

// --- recurring -------------------------------------------------------------

func facilityRecurring(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	f, ok := domain.AsFacility(e)
	if !ok {
		return 0, nil
	}
	return f.MonthlyCost() +
		f.AnnualizedMonthly() +
		f.QuarterlyMaintenance(ctx.AsOfDate) +
		f.CertificationCosts(ctx.AsOfDate), nil
}

func softwareRecurring(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	s, ok := domain.AsSoftware(e)
	if !ok {
		return 0, nil
	}
	if s.ContractEnded(ctx.AsOfDate) {
		return 0, nil
	}
	return s.MonthlyCost(), nil
}

func serviceRecurring(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	s, ok := domain.AsService(e)
	if !ok {
		return 0, nil
	}
	return s.MonthlyAmount(), nil
}

// --- equipment -------------------------------------------------------------

func equipmentDepreciation(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	eq, ok := domain.AsEquipment(e)
	if !ok {
		return 0, nil
	}
	return eq.MonthlyDepreciation(ctx.AsOfDate), nil
}

func equipmentMaintenance(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	eq, ok := domain.AsEquipment(e)
	if !ok {
		return 0, nil
	}
	return eq.MonthlyMaintenance(), nil
}

func equipmentOneTime(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	eq, ok := domain.AsEquipment(e)
	if !ok {
		return 0, nil
	}
	if !domain.SameMonth(eq.PurchaseDate(), ctx.AsOfDate) {
		return 0, nil
	}
	return eq.Cost(), nil
}

// --- scheduled revenue -----------------------------------------------------

func grantDisbursement(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	g, ok := domain.AsGrant(e)
	if !ok {
		return 0, nil
	}
	if schedule := g.PaymentSchedule(); len(schedule) > 0 {
		return sumScheduled(schedule, ctx.AsOfDate), nil
	}
	return distributeAmount(e, g.Amount(), ctx.AsOfDate), nil
}

func investmentDisbursement(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	inv, ok := domain.AsInvestment(e)
	if !ok {
		return 0, nil
	}
	if schedule := inv.DisbursementSchedule(); len(schedule) > 0 {
		return sumScheduled(schedule, ctx.AsOfDate), nil
	}
	return distributeAmount(e, inv.Amount(), ctx.AsOfDate), nil
}

func saleRevenue(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	s, ok := domain.AsSale(e)
	if !ok {
		return 0, nil
	}
	if schedule := s.PaymentSchedule(); len(schedule) > 0 {
		return sumScheduled(schedule, ctx.AsOfDate), nil
	}
	if domain.SameMonth(s.RevenueMonth(), ctx.AsOfDate) {
		return s.Amount(), nil
	}
	return 0, nil
}

// --- project ---------------------------------------------------------------

func projectBurn(e *domain.Entity, ctx domain.CalcContext) (float64, error) {
	if !e.ActiveInMonth(ctx.AsOfDate) {
		return 0, nil
	}
	p, ok := domain.AsProject(e)
	if !ok {
		return 0, nil
	}
	return p.MonthlyBurn(), nil
}

// --- helpers ---------------------------------------------------------------

func sumScheduled(schedule []domain.ScheduledPayment, asOf time.Time) float64 {
	total := 0.0
	for _, p := range schedule {
		if domain.SameMonth(p.Date, asOf) {
			total += p.Amount
		}
	}
	return total
}

// distributeAmount spreads a total evenly across the entity's active span
// when an end date bounds it; open-ended entities land the full amount in
// the start month.
func distributeAmount(e *domain.Entity, amount float64, asOf time.Time) float64 {
	if e.EndDate == nil {
		if domain.SameMonth(e.StartDate, asOf) {
			return amount
		}
		return 0
	}
	months := domain.MonthsBetween(domain.FirstOfMonth(e.StartDate), domain.FirstOfMonth(*e.EndDate))
	if months <= 0 {
		return 0
	}
	return amount / float64(months)
}
