package domain

import "time"

// Validators for the recurring-cost variants: service, facility, software.

func init() {
	variantValidators[TypeService] = validateService
	variantValidators[TypeFacility] = validateFacility
	variantValidators[TypeSoftware] = validateSoftware
}

func validateService(e *Entity) error {
	amount, ok := e.Float("monthly_amount")
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: "monthly_amount", Reason: "required"}
	}
	if amount <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "monthly_amount", Value: amount, Reason: "must be > 0"}
	}
	return nil
}

func validateFacility(e *Entity) error {
	cost, ok := e.Float("monthly_cost")
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: "monthly_cost", Reason: "required"}
	}
	if cost <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "monthly_cost", Value: cost, Reason: "must be > 0"}
	}
	return nil
}

func validateSoftware(e *Entity) error {
	monthly, hasMonthly := e.Float("monthly_cost")
	if !hasMonthly {
		// annual_cost alone is acceptable; it amortizes to a monthly figure
		if _, hasAnnual := e.Float("annual_cost"); !hasAnnual {
			return &InvalidFieldError{Entity: e.Name, Field: "monthly_cost", Reason: "required (or annual_cost)"}
		}
		return nil
	}
	if monthly <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "monthly_cost", Value: monthly, Reason: "must be > 0"}
	}
	return nil
}

// Service is the typed view over a service-revenue entity.
type Service struct{ *Entity }

// AsService wraps a service-typed entity.
func AsService(e *Entity) (Service, bool) {
	if e.Type != TypeService {
		return Service{}, false
	}
	return Service{e}, true
}

// MonthlyAmount returns the recurring monthly revenue.
func (s Service) MonthlyAmount() float64 { return s.FloatOr("monthly_amount", 0) }

// Facility is the typed view over a facility entity.
type Facility struct{ *Entity }

// AsFacility wraps a facility-typed entity.
func AsFacility(e *Entity) (Facility, bool) {
	if e.Type != TypeFacility {
		return Facility{}, false
	}
	return Facility{e}, true
}

// MonthlyCost returns base rent plus recurring monthly sub-components.
func (f Facility) MonthlyCost() float64 {
	return f.FloatOr("monthly_cost", 0) +
		f.FloatOr("utilities_monthly", 0) +
		f.FloatOr("internet_monthly", 0) +
		f.FloatOr("security_monthly", 0) +
		f.FloatOr("cleaning_monthly", 0)
}

// AnnualizedMonthly returns 1/12 of the annual sub-components (insurance,
// property tax) spread across every month.
func (f Facility) AnnualizedMonthly() float64 {
	return (f.FloatOr("insurance_annual", 0) + f.FloatOr("property_tax_annual", 0)) / 12
}

// QuarterlyMaintenance returns 1/3 of the quarterly maintenance figure for
// months that land on a quarter boundary, zero otherwise. Quarters are
// calendar quarters (Jan, Apr, Jul, Oct), not quarters counted from the
// facility's start date, so every facility pays in the same months.
func (f Facility) QuarterlyMaintenance(asOf time.Time) float64 {
	maintenance := f.FloatOr("maintenance_quarterly", 0)
	if maintenance == 0 {
		// annual maintenance amortizes evenly instead
		return f.FloatOr("maintenance_annual", 0) / 12
	}
	switch asOf.Month() {
	case time.January, time.April, time.July, time.October:
		return maintenance / 3
	default:
		return 0
	}
}

// CertificationCosts sums certification renewals whose renewal_date falls in
// the as-of month.
func (f Facility) CertificationCosts(asOf time.Time) float64 {
	total := 0.0
	for _, cert := range f.MapList("certifications") {
		renewal, err := coerceDate(cert["renewal_date"])
		if err != nil {
			continue
		}
		if SameMonth(renewal, asOf) {
			if cost, ok := toFloat(cert["cost"]); ok {
				total += cost
			}
		}
	}
	return total
}

// Software is the typed view over a software/SaaS entity.
type Software struct{ *Entity }

// AsSoftware wraps a software-typed entity.
func AsSoftware(e *Entity) (Software, bool) {
	if e.Type != TypeSoftware {
		return Software{}, false
	}
	return Software{e}, true
}

// MonthlyCost returns the effective monthly spend: the monthly figure when
// present, else annual_cost/12, plus per-seat licensing.
func (s Software) MonthlyCost() float64 {
	monthly := s.FloatOr("monthly_cost", 0)
	if monthly == 0 {
		monthly = s.FloatOr("annual_cost", 0) / 12
	}
	perUser := s.FloatOr("per_user_cost", 0)
	seats := s.FloatOr("license_count", 0)
	return monthly + perUser*seats
}

// ContractEnded reports whether the contract_end_date has passed as of d.
func (s Software) ContractEnded(d time.Time) bool {
	end, ok := s.Date("contract_end_date")
	if !ok {
		return false
	}
	return Day(end).Before(Day(d))
}
