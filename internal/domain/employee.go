package domain

import "time"

// DefaultOverheadMultiplier is applied to employee base cost when the entity
// does not carry its own overhead_multiplier (payroll taxes, benefits, desk).
const DefaultOverheadMultiplier = 1.3

func init() {
	variantValidators[TypeEmployee] = validateEmployee
}

func validateEmployee(e *Entity) error {
	salary, ok := e.Float("salary")
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: "salary", Reason: "required"}
	}
	if salary <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "salary", Value: salary, Reason: "must be > 0"}
	}
	if overhead, ok := e.Float("overhead_multiplier"); ok {
		if overhead < 1 || overhead > 3 {
			return &OutOfRangeError{Entity: e.Name, Field: "overhead_multiplier", Value: overhead, Reason: "must be within [1, 3]"}
		}
	}
	return nil
}

// Employee is the typed view over an employee entity.
type Employee struct{ *Entity }

// AsEmployee wraps an employee-typed entity. Returns false for other types.
func AsEmployee(e *Entity) (Employee, bool) {
	if e.Type != TypeEmployee {
		return Employee{}, false
	}
	return Employee{e}, true
}

// Salary returns the annual salary.
func (e Employee) Salary() float64 { return e.FloatOr("salary", 0) }

// OverheadMultiplier returns the loaded-cost multiplier, defaulting to 1.3.
func (e Employee) OverheadMultiplier() float64 {
	return e.FloatOr("overhead_multiplier", DefaultOverheadMultiplier)
}

// MonthlyBaseCost is the fully loaded monthly cost before allowances,
// one-time payments, and bonus accrual.
func (e Employee) MonthlyBaseCost() float64 {
	return e.Salary() / 12 * e.OverheadMultiplier()
}

// MonthlyAllowances sums recurring monthly allowances (transport, phone,
// meals, or a generic allowances_monthly figure).
func (e Employee) MonthlyAllowances() float64 {
	total := e.FloatOr("allowances_monthly", 0)
	if allowances := toStringMap(e.Attrs["allowances"]); allowances != nil {
		for _, v := range allowances {
			if amount, ok := toFloat(v); ok {
				total += amount
			}
		}
	}
	return total
}

// OneTimeCosts returns sign-on and relocation payments, landed entirely in
// the employee's start month.
func (e Employee) OneTimeCosts(asOf time.Time) float64 {
	if !SameMonth(e.StartDate, asOf) {
		return 0
	}
	return e.FloatOr("signing_bonus", 0) + e.FloatOr("relocation_package", 0)
}

// MonthlyBonusAccrual spreads the annual bonus potential evenly over twelve
// months. bonus_percentage is a fraction of salary (0.10 = 10%).
func (e Employee) MonthlyBonusAccrual() float64 {
	return e.Salary() * e.FloatOr("bonus_percentage", 0) / 12
}

// VestingSchedule describes an employee equity grant.
type VestingSchedule struct {
	Shares      float64
	Start       time.Time
	CliffMonths int
	VestYears   float64
}

// Vesting returns the equity vesting schedule, ok=false when the employee has
// no equity block. The vesting start defaults to the employment start date.
func (e Employee) Vesting() (VestingSchedule, bool) {
	equity := toStringMap(e.Attrs["equity"])
	if equity == nil {
		return VestingSchedule{}, false
	}
	shares, ok := toFloat(equity["shares"])
	if !ok || shares <= 0 {
		return VestingSchedule{}, false
	}
	schedule := VestingSchedule{
		Shares:    shares,
		Start:     e.StartDate,
		VestYears: 4,
	}
	if start, err := coerceDate(equity["start"]); err == nil {
		schedule.Start = start
	}
	if cliff, ok := toFloat(equity["cliff_months"]); ok {
		schedule.CliffMonths = int(cliff)
	}
	if years, ok := toFloat(equity["vest_years"]); ok && years > 0 {
		schedule.VestYears = years
	}
	return schedule, true
}

// VestedPercentage returns the fraction of the equity grant vested on d:
// zero before the cliff, linear monthly vesting afterwards, capped at 1.
// Employees without equity are fully vested in nothing; returns 0.
func (e Employee) VestedPercentage(d time.Time) float64 {
	schedule, ok := e.Vesting()
	if !ok {
		return 0
	}
	elapsed := MonthsBetween(schedule.Start, d) - 1 // whole months elapsed
	if elapsed < schedule.CliffMonths {
		return 0
	}
	totalMonths := schedule.VestYears * 12
	if totalMonths <= 0 {
		return 1
	}
	vested := float64(elapsed) / totalMonths
	if vested > 1 {
		return 1
	}
	return vested
}

// VestedShares returns the absolute number of vested shares on d.
func (e Employee) VestedShares(d time.Time) float64 {
	schedule, ok := e.Vesting()
	if !ok {
		return 0
	}
	return schedule.Shares * e.VestedPercentage(d)
}
