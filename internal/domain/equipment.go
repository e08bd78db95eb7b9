package domain

import "time"

func init() {
	variantValidators[TypeEquipment] = validateEquipment
}

func validateEquipment(e *Entity) error {
	if err := requirePositive(e, "cost"); err != nil {
		return err
	}
	purchase, ok := e.Attrs["purchase_date"]
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: "purchase_date", Reason: "required"}
	}
	if _, err := coerceDate(purchase); err != nil {
		return &BadDateError{Entity: e.Name, Field: "purchase_date", Value: stringify(purchase)}
	}
	if years, ok := e.Float("depreciation_years"); ok && years <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "depreciation_years", Value: years, Reason: "must be > 0"}
	}
	return nil
}

// Equipment is the typed view over a capital-equipment entity.
type Equipment struct{ *Entity }

// AsEquipment wraps an equipment-typed entity.
func AsEquipment(e *Entity) (Equipment, bool) {
	if e.Type != TypeEquipment {
		return Equipment{}, false
	}
	return Equipment{e}, true
}

// Cost returns the purchase cost.
func (eq Equipment) Cost() float64 { return eq.FloatOr("cost", 0) }

// PurchaseDate returns the purchase date (validated at construction).
func (eq Equipment) PurchaseDate() time.Time {
	d, _ := eq.Date("purchase_date")
	return d
}

// DepreciationYears returns the straight-line depreciation horizon,
// defaulting to 5 years.
func (eq Equipment) DepreciationYears() float64 {
	return eq.FloatOr("depreciation_years", 5)
}

// ResidualValue returns the salvage value at end of depreciation.
func (eq Equipment) ResidualValue() float64 { return eq.FloatOr("residual_value", 0) }

// MonthlyDepreciation returns the straight-line monthly depreciation on d:
// (cost - residual) / (years * 12) while within the depreciation window
// starting at the purchase month, zero before purchase and after full
// depreciation.
func (eq Equipment) MonthlyDepreciation(d time.Time) float64 {
	purchase := FirstOfMonth(eq.PurchaseDate())
	asOf := FirstOfMonth(d)
	if asOf.Before(purchase) {
		return 0
	}
	totalMonths := eq.DepreciationYears() * 12
	if totalMonths <= 0 {
		return 0
	}
	elapsed := MonthsBetween(purchase, asOf)
	if float64(elapsed) > totalMonths {
		return 0
	}
	return (eq.Cost() - eq.ResidualValue()) / totalMonths
}

// BookValue returns cost minus accumulated depreciation on d, floored at the
// residual value. Before the purchase month the book value is the full cost.
func (eq Equipment) BookValue(d time.Time) float64 {
	purchase := FirstOfMonth(eq.PurchaseDate())
	asOf := FirstOfMonth(d)
	if asOf.Before(purchase) {
		return eq.Cost()
	}
	monthly := (eq.Cost() - eq.ResidualValue()) / (eq.DepreciationYears() * 12)
	accumulated := monthly * float64(MonthsBetween(purchase, asOf))
	book := eq.Cost() - accumulated
	if book < eq.ResidualValue() {
		return eq.ResidualValue()
	}
	return book
}

// MonthlyMaintenance amortizes annual maintenance and support contracts.
func (eq Equipment) MonthlyMaintenance() float64 {
	return (eq.FloatOr("maintenance_annual", 0) + eq.FloatOr("support_annual", 0)) / 12
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(DateLayout)
	}
	return ""
}
