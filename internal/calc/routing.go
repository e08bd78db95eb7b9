package calc

import "github.com/aristath/runway/internal/domain"

// categoryRouting maps (entity_type, calculator_name) to the fixed frame
// bucket the calculator's output aggregates into. Calculators without a
// route (user-registered metrics) still run but do not contribute to the
// frame totals.
var categoryRouting = map[Key]domain.Category{
	{Type: domain.TypeGrant, Name: NameDisbursement}:      domain.CatGrantRevenue,
	{Type: domain.TypeInvestment, Name: NameDisbursement}: domain.CatInvestmentRevenue,
	{Type: domain.TypeSale, Name: NameRevenue}:            domain.CatSalesRevenue,
	{Type: domain.TypeService, Name: NameRecurring}:       domain.CatServiceRevenue,

	{Type: domain.TypeEmployee, Name: NameTotalCost}:     domain.CatEmployeeCosts,
	{Type: domain.TypeFacility, Name: NameRecurring}:     domain.CatFacilityCosts,
	{Type: domain.TypeSoftware, Name: NameRecurring}:     domain.CatSoftwareCosts,
	{Type: domain.TypeEquipment, Name: NameDepreciation}: domain.CatEquipmentCosts,
	{Type: domain.TypeEquipment, Name: NameMaintenance}:  domain.CatEquipmentCosts,
	{Type: domain.TypeEquipment, Name: NameOneTime}:      domain.CatEquipmentCosts,
	{Type: domain.TypeProject, Name: NameBurn}:           domain.CatProjectCosts,
}

// RouteCategory returns the frame bucket for a calculator output, ok=false
// when the calculator does not feed the frame.
func RouteCategory(typ domain.EntityType, calculatorName string) (domain.Category, bool) {
	cat, ok := categoryRouting[Key{Type: typ, Name: calculatorName}]
	return cat, ok
}
