package domain

import "time"

// Validators and views for the scheduled-revenue variants: grant, investment,
// sale. All three share the payment-schedule idiom: an explicit list of
// {date, amount} rows when the contract defines one, otherwise distribution
// rules applied by the calculators.

func init() {
	variantValidators[TypeGrant] = validateGrant
	variantValidators[TypeInvestment] = validateInvestment
	variantValidators[TypeSale] = validateSale
}

func validateGrant(e *Entity) error {
	if err := requirePositive(e, "amount"); err != nil {
		return err
	}
	if rate, ok := e.Float("indirect_cost_rate"); ok {
		if rate < 0 || rate > 1 {
			return &OutOfRangeError{Entity: e.Name, Field: "indirect_cost_rate", Value: rate, Reason: "must be within [0, 1]"}
		}
	}
	return nil
}

func validateInvestment(e *Entity) error {
	return requirePositive(e, "amount")
}

func validateSale(e *Entity) error {
	return requirePositive(e, "amount")
}

func requirePositive(e *Entity, field string) error {
	v, ok := e.Float(field)
	if !ok {
		return &InvalidFieldError{Entity: e.Name, Field: field, Reason: "required"}
	}
	if v <= 0 {
		return &OutOfRangeError{Entity: e.Name, Field: field, Value: v, Reason: "must be > 0"}
	}
	return nil
}

// ScheduledPayment is one row of an explicit payment or disbursement schedule.
type ScheduledPayment struct {
	Date   time.Time
	Amount float64
}

// paymentSchedule parses a schedule attribute into typed rows, skipping rows
// with unparseable dates.
func paymentSchedule(e *Entity, field string) []ScheduledPayment {
	rows := e.MapList(field)
	if len(rows) == 0 {
		return nil
	}
	out := make([]ScheduledPayment, 0, len(rows))
	for _, row := range rows {
		date, err := coerceDate(row["date"])
		if err != nil {
			continue
		}
		amount, ok := toFloat(row["amount"])
		if !ok {
			continue
		}
		out = append(out, ScheduledPayment{Date: date, Amount: amount})
	}
	return out
}

// scheduleAmountFor sums schedule rows landing in the as-of month.
func scheduleAmountFor(schedule []ScheduledPayment, asOf time.Time) float64 {
	total := 0.0
	for _, p := range schedule {
		if SameMonth(p.Date, asOf) {
			total += p.Amount
		}
	}
	return total
}

// Grant is the typed view over a grant entity.
type Grant struct{ *Entity }

// AsGrant wraps a grant-typed entity.
func AsGrant(e *Entity) (Grant, bool) {
	if e.Type != TypeGrant {
		return Grant{}, false
	}
	return Grant{e}, true
}

// Amount returns the total grant award.
func (g Grant) Amount() float64 { return g.FloatOr("amount", 0) }

// PaymentSchedule returns the explicit disbursement schedule, nil when the
// grant pays out by even distribution or lump sum.
func (g Grant) PaymentSchedule() []ScheduledPayment {
	return paymentSchedule(g.Entity, "payment_schedule")
}

// ScheduledFor sums explicit schedule rows landing in the as-of month.
func (g Grant) ScheduledFor(asOf time.Time) float64 {
	return scheduleAmountFor(g.PaymentSchedule(), asOf)
}

// Investment is the typed view over an investment entity.
type Investment struct{ *Entity }

// AsInvestment wraps an investment-typed entity.
func AsInvestment(e *Entity) (Investment, bool) {
	if e.Type != TypeInvestment {
		return Investment{}, false
	}
	return Investment{e}, true
}

// Amount returns the committed investment amount.
func (i Investment) Amount() float64 { return i.FloatOr("amount", 0) }

// DisbursementSchedule returns the explicit tranche schedule.
func (i Investment) DisbursementSchedule() []ScheduledPayment {
	return paymentSchedule(i.Entity, "disbursement_schedule")
}

// ScheduledFor sums tranche rows landing in the as-of month.
func (i Investment) ScheduledFor(asOf time.Time) float64 {
	return scheduleAmountFor(i.DisbursementSchedule(), asOf)
}

// Sale is the typed view over a sale entity.
type Sale struct{ *Entity }

// AsSale wraps a sale-typed entity.
func AsSale(e *Entity) (Sale, bool) {
	if e.Type != TypeSale {
		return Sale{}, false
	}
	return Sale{e}, true
}

// Amount returns the sale contract amount.
func (s Sale) Amount() float64 { return s.FloatOr("amount", 0) }

// PaymentSchedule returns the explicit customer payment schedule.
func (s Sale) PaymentSchedule() []ScheduledPayment {
	return paymentSchedule(s.Entity, "payment_schedule")
}

// RevenueMonth is the month the sale lands when no schedule exists:
// delivery_date when set, else the start month.
func (s Sale) RevenueMonth() time.Time {
	if delivery, ok := s.Date("delivery_date"); ok {
		return FirstOfMonth(delivery)
	}
	return FirstOfMonth(s.StartDate)
}
