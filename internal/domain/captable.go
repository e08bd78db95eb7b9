package domain

// Cap-table entity variants: shareholder, share_class, funding_round.
// Cross-entity invariants (authorized vs outstanding totals, round math) are
// enforced by the cap-table validator, not here; constructors only check
// per-entity constraints.

// Shareholder types recognized on shareholder entities.
var shareholderTypes = map[string]bool{
	"founder":    true,
	"employee":   true,
	"investor":   true,
	"advisor":    true,
	"consultant": true,
	"other":      true,
}

// Funding round types recognized on funding_round entities.
var fundingRoundTypes = map[string]bool{
	"pre_seed":    true,
	"seed":        true,
	"series_a":    true,
	"series_b":    true,
	"series_c":    true,
	"series_d":    true,
	"bridge":      true,
	"convertible": true,
	"other":       true,
}

// Anti-dilution provisions recognized on share_class entities.
var antiDilutionKinds = map[string]bool{
	"none":             true,
	"weighted_average": true,
	"full_ratchet":     true,
}

func init() {
	variantValidators[TypeShareholder] = validateShareholder
	variantValidators[TypeShareClass] = validateShareClass
	variantValidators[TypeFundingRound] = validateFundingRound
}

func validateShareholder(e *Entity) error {
	if err := requirePositive(e, "total_shares"); err != nil {
		return err
	}
	shType := e.Str("shareholder_type")
	if shType == "" {
		return &InvalidFieldError{Entity: e.Name, Field: "shareholder_type", Reason: "required"}
	}
	if !shareholderTypes[shType] {
		return &InvalidFieldError{Entity: e.Name, Field: "shareholder_type", Reason: "must be one of founder, employee, investor, advisor, consultant, other"}
	}
	if e.Str("share_class") == "" {
		return &InvalidFieldError{Entity: e.Name, Field: "share_class", Reason: "required"}
	}
	if seats, ok := e.Float("board_seats"); ok && seats < 0 {
		return &OutOfRangeError{Entity: e.Name, Field: "board_seats", Value: seats, Reason: "must be >= 0"}
	}
	return nil
}

func validateShareClass(e *Entity) error {
	if e.Str("class_name") == "" {
		return &InvalidFieldError{Entity: e.Name, Field: "class_name", Reason: "required"}
	}
	if err := requirePositive(e, "shares_authorized"); err != nil {
		return err
	}
	if outstanding, ok := e.Float("shares_outstanding"); ok {
		if outstanding < 0 {
			return &OutOfRangeError{Entity: e.Name, Field: "shares_outstanding", Value: outstanding, Reason: "must be >= 0"}
		}
		if authorized, _ := e.Float("shares_authorized"); outstanding > authorized {
			return &OutOfRangeError{Entity: e.Name, Field: "shares_outstanding", Value: outstanding, Reason: "must be <= shares_authorized"}
		}
	}
	if pref, ok := e.Float("liquidation_preference"); ok {
		if pref < 0 || pref > 10 {
			return &OutOfRangeError{Entity: e.Name, Field: "liquidation_preference", Value: pref, Reason: "must be within [0, 10]"}
		}
	}
	if votes, ok := e.Float("voting_rights_per_share"); ok {
		if votes < 0 || votes > 100 {
			return &OutOfRangeError{Entity: e.Name, Field: "voting_rights_per_share", Value: votes, Reason: "must be within [0, 100]"}
		}
	}
	if kind := e.Str("anti_dilution"); kind != "" && !antiDilutionKinds[kind] {
		return &InvalidFieldError{Entity: e.Name, Field: "anti_dilution", Reason: "must be one of none, weighted_average, full_ratchet"}
	}
	return nil
}

func validateFundingRound(e *Entity) error {
	roundType := e.Str("round_type")
	if roundType == "" {
		return &InvalidFieldError{Entity: e.Name, Field: "round_type", Reason: "required"}
	}
	if !fundingRoundTypes[roundType] {
		return &InvalidFieldError{Entity: e.Name, Field: "round_type", Reason: "unknown round type"}
	}
	if err := requirePositive(e, "amount_raised"); err != nil {
		return err
	}
	_, hasPre := valuationField(e, "pre_money", "pre_money_valuation")
	_, hasPost := valuationField(e, "post_money", "post_money_valuation")
	if !hasPre && !hasPost {
		return &InvalidFieldError{Entity: e.Name, Field: "pre_money", Reason: "either pre_money or post_money is required"}
	}
	return nil
}

// valuationField reads the first of the given keys present on the entity.
// Funding rounds accept the short valuation names (pre_money, post_money)
// with the long _valuation forms as aliases.
func valuationField(e *Entity, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := e.Float(key); ok {
			return v, true
		}
	}
	return 0, false
}

// Shareholder is the typed view over a shareholder entity.
type Shareholder struct{ *Entity }

// AsShareholder wraps a shareholder-typed entity.
func AsShareholder(e *Entity) (Shareholder, bool) {
	if e.Type != TypeShareholder {
		return Shareholder{}, false
	}
	return Shareholder{e}, true
}

// TotalShares returns the shareholder's share count.
func (s Shareholder) TotalShares() float64 { return s.FloatOr("total_shares", 0) }

// ShareClass returns the name of the class the shares belong to.
func (s Shareholder) ShareClass() string { return s.Str("share_class") }

// HolderType returns the shareholder type tag.
func (s Shareholder) HolderType() string { return s.Str("shareholder_type") }

// BoardSeats returns the number of board seats held.
func (s Shareholder) BoardSeats() float64 { return s.FloatOr("board_seats", 0) }

// ShareClass is the typed view over a share_class entity.
type ShareClass struct{ *Entity }

// AsShareClass wraps a share_class-typed entity.
func AsShareClass(e *Entity) (ShareClass, bool) {
	if e.Type != TypeShareClass {
		return ShareClass{}, false
	}
	return ShareClass{e}, true
}

// ClassName returns the class identifier shareholders reference.
func (c ShareClass) ClassName() string { return c.Str("class_name") }

// SharesAuthorized returns the authorized share count.
func (c ShareClass) SharesAuthorized() float64 { return c.FloatOr("shares_authorized", 0) }

// SharesOutstanding returns the outstanding share count recorded on the class.
func (c ShareClass) SharesOutstanding() float64 { return c.FloatOr("shares_outstanding", 0) }

// ParValue returns the per-share par value (price basis for preferences).
func (c ShareClass) ParValue() float64 { return c.FloatOr("par_value", 0) }

// LiquidationPreference returns the preference multiplier (0 for common).
func (c ShareClass) LiquidationPreference() float64 { return c.FloatOr("liquidation_preference", 0) }

// Participating reports whether preferred shares double-dip: preference first,
// then pro-rata in the remainder.
func (c ShareClass) Participating() bool { return c.BoolOr("participating", false) }

// VotingRightsPerShare returns voting weight per share, defaulting to 1.
func (c ShareClass) VotingRightsPerShare() float64 { return c.FloatOr("voting_rights_per_share", 1) }

// LiquidationSeniority orders classes in the waterfall, higher first.
// Optional; classes without it rank at 0 and fall back to preference-amount
// tie-breaks.
func (c ShareClass) LiquidationSeniority() float64 { return c.FloatOr("liquidation_seniority", 0) }

// AntiDilution returns the anti-dilution provision, defaulting to none.
func (c ShareClass) AntiDilution() string { return c.StrOr("anti_dilution", "none") }

// PreferenceAmount returns the class's total liquidation preference:
// outstanding shares x par value x multiplier.
func (c ShareClass) PreferenceAmount() float64 {
	return c.SharesOutstanding() * c.ParValue() * c.LiquidationPreference()
}

// LiquidationProceeds returns the minimum payout this class claims from an
// exit before common participates, for the given share count: the smaller of
// the preference amount and the exit value itself.
func (c ShareClass) LiquidationProceeds(exitValue, shares float64) float64 {
	preference := shares * c.ParValue() * c.LiquidationPreference()
	if preference > exitValue {
		return exitValue
	}
	return preference
}

// FundingRound is the typed view over a funding_round entity.
type FundingRound struct{ *Entity }

// AsFundingRound wraps a funding_round-typed entity.
func AsFundingRound(e *Entity) (FundingRound, bool) {
	if e.Type != TypeFundingRound {
		return FundingRound{}, false
	}
	return FundingRound{e}, true
}

// RoundType returns the round type tag.
func (r FundingRound) RoundType() string { return r.Str("round_type") }

// AmountRaised returns the capital raised in the round.
func (r FundingRound) AmountRaised() float64 { return r.FloatOr("amount_raised", 0) }

// RecordedPreMoney returns the pre-money valuation under either accepted key,
// ok=false when the round records only a post-money figure.
func (r FundingRound) RecordedPreMoney() (float64, bool) {
	return valuationField(r.Entity, "pre_money", "pre_money_valuation")
}

// RecordedPostMoney returns the post-money valuation under either accepted
// key, ok=false when the round records only a pre-money figure.
func (r FundingRound) RecordedPostMoney() (float64, bool) {
	return valuationField(r.Entity, "post_money", "post_money_valuation")
}

// PreMoney returns the pre-money valuation, derived from post-money when only
// that is recorded.
func (r FundingRound) PreMoney() float64 {
	if pre, ok := r.RecordedPreMoney(); ok {
		return pre
	}
	if post, ok := r.RecordedPostMoney(); ok {
		return post - r.AmountRaised()
	}
	return 0
}

// PostMoney returns the post-money valuation, derived from pre-money when
// only that is recorded.
func (r FundingRound) PostMoney() float64 {
	if post, ok := r.RecordedPostMoney(); ok {
		return post
	}
	if pre, ok := r.RecordedPreMoney(); ok {
		return pre + r.AmountRaised()
	}
	return 0
}

// SharesIssued returns the explicit new share count, ok=false when the round
// leaves it to be derived from pre-money and the prior share count.
func (r FundingRound) SharesIssued() (float64, bool) {
	return r.Float("shares_issued")
}

// PricePerShare returns the explicit round share price.
func (r FundingRound) PricePerShare() (float64, bool) {
	return r.Float("price_per_share")
}

// DilutionImpact returns the ownership fraction sold in the round against a
// prior fully-diluted capitalization: new_shares / (pre_shares + new_shares).
// When shares_issued is absent, new shares derive from the implied price
// pre_money / pre_shares.
func (r FundingRound) DilutionImpact(preShares float64) float64 {
	if preShares <= 0 {
		return 0
	}
	newShares, ok := r.SharesIssued()
	if !ok {
		pre := r.PreMoney()
		if pre <= 0 {
			return 0
		}
		pricePerShare := pre / preShares
		if pricePerShare <= 0 {
			return 0
		}
		newShares = r.AmountRaised() / pricePerShare
	}
	return newShares / (preShares + newShares)
}
