package captable

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/runway/internal/domain"
)

// Issue severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Issue is one finding from cap-table validation.
type Issue struct {
	Entity     string `json:"entity"`
	EntityType string `json:"entity_type"`
	Field      string `json:"field,omitempty"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationReport collects all findings across the cap-table entities.
type ValidationReport struct {
	Issues []Issue `json:"issues"`
}

// HasErrors reports whether any error-severity issue was found.
func (r *ValidationReport) HasErrors() bool {
	return r.errorCount() > 0
}

func (r *ValidationReport) errorCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Err converts the report into a ValidationFailedError when errors exist.
func (r *ValidationReport) Err() error {
	count := r.errorCount()
	if count == 0 {
		return nil
	}
	first := ""
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			first = issue.Message
			break
		}
	}
	return &domain.ValidationFailedError{Issues: count, Detail: first}
}

// roundMoneyTolerance absorbs float drift in valuation arithmetic.
const roundMoneyTolerance = 0.01

// ValidateEntities runs the cross-entity cap-table checks: class references,
// share accounting, round arithmetic, down rounds, control concentration and
// pool utilization.
func ValidateEntities(entities []*domain.Entity) *ValidationReport {
	report := &ValidationReport{}
	holders, classes := split(entities)

	classByName := make(map[string]domain.ShareClass, len(classes))
	for _, c := range classes {
		classByName[c.ClassName()] = c
	}

	// Shareholders must reference an existing class; per-class share totals
	// must not exceed what the class says is outstanding.
	sharesByClass := make(map[string]float64)
	for _, h := range holders {
		className := h.ShareClass()
		if _, ok := classByName[className]; !ok {
			report.Issues = append(report.Issues, Issue{
				Entity:     h.Name,
				EntityType: string(domain.TypeShareholder),
				Field:      "share_class",
				Severity:   SeverityError,
				Message:    fmt.Sprintf("references unknown share class %q", className),
				Suggestion: "add a share_class entity with this class_name or fix the reference",
			})
			continue
		}
		sharesByClass[className] += h.TotalShares()
	}

	for _, c := range classes {
		name := c.ClassName()
		if held := sharesByClass[name]; held > c.SharesOutstanding()+roundMoneyTolerance {
			report.Issues = append(report.Issues, Issue{
				Entity:     c.Name,
				EntityType: string(domain.TypeShareClass),
				Field:      "shares_outstanding",
				Severity:   SeverityError,
				Message:    fmt.Sprintf("shareholders hold %.0f shares of class %q but only %.0f are outstanding", held, name, c.SharesOutstanding()),
				Suggestion: "raise shares_outstanding or reduce the holders' share counts",
			})
		}
		if c.SharesAuthorized() > 0 {
			utilization := c.SharesOutstanding() / c.SharesAuthorized()
			if utilization > 0.95 {
				report.Issues = append(report.Issues, Issue{
					Entity:     c.Name,
					EntityType: string(domain.TypeShareClass),
					Field:      "shares_authorized",
					Severity:   SeverityWarning,
					Message:    fmt.Sprintf("class %q has issued %.1f%% of its authorized shares", name, utilization*100),
					Suggestion: "authorize additional shares before the next grant or round",
				})
			}
		}
	}

	validateRounds(entities, report)
	validateControl(holders, classByName, report)

	return report
}

// validateRounds checks valuation arithmetic per round and flags down rounds
// against the chronologically previous one.
func validateRounds(entities []*domain.Entity, report *ValidationReport) {
	var rounds []domain.FundingRound
	for _, e := range entities {
		if r, ok := domain.AsFundingRound(e); ok {
			rounds = append(rounds, r)
		}
	}
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].StartDate.Before(rounds[j].StartDate)
	})

	for i, r := range rounds {
		pre, hasPre := r.RecordedPreMoney()
		post, hasPost := r.RecordedPostMoney()
		if hasPre && hasPost {
			if diff := math.Abs(post - (pre + r.AmountRaised())); diff > roundMoneyTolerance {
				report.Issues = append(report.Issues, Issue{
					Entity:     r.Name,
					EntityType: string(domain.TypeFundingRound),
					Field:      "post_money",
					Severity:   SeverityError,
					Message:    fmt.Sprintf("post-money %.2f does not equal pre-money %.2f plus %.2f raised", post, pre, r.AmountRaised()),
					Suggestion: "record only one of pre_money or post_money and let the other derive",
				})
			}
		}

		if shares, okShares := r.SharesIssued(); okShares {
			if price, okPrice := r.PricePerShare(); okPrice {
				if diff := math.Abs(shares*price - r.AmountRaised()); diff > roundMoneyTolerance {
					report.Issues = append(report.Issues, Issue{
						Entity:     r.Name,
						EntityType: string(domain.TypeFundingRound),
						Field:      "shares_issued",
						Severity:   SeverityError,
						Message:    fmt.Sprintf("shares_issued x price_per_share = %.2f but amount_raised is %.2f", shares*price, r.AmountRaised()),
						Suggestion: "reconcile the share count, price and amount raised",
					})
				}
			}
		}

		if i > 0 {
			prevPost := rounds[i-1].PostMoney()
			if prevPost > 0 && r.PreMoney() < prevPost {
				drop := 1 - r.PreMoney()/prevPost
				severity := SeverityInfo
				if drop > 0.5 {
					severity = SeverityWarning
				}
				report.Issues = append(report.Issues, Issue{
					Entity:     r.Name,
					EntityType: string(domain.TypeFundingRound),
					Field:      "pre_money",
					Severity:   severity,
					Message:    fmt.Sprintf("down round: pre-money %.2f is %.1f%% below the previous post-money %.2f", r.PreMoney(), drop*100, prevPost),
					Suggestion: "check anti-dilution provisions on affected share classes",
				})
			}
		}
	}
}

// validateControl flags a single holder with voting majority.
func validateControl(holders []domain.Shareholder, classByName map[string]domain.ShareClass, report *ValidationReport) {
	votes := func(h domain.Shareholder) float64 {
		weight := 1.0
		if c, ok := classByName[h.ShareClass()]; ok {
			weight = c.VotingRightsPerShare()
		}
		return h.TotalShares() * weight
	}

	total := 0.0
	for _, h := range holders {
		total += votes(h)
	}
	if total <= 0 {
		return
	}
	for _, h := range holders {
		if share := votes(h) / total; share > 0.5 {
			report.Issues = append(report.Issues, Issue{
				Entity:     h.Name,
				EntityType: string(domain.TypeShareholder),
				Severity:   SeverityInfo,
				Message:    fmt.Sprintf("%s controls %.1f%% of voting power", h.Name, share*100),
			})
		}
	}
}
