// Package captable computes ownership, dilution, liquidation waterfalls and
// cross-entity consistency checks over the cap-table entity types
// (shareholder, share_class, funding_round).
//
// All computations are pure functions over an entity slice; Calculator binds
// them to the entity store for callers that want the live set.
package captable

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/store"
)

// Calculator runs cap-table computations against the entity store.
type Calculator struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates a calculator over the store.
func New(st *store.Store, log zerolog.Logger) *Calculator {
	return &Calculator{
		store: st,
		log:   log.With().Str("component", "captable").Logger(),
	}
}

func (c *Calculator) entities() []*domain.Entity {
	return c.store.Snapshot()
}

// Summary computes the ownership table for the stored entities.
func (c *Calculator) Summary() *Summary {
	return BuildSummary(c.entities())
}

// Waterfall distributes an exit value over the stored entities.
func (c *Calculator) Waterfall(exitValue float64) *WaterfallResult {
	return BuildWaterfall(c.entities(), exitValue)
}

// Dilution models the named funding round against the stored entities.
func (c *Calculator) Dilution(roundName string) (*DilutionResult, error) {
	round, err := c.store.GetByName(roundName, domain.TypeFundingRound)
	if err != nil {
		return nil, err
	}
	return BuildDilution(c.entities(), round), nil
}

// Validate checks cap-table consistency across the stored entities.
func (c *Calculator) Validate() *ValidationReport {
	return ValidateEntities(c.entities())
}

// OwnershipEntry is one shareholder's position.
type OwnershipEntry struct {
	Shareholder  string  `json:"shareholder"`
	HolderType   string  `json:"holder_type"`
	ShareClass   string  `json:"share_class"`
	Shares       float64 `json:"shares"`
	OwnershipPct float64 `json:"ownership_pct"` // fraction of fully diluted, 4 decimals
	VotingPct    float64 `json:"voting_pct"`    // fraction of total voting power, 4 decimals
	BoardSeats   float64 `json:"board_seats"`
}

// ClassSummary is one share class's aggregate position.
type ClassSummary struct {
	ClassName         string  `json:"class_name"`
	SharesAuthorized  float64 `json:"shares_authorized"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	Utilization       float64 `json:"utilization"` // outstanding / authorized
	PreferenceAmount  float64 `json:"preference_amount"`
}

// Summary is the full ownership table.
type Summary struct {
	FullyDilutedShares float64          `json:"fully_diluted_shares"`
	TotalVotingPower   float64          `json:"total_voting_power"`
	TotalBoardSeats    float64          `json:"total_board_seats"`
	Entries            []OwnershipEntry `json:"entries"`
	Classes            []ClassSummary   `json:"classes"`
}

// BuildSummary computes ownership on a fully-diluted basis. The denominator
// is the larger of the shareholder total and the class outstanding total, so
// pool shares recorded on a class but not yet granted still dilute everyone.
func BuildSummary(entities []*domain.Entity) *Summary {
	holders, classes := split(entities)

	holderShares := 0.0
	for _, h := range holders {
		holderShares += h.TotalShares()
	}
	classShares := 0.0
	for _, c := range classes {
		classShares += c.SharesOutstanding()
	}
	fullyDiluted := math.Max(holderShares, classShares)

	classByName := make(map[string]domain.ShareClass, len(classes))
	for _, c := range classes {
		classByName[c.ClassName()] = c
	}

	votingPower := func(h domain.Shareholder) float64 {
		weight := 1.0
		if c, ok := classByName[h.ShareClass()]; ok {
			weight = c.VotingRightsPerShare()
		}
		return h.TotalShares() * weight
	}

	totalVotes := 0.0
	for _, h := range holders {
		totalVotes += votingPower(h)
	}

	summary := &Summary{
		FullyDilutedShares: fullyDiluted,
		TotalVotingPower:   totalVotes,
	}

	for _, h := range holders {
		entry := OwnershipEntry{
			Shareholder: h.Name,
			HolderType:  h.HolderType(),
			ShareClass:  h.ShareClass(),
			Shares:      h.TotalShares(),
			BoardSeats:  h.BoardSeats(),
		}
		if fullyDiluted > 0 {
			entry.OwnershipPct = round4(h.TotalShares() / fullyDiluted)
		}
		if totalVotes > 0 {
			entry.VotingPct = round4(votingPower(h) / totalVotes)
		}
		summary.TotalBoardSeats += entry.BoardSeats
		summary.Entries = append(summary.Entries, entry)
	}
	sort.Slice(summary.Entries, func(i, j int) bool {
		if summary.Entries[i].Shares != summary.Entries[j].Shares {
			return summary.Entries[i].Shares > summary.Entries[j].Shares
		}
		return summary.Entries[i].Shareholder < summary.Entries[j].Shareholder
	})

	for _, c := range classes {
		cs := ClassSummary{
			ClassName:         c.ClassName(),
			SharesAuthorized:  c.SharesAuthorized(),
			SharesOutstanding: c.SharesOutstanding(),
			PreferenceAmount:  c.PreferenceAmount(),
		}
		if cs.SharesAuthorized > 0 {
			cs.Utilization = cs.SharesOutstanding / cs.SharesAuthorized
		}
		summary.Classes = append(summary.Classes, cs)
	}
	sort.Slice(summary.Classes, func(i, j int) bool {
		return summary.Classes[i].ClassName < summary.Classes[j].ClassName
	})

	return summary
}

// DilutionEntry is one shareholder's position before and after a round.
type DilutionEntry struct {
	Shareholder  string  `json:"shareholder"`
	PreRoundPct  float64 `json:"pre_round_pct"`
	PostRoundPct float64 `json:"post_round_pct"`
}

// DilutionResult models one funding round against the current table.
type DilutionResult struct {
	Round          string          `json:"round"`
	PreShares      float64         `json:"pre_shares"`
	NewShares      float64         `json:"new_shares"`
	PostShares     float64         `json:"post_shares"`
	DilutionFactor float64         `json:"dilution_factor"` // ownership fraction sold
	PreMoney       float64         `json:"pre_money"`
	PostMoney      float64         `json:"post_money"`
	Entries        []DilutionEntry `json:"entries"`
}

// BuildDilution applies a funding round to the current fully-diluted table.
// Every existing holder is scaled by (1 - dilution).
func BuildDilution(entities []*domain.Entity, roundEntity *domain.Entity) *DilutionResult {
	round, ok := domain.AsFundingRound(roundEntity)
	if !ok {
		return nil
	}

	summary := BuildSummary(entities)
	preShares := summary.FullyDilutedShares
	dilution := round.DilutionImpact(preShares)

	newShares, ok := round.SharesIssued()
	if !ok && dilution > 0 && dilution < 1 {
		// Invert new/(pre+new) = dilution.
		newShares = preShares * dilution / (1 - dilution)
	}

	result := &DilutionResult{
		Round:          round.Name,
		PreShares:      preShares,
		NewShares:      newShares,
		PostShares:     preShares + newShares,
		DilutionFactor: dilution,
		PreMoney:       round.PreMoney(),
		PostMoney:      round.PostMoney(),
	}

	for _, entry := range summary.Entries {
		result.Entries = append(result.Entries, DilutionEntry{
			Shareholder:  entry.Shareholder,
			PreRoundPct:  entry.OwnershipPct,
			PostRoundPct: round4(entry.OwnershipPct * (1 - dilution)),
		})
	}
	return result
}

// split partitions cap-table entities into holder and class views.
func split(entities []*domain.Entity) ([]domain.Shareholder, []domain.ShareClass) {
	var holders []domain.Shareholder
	var classes []domain.ShareClass
	for _, e := range entities {
		if h, ok := domain.AsShareholder(e); ok {
			holders = append(holders, h)
		}
		if c, ok := domain.AsShareClass(e); ok {
			classes = append(classes, c)
		}
	}
	return holders, classes
}

// round4 rounds half-up to four decimal places, the reporting precision for
// ownership fractions.
func round4(v float64) float64 {
	return math.Floor(v*10000+0.5) / 10000
}
