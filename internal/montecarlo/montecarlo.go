// Package montecarlo runs randomized simulations over the cash-flow engine:
// uncertain entity fields are drawn from configured distributions (optionally
// correlated within groups), each draw is applied to a scratch copy of the
// entity set, and the resulting frames are aggregated into percentile bands
// and risk statistics.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/kpi"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

// Uncertainty binds a distribution to a numeric field on matching entities.
// Matching follows scenario override semantics: exact type match, plus an
// optional case-insensitive name regex. An empty CorrelationGroup samples
// independently.
type Uncertainty struct {
	EntityType       string       `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	NamePattern      string       `yaml:"name_pattern,omitempty" json:"name_pattern,omitempty"`
	Field            string       `yaml:"field" json:"field"`
	Distribution     Distribution `yaml:"distribution" json:"distribution"`
	CorrelationGroup string       `yaml:"correlation_group,omitempty" json:"correlation_group,omitempty"`

	pattern *regexp.Regexp
}

// Validate checks the uncertainty definition.
func (u *Uncertainty) Validate() error {
	if u.Field == "" {
		return fmt.Errorf("uncertainty requires a field")
	}
	if u.EntityType == "" && u.NamePattern == "" {
		return fmt.Errorf("uncertainty requires an entity_type or name_pattern selector")
	}
	if u.NamePattern != "" {
		compiled, err := regexp.Compile("(?i)" + u.NamePattern)
		if err != nil {
			return fmt.Errorf("invalid name_pattern %q: %w", u.NamePattern, err)
		}
		u.pattern = compiled
	}
	return u.Distribution.Validate()
}

func (u *Uncertainty) matches(e *domain.Entity) bool {
	if u.EntityType != "" && domain.EntityType(u.EntityType) != e.Type {
		return false
	}
	if u.pattern != nil && !u.pattern.MatchString(e.Name) {
		return false
	}
	return true
}

// CorrelationGroup pins a correlation matrix onto the uncertainties sharing
// its name, in their configuration order.
type CorrelationGroup struct {
	Name   string      `yaml:"name" json:"name"`
	Matrix [][]float64 `yaml:"matrix" json:"matrix"`
}

// Config describes one simulation run.
type Config struct {
	Iterations    int                `yaml:"iterations" json:"iterations"`
	Seed          int64              `yaml:"seed" json:"seed"`
	Scenario      string             `yaml:"scenario,omitempty" json:"scenario,omitempty"`
	Start         time.Time          `yaml:"start" json:"start"`
	End           time.Time          `yaml:"end" json:"end"`
	Uncertainties []Uncertainty      `yaml:"uncertainties" json:"uncertainties"`
	Correlations  []CorrelationGroup `yaml:"correlations,omitempty" json:"correlations,omitempty"`
}

// SimulationResult is the outcome of one iteration.
type SimulationResult struct {
	ID               int     `json:"id"`
	FinalCashBalance float64 `json:"final_cash_balance"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalExpenses    float64 `json:"total_expenses"`
	TotalNetCashFlow float64 `json:"total_net_cash_flow"`
	MinCashBalance   float64 `json:"min_cash_balance"`
	RunwayMonths     float64 `json:"runway_months"`
	BurnRate         float64 `json:"burn_rate"`
	Error            string  `json:"error,omitempty"`
}

// Stats is the summary of one scalar across iterations.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// Bands holds per-month percentile series aligned with Periods.
type Bands struct {
	P5  []float64 `json:"p5"`
	P25 []float64 `json:"p25"`
	P50 []float64 `json:"p50"`
	P75 []float64 `json:"p75"`
	P95 []float64 `json:"p95"`
}

// TimeSeries is the month-by-month distribution of the key frame columns.
type TimeSeries struct {
	Periods     []time.Time `json:"periods"`
	CashBalance Bands       `json:"cash_balance"`
	NetCashFlow Bands       `json:"net_cash_flow"`
}

// RiskSummary condenses the simulation into downside measures.
type RiskSummary struct {
	ProbabilityOfLoss          float64 `json:"probability_of_loss"`
	ProbabilityRunwayBelow6M   float64 `json:"probability_runway_below_6m"`
	ProbabilityRunwayBelow12M  float64 `json:"probability_runway_below_12m"`
	ProbabilityPositiveBalance float64 `json:"probability_positive_balance"`
	ExpectedLossGivenNegative  float64 `json:"expected_loss_given_negative"`
	WorstCase5Pct              float64 `json:"worst_case_5pct"`
	BestCase95Pct              float64 `json:"best_case_95pct"`
	Volatility                 float64 `json:"volatility"`
	SharpeRatio                float64 `json:"sharpe_ratio"`
}

// Summary is the aggregated outcome of a run, with one Stats block per
// recorded metric.
type Summary struct {
	Iterations    int                `json:"iterations"`
	Successful    int                `json:"successful"`
	Failed        int                `json:"failed"`
	Seed          int64              `json:"seed"`
	Scenario      string             `json:"scenario"`
	FinalBalance  Stats              `json:"final_balance"`
	TotalRevenue  Stats              `json:"total_revenue"`
	TotalExpenses Stats              `json:"total_expenses"`
	NetCashFlow   Stats              `json:"net_cash_flow"`
	Runway        Stats              `json:"runway_months"`
	BurnRate      Stats              `json:"burn_rate"`
	TimeSeries    TimeSeries         `json:"time_series"`
	Risk          RiskSummary        `json:"risk"`
	Results       []SimulationResult `json:"results"`
}

// Runner executes Monte-Carlo simulations against the persistent store.
type Runner struct {
	store     *store.Store
	registry  *calc.Registry
	scenarios *scenarios.Manager
	log       zerolog.Logger
	workers   int
	engineCfg engine.Config
}

// NewRunner creates a runner. The engine config carries starting cash; the
// worker count bounds outer iteration concurrency.
func NewRunner(st *store.Store, reg *calc.Registry, mgr *scenarios.Manager, engineCfg engine.Config, log zerolog.Logger) *Runner {
	workers := engineCfg.Workers
	if workers <= 0 {
		workers = engine.DefaultWorkers()
	}
	return &Runner{
		store:     st,
		registry:  reg,
		scenarios: mgr,
		log:       log.With().Str("component", "montecarlo").Logger(),
		workers:   workers,
		engineCfg: engineCfg,
	}
}

// correlationPlan is the precomputed sampling structure: each group's member
// indices and Cholesky factor.
type correlationPlan struct {
	members map[string][]int
	factors map[string]*mat.TriDense
}

// Run executes the configured simulation. Iterations are deterministic in the
// seed regardless of worker count: iteration i always draws from a generator
// seeded with seed+i.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive")
	}
	for i := range cfg.Uncertainties {
		if err := cfg.Uncertainties[i].Validate(); err != nil {
			return nil, err
		}
	}
	if _, err := r.scenarios.Get(cfg.Scenario); err != nil {
		return nil, err
	}

	plan, err := buildCorrelationPlan(cfg)
	if err != nil {
		return nil, err
	}

	baseline := r.store.Snapshot()
	results := make([]SimulationResult, cfg.Iterations)
	frames := make([]*domain.MonthlyFrame, cfg.Iterations)

	// Outer parallelism only pays off when there are enough iterations to
	// keep every worker busy; otherwise a single iteration at a time with a
	// parallel engine wins.
	outerWorkers := r.workers
	if cfg.Iterations < 4*r.workers {
		outerWorkers = 1
	}
	innerWorkers := 1
	if outerWorkers == 1 {
		innerWorkers = r.workers
	}

	began := time.Now()

	jobs := make(chan int)
	errs := make(chan error, outerWorkers)
	var wg sync.WaitGroup
	for w := 0; w < outerWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker, err := r.newWorker(innerWorkers)
			if err != nil {
				errs <- err
				// Drain so the feeder never blocks on a dead worker.
				for range jobs {
				}
				return
			}
			for iter := range jobs {
				results[iter], frames[iter] = worker.simulate(iter, cfg, baseline, plan)
			}
		}()
	}

	cancelled := false
feed:
	for iter := 0; iter < cfg.Iterations; iter++ {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case jobs <- iter:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if cancelled {
		return nil, domain.ErrCancelled
	}

	summary := aggregate(cfg, results, frames)
	r.log.Info().
		Int("iterations", cfg.Iterations).
		Int("failed", summary.Failed).
		Int64("seed", cfg.Seed).
		Dur("elapsed", time.Since(began)).
		Msg("simulation complete")
	return summary, nil
}

// worker owns a scratch store and a private engine so iterations never touch
// the persistent entity set.
type worker struct {
	scratch *store.Store
	eng     *engine.Engine
}

func (r *Runner) newWorker(innerWorkers int) (*worker, error) {
	scratch, err := store.NewMemory(r.log)
	if err != nil {
		return nil, err
	}
	cfg := r.engineCfg
	cfg.Workers = innerWorkers
	return &worker{
		scratch: scratch,
		eng:     engine.New(scratch, r.registry, r.scenarios, cfg, r.log),
	}, nil
}

// simulate runs one iteration: draw, perturb, replace, calculate.
func (w *worker) simulate(iter int, cfg Config, baseline []*domain.Entity, plan *correlationPlan) (SimulationResult, *domain.MonthlyFrame) {
	result := SimulationResult{ID: iter}
	rng := rand.New(rand.NewSource(cfg.Seed + int64(iter)))

	draws := sample(rng, cfg.Uncertainties, plan)
	perturbed, err := perturb(baseline, cfg.Uncertainties, draws)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	if err := w.scratch.ReplaceEntities(perturbed); err != nil {
		result.Error = err.Error()
		return result, nil
	}

	var frame *domain.MonthlyFrame
	if w.eng.Workers() > 1 {
		w.eng.ClearCache()
		frame, err = w.eng.Calculate(cfg.Start, cfg.End, cfg.Scenario)
	} else {
		frame, err = w.eng.CalculateSequential(cfg.Start, cfg.End, cfg.Scenario)
	}
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	report := kpi.ComputeAll(frame)
	result.FinalCashBalance = frame.FinalCashBalance()
	result.TotalRevenue = frame.TotalRevenue()
	result.TotalExpenses = frame.TotalExpenses()
	result.TotalNetCashFlow = frame.NetCashFlow()
	result.MinCashBalance = minOf(frame.CashBalances())
	result.RunwayMonths = report.RunwayMonths
	result.BurnRate = report.BurnRate
	return result, frame
}

// buildCorrelationPlan groups uncertainties and factorizes each group's
// correlation matrix. A matrix that is not positive definite is a
// configuration error surfaced as BadStateError.
func buildCorrelationPlan(cfg Config) (*correlationPlan, error) {
	plan := &correlationPlan{
		members: make(map[string][]int),
		factors: make(map[string]*mat.TriDense),
	}
	for i, u := range cfg.Uncertainties {
		if u.CorrelationGroup != "" {
			plan.members[u.CorrelationGroup] = append(plan.members[u.CorrelationGroup], i)
		}
	}

	for _, group := range cfg.Correlations {
		members := plan.members[group.Name]
		n := len(members)
		if n == 0 {
			return nil, fmt.Errorf("correlation group %q has no uncertainties", group.Name)
		}
		if len(group.Matrix) != n {
			return nil, fmt.Errorf("correlation group %q: matrix is %dx%d, group has %d members",
				group.Name, len(group.Matrix), len(group.Matrix), n)
		}
		data := make([]float64, 0, n*n)
		for _, row := range group.Matrix {
			if len(row) != n {
				return nil, fmt.Errorf("correlation group %q: matrix rows must have %d entries", group.Name, n)
			}
			data = append(data, row...)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(mat.NewSymDense(n, data)); !ok {
			return nil, &domain.BadStateError{
				Detail: fmt.Sprintf("correlation matrix for group %q is not positive definite", group.Name),
			}
		}
		factor := mat.NewTriDense(n, mat.Lower, nil)
		chol.LTo(factor)
		plan.factors[group.Name] = factor
	}

	// Groups referenced by uncertainties but missing a matrix degrade to
	// independent sampling, which is the identity correlation.
	return plan, nil
}

// sample draws one value per uncertainty. Independent standard normals are
// correlated within groups via the Cholesky factor, then mapped through each
// marginal's inverse CDF, preserving both the configured correlation
// structure and the exact marginals.
func sample(rng *rand.Rand, uncertainties []Uncertainty, plan *correlationPlan) []float64 {
	n := len(uncertainties)
	normals := make([]float64, n)
	for i := range normals {
		normals[i] = rng.NormFloat64()
	}

	for name, factor := range plan.factors {
		members := plan.members[name]
		z := mat.NewVecDense(len(members), nil)
		for j, idx := range members {
			z.SetVec(j, normals[idx])
		}
		var correlated mat.VecDense
		correlated.MulVec(factor, z)
		for j, idx := range members {
			normals[idx] = correlated.AtVec(j)
		}
	}

	draws := make([]float64, n)
	for i, u := range uncertainties {
		draws[i] = u.Distribution.quantile(distuv.UnitNormal.CDF(normals[i]))
	}
	return draws
}

// perturb clones the baseline set and writes each draw into its matching
// entities. Entities outside every selector pass through by reference; the
// engine never mutates them.
func perturb(baseline []*domain.Entity, uncertainties []Uncertainty, draws []float64) ([]*domain.Entity, error) {
	out := make([]*domain.Entity, len(baseline))
	for i, e := range baseline {
		clone := e
		cloned := false
		for j := range uncertainties {
			u := &uncertainties[j]
			if !u.matches(e) {
				continue
			}
			if !cloned {
				clone = e.Clone()
				cloned = true
			}
			if err := clone.SetPath(u.Field, draws[j]); err != nil {
				return nil, fmt.Errorf("entity %q field %q: %w", e.Name, u.Field, err)
			}
		}
		out[i] = clone
	}
	return out, nil
}

// aggregate reduces iteration results into the summary.
func aggregate(cfg Config, results []SimulationResult, frames []*domain.MonthlyFrame) *Summary {
	summary := &Summary{
		Iterations: cfg.Iterations,
		Seed:       cfg.Seed,
		Scenario:   cfg.Scenario,
		Results:    results,
	}

	var finals, revenues, expenses, totals, runways, burns, mins []float64
	var okFrames []*domain.MonthlyFrame
	for i, res := range results {
		if res.Error != "" {
			summary.Failed++
			continue
		}
		summary.Successful++
		finals = append(finals, res.FinalCashBalance)
		revenues = append(revenues, res.TotalRevenue)
		expenses = append(expenses, res.TotalExpenses)
		totals = append(totals, res.TotalNetCashFlow)
		runways = append(runways, res.RunwayMonths)
		burns = append(burns, res.BurnRate)
		mins = append(mins, res.MinCashBalance)
		okFrames = append(okFrames, frames[i])
	}
	if summary.Successful == 0 {
		return summary
	}

	summary.FinalBalance = computeStats(finals)
	summary.TotalRevenue = computeStats(revenues)
	summary.TotalExpenses = computeStats(expenses)
	summary.NetCashFlow = computeStats(totals)
	summary.Runway = computeStats(runways)
	summary.BurnRate = computeStats(burns)
	summary.TimeSeries = computeTimeSeries(okFrames)
	summary.Risk = computeRisk(finals, totals, runways, mins, summary.FinalBalance)
	return summary
}

func computeStats(values []float64) Stats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s := Stats{
		Mean: stat.Mean(sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P5:   quantile(sorted, 0.05),
		P25:  quantile(sorted, 0.25),
		P50:  quantile(sorted, 0.50),
		P75:  quantile(sorted, 0.75),
		P95:  quantile(sorted, 0.95),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// computeTimeSeries builds per-month percentile bands. Frames shorter than
// the longest run contribute only to the months they cover.
func computeTimeSeries(frames []*domain.MonthlyFrame) TimeSeries {
	months := 0
	var longest *domain.MonthlyFrame
	for _, f := range frames {
		if f.Len() > months {
			months = f.Len()
			longest = f
		}
	}
	ts := TimeSeries{
		CashBalance: newBands(months),
		NetCashFlow: newBands(months),
	}
	for _, r := range longest.Records {
		ts.Periods = append(ts.Periods, r.Period)
	}

	for m := 0; m < months; m++ {
		var balances, nets []float64
		for _, f := range frames {
			if m < f.Len() {
				balances = append(balances, f.Records[m].CashBalance)
				nets = append(nets, f.Records[m].NetCashFlow)
			}
		}
		sort.Float64s(balances)
		sort.Float64s(nets)
		ts.CashBalance.set(m, balances)
		ts.NetCashFlow.set(m, nets)
	}
	return ts
}

func newBands(months int) Bands {
	return Bands{
		P5:  make([]float64, months),
		P25: make([]float64, months),
		P50: make([]float64, months),
		P75: make([]float64, months),
		P95: make([]float64, months),
	}
}

func (b *Bands) set(m int, sorted []float64) {
	b.P5[m] = quantile(sorted, 0.05)
	b.P25[m] = quantile(sorted, 0.25)
	b.P50[m] = quantile(sorted, 0.50)
	b.P75[m] = quantile(sorted, 0.75)
	b.P95[m] = quantile(sorted, 0.95)
}

func computeRisk(finals, totals, runways, mins []float64, finalStats Stats) RiskSummary {
	n := float64(len(finals))
	risk := RiskSummary{
		WorstCase5Pct: finalStats.P5,
		BestCase95Pct: finalStats.P95,
		Volatility:    finalStats.StdDev,
	}

	losses, lossSum := 0, 0.0
	for _, total := range totals {
		if total < 0 {
			losses++
			lossSum += total
		}
	}
	risk.ProbabilityOfLoss = float64(losses) / n
	if losses > 0 {
		risk.ExpectedLossGivenNegative = lossSum / float64(losses)
	}

	below6, below12 := 0, 0
	for _, rw := range runways {
		if rw < 6 {
			below6++
		}
		if rw < 12 {
			below12++
		}
	}
	risk.ProbabilityRunwayBelow6M = float64(below6) / n
	risk.ProbabilityRunwayBelow12M = float64(below12) / n

	positive := 0
	for _, m := range mins {
		if m > 0 {
			positive++
		}
	}
	risk.ProbabilityPositiveBalance = float64(positive) / n

	meanTotal := stat.Mean(totals, nil)
	if len(totals) > 1 {
		if sd := stat.StdDev(totals, nil); sd > 0 {
			risk.SharpeRatio = meanTotal / sd
		}
	}
	return risk
}

func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
