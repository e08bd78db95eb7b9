// Package engine computes monthly cash-flow frames: it applies a scenario to
// the stored entity set, evaluates every registered calculator for each month
// of the requested range on a worker pool, aggregates the results into
// category buckets, and fills in the derived columns.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

// Config tunes the engine.
type Config struct {
	Workers         int     // months evaluated concurrently; defaults to min(NumCPU, 4)
	CacheMaxEntries int     // cached frames; defaults to 64
	StartingCash    float64 // opening cash balance for the first month
}

// DefaultWorkers returns the default month-evaluation concurrency.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Engine is the cash-flow calculation engine. It is safe for concurrent use;
// month evaluation reads an immutable snapshot and writes disjoint records.
type Engine struct {
	store     *store.Store
	registry  *calc.Registry
	scenarios *scenarios.Manager
	cache     *frameCache
	log       zerolog.Logger

	workers      int
	startingCash float64
}

// New creates an engine over a store, registry and scenario manager.
func New(st *store.Store, reg *calc.Registry, mgr *scenarios.Manager, cfg Config, log zerolog.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	cacheMax := cfg.CacheMaxEntries
	if cacheMax <= 0 {
		cacheMax = 64
	}
	return &Engine{
		store:        st,
		registry:     reg,
		scenarios:    mgr,
		cache:        newFrameCache(cacheMax),
		log:          log.With().Str("component", "engine").Logger(),
		workers:      workers,
		startingCash: cfg.StartingCash,
	}
}

// Workers returns the configured month-evaluation concurrency.
func (e *Engine) Workers() int { return e.workers }

// Calculate computes the monthly frame for [start, end] under the named
// scenario. Satisfies scenarios.FrameCalculator.
func (e *Engine) Calculate(start, end time.Time, scenarioName string) (*domain.MonthlyFrame, error) {
	return e.CalculateContext(context.Background(), start, end, scenarioName)
}

// CalculateContext is Calculate with cooperative cancellation. Cancellation is
// checked between months; a cancelled run returns domain.ErrCancelled and
// leaves no cache entry.
func (e *Engine) CalculateContext(ctx context.Context, start, end time.Time, scenarioName string) (*domain.MonthlyFrame, error) {
	start = domain.FirstOfMonth(start)
	end = domain.FirstOfMonth(end)
	if end.Before(start) {
		return nil, &domain.BadRangeError{
			Start: start.Format(domain.DateLayout),
			End:   end.Format(domain.DateLayout),
		}
	}

	sc, err := e.scenarios.Get(scenarioName)
	if err != nil {
		return nil, err
	}

	key := cacheKey(start, end, sc.Name)
	if frame, ok := e.cache.get(key); ok {
		return frame, nil
	}

	entities, err := sc.ApplyToSet(e.store.Snapshot())
	if err != nil {
		return nil, err
	}

	months := domain.MonthGrid(start, end)
	records := make([]domain.MonthRecord, len(months))

	began := time.Now()
	if err := e.evaluateMonths(ctx, months, entities, sc, records); err != nil {
		return nil, err
	}

	e.finalize(records, start, sc)

	frame := &domain.MonthlyFrame{
		Records:      records,
		ScenarioName: sc.Name,
		StartingCash: e.startingCash,
	}
	e.cache.put(key, frame)

	e.log.Debug().
		Str("scenario", sc.Name).
		Int("months", len(months)).
		Int("entities", len(entities)).
		Dur("elapsed", time.Since(began)).
		Msg("frame computed")
	return frame, nil
}

// CalculateSequential computes a frame on the calling goroutine only. It is
// the reference path: the pooled evaluation must produce identical results.
func (e *Engine) CalculateSequential(start, end time.Time, scenarioName string) (*domain.MonthlyFrame, error) {
	start = domain.FirstOfMonth(start)
	end = domain.FirstOfMonth(end)
	if end.Before(start) {
		return nil, &domain.BadRangeError{
			Start: start.Format(domain.DateLayout),
			End:   end.Format(domain.DateLayout),
		}
	}

	sc, err := e.scenarios.Get(scenarioName)
	if err != nil {
		return nil, err
	}
	entities, err := sc.ApplyToSet(e.store.Snapshot())
	if err != nil {
		return nil, err
	}

	months := domain.MonthGrid(start, end)
	records := make([]domain.MonthRecord, len(months))
	for i, month := range months {
		records[i] = e.evaluateMonth(month, entities, sc)
	}
	e.finalize(records, start, sc)

	return &domain.MonthlyFrame{
		Records:      records,
		ScenarioName: sc.Name,
		StartingCash: e.startingCash,
	}, nil
}

// CalculateScenario computes a frame for an ad-hoc scenario definition that
// is not registered with the manager. Used by parameter sweeps; results are
// never cached because the definition has no stable identity.
func (e *Engine) CalculateScenario(ctx context.Context, start, end time.Time, sc *scenarios.Scenario) (*domain.MonthlyFrame, error) {
	start = domain.FirstOfMonth(start)
	end = domain.FirstOfMonth(end)
	if end.Before(start) {
		return nil, &domain.BadRangeError{
			Start: start.Format(domain.DateLayout),
			End:   end.Format(domain.DateLayout),
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	entities, err := sc.ApplyToSet(e.store.Snapshot())
	if err != nil {
		return nil, err
	}

	months := domain.MonthGrid(start, end)
	records := make([]domain.MonthRecord, len(months))
	if err := e.evaluateMonths(ctx, months, entities, sc, records); err != nil {
		return nil, err
	}
	e.finalize(records, start, sc)

	return &domain.MonthlyFrame{
		Records:      records,
		ScenarioName: sc.Name,
		StartingCash: e.startingCash,
	}, nil
}

// ClearCache drops all cached frames. Callers invoke it after mutating the
// entity store or redefining a scenario.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// CacheLen returns the number of cached frames.
func (e *Engine) CacheLen() int { return e.cache.len() }

// evaluateMonths fans the month grid out over the worker pool. Each worker
// owns a disjoint set of record slots, so no result synchronization is
// needed beyond the WaitGroup.
func (e *Engine) evaluateMonths(ctx context.Context, months []time.Time, entities []*domain.Entity, sc *scenarios.Scenario, records []domain.MonthRecord) error {
	workers := e.workers
	if workers > len(months) {
		workers = len(months)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				records[idx] = e.evaluateMonth(months[idx], entities, sc)
			}
		}()
	}

	cancelled := false
feed:
	for idx := range months {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return domain.ErrCancelled
	}
	return nil
}

// evaluateMonth aggregates every active entity's calculator outputs into one
// month record.
func (e *Engine) evaluateMonth(month time.Time, entities []*domain.Entity, sc *scenarios.Scenario) domain.MonthRecord {
	record := domain.MonthRecord{Period: month}
	cctx := domain.CalcContext{
		AsOfDate:     month,
		ScenarioName: sc.Name,
		AllEntities:  entities,
		Assumptions:  sc.Assumptions,
	}

	for _, entity := range entities {
		if !entity.ActiveInMonth(month) {
			continue
		}
		switch entity.Type {
		case domain.TypeEmployee:
			record.ActiveEmployees++
		case domain.TypeProject:
			record.ActiveProjects++
		}

		for name, value := range e.registry.CalculateAll(entity, cctx) {
			if cat, ok := calc.RouteCategory(entity.Type, name); ok {
				record.Add(cat, value)
			}
		}
	}
	return record
}

// finalize applies the revenue growth assumption and fills the derived
// columns in month order.
func (e *Engine) finalize(records []domain.MonthRecord, start time.Time, sc *scenarios.Scenario) {
	applyRevenueGrowth(records, sc)

	cumulative := 0.0
	for i := range records {
		r := &records[i]

		for _, cat := range domain.RevenueCategories() {
			r.TotalRevenue += r.Category(cat)
		}
		for _, cat := range domain.ExpenseCategories() {
			r.TotalExpenses += r.Category(cat)
		}
		r.NetCashFlow = r.TotalRevenue - r.TotalExpenses
		cumulative += r.NetCashFlow
		r.CumulativeCashFlow = cumulative
		r.CashBalance = e.startingCash + cumulative

		if i > 0 {
			prev := records[i-1]
			r.RevenueGrowthRate = monthOverMonth(prev.TotalRevenue, r.TotalRevenue)
			r.ExpenseGrowthRate = monthOverMonth(prev.TotalExpenses, r.TotalExpenses)
		}

		headcount := float64(r.ActiveEmployees)
		if headcount < 1 {
			headcount = 1
		}
		r.RevenuePerEmployee = r.TotalRevenue / headcount
		r.CostPerEmployee = r.TotalExpenses / headcount

		if r.TotalExpenses > 0 {
			r.EmployeeCostPct = r.EmployeeCosts / r.TotalExpenses
			r.FacilityCostPct = r.FacilityCosts / r.TotalExpenses
			r.SoftwareCostPct = r.SoftwareCosts / r.TotalExpenses
			r.EquipmentCostPct = r.EquipmentCosts / r.TotalExpenses
			r.ProjectCostPct = r.ProjectCosts / r.TotalExpenses
		}
	}
}

// applyRevenueGrowth compounds the revenue_growth_rate assumption onto the
// revenue buckets: month i is scaled by (1+rate)^(i/12), so the annual rate
// accrues smoothly instead of stepping at year boundaries. The exponent is
// relative to the frame's first month, not a fixed calendar epoch: the
// assumption describes growth over the projection horizon, so frames with
// different starts scale the same calendar month differently.
func applyRevenueGrowth(records []domain.MonthRecord, sc *scenarios.Scenario) {
	rate, ok := sc.Assumption(scenarios.AssumptionRevenueGrowthRate)
	if !ok || rate == 0 {
		return
	}
	for i := range records {
		factor := math.Pow(1+rate, float64(i)/12)
		records[i].GrantRevenue *= factor
		records[i].InvestmentRevenue *= factor
		records[i].SalesRevenue *= factor
		records[i].ServiceRevenue *= factor
	}
}

func monthOverMonth(prev, current float64) float64 {
	if prev == 0 {
		return 0
	}
	return (current - prev) / prev
}

func cacheKey(start, end time.Time, scenarioName string) string {
	return fmt.Sprintf("%s|%s|%s", start.Format(domain.DateLayout), end.Format(domain.DateLayout), scenarioName)
}
