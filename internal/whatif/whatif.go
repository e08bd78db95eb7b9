// Package whatif answers parameter questions against the engine: how
// sensitive is the outcome to one field, what does a grid of parameter
// combinations look like, and at what value does the plan break even.
//
// Every analysis works the same way: the swept field is injected as an extra
// override on top of a registered base scenario, and the resulting ad-hoc
// scenario is run through the engine.
package whatif

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/kpi"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
)

// Parameter identifies a swept field: a scenario-override selector plus the
// dot path to set.
type Parameter struct {
	Name        string    `yaml:"name" json:"name"`
	Entity      string    `yaml:"entity,omitempty" json:"entity,omitempty"`
	EntityType  string    `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	NamePattern string    `yaml:"name_pattern,omitempty" json:"name_pattern,omitempty"`
	Field       string    `yaml:"field" json:"field"`
	Values      []float64 `yaml:"values" json:"values"`
}

func (p *Parameter) validate(needValues bool) error {
	if p.Field == "" {
		return fmt.Errorf("parameter %q requires a field", p.Name)
	}
	if p.Entity == "" && p.EntityType == "" && p.NamePattern == "" {
		return fmt.Errorf("parameter %q requires an entity, entity_type or name_pattern selector", p.Name)
	}
	if needValues && len(p.Values) < 2 {
		return fmt.Errorf("parameter %q requires at least two values", p.Name)
	}
	return nil
}

func (p *Parameter) override(value float64) scenarios.Override {
	return scenarios.Override{
		Entity:      p.Entity,
		EntityType:  p.EntityType,
		NamePattern: p.NamePattern,
		Field:       p.Field,
		Value:       value,
	}
}

// Driver runs what-if analyses.
type Driver struct {
	eng       *engine.Engine
	store     *store.Store
	scenarios *scenarios.Manager
	log       zerolog.Logger
}

// NewDriver creates a driver over an engine and its store.
func NewDriver(eng *engine.Engine, st *store.Store, mgr *scenarios.Manager, log zerolog.Logger) *Driver {
	return &Driver{
		eng:       eng,
		store:     st,
		scenarios: mgr,
		log:       log.With().Str("component", "whatif").Logger(),
	}
}

// withOverrides derives an ad-hoc scenario: the base definition plus the
// sweep overrides appended last, so they win over the base's own overrides.
func (d *Driver) withOverrides(baseName string, extra []scenarios.Override) (*scenarios.Scenario, error) {
	base, err := d.scenarios.Get(baseName)
	if err != nil {
		return nil, err
	}
	sc := *base
	sc.EntityOverrides = append(append([]scenarios.Override(nil), base.EntityOverrides...), extra...)
	return &sc, nil
}

// SensitivityPoint is one sweep sample.
type SensitivityPoint struct {
	Value            float64 `json:"value"`
	FinalCashBalance float64 `json:"final_cash_balance"`
	TotalNetCashFlow float64 `json:"total_net_cash_flow"`
}

// SensitivityResult summarizes a one-parameter sweep.
type SensitivityResult struct {
	Parameter   string             `json:"parameter"`
	Points      []SensitivityPoint `json:"points"`
	Correlation float64            `json:"correlation"` // Pearson, value vs final balance
	Elasticity  float64            `json:"elasticity"`  // %change in outcome per %change in value
}

// Sensitivity sweeps one parameter across its values under the base scenario.
func (d *Driver) Sensitivity(ctx context.Context, baseScenario string, p Parameter, start, end time.Time) (*SensitivityResult, error) {
	if err := p.validate(true); err != nil {
		return nil, err
	}

	result := &SensitivityResult{Parameter: p.Name}
	values := make([]float64, 0, len(p.Values))
	finals := make([]float64, 0, len(p.Values))

	for _, value := range p.Values {
		sc, err := d.withOverrides(baseScenario, []scenarios.Override{p.override(value)})
		if err != nil {
			return nil, err
		}
		frame, err := d.eng.CalculateScenario(ctx, start, end, sc)
		if err != nil {
			return nil, fmt.Errorf("parameter %q value %v: %w", p.Name, value, err)
		}
		result.Points = append(result.Points, SensitivityPoint{
			Value:            value,
			FinalCashBalance: frame.FinalCashBalance(),
			TotalNetCashFlow: frame.NetCashFlow(),
		})
		values = append(values, value)
		finals = append(finals, frame.FinalCashBalance())
	}

	result.Correlation = stat.Correlation(values, finals, nil)
	result.Elasticity = elasticity(values, finals)
	return result, nil
}

// elasticity relates the relative change in outcome across the sweep to the
// relative change in the parameter, measured against the sweep midpoints.
func elasticity(values, outcomes []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	midValue := (values[0] + values[n-1]) / 2
	midOutcome := (outcomes[0] + outcomes[n-1]) / 2
	if midValue == 0 || midOutcome == 0 {
		return 0
	}
	dValue := (values[n-1] - values[0]) / midValue
	if dValue == 0 {
		return 0
	}
	dOutcome := (outcomes[n-1] - outcomes[0]) / midOutcome
	return dOutcome / dValue
}

// Combination is one cell of a multi-parameter grid.
type Combination struct {
	Values           map[string]float64 `json:"values"`
	FinalCashBalance float64            `json:"final_cash_balance"`
	TotalNetCashFlow float64            `json:"total_net_cash_flow"`
}

// MultiParamResult is the evaluated grid with its extremes.
type MultiParamResult struct {
	Combinations []Combination `json:"combinations"`
	Best         Combination   `json:"best"`  // highest final balance
	Worst        Combination   `json:"worst"` // lowest final balance
	Evaluated    int           `json:"evaluated"`
	TotalCells   int           `json:"total_cells"`
}

// DefaultMaxCombinations bounds the evaluated grid size.
const DefaultMaxCombinations = 256

// MultiParam evaluates the Cartesian product of the parameters' values. When
// the full grid exceeds maxCombos (0 means DefaultMaxCombinations), cells are
// subsampled at an even stride over the enumeration order.
func (d *Driver) MultiParam(ctx context.Context, baseScenario string, params []Parameter, start, end time.Time, maxCombos int) (*MultiParamResult, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("at least one parameter is required")
	}
	for i := range params {
		if err := params[i].validate(true); err != nil {
			return nil, err
		}
	}
	if maxCombos <= 0 {
		maxCombos = DefaultMaxCombinations
	}

	total := 1
	for _, p := range params {
		total *= len(p.Values)
	}
	stride := 1
	if total > maxCombos {
		stride = (total + maxCombos - 1) / maxCombos
	}

	result := &MultiParamResult{TotalCells: total}
	indices := make([]int, len(params))
	for cell := 0; cell < total; cell += stride {
		// Decode the cell number into per-parameter indices.
		rem := cell
		for i := len(params) - 1; i >= 0; i-- {
			indices[i] = rem % len(params[i].Values)
			rem /= len(params[i].Values)
		}

		overrides := make([]scenarios.Override, len(params))
		values := make(map[string]float64, len(params))
		for i, p := range params {
			v := p.Values[indices[i]]
			overrides[i] = p.override(v)
			values[p.Name] = v
		}

		sc, err := d.withOverrides(baseScenario, overrides)
		if err != nil {
			return nil, err
		}
		frame, err := d.eng.CalculateScenario(ctx, start, end, sc)
		if err != nil {
			return nil, fmt.Errorf("combination %v: %w", values, err)
		}

		combo := Combination{
			Values:           values,
			FinalCashBalance: frame.FinalCashBalance(),
			TotalNetCashFlow: frame.NetCashFlow(),
		}
		result.Combinations = append(result.Combinations, combo)
		if result.Evaluated == 0 || combo.FinalCashBalance > result.Best.FinalCashBalance {
			result.Best = combo
		}
		if result.Evaluated == 0 || combo.FinalCashBalance < result.Worst.FinalCashBalance {
			result.Worst = combo
		}
		result.Evaluated++
	}
	return result, nil
}

// Breakeven target metrics.
const (
	MetricFinalCashBalance = "final_cash_balance"
	MetricTotalRevenue     = "total_revenue"
	MetricNetCashFlow      = "net_cash_flow"
	MetricRunwayMonths     = "runway_months"
)

func validMetric(metric string) bool {
	switch metric {
	case "", MetricFinalCashBalance, MetricTotalRevenue, MetricNetCashFlow, MetricRunwayMonths:
		return true
	}
	return false
}

// metricOf evaluates a breakeven target metric over a frame. The empty
// metric name means the final cash balance.
func metricOf(frame *domain.MonthlyFrame, metric string) float64 {
	switch metric {
	case MetricTotalRevenue:
		return frame.TotalRevenue()
	case MetricNetCashFlow:
		return frame.NetCashFlow()
	case MetricRunwayMonths:
		return kpi.ComputeAll(frame).RunwayMonths
	default:
		return frame.FinalCashBalance()
	}
}

// BreakevenConfig describes a breakeven search: drive Metric (default
// final_cash_balance) to Target by adjusting the parameter. Lo and Hi default
// to [0.1x, 3x] of the parameter's current value in the store; Tolerance is
// the acceptable distance from the target.
type BreakevenConfig struct {
	Parameter     Parameter `yaml:"parameter" json:"parameter"`
	Metric        string    `yaml:"metric,omitempty" json:"metric,omitempty"`
	Target        float64   `yaml:"target" json:"target"`
	Lo            float64   `yaml:"lo,omitempty" json:"lo,omitempty"`
	Hi            float64   `yaml:"hi,omitempty" json:"hi,omitempty"`
	Tolerance     float64   `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	MaxIterations int       `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// BreakevenStep is one probe of the search.
type BreakevenStep struct {
	Value   float64 `json:"value"`
	Outcome float64 `json:"outcome"`
}

// BreakevenResult is the search outcome. Converged is false when the target
// is not bracketed by the bounds or the iteration budget ran out.
type BreakevenResult struct {
	Value      float64         `json:"value"`
	Outcome    float64         `json:"outcome"`
	Converged  bool            `json:"converged"`
	Iterations int             `json:"iterations"`
	History    []BreakevenStep `json:"history"`
}

// Breakeven binary-searches the parameter value at which the chosen metric
// reaches the target. The metric must be monotonic in the parameter over the
// bracket, which holds for prices, salaries and recurring amounts.
func (d *Driver) Breakeven(ctx context.Context, baseScenario string, cfg BreakevenConfig, start, end time.Time) (*BreakevenResult, error) {
	if err := cfg.Parameter.validate(false); err != nil {
		return nil, err
	}
	if !validMetric(cfg.Metric) {
		return nil, fmt.Errorf("unknown breakeven metric %q", cfg.Metric)
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = 1.0
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 || maxIter > 50 {
		maxIter = 50
	}

	lo, hi := cfg.Lo, cfg.Hi
	if lo == 0 && hi == 0 {
		base, err := d.currentValue(cfg.Parameter)
		if err != nil {
			return nil, err
		}
		lo, hi = 0.1*base, 3*base
	}
	if hi <= lo {
		return nil, fmt.Errorf("breakeven bounds are inverted: lo=%v hi=%v", lo, hi)
	}

	result := &BreakevenResult{}
	probe := func(value float64) (float64, error) {
		sc, err := d.withOverrides(baseScenario, []scenarios.Override{cfg.Parameter.override(value)})
		if err != nil {
			return 0, err
		}
		frame, err := d.eng.CalculateScenario(ctx, start, end, sc)
		if err != nil {
			return 0, err
		}
		outcome := metricOf(frame, cfg.Metric)
		result.History = append(result.History, BreakevenStep{Value: value, Outcome: outcome})
		result.Iterations++
		return outcome, nil
	}

	loOutcome, err := probe(lo)
	if err != nil {
		return nil, err
	}
	hiOutcome, err := probe(hi)
	if err != nil {
		return nil, err
	}

	// The target must sit between the endpoint outcomes for bisection to
	// make sense.
	if (loOutcome-cfg.Target)*(hiOutcome-cfg.Target) > 0 {
		if absFloat(loOutcome-cfg.Target) < absFloat(hiOutcome-cfg.Target) {
			result.Value, result.Outcome = lo, loOutcome
		} else {
			result.Value, result.Outcome = hi, hiOutcome
		}
		return result, nil
	}
	increasing := hiOutcome > loOutcome

	for result.Iterations < maxIter {
		mid := (lo + hi) / 2
		outcome, err := probe(mid)
		if err != nil {
			return nil, err
		}
		result.Value, result.Outcome = mid, outcome

		if absFloat(outcome-cfg.Target) <= tolerance {
			result.Converged = true
			return result, nil
		}
		if (outcome < cfg.Target) == increasing {
			lo = mid
		} else {
			hi = mid
		}
	}
	return result, nil
}

// currentValue reads the parameter's present value from the first matching
// stored entity, used to derive default search bounds.
func (d *Driver) currentValue(p Parameter) (float64, error) {
	probe := p.override(0)
	for _, e := range d.store.Snapshot() {
		if !probe.Matches(e) {
			continue
		}
		raw, ok := e.GetPath(p.Field)
		if !ok {
			continue
		}
		if v, ok := domain.ToFloat(raw); ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no stored entity carries parameter %q field %q", p.Name, p.Field)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
