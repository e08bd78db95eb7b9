package scenarios

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aristath/runway/internal/domain"
)

// FrameCalculator is the slice of the engine the comparer needs. The engine
// satisfies it; keeping the interface here avoids an import cycle.
type FrameCalculator interface {
	Calculate(start, end time.Time, scenarioName string) (*domain.MonthlyFrame, error)
}

// Manager holds named scenarios. The predefined set (baseline, optimistic,
// conservative, cash_preservation) is always present; file-loaded and
// API-added scenarios overlay it.
type Manager struct {
	scenarios map[string]*Scenario
	mu        sync.RWMutex
	log       zerolog.Logger
}

// NewManager creates a manager seeded with the predefined scenarios.
func NewManager(log zerolog.Logger) *Manager {
	m := &Manager{
		scenarios: make(map[string]*Scenario),
		log:       log.With().Str("component", "scenarios").Logger(),
	}
	for _, s := range Predefined() {
		m.scenarios[s.Name] = s
	}
	return m
}

// Add registers a scenario after validation, replacing any previous
// definition with the same name.
func (m *Manager) Add(s *Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.Name] = s
	return nil
}

// Get returns a scenario by name. The empty name resolves to baseline.
func (m *Manager) Get(name string) (*Scenario, error) {
	if name == "" {
		name = "baseline"
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "scenario", Name: name}
	}
	return s, nil
}

// Names returns registered scenario names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scenarios))
	for name := range m.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a scenario definition from a YAML file.
func (m *Manager) LoadFile(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.NotFoundError{Kind: "file", Name: path}
		}
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if err := m.Add(&s); err != nil {
		return nil, fmt.Errorf("scenario file %s: %w", path, err)
	}
	return &s, nil
}

// Load walks a directory and registers every scenario file found.
func (m *Manager) Load(path string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
		default:
			return nil
		}
		if _, err := m.LoadFile(file); err != nil {
			return err
		}
		loaded++
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &domain.NotFoundError{Kind: "file", Name: path}
		}
		return loaded, err
	}
	m.log.Info().Int("scenarios", loaded).Str("path", path).Msg("loaded scenario directory")
	return loaded, nil
}

// ScenarioResult is one scenario's outcome within a comparison.
type ScenarioResult struct {
	Name             string               `json:"name"`
	Frame            *domain.MonthlyFrame `json:"frame"`
	TotalRevenue     float64              `json:"total_revenue"`
	TotalExpenses    float64              `json:"total_expenses"`
	NetCashFlow      float64              `json:"net_cash_flow"`
	FinalCashBalance float64              `json:"final_cash_balance"`
}

// ScenarioDelta is a scenario's difference against the comparison base.
type ScenarioDelta struct {
	Name              string  `json:"name"`
	RevenueDelta      float64 `json:"revenue_delta"`
	RevenueDeltaPct   float64 `json:"revenue_delta_pct"`
	ExpensesDelta     float64 `json:"expenses_delta"`
	ExpensesDeltaPct  float64 `json:"expenses_delta_pct"`
	NetCashFlowDelta  float64 `json:"net_cash_flow_delta"`
	FinalBalanceDelta float64 `json:"final_balance_delta"`
}

// Comparison holds per-scenario results plus deltas against the first named
// scenario.
type Comparison struct {
	Base    string           `json:"base"`
	Results []ScenarioResult `json:"results"`
	Deltas  []ScenarioDelta  `json:"deltas"`
}

// Compare runs the engine once per named scenario over [start, end] and
// tabulates absolute and percentage deltas against the first name.
func (m *Manager) Compare(calc FrameCalculator, names []string, start, end time.Time) (*Comparison, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one scenario name is required")
	}

	comparison := &Comparison{Base: names[0]}
	for _, name := range names {
		if _, err := m.Get(name); err != nil {
			return nil, err
		}
		frame, err := calc.Calculate(start, end, name)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", name, err)
		}
		comparison.Results = append(comparison.Results, ScenarioResult{
			Name:             name,
			Frame:            frame,
			TotalRevenue:     frame.TotalRevenue(),
			TotalExpenses:    frame.TotalExpenses(),
			NetCashFlow:      frame.NetCashFlow(),
			FinalCashBalance: frame.FinalCashBalance(),
		})
	}

	base := comparison.Results[0]
	for _, result := range comparison.Results[1:] {
		comparison.Deltas = append(comparison.Deltas, ScenarioDelta{
			Name:              result.Name,
			RevenueDelta:      result.TotalRevenue - base.TotalRevenue,
			RevenueDeltaPct:   pctDelta(base.TotalRevenue, result.TotalRevenue),
			ExpensesDelta:     result.TotalExpenses - base.TotalExpenses,
			ExpensesDeltaPct:  pctDelta(base.TotalExpenses, result.TotalExpenses),
			NetCashFlowDelta:  result.NetCashFlow - base.NetCashFlow,
			FinalBalanceDelta: result.FinalCashBalance - base.FinalCashBalance,
		})
	}
	return comparison, nil
}

func pctDelta(base, value float64) float64 {
	if base == 0 {
		return 0
	}
	return (value - base) / base * 100
}
