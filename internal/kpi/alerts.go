package kpi

import (
	"fmt"
	"math"
)

// Alert severities, ordered by urgency.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a threshold breach derived from a report.
type Alert struct {
	Metric    string  `json:"metric"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Alert thresholds.
const (
	runwayCritical     = 3.0
	runwayWarning      = 6.0
	burnWarning        = 100000.0
	concentrationLimit = 0.8
	riskLimit          = 2.0
)

// Alerts evaluates the standard thresholds against a report. The slice is
// ordered by severity, critical first.
func Alerts(report Report) []Alert {
	var critical, warning, info []Alert

	if !math.IsInf(report.RunwayMonths, 1) {
		switch {
		case report.RunwayMonths < runwayCritical:
			critical = append(critical, Alert{
				Metric:    "runway_months",
				Severity:  SeverityCritical,
				Value:     report.RunwayMonths,
				Threshold: runwayCritical,
				Message:   fmt.Sprintf("runway of %.1f months is below the %.0f month critical threshold", report.RunwayMonths, runwayCritical),
			})
		case report.RunwayMonths < runwayWarning:
			warning = append(warning, Alert{
				Metric:    "runway_months",
				Severity:  SeverityWarning,
				Value:     report.RunwayMonths,
				Threshold: runwayWarning,
				Message:   fmt.Sprintf("runway of %.1f months is below the %.0f month warning threshold", report.RunwayMonths, runwayWarning),
			})
		}
	}

	if report.CurrentBurnRate > burnWarning {
		warning = append(warning, Alert{
			Metric:    "current_burn_rate",
			Severity:  SeverityWarning,
			Value:     report.CurrentBurnRate,
			Threshold: burnWarning,
			Message:   fmt.Sprintf("monthly burn of %.0f exceeds %.0f", report.CurrentBurnRate, burnWarning),
		})
	}

	if report.RevenueConcentrationRisk > concentrationLimit {
		warning = append(warning, Alert{
			Metric:    "revenue_concentration_risk",
			Severity:  SeverityWarning,
			Value:     report.RevenueConcentrationRisk,
			Threshold: concentrationLimit,
			Message:   fmt.Sprintf("the largest revenue source carries %.0f%% of total revenue", report.RevenueConcentrationRisk*100),
		})
	}

	if report.CashFlowRisk > riskLimit {
		info = append(info, Alert{
			Metric:    "cash_flow_risk",
			Severity:  SeverityInfo,
			Value:     report.CashFlowRisk,
			Threshold: riskLimit,
			Message:   fmt.Sprintf("net cash flow volatility of %.2fx the typical month suggests unstable cash flow", report.CashFlowRisk),
		})
	}

	out := append(critical, warning...)
	return append(out, info...)
}
