package kpi

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/runway/internal/domain"
)

// Trend directions.
const (
	TrendImproving     = "improving"
	TrendDeteriorating = "deteriorating"
	TrendFlat          = "flat"
)

// Trend is the rolling view of one frame column: a moving average series
// aligned with the frame, the overall regression slope, and a coarse
// direction label.
type Trend struct {
	Metric        string    `json:"metric"`
	MovingAverage []float64 `json:"moving_average"`
	Slope         float64   `json:"slope"`
	Direction     string    `json:"direction"`
}

// Trends computes rolling trends for revenue, expenses and net cash flow.
// Window is clamped to [1, frame length]; the first window-1 entries average
// the available prefix.
func Trends(frame *domain.MonthlyFrame, window int) []Trend {
	if frame == nil || frame.Len() == 0 {
		return nil
	}
	if window < 1 {
		window = 1
	}
	if window > frame.Len() {
		window = frame.Len()
	}

	// upIsGood flips the direction label for columns where growth hurts.
	columns := []struct {
		name     string
		upIsGood bool
		pick     func(domain.MonthRecord) float64
	}{
		{"total_revenue", true, func(r domain.MonthRecord) float64 { return r.TotalRevenue }},
		{"total_expenses", false, func(r domain.MonthRecord) float64 { return r.TotalExpenses }},
		{"net_cash_flow", true, func(r domain.MonthRecord) float64 { return r.NetCashFlow }},
	}

	out := make([]Trend, 0, len(columns))
	for _, col := range columns {
		values := series(frame, col.pick)
		s := slope(values)
		out = append(out, Trend{
			Metric:        col.name,
			MovingAverage: movingAverage(values, window),
			Slope:         s,
			Direction:     direction(values, s, col.upIsGood),
		})
	}
	return out
}

// direction classifies the slope against a 1% deadband of the column's typical
// magnitude, so small drifts read as flat.
func direction(values []float64, slope float64, upIsGood bool) string {
	scale := 0.0
	for _, v := range values {
		scale += math.Abs(v)
	}
	scale /= float64(len(values))
	if math.Abs(slope) <= 0.01*scale {
		return TrendFlat
	}
	if (slope > 0) == upIsGood {
		return TrendImproving
	}
	return TrendDeteriorating
}

func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = stat.Mean(values[lo:i+1], nil)
	}
	return out
}
