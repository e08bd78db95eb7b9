package domain

import "time"

// Day truncates a time to day precision in UTC. All entity lifetime math is
// day-precision; wall-clock components never participate in comparisons.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FirstOfMonth rounds a date down to the first of its calendar month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths steps n calendar months from a first-of-month date.
func AddMonths(t time.Time, n int) time.Time {
	return time.Date(t.Year(), time.Month(int(t.Month())+n), 1, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether two dates fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthsBetween counts calendar months from a to b inclusive of both ends.
// Returns 0 when b precedes a's month.
func MonthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month()) + 1
	if months < 0 {
		return 0
	}
	return months
}

// MonthGrid generates the inclusive list of first-of-month dates from start
// through end.
func MonthGrid(start, end time.Time) []time.Time {
	start = FirstOfMonth(start)
	end = FirstOfMonth(end)
	var grid []time.Time
	for m := start; !m.After(end); m = AddMonths(m, 1) {
		grid = append(grid, m)
	}
	return grid
}
