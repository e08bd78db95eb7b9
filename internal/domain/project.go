package domain

import "time"

// ProjectStatus values recognized on project entities.
const (
	ProjectPlanned   = "planned"
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

func init() {
	variantValidators[TypeProject] = validateProject
}

var projectStatuses = map[string]bool{
	ProjectPlanned:   true,
	ProjectActive:    true,
	ProjectOnHold:    true,
	ProjectCompleted: true,
	ProjectCancelled: true,
}

func validateProject(e *Entity) error {
	if err := requirePositive(e, "total_budget"); err != nil {
		return err
	}
	if status := e.Str("status"); status != "" && !projectStatuses[status] {
		return &InvalidFieldError{Entity: e.Name, Field: "status", Reason: "must be one of planned, active, on_hold, completed, cancelled"}
	}
	if pct, ok := e.Float("completion_percentage"); ok {
		if pct < 0 || pct > 100 {
			return &OutOfRangeError{Entity: e.Name, Field: "completion_percentage", Value: pct, Reason: "must be within [0, 100]"}
		}
	}
	return nil
}

// Project is the typed view over a project entity.
type Project struct{ *Entity }

// AsProject wraps a project-typed entity.
func AsProject(e *Entity) (Project, bool) {
	if e.Type != TypeProject {
		return Project{}, false
	}
	return Project{e}, true
}

// TotalBudget returns the total project budget.
func (p Project) TotalBudget() float64 { return p.FloatOr("total_budget", 0) }

// Status returns the project status, defaulting to active.
func (p Project) Status() string { return p.StrOr("status", ProjectActive) }

// IsBurning reports whether the project still consumes budget. Completed and
// cancelled projects stop burning immediately.
func (p Project) IsBurning() bool {
	status := p.Status()
	return status != ProjectCompleted && status != ProjectCancelled
}

// TeamMembers returns referenced employee names. References are names, not
// pointers; resolution happens against a store snapshot at computation time.
func (p Project) TeamMembers() []string {
	return coerceStrings(p.Attrs["team_members"])
}

// Milestone is a dated project milestone.
type Milestone struct {
	Name      string
	Date      time.Time
	Completed bool
}

// Milestones parses the milestone list, skipping rows without a valid date.
func (p Project) Milestones() []Milestone {
	rows := p.MapList("milestones")
	out := make([]Milestone, 0, len(rows))
	for _, row := range rows {
		date, err := coerceDate(row["date"])
		if err != nil {
			continue
		}
		name, _ := row["name"].(string)
		completed, _ := row["completed"].(bool)
		out = append(out, Milestone{Name: name, Date: date, Completed: completed})
	}
	return out
}

// ActiveMilestone returns the next incomplete milestone due on or after d,
// ok=false when none remains.
func (p Project) ActiveMilestone(d time.Time) (Milestone, bool) {
	day := Day(d)
	var best Milestone
	found := false
	for _, m := range p.Milestones() {
		if m.Completed || Day(m.Date).Before(day) {
			continue
		}
		if !found || m.Date.Before(best.Date) {
			best = m
			found = true
		}
	}
	return best, found
}

// OverdueMilestones returns incomplete milestones whose date has passed as of d.
func (p Project) OverdueMilestones(d time.Time) []Milestone {
	day := Day(d)
	var overdue []Milestone
	for _, m := range p.Milestones() {
		if !m.Completed && Day(m.Date).Before(day) {
			overdue = append(overdue, m)
		}
	}
	return overdue
}

// MonthlyBurn returns the month's budget consumption: budget_categories
// summed and annualized when set, else total_budget spread over the project's
// active span. Zero once the project stops burning.
func (p Project) MonthlyBurn() float64 {
	if !p.IsBurning() {
		return 0
	}
	if categories := toStringMap(p.Attrs["budget_categories"]); categories != nil {
		total := 0.0
		for _, v := range categories {
			if amount, ok := toFloat(v); ok {
				total += amount
			}
		}
		if total > 0 {
			return total / 12
		}
	}
	months := p.DurationMonths()
	if months <= 0 {
		months = 12
	}
	return p.TotalBudget() / float64(months)
}

// DurationMonths returns the project's span in calendar months; 12 when the
// project is open-ended.
func (p Project) DurationMonths() int {
	if p.EndDate == nil {
		return 12
	}
	return MonthsBetween(p.StartDate, *p.EndDate)
}
