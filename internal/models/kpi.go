package models

import (
	"encoding/json"
	"time"
)

// PerformanceCategory is one of the four mutually exclusive cohorts.
type PerformanceCategory string

const (
	CategoryStarPerformer  PerformanceCategory = "star_performer"
	CategoryOverworked     PerformanceCategory = "overworked"
	CategoryUnderperformer PerformanceCategory = "underperformer"
	CategoryCoaster        PerformanceCategory = "coaster"
)

// PerformanceRecord is the per-employee rollup for one period. It is never persisted.
type PerformanceRecord struct {
	UserID           int64               `json:"user_id"`
	Name             string              `json:"name"`
	Email            string              `json:"email"`
	Role             Role                `json:"role"`
	Hours            float64             `json:"hours"`
	Reports          int                 `json:"reports"`
	TasksCompleted   int                 `json:"tasks_completed"`
	ActiveDays       int                 `json:"active_days"`
	AvgHoursPerDay   float64             `json:"avg_hours_per_day"`
	HasActivity      bool                `json:"has_activity"`
	PerformanceScore float64             `json:"performance_score"`
	Category         PerformanceCategory `json:"category,omitempty"`
}

// PerformanceCategories holds every employee in exactly one list, each sorted by score.
type PerformanceCategories struct {
	StarPerformers  []PerformanceRecord `json:"star_performers"`
	Overworked      []PerformanceRecord `json:"overworked"`
	Underperformers []PerformanceRecord `json:"underperformers"`
	Coasters        []PerformanceRecord `json:"coasters"`
}

// Total returns the number of classified employees.
func (c PerformanceCategories) Total() int {
	return len(c.StarPerformers) + len(c.Overworked) + len(c.Underperformers) + len(c.Coasters)
}

// Trend is a period-over-period percent change. A trend without a baseline
// (previous value zero, current non-zero) has no numeric value and encodes as null.
type Trend struct {
	Change  int
	Defined bool
}

// NoBaseline is the trend reported when only the previous value is zero.
var NoBaseline = Trend{}

// Value returns the change and whether it is defined.
func (t Trend) Value() (int, bool) {
	return t.Change, t.Defined
}

func (t Trend) MarshalJSON() ([]byte, error) {
	if !t.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(t.Change)
}

func (t *Trend) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = NoBaseline
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Trend{Change: v, Defined: true}
	return nil
}

// Trends compares the headline metrics with the previous period.
type Trends struct {
	Hours           Trend `json:"hours"`
	Reports         Trend `json:"reports"`
	Tasks           Trend `json:"tasks"`
	ActiveEmployees Trend `json:"active_employees"`
	CompletionRate  Trend `json:"completion_rate"`
}

// PeriodMetrics are the organization-wide numbers for one window.
type PeriodMetrics struct {
	TotalHours            float64 `json:"total_hours"`
	TotalReports          int     `json:"total_reports"`
	TotalTasksCompleted   int     `json:"total_tasks_completed"`
	ActiveEmployees       int     `json:"active_employees"`
	AvgHoursPerEmployee   float64 `json:"avg_hours_per_employee"`
	AvgTasksPerEmployee   float64 `json:"avg_tasks_per_employee"`
	AvgReportsPerEmployee float64 `json:"avg_reports_per_employee"`
}

// ProjectRollup aggregates one project's work in the period.
type ProjectRollup struct {
	ProjectID      *int64  `json:"project_id"`
	Name           string  `json:"name"`
	Hours          float64 `json:"hours"`
	TasksCompleted int     `json:"tasks_completed"`
	Contributors   int     `json:"contributors"`
}

// OrganizationSummary is the headline block of a report.
type OrganizationSummary struct {
	PeriodMetrics
	CompletionRate int            `json:"completion_rate"`
	MemberCount    int            `json:"member_count"`
	TopProject     *ProjectRollup `json:"top_project"`
}

// Severity ranks action items.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// ActionItem is a recommendation attached to an underperforming or overworked employee.
type ActionItem struct {
	UserID         int64               `json:"user_id"`
	Name           string              `json:"name"`
	Category       PerformanceCategory `json:"category"`
	Severity       Severity            `json:"severity"`
	Issues         []string            `json:"issues"`
	Recommendation string              `json:"recommendation"`
}

// ReportPeriod describes the windows a report was computed over.
type ReportPeriod struct {
	Type           string    `json:"type"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	PreviousStart  time.Time `json:"previous_start"`
	PreviousEnd    time.Time `json:"previous_end"`
	GeneratedAt    time.Time `json:"generated_at"`
	OrganizationID int64     `json:"organization_id"`
}

// MissingReporter is a member who submitted no report in the period.
type MissingReporter struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// KPIReport is the full analytics output for one organization and period.
type KPIReport struct {
	Period           ReportPeriod          `json:"period"`
	Summary          OrganizationSummary   `json:"summary"`
	Trends           Trends                `json:"trends"`
	Performance      PerformanceCategories `json:"performance"`
	Employees        []PerformanceRecord   `json:"employees"`
	Projects         []ProjectRollup       `json:"projects"`
	ActionItems      []ActionItem          `json:"action_items"`
	MissingReporters []MissingReporter     `json:"missing_reporters"`
}

// TopPerformerLimit caps the star performers listed in a summary.
const TopPerformerLimit = 3

// KPISummary is the light projection of a report.
type KPISummary struct {
	Period          ReportPeriod        `json:"period"`
	Summary         OrganizationSummary `json:"summary"`
	Trends          Trends              `json:"trends"`
	TopPerformers   []PerformanceRecord `json:"top_performers"`
	ActionItemCount int                 `json:"action_item_count"`
}

// KPIPerformance is the classification projection of a report.
type KPIPerformance struct {
	Period      ReportPeriod          `json:"period"`
	Performance PerformanceCategories `json:"performance"`
	ActionItems []ActionItem          `json:"action_items"`
}

// SummaryView projects the report without re-reading anything.
func (r *KPIReport) SummaryView() KPISummary {
	top := r.Performance.StarPerformers
	if len(top) > TopPerformerLimit {
		top = top[:TopPerformerLimit]
	}
	return KPISummary{
		Period:          r.Period,
		Summary:         r.Summary,
		Trends:          r.Trends,
		TopPerformers:   append([]PerformanceRecord{}, top...),
		ActionItemCount: len(r.ActionItems),
	}
}

// PerformanceView projects the classification and action items.
func (r *KPIReport) PerformanceView() KPIPerformance {
	return KPIPerformance{
		Period:      r.Period,
		Performance: r.Performance,
		ActionItems: r.ActionItems,
	}
}
