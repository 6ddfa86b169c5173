package kpi

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/models"
)

// UnassignedProject names the bucket for work without a project.
const UnassignedProject = "Unassigned"

// window is everything read for one period.
type window struct {
	rng     daterange.Range
	entries []models.TimeEntry
	reports []models.Report
	tasks   []models.Task
}

// jsRound rounds half up, matching the rounding of existing report output.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

// completedSeconds returns the fixed duration of a closed entry, or false while active.
func completedSeconds(e models.TimeEntry) (int64, bool) {
	if e.EndTime == nil || e.Duration == nil {
		return 0, false
	}
	return *e.Duration, true
}

// ComputeMetrics aggregates one window. Totals cover the whole organization;
// averages divide them by the number of distinct non-client members with at
// least one entry and are zero when there are none.
func ComputeMetrics(members []models.Membership, entries []models.TimeEntry, reports []models.Report, tasks []models.Task) models.PeriodMetrics {
	employees := make(map[int64]bool, len(members))
	for _, m := range members {
		if m.IsEmployee() {
			employees[m.UserID] = true
		}
	}

	var seconds int64
	users := make(map[int64]struct{})
	for _, e := range entries {
		if employees[e.UserID] {
			users[e.UserID] = struct{}{}
		}
		if s, ok := completedSeconds(e); ok {
			seconds += s
		}
	}

	m := models.PeriodMetrics{
		TotalHours:          float64(seconds) / 3600,
		TotalReports:        len(reports),
		TotalTasksCompleted: len(tasks),
		ActiveEmployees:     len(users),
	}
	if m.ActiveEmployees > 0 {
		n := float64(m.ActiveEmployees)
		m.AvgHoursPerEmployee = m.TotalHours / n
		m.AvgTasksPerEmployee = float64(m.TotalTasksCompleted) / n
		m.AvgReportsPerEmployee = float64(m.TotalReports) / n
	}
	return m
}

// rollupEmployees builds one record per non-client member, in member order.
// Active days are distinct calendar days in loc on which the member started an entry.
func rollupEmployees(members []models.Membership, w window, loc *time.Location) []models.PerformanceRecord {
	seconds := make(map[int64]int64)
	days := make(map[int64]map[string]struct{})
	for _, e := range w.entries {
		if s, ok := completedSeconds(e); ok {
			seconds[e.UserID] += s
		}
		if days[e.UserID] == nil {
			days[e.UserID] = make(map[string]struct{})
		}
		days[e.UserID][e.StartTime.In(loc).Format(daterange.DateLayout)] = struct{}{}
	}
	reports := make(map[int64]int)
	for _, r := range w.reports {
		reports[r.UserID]++
	}
	tasks := make(map[int64]int)
	for _, t := range w.tasks {
		tasks[t.AssigneeID]++
	}

	records := []models.PerformanceRecord{}
	for _, m := range members {
		if !m.IsEmployee() {
			continue
		}
		r := models.PerformanceRecord{
			UserID:         m.UserID,
			Name:           m.Name(),
			Email:          m.Email,
			Role:           m.Role,
			Hours:          float64(seconds[m.UserID]) / 3600,
			Reports:        reports[m.UserID],
			TasksCompleted: tasks[m.UserID],
			ActiveDays:     len(days[m.UserID]),
		}
		if r.ActiveDays > 0 {
			r.AvgHoursPerDay = r.Hours / float64(r.ActiveDays)
		}
		r.HasActivity = r.Hours > 0 || r.Reports > 0 || r.TasksCompleted > 0
		records = append(records, r)
	}
	return records
}

// CompletionRate is the rounded share of reports per eligible member.
func CompletionRate(reports, eligible int) int {
	if eligible == 0 {
		return 0
	}
	return int(jsRound(float64(reports) / float64(eligible) * 100))
}

// ComputeTrend returns the rounded percent change from prev to curr.
// Both zero is no change; a zero prev alone has no baseline.
func ComputeTrend(curr, prev float64) models.Trend {
	if prev == 0 {
		if curr == 0 {
			return models.Trend{Change: 0, Defined: true}
		}
		return models.NoBaseline
	}
	return models.Trend{Change: int(jsRound((curr - prev) / prev * 100)), Defined: true}
}

// ComputeTrends compares the headline metrics of two windows.
func ComputeTrends(curr, prev models.PeriodMetrics, currRate, prevRate int) models.Trends {
	return models.Trends{
		Hours:           ComputeTrend(curr.TotalHours, prev.TotalHours),
		Reports:         ComputeTrend(float64(curr.TotalReports), float64(prev.TotalReports)),
		Tasks:           ComputeTrend(float64(curr.TotalTasksCompleted), float64(prev.TotalTasksCompleted)),
		ActiveEmployees: ComputeTrend(float64(curr.ActiveEmployees), float64(prev.ActiveEmployees)),
		CompletionRate:  ComputeTrend(float64(currRate), float64(prevRate)),
	}
}

type projectAcc struct {
	rollup       models.ProjectRollup
	seconds      int64
	contributors map[int64]struct{}
}

// rollupProjects groups logged hours and completed tasks by project, sorted by
// hours then tasks, descending. Work without a project lands in UnassignedProject.
func rollupProjects(projects []models.Project, w window) []models.ProjectRollup {
	names := make(map[int64]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	accs := make(map[int64]*projectAcc)
	var unassigned *projectAcc
	bucket := func(projectID *int64) *projectAcc {
		if projectID == nil {
			if unassigned == nil {
				unassigned = &projectAcc{
					rollup:       models.ProjectRollup{Name: UnassignedProject},
					contributors: make(map[int64]struct{}),
				}
			}
			return unassigned
		}
		acc, ok := accs[*projectID]
		if !ok {
			id := *projectID
			name, known := names[id]
			if !known {
				name = fmt.Sprintf("Project %d", id)
			}
			acc = &projectAcc{
				rollup:       models.ProjectRollup{ProjectID: &id, Name: name},
				contributors: make(map[int64]struct{}),
			}
			accs[id] = acc
		}
		return acc
	}

	for _, e := range w.entries {
		acc := bucket(e.ProjectID)
		acc.contributors[e.UserID] = struct{}{}
		if s, ok := completedSeconds(e); ok {
			acc.seconds += s
		}
	}
	for _, t := range w.tasks {
		acc := bucket(t.ProjectID)
		acc.rollup.TasksCompleted++
		acc.contributors[t.AssigneeID] = struct{}{}
	}

	all := make([]*projectAcc, 0, len(accs)+1)
	for _, acc := range accs {
		all = append(all, acc)
	}
	if unassigned != nil {
		all = append(all, unassigned)
	}

	out := make([]models.ProjectRollup, 0, len(all))
	for _, acc := range all {
		acc.rollup.Hours = float64(acc.seconds) / 3600
		acc.rollup.Contributors = len(acc.contributors)
		out = append(out, acc.rollup)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Hours != b.Hours {
			return a.Hours > b.Hours
		}
		if a.TasksCompleted != b.TasksCompleted {
			return a.TasksCompleted > b.TasksCompleted
		}
		// Named projects before Unassigned, then by id.
		if (a.ProjectID == nil) != (b.ProjectID == nil) {
			return b.ProjectID == nil
		}
		if a.ProjectID == nil {
			return false
		}
		return *a.ProjectID < *b.ProjectID
	})
	return out
}

// TopProject returns the named project with the most hours, or nil.
func TopProject(rollups []models.ProjectRollup) *models.ProjectRollup {
	for _, p := range rollups {
		if p.ProjectID != nil && p.Hours > 0 {
			top := p
			return &top
		}
	}
	return nil
}

// MissingReporters lists non-client members without a report in the window.
func MissingReporters(members []models.Membership, reports []models.Report) []models.MissingReporter {
	submitted := make(map[int64]struct{}, len(reports))
	for _, r := range reports {
		submitted[r.UserID] = struct{}{}
	}
	out := []models.MissingReporter{}
	for _, m := range members {
		if !m.IsEmployee() {
			continue
		}
		if _, ok := submitted[m.UserID]; ok {
			continue
		}
		out = append(out, models.MissingReporter{UserID: m.UserID, Name: m.Name(), Email: m.Email})
	}
	return out
}

func countEmployees(members []models.Membership) int {
	n := 0
	for _, m := range members {
		if m.IsEmployee() {
			n++
		}
	}
	return n
}
