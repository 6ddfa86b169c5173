package kpi

import (
	"fmt"
	"math"
	"sort"

	"github.com/nikhil/worktrack/internal/models"
)

// Classification thresholds. Existing reports depend on these exact values.
const (
	AboveAverageFactor   = 1.2
	ExcessiveHoursFactor = 1.6
	LowActivityFactor    = 0.5
	ActiveDaysShare      = 0.8

	// PercentileRank selects the 75th percentile: index floor(n*0.25) of the
	// values sorted descending.
	PercentileRank = 0.25

	// MinStarTasks is the task floor of the percentile path to Star Performer.
	MinStarTasks = 2

	StarHoursWeight   = 0.3
	StarTasksWeight   = 0.4
	StarReportsWeight = 0.3
)

const (
	reviewRecommendation   = "Schedule a one-on-one performance review to discuss blockers and expectations"
	workloadRecommendation = "Review workload and redistribute tasks to prevent burnout"
)

// teamStats are the means and 75th percentiles of one employee set.
type teamStats struct {
	meanHours, meanTasks, meanReports float64
	p75Hours, p75Tasks, p75Reports    float64
}

func computeTeamStats(records []models.PerformanceRecord) teamStats {
	n := len(records)
	hours := make([]float64, n)
	tasks := make([]float64, n)
	reports := make([]float64, n)
	var st teamStats
	for i, r := range records {
		hours[i] = r.Hours
		tasks[i] = float64(r.TasksCompleted)
		reports[i] = float64(r.Reports)
		st.meanHours += hours[i]
		st.meanTasks += tasks[i]
		st.meanReports += reports[i]
	}
	st.meanHours /= float64(n)
	st.meanTasks /= float64(n)
	st.meanReports /= float64(n)
	st.p75Hours = percentile75(hours)
	st.p75Tasks = percentile75(tasks)
	st.p75Reports = percentile75(reports)
	return st
}

func percentile75(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return sorted[int(math.Floor(float64(len(sorted))*PercentileRank))]
}

// atLeast reports v >= factor*mean. A zero mean never qualifies.
func atLeast(v, mean, factor float64) bool {
	return mean > 0 && v >= mean*factor
}

func ratio(v, base float64) float64 {
	if base == 0 {
		return 0
	}
	return v / base
}

// CategorizeEmployeePerformance puts every record in exactly one category and
// ranks each category by score, highest first. periodDays is the number of
// calendar days in the reporting window. Category and PerformanceScore are
// written back into records.
func CategorizeEmployeePerformance(records []models.PerformanceRecord, periodDays int) models.PerformanceCategories {
	out := models.PerformanceCategories{
		StarPerformers:  []models.PerformanceRecord{},
		Overworked:      []models.PerformanceRecord{},
		Underperformers: []models.PerformanceRecord{},
		Coasters:        []models.PerformanceRecord{},
	}
	if len(records) == 0 {
		return out
	}
	st := computeTeamStats(records)

	for i := range records {
		r := &records[i]
		tasks := float64(r.TasksCompleted)
		reports := float64(r.Reports)

		hoursAbove := atLeast(r.Hours, st.meanHours, AboveAverageFactor)
		tasksAbove := atLeast(tasks, st.meanTasks, AboveAverageFactor)
		reportsAbove := atLeast(reports, st.meanReports, AboveAverageFactor)
		lowActivity := !r.HasActivity || r.Hours < st.meanHours*LowActivityFactor
		excessive := atLeast(r.Hours, st.meanHours, ExcessiveHoursFactor)
		percentileStar := r.Hours >= st.p75Hours && tasks >= math.Max(st.p75Tasks, MinStarTasks)

		switch {
		case (hoursAbove && tasksAbove && reportsAbove) || percentileStar:
			r.Category = models.CategoryStarPerformer
			r.PerformanceScore = StarHoursWeight*ratio(r.Hours, st.p75Hours) +
				StarTasksWeight*ratio(tasks, st.p75Tasks) +
				StarReportsWeight*ratio(reports, st.p75Reports)
		case excessive && tasksAbove && ratio(float64(r.ActiveDays), float64(periodDays)) > ActiveDaysShare:
			r.Category = models.CategoryOverworked
			r.PerformanceScore = ratio(r.Hours, st.meanHours)
		case lowActivity:
			r.Category = models.CategoryUnderperformer
			r.PerformanceScore = math.Min(ratio(r.Hours, st.meanHours), ratio(tasks, st.meanTasks))
		default:
			r.Category = models.CategoryCoaster
			r.PerformanceScore = math.Min(ratio(r.Hours, st.meanHours), ratio(tasks, st.meanTasks))
		}

		switch r.Category {
		case models.CategoryStarPerformer:
			out.StarPerformers = append(out.StarPerformers, *r)
		case models.CategoryOverworked:
			out.Overworked = append(out.Overworked, *r)
		case models.CategoryUnderperformer:
			out.Underperformers = append(out.Underperformers, *r)
		default:
			out.Coasters = append(out.Coasters, *r)
		}
	}

	for _, list := range [][]models.PerformanceRecord{out.StarPerformers, out.Overworked, out.Underperformers, out.Coasters} {
		sortByScore(list)
	}
	return out
}

func sortByScore(list []models.PerformanceRecord) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].PerformanceScore != list[j].PerformanceScore {
			return list[i].PerformanceScore > list[j].PerformanceScore
		}
		return list[i].UserID < list[j].UserID
	})
}

// BuildActionItems derives high severity items for underperformers followed by
// medium severity items for overworked employees.
func BuildActionItems(records []models.PerformanceRecord, cats models.PerformanceCategories, periodDays int) []models.ActionItem {
	items := []models.ActionItem{}
	if len(records) == 0 {
		return items
	}
	st := computeTeamStats(records)

	for _, r := range cats.Underperformers {
		items = append(items, models.ActionItem{
			UserID:         r.UserID,
			Name:           r.Name,
			Category:       r.Category,
			Severity:       models.SeverityHigh,
			Issues:         underperformerIssues(r, st),
			Recommendation: reviewRecommendation,
		})
	}
	for _, r := range cats.Overworked {
		above := int(jsRound((ratio(r.Hours, st.meanHours) - 1) * 100))
		items = append(items, models.ActionItem{
			UserID:   r.UserID,
			Name:     r.Name,
			Category: r.Category,
			Severity: models.SeverityMedium,
			Issues: []string{
				fmt.Sprintf("Logged %.1fh, %d%% above the team average of %.1fh", r.Hours, above, st.meanHours),
				fmt.Sprintf("Active on %d of %d days in the period", r.ActiveDays, periodDays),
			},
			Recommendation: workloadRecommendation,
		})
	}
	return items
}

func underperformerIssues(r models.PerformanceRecord, st teamStats) []string {
	if !r.HasActivity {
		return []string{"No recorded activity in this period"}
	}
	var issues []string
	if r.Hours < st.meanHours {
		issues = append(issues, fmt.Sprintf("Logged %.1fh vs team average of %.1fh", r.Hours, st.meanHours))
	}
	if float64(r.TasksCompleted) < st.meanTasks {
		issues = append(issues, fmt.Sprintf("Completed %d tasks vs team average of %.1f", r.TasksCompleted, st.meanTasks))
	}
	if float64(r.Reports) < st.meanReports {
		issues = append(issues, fmt.Sprintf("Submitted %d reports vs team average of %.1f", r.Reports, st.meanReports))
	}
	return issues
}
