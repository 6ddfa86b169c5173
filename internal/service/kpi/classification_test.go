package kpi

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhil/worktrack/internal/models"
)

func rec(id int64, hours float64, tasks, reports, activeDays int) models.PerformanceRecord {
	return models.PerformanceRecord{
		UserID:         id,
		Hours:          hours,
		TasksCompleted: tasks,
		Reports:        reports,
		ActiveDays:     activeDays,
		HasActivity:    hours > 0 || tasks > 0 || reports > 0,
	}
}

func ids(list []models.PerformanceRecord) []int64 {
	out := make([]int64, 0, len(list))
	for _, r := range list {
		out = append(out, r.UserID)
	}
	return out
}

func categoryOf(t *testing.T, cats models.PerformanceCategories, userID int64) models.PerformanceCategory {
	t.Helper()
	found := models.PerformanceCategory("")
	for _, list := range [][]models.PerformanceRecord{cats.StarPerformers, cats.Overworked, cats.Underperformers, cats.Coasters} {
		for _, r := range list {
			if r.UserID == userID {
				require.Empty(t, found, "user %d classified twice", userID)
				found = r.Category
			}
		}
	}
	require.NotEmpty(t, found, "user %d not classified", userID)
	return found
}

func TestCategorizeEmpty(t *testing.T) {
	cats := CategorizeEmployeePerformance(nil, 7)
	assert.NotNil(t, cats.StarPerformers)
	assert.NotNil(t, cats.Overworked)
	assert.NotNil(t, cats.Underperformers)
	assert.NotNil(t, cats.Coasters)
	assert.Zero(t, cats.Total())
}

func TestCategorizeWeeklyScenario(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 40, 10, 0, 5),
		rec(2, 5, 1, 0, 1),
	}
	cats := CategorizeEmployeePerformance(records, 7)

	assert.Equal(t, []int64{1}, ids(cats.StarPerformers))
	assert.Equal(t, []int64{2}, ids(cats.Underperformers))
	assert.Empty(t, cats.Overworked)
	assert.Empty(t, cats.Coasters)

	// Written back into the input.
	assert.Equal(t, models.CategoryStarPerformer, records[0].Category)
	assert.Equal(t, models.CategoryUnderperformer, records[1].Category)

	assert.InDelta(t, 0.7, cats.StarPerformers[0].PerformanceScore, 1e-9)
	assert.InDelta(t, 1.0/5.5, cats.Underperformers[0].PerformanceScore, 1e-9)
}

func TestCategorizeReportsAtMeanIsNotStar(t *testing.T) {
	// Hours and tasks are 120%+ of the mean, reports exactly at the mean, and
	// tasks stay below the percentile floor of 2.
	records := []models.PerformanceRecord{
		rec(1, 40, 1, 1, 3),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Equal(t, models.CategoryCoaster, categoryOf(t, cats, 1))
	assert.Empty(t, cats.StarPerformers)
	assert.Len(t, cats.Coasters, 4)
}

func TestCategorizeAllThreeSignalsIsStar(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 40, 1, 2, 3),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Equal(t, models.CategoryStarPerformer, categoryOf(t, cats, 1))
}

func TestCategorizePercentileFallbackIsStar(t *testing.T) {
	// Reports at the mean, but hours and tasks reach the 75th percentile with at
	// least two tasks.
	records := []models.PerformanceRecord{
		rec(1, 40, 2, 1, 3),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Equal(t, models.CategoryStarPerformer, categoryOf(t, cats, 1))
}

func TestCategorizeOverworked(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 45, 1, 1, 6),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	require.Equal(t, []int64{1}, ids(cats.Overworked))
	assert.InDelta(t, 45/26.25, cats.Overworked[0].PerformanceScore, 1e-9)
}

func TestCategorizeOverworkedNeedsMoreThanEightyPercentDays(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 45, 1, 1, 4),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
	}
	// 4 of 5 days is exactly 80%.
	cats := CategorizeEmployeePerformance(records, 5)
	assert.Equal(t, models.CategoryCoaster, categoryOf(t, cats, 1))
}

func TestCategorizeAtMeanIsCoaster(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 20, 4, 2, 4),
		rec(2, 10, 2, 1, 3),
		rec(3, 0, 0, 0, 0),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Equal(t, models.CategoryStarPerformer, categoryOf(t, cats, 1))
	assert.Equal(t, models.CategoryCoaster, categoryOf(t, cats, 2))
	assert.Equal(t, models.CategoryUnderperformer, categoryOf(t, cats, 3))
}

func TestCategorizeIdleOrganization(t *testing.T) {
	records := []models.PerformanceRecord{rec(1, 0, 0, 0, 0), rec(2, 0, 0, 0, 0)}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Equal(t, []int64{1, 2}, ids(cats.Underperformers))
	assert.Empty(t, cats.StarPerformers)
}

func TestCategorizeSortsByScore(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 2, 0, 0, 1),
		rec(2, 4, 1, 0, 1),
		rec(3, 30, 3, 2, 4),
		rec(4, 30, 3, 2, 4),
		rec(5, 30, 3, 2, 4),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	// Both are below half the mean of 19.2h; user 2 has the better ratios.
	assert.Equal(t, []int64{2, 1}, ids(cats.Underperformers))
	// Equal scores keep user id order.
	assert.Equal(t, []int64{3, 4, 5}, ids(cats.StarPerformers))
}

func TestCategorizeIsDeterministic(t *testing.T) {
	base := []models.PerformanceRecord{
		rec(1, 40, 10, 5, 5),
		rec(2, 5, 1, 0, 1),
		rec(3, 22, 4, 3, 4),
		rec(4, 0, 0, 0, 0),
		rec(5, 55, 9, 1, 7),
		rec(6, 18, 2, 2, 3),
		rec(7, 22, 4, 3, 4),
	}
	want := CategorizeEmployeePerformance(append([]models.PerformanceRecord(nil), base...), 7)
	require.Equal(t, len(base), want.Total())
	for _, r := range base {
		categoryOf(t, want, r.UserID)
	}

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.PerformanceRecord(nil), base...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, CategorizeEmployeePerformance(shuffled, 7))
	}
}

func TestBuildActionItems(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 40, 1, 0, 6),
		rec(2, 20, 0, 1, 3),
		rec(3, 20, 0, 1, 3),
		rec(4, 20, 0, 1, 3),
		rec(5, 0, 0, 0, 0),
	}
	records[0].Name = "Olive"
	records[4].Name = "Idle"
	cats := CategorizeEmployeePerformance(records, 7)
	items := BuildActionItems(records, cats, 7)

	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].UserID)
	assert.Equal(t, models.SeverityHigh, items[0].Severity)
	assert.Equal(t, []string{"No recorded activity in this period"}, items[0].Issues)
	assert.NotEmpty(t, items[0].Recommendation)

	// Mean hours is 20, so 40h is 100% above it.
	assert.Equal(t, int64(1), items[1].UserID)
	assert.Equal(t, "Olive", items[1].Name)
	assert.Equal(t, models.SeverityMedium, items[1].Severity)
	assert.Equal(t, models.CategoryOverworked, items[1].Category)
	assert.Equal(t, []string{
		"Logged 40.0h, 100% above the team average of 20.0h",
		"Active on 6 of 7 days in the period",
	}, items[1].Issues)
}

func TestBuildActionItemsListsShortfalls(t *testing.T) {
	records := []models.PerformanceRecord{
		rec(1, 40, 10, 0, 5),
		rec(2, 5, 1, 0, 1),
	}
	cats := CategorizeEmployeePerformance(records, 7)
	items := BuildActionItems(records, cats, 7)

	require.Len(t, items, 1)
	assert.Equal(t, []string{
		"Logged 5.0h vs team average of 22.5h",
		"Completed 1 tasks vs team average of 5.5",
	}, items[0].Issues)
}

func TestStarsAndCoastersHaveNoActionItems(t *testing.T) {
	records := []models.PerformanceRecord{rec(1, 10, 1, 1, 3), rec(2, 10, 1, 1, 3)}
	cats := CategorizeEmployeePerformance(records, 7)
	assert.Len(t, cats.Coasters, 2)
	assert.Empty(t, BuildActionItems(records, cats, 7))
	assert.NotNil(t, BuildActionItems(nil, models.PerformanceCategories{}, 7))
}
