// Package kpi computes organization analytics for a reporting period: metrics,
// per-employee rollups, performance categories, trends and action items.
package kpi

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/metrics"
	"github.com/nikhil/worktrack/internal/models"
)

// Reader is the read access the engine needs. All reads are scoped by organization.
type Reader interface {
	ListMembers(ctx context.Context, orgID int64) ([]models.Membership, error)
	ListEntries(ctx context.Context, orgID int64, r daterange.Range) ([]models.TimeEntry, error)
	ListReports(ctx context.Context, orgID int64, r daterange.Range) ([]models.Report, error)
	ListCompletedTasks(ctx context.Context, orgID int64, r daterange.Range) ([]models.Task, error)
	ListProjects(ctx context.Context, orgID int64) ([]models.Project, error)
}

// KPIService is stateless; every report re-reads the store.
type KPIService struct {
	reader Reader
	loc    *time.Location
	now    func() time.Time
	Log    *logger.Logger
}

// Option customizes a KPIService.
type Option func(*KPIService)

// WithLocation sets the timezone periods are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(s *KPIService) { s.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *KPIService) { s.now = now }
}

// WithLogger replaces the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *KPIService) { s.Log = l }
}

// NewKPIService initializes a new KPI service
func NewKPIService(reader Reader, opts ...Option) *KPIService {
	s := &KPIService{
		reader: reader,
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Log == nil {
		s.Log = logger.NewLogger("kpi-service")
	}
	return s
}

// Location returns the timezone periods are resolved in.
func (s *KPIService) Location() *time.Location {
	return s.loc
}

// GenerateReport assembles the full report for the period containing ref. A zero
// ref means now. Any failed read aborts the whole report.
func (s *KPIService) GenerateReport(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (report *models.KPIReport, err error) {
	started := time.Now()
	defer func() { metrics.ObserveReport(string(period), started, err) }()

	now := s.now().In(s.loc)
	if ref.IsZero() {
		ref = now
	}
	current, err := daterange.Resolve(period, ref.In(s.loc))
	if err != nil {
		return nil, err
	}
	previous, err := daterange.Previous(period, current)
	if err != nil {
		return nil, err
	}

	var (
		members  []models.Membership
		projects []models.Project
	)
	cur := window{rng: current}
	prev := window{rng: previous}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = s.reader.ListMembers(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		projects, err = s.reader.ListProjects(gctx, orgID)
		return err
	})
	for _, w := range []*window{&cur, &prev} {
		g.Go(func() (err error) {
			w.entries, err = s.reader.ListEntries(gctx, orgID, w.rng)
			return err
		})
		g.Go(func() (err error) {
			w.reports, err = s.reader.ListReports(gctx, orgID, w.rng)
			return err
		})
		g.Go(func() (err error) {
			w.tasks, err = s.reader.ListCompletedTasks(gctx, orgID, w.rng)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.Log.WithContext(ctx).WithOrg(orgID).Error("Failed to read report data", "period", period, "error", err)
		return nil, apperr.Partial(orgID, err)
	}

	report = s.assemble(orgID, period, now, members, projects, cur, prev)
	s.Log.WithContext(ctx).WithOrg(orgID).Info("KPI report generated",
		"period", period,
		"start", current.Start,
		"employees", len(report.Employees),
		"action_items", len(report.ActionItems),
		"duration_ms", time.Since(started).Milliseconds())
	return report, nil
}

func (s *KPIService) assemble(orgID int64, period daterange.Period, now time.Time, members []models.Membership, projects []models.Project, cur, prev window) *models.KPIReport {
	periodDays := cur.rng.Days()
	eligible := countEmployees(members)

	currMetrics := ComputeMetrics(members, cur.entries, cur.reports, cur.tasks)
	prevMetrics := ComputeMetrics(members, prev.entries, prev.reports, prev.tasks)
	currRate := CompletionRate(currMetrics.TotalReports, eligible)
	prevRate := CompletionRate(prevMetrics.TotalReports, eligible)

	employees := rollupEmployees(members, cur, s.loc)
	categories := CategorizeEmployeePerformance(employees, periodDays)
	projectRollups := rollupProjects(projects, cur)

	return &models.KPIReport{
		Period: models.ReportPeriod{
			Type:           string(period),
			Start:          cur.rng.Start,
			End:            cur.rng.End,
			PreviousStart:  prev.rng.Start,
			PreviousEnd:    prev.rng.End,
			GeneratedAt:    now,
			OrganizationID: orgID,
		},
		Summary: models.OrganizationSummary{
			PeriodMetrics:  currMetrics,
			CompletionRate: currRate,
			MemberCount:    eligible,
			TopProject:     TopProject(projectRollups),
		},
		Trends:           ComputeTrends(currMetrics, prevMetrics, currRate, prevRate),
		Performance:      categories,
		Employees:        employees,
		Projects:         projectRollups,
		ActionItems:      BuildActionItems(employees, categories, periodDays),
		MissingReporters: MissingReporters(members, cur.reports),
	}
}

// GenerateSummary returns the light projection of GenerateReport.
func (s *KPIService) GenerateSummary(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPISummary, error) {
	report, err := s.GenerateReport(ctx, orgID, period, ref)
	if err != nil {
		return nil, err
	}
	summary := report.SummaryView()
	return &summary, nil
}

// GeneratePerformance returns the categories and action items of GenerateReport.
func (s *KPIService) GeneratePerformance(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPIPerformance, error) {
	report, err := s.GenerateReport(ctx, orgID, period, ref)
	if err != nil {
		return nil, err
	}
	perf := report.PerformanceView()
	return &perf, nil
}
