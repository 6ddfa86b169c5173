// Package scheduler generates KPI reports for every organization on daily,
// weekly and monthly clock triggers and hands them to a Deliverer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nikhil/worktrack/internal/config"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/metrics"
	"github.com/nikhil/worktrack/internal/models"
)

// Directory lists the organizations to report on and their owners.
type Directory interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	ListOwners(ctx context.Context, orgID int64) ([]models.Membership, error)
}

// Generator produces one organization's report.
type Generator interface {
	GenerateReport(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPIReport, error)
}

// Deliverer hands a finished report to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, org models.Organization, recipients []models.Membership, report *models.KPIReport) error
}

// Result summarizes one period's batch.
type Result struct {
	Period        daterange.Period
	Reference     time.Time
	Organizations int
	Delivered     int
	Failed        int
}

// Scheduler runs report batches at cfg.RunHour in its location.
type Scheduler struct {
	dir       Directory
	gen       Generator
	deliverer Deliverer
	cfg       config.SchedulerConfig
	loc       *time.Location
	now       func() time.Time
	Log       *logger.Logger

	mu      sync.Mutex
	lastRun map[daterange.Period]string
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the timezone triggers are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger replaces the scheduler logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.Log = l }
}

func NewScheduler(dir Directory, gen Generator, deliverer Deliverer, cfg config.SchedulerConfig, opts ...Option) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.OrgTimeout <= 0 {
		cfg.OrgTimeout = 2 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	s := &Scheduler{
		dir:       dir,
		gen:       gen,
		deliverer: deliverer,
		cfg:       cfg,
		loc:       time.UTC,
		now:       time.Now,
		lastRun:   make(map[daterange.Period]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Log == nil {
		s.Log = logger.NewLogger("report-scheduler")
	}
	return s
}

// Run checks the triggers every CheckInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.Log.Info("Report scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	s.Log.Info("Starting report scheduler",
		"run_hour", s.cfg.RunHour,
		"check_interval", s.cfg.CheckInterval,
		"concurrency", s.cfg.Concurrency)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.Log.Info("Report scheduler stopped")
			return ctx.Err()
		}
	}
}

// DuePeriods returns the periods whose trigger matches now: daily every day,
// weekly on Mondays, monthly on the 1st, all at runHour.
func DuePeriods(now time.Time, cfg config.SchedulerConfig) []daterange.Period {
	if now.Hour() != cfg.RunHour {
		return nil
	}
	var due []daterange.Period
	if cfg.Daily {
		due = append(due, daterange.Daily)
	}
	if cfg.Weekly && now.Weekday() == time.Monday {
		due = append(due, daterange.Weekly)
	}
	if cfg.Monthly && now.Day() == 1 {
		due = append(due, daterange.Monthly)
	}
	return due
}

// Reference returns a date inside the period before the one containing now.
func Reference(p daterange.Period, now time.Time) (time.Time, error) {
	current, err := daterange.Resolve(p, now)
	if err != nil {
		return time.Time{}, err
	}
	return current.Start.Add(-time.Millisecond), nil
}

// Tick runs every due period that has not run yet today.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().In(s.loc)
	today := now.Format(daterange.DateLayout)

	for _, p := range DuePeriods(now, s.cfg) {
		if !s.claim(p, today) {
			continue
		}
		ref, err := Reference(p, now)
		if err != nil {
			s.Log.Error("Failed to resolve report reference", "period", p, "error", err)
			continue
		}
		res, err := s.RunPeriod(ctx, p, ref)
		if err != nil {
			s.Log.Error("Scheduled reports finished with failures",
				"period", p, "organizations", res.Organizations, "failed", res.Failed, "error", err)
			continue
		}
		s.Log.Info("Scheduled reports delivered", "period", p, "organizations", res.Organizations, "delivered", res.Delivered)
	}
}

func (s *Scheduler) claim(p daterange.Period, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun[p] == day {
		return false
	}
	s.lastRun[p] = day
	return true
}

// RunPeriod generates and delivers the ref period report for every organization.
// Organizations are processed with bounded concurrency; one organization's
// failure never stops the others. The returned error combines every failure.
func (s *Scheduler) RunPeriod(ctx context.Context, p daterange.Period, ref time.Time) (Result, error) {
	res := Result{Period: p, Reference: ref}

	orgs, err := s.dir.ListOrganizations(ctx)
	if err != nil {
		return res, fmt.Errorf("list organizations: %w", err)
	}
	res.Organizations = len(orgs)

	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, org := range orgs {
		g.Go(func() error {
			orgCtx, cancel := context.WithTimeout(ctx, s.cfg.OrgTimeout)
			defer cancel()

			err := s.runOrg(orgCtx, org, p, ref)
			metrics.SchedulerRuns.WithLabelValues(string(p), metrics.Outcome(err)).Inc()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				errs = multierr.Append(errs, fmt.Errorf("organization %d: %w", org.ID, err))
				s.Log.WithOrg(org.ID).Error("Scheduled report failed", "period", p, "error", err)
				return nil
			}
			res.Delivered++
			return nil
		})
	}
	_ = g.Wait()
	return res, errs
}

func (s *Scheduler) runOrg(ctx context.Context, org models.Organization, p daterange.Period, ref time.Time) error {
	report, err := s.gen.GenerateReport(ctx, org.ID, p, ref)
	if err != nil {
		return err
	}
	owners, err := s.dir.ListOwners(ctx, org.ID)
	if err != nil {
		return err
	}
	return s.deliverer.Deliver(ctx, org, owners, report)
}
