package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/config"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/models"
)

type fakeDirectory struct {
	orgs    []models.Organization
	listErr error
}

func (d *fakeDirectory) ListOrganizations(context.Context) ([]models.Organization, error) {
	return d.orgs, d.listErr
}

func (d *fakeDirectory) ListOwners(_ context.Context, orgID int64) ([]models.Membership, error) {
	return []models.Membership{{UserID: orgID * 100, OrganizationID: orgID, Role: models.RoleOwner, Email: "owner@example.com"}}, nil
}

type call struct {
	orgID  int64
	period daterange.Period
	ref    time.Time
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []call
	fail     map[int64]error
	block    map[int64]bool
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (g *fakeGenerator) GenerateReport(ctx context.Context, orgID int64, p daterange.Period, ref time.Time) (*models.KPIReport, error) {
	n := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		old := atomic.LoadInt32(&g.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&g.maxSeen, old, n) {
			break
		}
	}

	g.mu.Lock()
	g.calls = append(g.calls, call{orgID: orgID, period: p, ref: ref})
	err := g.fail[orgID]
	block := g.block[orgID]
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if err != nil {
		return nil, err
	}
	return &models.KPIReport{Period: models.ReportPeriod{Type: string(p), OrganizationID: orgID}}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []int64
}

func (d *recordingDeliverer) Deliver(_ context.Context, org models.Organization, recipients []models.Membership, _ *models.KPIReport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}
	d.delivered = append(d.delivered, org.ID)
	return nil
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:       true,
		RunHour:       6,
		Concurrency:   2,
		OrgTimeout:    time.Second,
		Daily:         true,
		Weekly:        true,
		Monthly:       true,
		CheckInterval: time.Millisecond,
	}
}

func orgs(n int) []models.Organization {
	out := make([]models.Organization, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Organization{ID: int64(i), Name: "org"})
	}
	return out
}

func newTestScheduler(dir Directory, gen Generator, del Deliverer, cfg config.SchedulerConfig, now time.Time) *Scheduler {
	return NewScheduler(dir, gen, del, cfg,
		WithClock(func() time.Time { return now }),
		WithLogger(logger.Nop()))
}

func TestDuePeriods(t *testing.T) {
	cfg := testConfig()

	// 2026-06-01 is a Monday and the first of the month.
	assert.Equal(t,
		[]daterange.Period{daterange.Daily, daterange.Weekly, daterange.Monthly},
		DuePeriods(time.Date(2026, time.June, 1, 6, 30, 0, 0, time.UTC), cfg))

	// Wednesday.
	assert.Equal(t, []daterange.Period{daterange.Daily}, DuePeriods(time.Date(2026, time.October, 14, 6, 0, 0, 0, time.UTC), cfg))
	assert.Empty(t, DuePeriods(time.Date(2026, time.October, 14, 7, 0, 0, 0, time.UTC), cfg))

	cfg.Daily = false
	assert.Equal(t, []daterange.Period{daterange.Weekly}, DuePeriods(time.Date(2026, time.October, 12, 6, 0, 0, 0, time.UTC), cfg))
}

func TestReferenceIsPreviousPeriod(t *testing.T) {
	now := time.Date(2026, time.June, 1, 6, 0, 0, 0, time.UTC)

	daily, err := Reference(daterange.Daily, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-31", daily.Format(daterange.DateLayout))

	weekly, err := Reference(daterange.Weekly, now)
	require.NoError(t, err)
	r, err := daterange.Resolve(daterange.Weekly, weekly)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-25", r.Start.Format(daterange.DateLayout))

	monthly, err := Reference(daterange.Monthly, now)
	require.NoError(t, err)
	assert.Equal(t, time.May, monthly.Month())
}

func TestRunPeriodIsolatesFailures(t *testing.T) {
	gen := &fakeGenerator{fail: map[int64]error{
		2: apperr.Partial(2, apperr.Storage("list entries", errors.New("deadlock"))),
	}}
	del := &recordingDeliverer{}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(3)}, gen, del, testConfig(), time.Now())

	res, err := s.RunPeriod(context.Background(), daterange.Weekly, time.Date(2026, time.October, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPartialComputation))
	assert.Contains(t, err.Error(), "organization 2")

	assert.Equal(t, 3, res.Organizations)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.ElementsMatch(t, []int64{1, 3}, del.delivered)
}

func TestRunPeriodCombinesEveryFailure(t *testing.T) {
	boom := errors.New("boom")
	gen := &fakeGenerator{fail: map[int64]error{1: boom, 3: boom}}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(3)}, gen, &recordingDeliverer{}, testConfig(), time.Now())

	res, err := s.RunPeriod(context.Background(), daterange.Daily, time.Now())
	require.Error(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, err.Error(), "organization 1")
	assert.Contains(t, err.Error(), "organization 3")
}

func TestRunPeriodAppliesOrgTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.OrgTimeout = 20 * time.Millisecond
	gen := &fakeGenerator{block: map[int64]bool{1: true}}
	del := &recordingDeliverer{}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(2)}, gen, del, cfg, time.Now())

	res, err := s.RunPeriod(context.Background(), daterange.Daily, time.Now())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []int64{2}, del.delivered)
}

func TestRunPeriodBoundsConcurrency(t *testing.T) {
	gen := &fakeGenerator{delay: 10 * time.Millisecond}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(8)}, gen, &recordingDeliverer{}, testConfig(), time.Now())

	res, err := s.RunPeriod(context.Background(), daterange.Daily, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 8, res.Delivered)
	assert.LessOrEqual(t, atomic.LoadInt32(&gen.maxSeen), int32(2))
}

func TestRunPeriodListFailure(t *testing.T) {
	s := newTestScheduler(&fakeDirectory{listErr: errors.New("down")}, &fakeGenerator{}, &recordingDeliverer{}, testConfig(), time.Now())
	_, err := s.RunPeriod(context.Background(), daterange.Daily, time.Now())
	assert.ErrorContains(t, err, "list organizations")
}

func TestTickRunsOncePerDay(t *testing.T) {
	now := time.Date(2026, time.October, 14, 6, 5, 0, 0, time.UTC)
	gen := &fakeGenerator{}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(2)}, gen, &recordingDeliverer{}, testConfig(), now)

	s.Tick(context.Background())
	s.Tick(context.Background())

	require.Equal(t, 2, gen.callCount())
	for _, c := range gen.calls {
		assert.Equal(t, daterange.Daily, c.period)
		assert.Equal(t, "2026-10-13", c.ref.Format(daterange.DateLayout))
	}
}

func TestTickUsesSchedulerLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	// 21:00 UTC is 06:00 the next day in Tokyo.
	now := time.Date(2026, time.October, 13, 21, 0, 0, 0, time.UTC)
	gen := &fakeGenerator{}
	s := NewScheduler(&fakeDirectory{orgs: orgs(1)}, gen, &recordingDeliverer{}, testConfig(),
		WithClock(func() time.Time { return now }), WithLocation(tokyo), WithLogger(logger.Nop()))

	s.Tick(context.Background())
	require.Equal(t, 1, gen.callCount())
	assert.Equal(t, "2026-10-13", gen.calls[0].ref.Format(daterange.DateLayout))
}

func TestRunDisabledWaitsForCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	gen := &fakeGenerator{}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(1)}, gen, &recordingDeliverer{}, cfg, time.Date(2026, time.October, 14, 6, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
	assert.Zero(t, gen.callCount())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	gen := &fakeGenerator{}
	s := newTestScheduler(&fakeDirectory{orgs: orgs(1)}, gen, &recordingDeliverer{}, testConfig(), time.Date(2026, time.October, 14, 6, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return gen.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, gen.callCount())
}

func TestLogDeliverer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDeliverer(logger.FromZap(zap.New(core), "report-delivery"))
	report := &models.KPIReport{Period: models.ReportPeriod{Type: "weekly"}}

	require.NoError(t, d.Deliver(context.Background(), models.Organization{ID: 7, Name: "Acme"},
		[]models.Membership{{Email: "a@example.com"}, {Email: "b@example.com"}}, report))
	entries := logs.FilterMessage("KPI report ready").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Acme", fields["organization"])
	assert.Equal(t, int64(7), fields["org_id"])

	require.NoError(t, d.Deliver(context.Background(), models.Organization{ID: 8}, nil, report))
	assert.Equal(t, 1, logs.FilterMessage("No owners to deliver report to").Len())
}
