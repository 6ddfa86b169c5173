// Package timer manages the lifecycle of active time entries. A user has at most
// one active entry at any instant: starting a timer closes the previous one inside
// the same transaction.
package timer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/metrics"
	"github.com/nikhil/worktrack/internal/models"
	"github.com/nikhil/worktrack/internal/store"
)

// Notifier receives committed timer changes.
type Notifier interface {
	TimerChanged(event models.TimerEvent)
}

type nopNotifier struct{}

func (nopNotifier) TimerChanged(models.TimerEvent) {}

// TimerService holds no timer state of its own; every call re-reads the store.
type TimerService struct {
	store  store.TxEntryStore
	notify Notifier
	now    func() time.Time
	Log    *logger.Logger
}

// Option customizes a TimerService.
type Option func(*TimerService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TimerService) { s.now = now }
}

// WithNotifier publishes committed changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *TimerService) { s.notify = n }
}

// WithLogger replaces the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *TimerService) { s.Log = l }
}

// NewTimerService initializes a new timer service
func NewTimerService(st store.TxEntryStore, opts ...Option) *TimerService {
	s := &TimerService{
		store:  st,
		notify: nopNotifier{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Log == nil {
		s.Log = logger.NewLogger("timer-service")
	}
	return s
}

// clock returns the current instant at the store's millisecond precision.
func (s *TimerService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// ListActive returns the user's active entries, most recent first.
func (s *TimerService) ListActive(ctx context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error) {
	return s.store.ListActive(ctx, userID, orgID)
}

// GetActive returns the user's most recent active entry in the organization, or nil.
func (s *TimerService) GetActive(ctx context.Context, userID, orgID int64) (*models.TimeEntry, error) {
	active, err := s.store.ListActive(ctx, userID, &orgID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

// Start closes every active entry of the user, in any organization, and opens a
// new one in orgID, atomically.
func (s *TimerService) Start(ctx context.Context, userID, orgID int64, opts models.StartOptions) (*models.TimeEntry, error) {
	entry, err := s.newEntry(userID, orgID, opts)
	if err != nil {
		return nil, err
	}

	var closed int64
	err = s.store.InTx(ctx, func(tx store.EntryStore) error {
		if err := tx.LockUser(ctx, userID, entry.StartTime); err != nil {
			return err
		}
		n, err := tx.CloseActive(ctx, userID, nil, entry.StartTime)
		if err != nil {
			return err
		}
		closed = n
		return tx.Insert(ctx, entry)
	})
	metrics.RecordTimerOp("start", err)
	if err != nil {
		s.Log.WithContext(ctx).WithUser(userID).Error("Failed to start timer", "org_id", orgID, "error", err)
		return nil, err
	}
	metrics.TimersClosed.Add(float64(closed))

	s.Log.WithContext(ctx).WithUser(userID).Audit("Timer started",
		"entry_id", entry.ID, "org_id", orgID, "task_id", entry.TaskID, "closed_previous", closed)
	s.publish(models.EventTimerStarted, *entry)
	return entry, nil
}

func (s *TimerService) newEntry(userID, orgID int64, opts models.StartOptions) (*models.TimeEntry, error) {
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	tz := strings.TrimSpace(opts.Timezone)
	if tz == "" {
		tz = models.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, apperr.Validation("unknown timezone %q", tz)
	}
	return &models.TimeEntry{
		UserID:         userID,
		OrganizationID: orgID,
		TaskID:         opts.TaskID,
		Category:       category,
		StartTime:      s.clock(),
		Billable:       opts.Billable,
		Description:    opts.Description,
		Timezone:       tz,
	}, nil
}

// Stop closes one active entry owned by the user.
func (s *TimerService) Stop(ctx context.Context, entryID, userID int64) (*models.TimeEntry, error) {
	at := s.clock()
	var stopped *models.TimeEntry
	err := s.store.InTx(ctx, func(tx store.EntryStore) error {
		if err := tx.LockUser(ctx, userID, at); err != nil {
			return err
		}
		ok, err := tx.Close(ctx, entryID, userID, at)
		if err != nil {
			return err
		}
		if !ok {
			// Distinguish a foreign or missing entry from a closed one.
			if _, err := tx.Get(ctx, entryID, userID); err != nil {
				return err
			}
			return apperr.ErrAlreadyStopped
		}
		stopped, err = tx.Get(ctx, entryID, userID)
		return err
	})
	metrics.RecordTimerOp("stop", err)
	if err != nil {
		s.logFailure(ctx, "Failed to stop timer", userID, entryID, err)
		return nil, err
	}
	metrics.TimersClosed.Inc()

	s.Log.WithContext(ctx).WithUser(userID).Audit("Timer stopped", "entry_id", entryID, "duration", stopped.Duration)
	s.publish(models.EventTimerStopped, *stopped)
	return stopped, nil
}

// StopActive stops the caller's active entry in the organization and returns it.
// It fails with ErrNotFound when no timer is running there.
func (s *TimerService) StopActive(ctx context.Context, userID, orgID int64) (*models.TimeEntry, error) {
	at := s.clock()
	var stopped *models.TimeEntry
	var closed int64
	err := s.store.InTx(ctx, func(tx store.EntryStore) error {
		if err := tx.LockUser(ctx, userID, at); err != nil {
			return err
		}
		active, err := tx.ListActive(ctx, userID, &orgID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return apperr.ErrNotFound
		}
		if closed, err = tx.CloseActive(ctx, userID, &orgID, at); err != nil {
			return err
		}
		stopped, err = tx.Get(ctx, active[0].ID, userID)
		return err
	})
	metrics.RecordTimerOp("stop_active", err)
	if err != nil {
		s.logFailure(ctx, "Failed to stop active timer", userID, 0, err)
		return nil, err
	}
	metrics.TimersClosed.Add(float64(closed))

	s.Log.WithContext(ctx).WithUser(userID).Audit("Timer stopped", "entry_id", stopped.ID, "org_id", orgID, "duration", stopped.Duration)
	s.publish(models.EventTimerStopped, *stopped)
	return stopped, nil
}

// StopAllActive closes every active entry of the user (in orgID when given).
// Zero stopped entries is not an error.
func (s *TimerService) StopAllActive(ctx context.Context, userID int64, orgID *int64) (int64, error) {
	at := s.clock()
	var closed []models.TimeEntry
	var n int64
	err := s.store.InTx(ctx, func(tx store.EntryStore) error {
		if err := tx.LockUser(ctx, userID, at); err != nil {
			return err
		}
		active, err := tx.ListActive(ctx, userID, orgID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return nil
		}
		if n, err = tx.CloseActive(ctx, userID, orgID, at); err != nil {
			return err
		}
		for _, e := range active {
			updated, err := tx.Get(ctx, e.ID, userID)
			if err != nil {
				return err
			}
			closed = append(closed, *updated)
		}
		return nil
	})
	metrics.RecordTimerOp("stop_all", err)
	if err != nil {
		s.logFailure(ctx, "Failed to stop active timers", userID, 0, err)
		return 0, err
	}
	metrics.TimersClosed.Add(float64(n))

	if n > 0 {
		s.Log.WithContext(ctx).WithUser(userID).Audit("Active timers stopped", "count", n)
	}
	for _, e := range closed {
		s.publish(models.EventTimerStopped, e)
	}
	return n, nil
}

// Restart starts a new entry copying task, description, category and timezone
// from an entry the user owns, whether or not that entry is still active.
func (s *TimerService) Restart(ctx context.Context, entryID, userID, orgID int64) (*models.TimeEntry, error) {
	source, err := s.store.Get(ctx, entryID, userID)
	if err != nil {
		metrics.RecordTimerOp("restart", err)
		s.logFailure(ctx, "Failed to restart timer", userID, entryID, err)
		return nil, err
	}

	entry, err := s.Start(ctx, userID, orgID, models.StartOptions{
		TaskID:      source.TaskID,
		Description: source.Description,
		Category:    source.Category,
		Timezone:    source.Timezone,
		Billable:    source.Billable,
	})
	metrics.RecordTimerOp("restart", err)
	if err != nil {
		return nil, err
	}
	s.Log.WithContext(ctx).WithUser(userID).Info("Timer restarted", "source_entry_id", entryID, "entry_id", entry.ID)
	return entry, nil
}

// Update patches description and/or category of an owned entry.
func (s *TimerService) Update(ctx context.Context, entryID, userID int64, patch models.EntryPatch) (*models.TimeEntry, error) {
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		return nil, apperr.Validation("category must not be empty")
	}

	var updated *models.TimeEntry
	err := s.store.InTx(ctx, func(tx store.EntryStore) error {
		if _, err := tx.Get(ctx, entryID, userID); err != nil {
			return err
		}
		if err := tx.Update(ctx, entryID, userID, patch); err != nil {
			return err
		}
		var err error
		updated, err = tx.Get(ctx, entryID, userID)
		return err
	})
	metrics.RecordTimerOp("update", err)
	if err != nil {
		s.logFailure(ctx, "Failed to update timer", userID, entryID, err)
		return nil, err
	}

	s.Log.WithContext(ctx).WithUser(userID).Info("Timer updated", "entry_id", entryID)
	s.publish(models.EventTimerUpdated, *updated)
	return updated, nil
}

// Remove deletes an owned entry and returns it as it was before deletion.
func (s *TimerService) Remove(ctx context.Context, entryID, userID int64) (*models.TimeEntry, error) {
	var removed *models.TimeEntry
	err := s.store.InTx(ctx, func(tx store.EntryStore) error {
		var err error
		if removed, err = tx.Get(ctx, entryID, userID); err != nil {
			return err
		}
		return tx.Delete(ctx, entryID, userID)
	})
	metrics.RecordTimerOp("remove", err)
	if err != nil {
		s.logFailure(ctx, "Failed to remove timer", userID, entryID, err)
		return nil, err
	}

	s.Log.WithContext(ctx).WithUser(userID).Audit("Timer removed", "entry_id", entryID)
	s.publish(models.EventTimerRemoved, *removed)
	return removed, nil
}

// Statistics totals completed entries started today and this week (Sunday
// 00:00 onward) in loc. Active entries only count towards ActiveCount.
func (s *TimerService) Statistics(ctx context.Context, userID int64, orgID *int64, loc *time.Location) (*models.TimerStats, error) {
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)

	active, err := s.store.ListActive(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	today, err := s.store.SumCompleted(ctx, userID, orgID, daterange.StartOfDay(now), now)
	if err != nil {
		return nil, err
	}
	week, err := s.store.SumCompleted(ctx, userID, orgID, daterange.StartOfSundayWeek(now), now)
	if err != nil {
		return nil, err
	}

	return &models.TimerStats{
		ActiveCount:       len(active),
		TodayTotalSeconds: today,
		WeekTotalSeconds:  week,
	}, nil
}

func (s *TimerService) publish(eventType string, entry models.TimeEntry) {
	s.notify.TimerChanged(models.TimerEvent{
		Type:      eventType,
		UserID:    entry.UserID,
		Entry:     entry,
		Timestamp: s.clock(),
	})
}

func (s *TimerService) logFailure(ctx context.Context, msg string, userID, entryID int64, err error) {
	log := s.Log.WithContext(ctx).WithUser(userID)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
		log.Warn(msg, "entry_id", entryID, "error", err)
		return
	}
	log.Error(msg, "entry_id", entryID, "error", err)
}
