// Package store holds the MySQL repositories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/database"
	"github.com/nikhil/worktrack/internal/models"
)

// EntryStore is the set of time-entry operations the timer service needs.
type EntryStore interface {
	// LockUser serializes timer mutations for one user until the transaction ends.
	LockUser(ctx context.Context, userID int64, at time.Time) error
	ListActive(ctx context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error)
	// CloseActive stops every active entry of the user and returns how many were closed.
	CloseActive(ctx context.Context, userID int64, orgID *int64, at time.Time) (int64, error)
	// Close stops one active entry. It returns false when no owned active entry matched.
	Close(ctx context.Context, id, userID int64, at time.Time) (bool, error)
	Insert(ctx context.Context, e *models.TimeEntry) error
	Get(ctx context.Context, id, userID int64) (*models.TimeEntry, error)
	Update(ctx context.Context, id, userID int64, patch models.EntryPatch) error
	Delete(ctx context.Context, id, userID int64) error
	SumCompleted(ctx context.Context, userID int64, orgID *int64, from, to time.Time) (int64, error)
}

// TxEntryStore can run several EntryStore calls atomically.
type TxEntryStore interface {
	EntryStore
	InTx(ctx context.Context, fn func(s EntryStore) error) error
}

const entryColumns = `id, user_id, organization_id, task_id, category, start_time, end_time,
	duration, billable, description, timezone`

// TimeEntries is the MySQL time_entries repository.
type TimeEntries struct {
	q  database.Querier
	tx *database.Transactor
}

var _ TxEntryStore = (*TimeEntries)(nil)

func NewTimeEntries(db *sql.DB) *TimeEntries {
	return &TimeEntries{q: db, tx: database.NewTransactor(db)}
}

// InTx runs fn against a repository bound to one transaction.
func (s *TimeEntries) InTx(ctx context.Context, fn func(s EntryStore) error) error {
	if s.tx == nil {
		// already bound to a transaction
		return fn(s)
	}
	err := s.tx.InTx(ctx, func(q database.Querier) error {
		return fn(&TimeEntries{q: q})
	})
	if err != nil && !isDomainError(err) {
		return apperr.Storage("timer transaction", err)
	}
	return err
}

func (s *TimeEntries) LockUser(ctx context.Context, userID int64, at time.Time) error {
	// InnoDB holds an exclusive lock on the upserted row until commit.
	query := `INSERT INTO timer_locks (user_id, locked_at) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`
	if _, err := s.q.ExecContext(ctx, query, userID, at); err != nil {
		return apperr.Storage("lock user timers", err)
	}
	return nil
}

func (s *TimeEntries) ListActive(ctx context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE user_id = ? AND end_time IS NULL`
	args := []interface{}{userID}
	if orgID != nil {
		query += ` AND organization_id = ?`
		args = append(args, *orgID)
	}
	query += ` ORDER BY start_time DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("list active entries", err)
	}
	defer rows.Close()

	entries := []models.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperr.Storage("scan entry", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate entries", err)
	}
	return entries, nil
}

func (s *TimeEntries) CloseActive(ctx context.Context, userID int64, orgID *int64, at time.Time) (int64, error) {
	query := `UPDATE time_entries
		SET end_time = ?, duration = GREATEST(0, TIMESTAMPDIFF(SECOND, start_time, ?))
		WHERE user_id = ? AND end_time IS NULL`
	args := []interface{}{at, at, userID}
	if orgID != nil {
		query += ` AND organization_id = ?`
		args = append(args, *orgID)
	}

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.Storage("close active entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("close active entries", err)
	}
	return n, nil
}

func (s *TimeEntries) Close(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	query := `UPDATE time_entries
		SET end_time = ?, duration = GREATEST(0, TIMESTAMPDIFF(SECOND, start_time, ?))
		WHERE id = ? AND user_id = ? AND end_time IS NULL`
	res, err := s.q.ExecContext(ctx, query, at, at, id, userID)
	if err != nil {
		return false, apperr.Storage("close entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("close entry", err)
	}
	return n == 1, nil
}

func (s *TimeEntries) Insert(ctx context.Context, e *models.TimeEntry) error {
	query := `INSERT INTO time_entries
		(user_id, organization_id, task_id, category, start_time, end_time, duration, billable, description, timezone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q.ExecContext(ctx, query,
		e.UserID, e.OrganizationID, nullInt(e.TaskID), e.Category, e.StartTime,
		nullTime(e.EndTime), nullInt(e.Duration), nullBool(e.Billable), e.Description, e.Timezone,
	)
	if err != nil {
		return apperr.Storage("insert entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Storage("insert entry", err)
	}
	e.ID = id
	return nil
}

func (s *TimeEntries) Get(ctx context.Context, id, userID int64) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = ? AND user_id = ?`
	e, err := scanEntry(s.q.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("get entry", err)
	}
	return e, nil
}

func (s *TimeEntries) Update(ctx context.Context, id, userID int64, patch models.EntryPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	var sets []string
	var args []interface{}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	args = append(args, id, userID)

	query := `UPDATE time_entries SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return apperr.Storage("update entry", err)
	}
	return nil
}

func (s *TimeEntries) Delete(ctx context.Context, id, userID int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return apperr.Storage("delete entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("delete entry", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *TimeEntries) SumCompleted(ctx context.Context, userID int64, orgID *int64, from, to time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(duration), 0) FROM time_entries
		WHERE user_id = ? AND end_time IS NOT NULL AND duration IS NOT NULL
		AND start_time >= ? AND start_time <= ?`
	args := []interface{}{userID, from, to}
	if orgID != nil {
		query += ` AND organization_id = ?`
		args = append(args, *orgID)
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperr.Storage("sum completed entries", err)
	}
	return total, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.TimeEntry, error) {
	var (
		e        models.TimeEntry
		taskID   sql.NullInt64
		endTime  sql.NullTime
		duration sql.NullInt64
		billable sql.NullBool
	)
	err := row.Scan(&e.ID, &e.UserID, &e.OrganizationID, &taskID, &e.Category, &e.StartTime,
		&endTime, &duration, &billable, &e.Description, &e.Timezone)
	if err != nil {
		return nil, err
	}
	e.TaskID = int64Ptr(taskID)
	e.Duration = int64Ptr(duration)
	if endTime.Valid {
		t := endTime.Time
		e.EndTime = &t
	}
	if billable.Valid {
		b := billable.Bool
		e.Billable = &b
	}
	return &e, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
