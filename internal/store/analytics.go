package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/database"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/models"
)

// Analytics serves the range-filtered reads of the KPI engine.
type Analytics struct {
	q database.Querier
}

func NewAnalytics(db *sql.DB) *Analytics {
	return &Analytics{q: db}
}

// ListMembers returns every membership of the organization, clients included.
func (a *Analytics) ListMembers(ctx context.Context, orgID int64) ([]models.Membership, error) {
	query := `SELECT m.user_id, m.organization_id, m.role,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.email, '')
		FROM memberships m
		LEFT JOIN users u ON u.user_id = m.user_id
		WHERE m.organization_id = ?
		ORDER BY m.user_id`
	rows, err := a.q.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, apperr.Storage("list members", err)
	}
	defer rows.Close()

	members := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role, &m.FirstName, &m.LastName, &m.Email); err != nil {
			return nil, apperr.Storage("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate members", err)
	}
	return members, nil
}

// ListEntries returns entries started inside the window, active ones included,
// with the project resolved through the entry's task.
func (a *Analytics) ListEntries(ctx context.Context, orgID int64, r daterange.Range) ([]models.TimeEntry, error) {
	query := `SELECT e.id, e.user_id, e.organization_id, e.task_id, e.category, e.start_time, e.end_time,
			e.duration, e.billable, e.description, e.timezone, t.project_id
		FROM time_entries e
		LEFT JOIN macro_tasks t ON t.id = e.task_id
		WHERE e.organization_id = ? AND e.start_time >= ? AND e.start_time <= ?
		ORDER BY e.start_time`
	rows, err := a.q.QueryContext(ctx, query, orgID, r.Start, r.End)
	if err != nil {
		return nil, apperr.Storage("list entries", err)
	}
	defer rows.Close()

	entries := []models.TimeEntry{}
	for rows.Next() {
		var projectID sql.NullInt64
		e, err := scanEntry(projectScanner{row: rows, projectID: &projectID})
		if err != nil {
			return nil, apperr.Storage("scan entry", err)
		}
		e.ProjectID = int64Ptr(projectID)
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate entries", err)
	}
	return entries, nil
}

// projectScanner appends the joined project column to an entry scan.
type projectScanner struct {
	row       scanner
	projectID *sql.NullInt64
}

func (p projectScanner) Scan(dest ...interface{}) error {
	return p.row.Scan(append(dest, p.projectID)...)
}

func (a *Analytics) ListReports(ctx context.Context, orgID int64, r daterange.Range) ([]models.Report, error) {
	query := `SELECT id, user_id, organization_id, created_at FROM reports
		WHERE organization_id = ? AND created_at >= ? AND created_at <= ?`
	rows, err := a.q.QueryContext(ctx, query, orgID, r.Start, r.End)
	if err != nil {
		return nil, apperr.Storage("list reports", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.UserID, &rep.OrganizationID, &rep.CreatedAt); err != nil {
			return nil, apperr.Storage("scan report", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate reports", err)
	}
	return reports, nil
}

// ListCompletedTasks returns tasks completed inside the window.
func (a *Analytics) ListCompletedTasks(ctx context.Context, orgID int64, r daterange.Range) ([]models.Task, error) {
	query := `SELECT id, organization_id, assignee_id, project_id, status, due_date, completed_at
		FROM macro_tasks
		WHERE organization_id = ? AND status = ? AND completed_at >= ? AND completed_at <= ?`
	rows, err := a.q.QueryContext(ctx, query, orgID, models.TaskStatusCompleted, r.Start, r.End)
	if err != nil {
		return nil, apperr.Storage("list completed tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var (
			t         models.Task
			projectID sql.NullInt64
			due       sql.NullTime
			completed sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.AssigneeID, &projectID, &t.Status, &due, &completed); err != nil {
			return nil, apperr.Storage("scan task", err)
		}
		t.ProjectID = int64Ptr(projectID)
		t.DueDate = timePtr(due)
		t.CompletedAt = timePtr(completed)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate tasks", err)
	}
	return tasks, nil
}

func (a *Analytics) ListProjects(ctx context.Context, orgID int64) ([]models.Project, error) {
	rows, err := a.q.QueryContext(ctx, `SELECT id, organization_id, name FROM projects WHERE organization_id = ?`, orgID)
	if err != nil {
		return nil, apperr.Storage("list projects", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name); err != nil {
			return nil, apperr.Storage("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate projects", err)
	}
	return projects, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
