package models

import "time"

// Role is a member's role inside an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Organization is the tenant boundary.
type Organization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Membership binds a user to an organization with a role.
type Membership struct {
	UserID         int64  `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	Role           Role   `json:"role"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
}

// Name returns the member's display name.
func (m Membership) Name() string {
	switch {
	case m.FirstName == "" && m.LastName == "":
		return m.Email
	case m.LastName == "":
		return m.FirstName
	case m.FirstName == "":
		return m.LastName
	}
	return m.FirstName + " " + m.LastName
}

// IsEmployee reports whether the member counts for analytics (everyone but clients).
func (m Membership) IsEmployee() bool {
	return m.Role != RoleClient
}

const TaskStatusCompleted = "completed"

// Task is a macro task assigned to one user.
type Task struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	AssigneeID     int64      `json:"assignee_id"`
	ProjectID      *int64     `json:"project_id,omitempty"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Project groups tasks.
type Project struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
}

// Report is a daily "I did X" submission.
type Report struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}
