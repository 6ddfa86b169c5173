package models

import "time"

const (
	DefaultCategory = "work"
	DefaultTimezone = "UTC"
)

// TimeEntry is a span of tracked time. It is active while EndTime is nil.
type TimeEntry struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	OrganizationID int64      `json:"organization_id"`
	TaskID         *int64     `json:"task_id,omitempty"`
	Category       string     `json:"category"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Duration       *int64     `json:"duration"` // seconds, fixed at stop
	Billable       *bool      `json:"billable,omitempty"`
	Description    string     `json:"description"`
	Timezone       string     `json:"timezone"`

	// ProjectID is resolved through the entry's task by analytics reads only.
	ProjectID *int64 `json:"project_id,omitempty"`
}

// IsActive reports whether the entry has not been stopped yet.
func (e TimeEntry) IsActive() bool {
	return e.EndTime == nil
}

// StartOptions carries the optional fields of a new timer.
type StartOptions struct {
	TaskID      *int64 `json:"task_id,omitempty"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"omitempty,max=50"`
	Timezone    string `json:"timezone" validate:"omitempty,timezone"`
	Billable    *bool  `json:"billable,omitempty"`
}

// EntryPatch is the partial update accepted for an entry. Timing fields are not patchable.
type EntryPatch struct {
	Description *string `json:"description,omitempty" validate:"omitnil,max=1000"`
	Category    *string `json:"category,omitempty" validate:"omitnil,min=1,max=50"`
}

// IsEmpty reports whether the patch changes nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.Description == nil && p.Category == nil
}

// TimerStats summarizes a user's tracked time.
type TimerStats struct {
	ActiveCount       int   `json:"active_count"`
	TodayTotalSeconds int64 `json:"today_total_seconds"`
	WeekTotalSeconds  int64 `json:"week_total_seconds"`
}

// Timer event types pushed to a user's live sessions.
const (
	EventTimerStarted = "timer.started"
	EventTimerStopped = "timer.stopped"
	EventTimerUpdated = "timer.updated"
	EventTimerRemoved = "timer.removed"
)

// TimerEvent describes a committed change to one of the user's entries.
type TimerEvent struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id"`
	Entry     TimeEntry `json:"entry"`
	Timestamp time.Time `json:"timestamp"`
}
