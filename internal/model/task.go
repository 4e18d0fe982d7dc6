package model

import (
	"time"

	"github.com/dukerupert/familytasks/internal/recurrence"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusChildDone TaskStatus = "child_done"
	StatusApproved  TaskStatus = "approved"
	StatusRejected  TaskStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type TaskDefinition struct {
	ID         int64           `json:"id"`
	FamilyID   int64           `json:"family_id"`
	Title      string          `json:"title"`
	Points     int             `json:"points"`
	Active     bool            `json:"active"`
	Recurrence recurrence.Rule `json:"recurrence"`
	StartDate  *Date           `json:"start_date,omitempty"`
	EndDate    *Date           `json:"end_date,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TaskAssignment struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	TaskID    int64     `json:"task_id"`
	ChildID   int64     `json:"child_id"`
	StartDate *Date     `json:"start_date,omitempty"`
	EndDate   *Date     `json:"end_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskInstance is the per-day, per-child realization of a task. It exists
// only once a status-changing action has happened.
type TaskInstance struct {
	ID            int64      `json:"id"`
	FamilyID      int64      `json:"family_id"`
	TaskID        int64      `json:"task_id"`
	ChildID       int64      `json:"child_id"`
	TaskDate      Date       `json:"task_date"`
	Status        TaskStatus `json:"status"`
	ChildMarkedAt *time.Time `json:"child_marked_at,omitempty"`
	ConfirmedBy   *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	PointsAwarded int        `json:"points_awarded"`
}

// AssignedTask joins an assignment with its definition and the child it binds.
type AssignedTask struct {
	Assignment TaskAssignment
	Task       TaskDefinition
	ChildName  string
}

// DueTask is one due task for a child on a day, with its projected status.
type DueTask struct {
	TaskID        int64      `json:"task_id"`
	AssignmentID  int64      `json:"assignment_id"`
	Title         string     `json:"title"`
	Points        int        `json:"points_default"`
	Status        TaskStatus `json:"status"`
	InstanceID    *int64     `json:"instance_id,omitempty"`
	ChildMarkedAt *time.Time `json:"child_marked_at,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	PointsAwarded int        `json:"points_awarded"`
}

type ChildDueTasks struct {
	ChildID   int64     `json:"child_id"`
	ChildName string    `json:"child_name"`
	Tasks     []DueTask `json:"tasks"`
}

// ReviewItem is a task a child marked done that waits for a parent.
type ReviewItem struct {
	InstanceID    int64      `json:"instance_id"`
	TaskID        int64      `json:"task_id"`
	Title         string     `json:"title"`
	ChildID       int64      `json:"child_id"`
	ChildName     string     `json:"child_name"`
	Status        TaskStatus `json:"status"`
	ChildMarkedAt time.Time  `json:"child_marked_at"`
}
