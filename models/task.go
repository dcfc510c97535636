package models

import "time"

// Task statuses.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskApproved  = "approved"
)

// Task is a kitchen task assigned to a staff member. The leaderboard reads
// completed tasks for its auxiliary metrics; point awards for approved tasks
// go through the ledger.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Station     string     `gorm:"size:64" json:"station"`
	AssigneeID  uint       `gorm:"index;not null" json:"assignee_id"`
	Status      string     `gorm:"size:16;default:pending;index" json:"status"`
	BasePoints  int        `gorm:"default:0" json:"base_points"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
