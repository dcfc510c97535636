package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointSource identifies the action that produced a point entry.
type PointSource string

const (
	SourceTaskCompletion     PointSource = "task_completion"
	SourceDisciplinaryAction PointSource = "disciplinary_action"
	SourceSkillVerification  PointSource = "skill_verification"
	SourceManualAdjustment   PointSource = "manual_adjustment"
)

// Valid reports whether s is one of the known source kinds.
func (s PointSource) Valid() bool {
	switch s {
	case SourceTaskCompletion, SourceDisciplinaryAction, SourceSkillVerification, SourceManualAdjustment:
		return true
	}
	return false
}

// PointEntry is an immutable signed ledger record. Positive points are grants,
// negative points are deductions. Entries are never updated or deleted; all
// aggregates (user totals, daily budget usage, leaderboards) are derived from
// them.
type PointEntry struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	EntryUUID    string      `gorm:"size:36;uniqueIndex" json:"entry_uuid"`
	ManagerID    uint        `gorm:"index:idx_entries_manager_day;not null" json:"manager_id"`
	TargetUserID uint        `gorm:"index;not null" json:"target_user_id"`
	SourceType   PointSource `gorm:"size:32;not null" json:"source_type"`
	SourceID     *uint       `json:"source_id,omitempty"`
	Points       int         `gorm:"not null" json:"points"`
	Note         string      `gorm:"size:255" json:"note,omitempty"`
	CreatedAt    time.Time   `gorm:"index:idx_entries_manager_day" json:"created_at"`
}

// BeforeCreate assigns the public identifier and a UTC server timestamp.
func (p *PointEntry) BeforeCreate(tx *gorm.DB) error {
	if p.EntryUUID == "" {
		p.EntryUUID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Cost is the budget cost of the entry: the absolute point value.
func (p *PointEntry) Cost() int {
	if p.Points < 0 {
		return -p.Points
	}
	return p.Points
}
