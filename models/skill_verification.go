package models

import "time"

// SkillVerification marks that a staff member was verified on a skill.
// PointsAwarded is the award-once marker: the ledger emits at most one point
// entry per (user, skill) pair, checked inside the same transaction that
// flips the flag.
type SkillVerification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex:idx_skill_user_skill;not null" json:"user_id"`
	Skill         string    `gorm:"size:64;uniqueIndex:idx_skill_user_skill;not null" json:"skill"`
	VerifiedBy    uint      `gorm:"not null" json:"verified_by"`
	PointsAwarded bool      `gorm:"default:false" json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
