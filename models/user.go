package models

import (
	"time"

	"gorm.io/gorm"
)

// Staff roles. Managers and admins may allocate or deduct points.
const (
	RoleStaff   = "staff"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// User represents a staff member. Passwords are stored as bcrypt hashes only.
// Points is a denormalized running total maintained by the ledger; it can
// always be rebuilt by replaying the user's point entries.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;not null" json:"username"`
	FullName     string         `gorm:"size:128" json:"full_name"`
	Email        string         `gorm:"size:255" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:16;default:staff" json:"role"`
	Station      string         `gorm:"size:64" json:"station"`
	Points       int            `gorm:"default:0" json:"points"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// CanAllocatePoints reports whether the user's role permits point allocation.
func (u *User) CanAllocatePoints() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now().UTC()
	return nil
}
