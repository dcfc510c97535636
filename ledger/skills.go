package ledger

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/models"
)

// AwardSkillVerification records a skill verification for the user and emits
// a single point entry for it. The award-once marker on the verification row
// is checked and flipped inside the same transaction as the ledger write, so
// concurrent verification calls cannot double-award.
//
// The point award itself is subject to the manager's daily budget like any
// other entry; a rejected budget leaves the verification unrecorded.
func (l *Ledger) AwardSkillVerification(managerID, userID uint, skill string, points, dailyLimit int) (*models.PointEntry, error) {
	if skill == "" {
		return nil, &InvalidInputError{Reason: "skill name is required"}
	}

	lock := l.managerLock(managerID)
	lock.Lock()
	defer lock.Unlock()

	var entry *models.PointEntry
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var existing models.SkillVerification
		err := tx.Where("user_id = ? AND skill = ?", userID, skill).First(&existing).Error
		switch {
		case err == nil:
			if existing.PointsAwarded {
				return ErrAlreadyAwarded
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = models.SkillVerification{
				UserID:     userID,
				Skill:      skill,
				VerifiedBy: managerID,
				CreatedAt:  time.Now().UTC(),
			}
			if err := tx.Create(&existing).Error; err != nil {
				// A concurrent verification can slip past the First check;
				// the unique (user, skill) index catches it here.
				if isDuplicateKey(err) {
					return ErrAlreadyAwarded
				}
				return err
			}
		default:
			return err
		}

		entry, err = l.addEntryTx(tx, EntryInput{
			ManagerID:    managerID,
			TargetUserID: userID,
			SourceType:   models.SourceSkillVerification,
			SourceID:     &existing.ID,
			Points:       points,
			Note:         "skill verified: " + skill,
		}, dailyLimit)
		if err != nil {
			return err
		}

		existing.PointsAwarded = true
		existing.UpdatedAt = time.Now().UTC()
		return tx.Save(&existing).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || // MySQL 1062
		strings.Contains(msg, "UNIQUE constraint failed") // SQLite
}
