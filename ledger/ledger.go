package ledger

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/models"
)

// Ledger gates and records all point-value changes so that no manager exceeds
// the daily allocation budget, and provides auditable history. All mutation of
// the point store goes through AddEntry; every other operation is a pure read.
//
// The check-then-write in AddEntry is serialized per manager with an
// in-process mutex around the transaction. This assumes a single server
// instance owns the ledger; multi-instance deployments would need the check
// moved behind a database row lock instead.
type Ledger struct {
	db *gorm.DB

	mu       sync.Mutex
	managers map[uint]*sync.Mutex
}

// New creates a Ledger backed by the given database handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, managers: map[uint]*sync.Mutex{}}
}

// EntryInput describes a point grant or deduction to record.
type EntryInput struct {
	ManagerID    uint
	TargetUserID uint
	SourceType   models.PointSource
	SourceID     *uint
	Points       int
	Note         string
}

// DayBounds returns the UTC calendar day containing t as [start, end).
// UTC midnight is the canonical day boundary for all budget accounting,
// regardless of server or database timezone settings.
func DayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// ManagerDailyUsage returns sum(abs(points)) over all entries recorded by the
// manager on the UTC calendar day containing date. A manager with no entries,
// including one that does not exist, yields 0.
func (l *Ledger) ManagerDailyUsage(managerID uint, date time.Time) (int, error) {
	return l.usageTx(l.db, managerID, date)
}

// RemainingBudget returns max(0, dailyLimit - usage) for the given day.
func (l *Ledger) RemainingBudget(managerID uint, dailyLimit int, date time.Time) (int, error) {
	used, err := l.usageTx(l.db, managerID, date)
	if err != nil {
		return 0, err
	}
	remaining := dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// AddEntry validates the input, enforces the manager's daily budget and
// records the entry. On success the persisted entry is returned with its
// generated id and server-assigned UTC timestamp, and the target user's
// cached running total is updated in the same transaction.
//
// Zero-point entries are permitted: they cost nothing against the budget but
// are still recorded, so annotation-only events stay in the audit trail.
func (l *Ledger) AddEntry(in EntryInput, dailyLimit int) (*models.PointEntry, error) {
	if err := validate(in, dailyLimit); err != nil {
		return nil, err
	}

	lock := l.managerLock(in.ManagerID)
	lock.Lock()
	defer lock.Unlock()

	var entry *models.PointEntry
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.addEntryTx(tx, in, dailyLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// addEntryTx performs the budget check and insert inside tx. Callers must
// hold the manager's lock.
func (l *Ledger) addEntryTx(tx *gorm.DB, in EntryInput, dailyLimit int) (*models.PointEntry, error) {
	var manager models.User
	if err := tx.First(&manager, in.ManagerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManagerNotFound
		}
		return nil, err
	}
	if !manager.CanAllocatePoints() {
		return nil, ErrNotManager
	}

	var target models.User
	if err := tx.First(&target, in.TargetUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetUserNotFound
		}
		return nil, err
	}

	entry := models.PointEntry{
		ManagerID:    in.ManagerID,
		TargetUserID: in.TargetUserID,
		SourceType:   in.SourceType,
		SourceID:     in.SourceID,
		Points:       in.Points,
		Note:         in.Note,
		CreatedAt:    time.Now().UTC(),
	}

	used, err := l.usageTx(tx, in.ManagerID, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if used+entry.Cost() > dailyLimit {
		return nil, &BudgetExceededError{
			ManagerID: in.ManagerID,
			Used:      used,
			Requested: entry.Cost(),
			Limit:     dailyLimit,
		}
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	// The cached total must be incremented in place. Managers other than
	// in.ManagerID can be writing to the same target concurrently, so a
	// read-modify-write through the loaded row would lose updates.
	err = tx.Model(&models.User{}).
		Where("id = ?", in.TargetUserID).
		UpdateColumn("points", gorm.Expr("points + ?", in.Points)).Error
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (l *Ledger) usageTx(tx *gorm.DB, managerID uint, date time.Time) (int, error) {
	start, end := DayBounds(date)
	var used int64
	err := tx.Model(&models.PointEntry{}).
		Where("manager_id = ? AND created_at >= ? AND created_at < ?", managerID, start, end).
		Select("COALESCE(SUM(ABS(points)), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, err
	}
	return int(used), nil
}

// EntriesForUser returns the user's point history, newest first.
func (l *Ledger) EntriesForUser(userID uint, limit, offset int) ([]models.PointEntry, error) {
	var entries []models.PointEntry
	q := l.db.Where("target_user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// EntriesForManager returns the entries a manager issued on the UTC day
// containing date, oldest first, for audit views.
func (l *Ledger) EntriesForManager(managerID uint, date time.Time) ([]models.PointEntry, error) {
	start, end := DayBounds(date)
	var entries []models.PointEntry
	err := l.db.
		Where("manager_id = ? AND created_at >= ? AND created_at < ?", managerID, start, end).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *Ledger) managerLock(managerID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.managers[managerID]
	if !ok {
		lock = &sync.Mutex{}
		l.managers[managerID] = lock
	}
	return lock
}

func validate(in EntryInput, dailyLimit int) error {
	if in.ManagerID == 0 {
		return &InvalidInputError{Reason: "manager id is required"}
	}
	if in.TargetUserID == 0 {
		return &InvalidInputError{Reason: "target user id is required"}
	}
	if !in.SourceType.Valid() {
		return &InvalidInputError{Reason: "unknown source type"}
	}
	if dailyLimit < 0 {
		return &InvalidInputError{Reason: "daily limit must not be negative"}
	}
	return nil
}
