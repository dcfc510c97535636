package ledger

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/makanmoments/staffboard/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and visible to
	// every transaction.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PointEntry{}, &models.Task{}, &models.SkillVerification{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{Username: username, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func entryCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.PointEntry{}).Count(&n).Error)
	return n
}

func TestManagerDailyUsageNoEntries(t *testing.T) {
	db := testDB(t)
	l := New(db)

	used, err := l.ManagerDailyUsage(42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestAddEntryBudgetScenario(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	entry, err := l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceTaskCompletion,
		Points:       300,
	}, 500)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.NotEmpty(t, entry.EntryUUID)
	assert.False(t, entry.CreatedAt.IsZero())

	used, err := l.ManagerDailyUsage(manager.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 300, used)

	_, err = l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceTaskCompletion,
		Points:       250,
	}, 500)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 300, budgetErr.Used)
	assert.Equal(t, 250, budgetErr.Requested)
	assert.Equal(t, 500, budgetErr.Limit)

	used, err = l.ManagerDailyUsage(manager.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 300, used, "rejected entry must not change usage")

	_, err = l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceTaskCompletion,
		Points:       200,
	}, 500)
	require.NoError(t, err)

	used, err = l.ManagerDailyUsage(manager.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, used)

	remaining, err := l.RemainingBudget(manager.ID, 500, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestAddEntryRejectionPersistsNothing(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	_, err := l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       600,
	}, 500)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)

	assert.EqualValues(t, 0, entryCount(t, db))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, staff.ID).Error)
	assert.Equal(t, 0, reloaded.Points, "cached total must be untouched on rejection")
}

func TestDeductionsCostAbsoluteValue(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	_, err := l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceDisciplinaryAction,
		Points:       -120,
	}, 500)
	require.NoError(t, err)

	used, err := l.ManagerDailyUsage(manager.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 120, used)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, staff.ID).Error)
	assert.Equal(t, -120, reloaded.Points)
}

func TestZeroPointEntryAllowedAtZeroLimit(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	entry, err := l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       0,
		Note:         "verbal commendation",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Points)
	assert.EqualValues(t, 1, entryCount(t, db))

	_, err = l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       1,
	}, 0)
	var budgetErr *BudgetExceededError
	assert.ErrorAs(t, err, &budgetErr, "limit 0 permits only zero-cost entries")
}

func TestAddEntryValidation(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	cases := []struct {
		name  string
		input EntryInput
		limit int
	}{
		{"missing manager", EntryInput{TargetUserID: staff.ID, SourceType: models.SourceManualAdjustment, Points: 5}, 500},
		{"missing target", EntryInput{ManagerID: manager.ID, SourceType: models.SourceManualAdjustment, Points: 5}, 500},
		{"unknown source", EntryInput{ManagerID: manager.ID, TargetUserID: staff.ID, SourceType: "mystery", Points: 5}, 500},
		{"negative limit", EntryInput{ManagerID: manager.ID, TargetUserID: staff.ID, SourceType: models.SourceManualAdjustment, Points: 5}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.AddEntry(tc.input, tc.limit)
			var inputErr *InvalidInputError
			assert.ErrorAs(t, err, &inputErr)
		})
	}
	assert.EqualValues(t, 0, entryCount(t, db), "invalid input must be rejected before any write")
}

func TestAddEntryUnknownUsers(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)

	_, err := l.AddEntry(EntryInput{
		ManagerID:    999,
		TargetUserID: manager.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       5,
	}, 500)
	assert.ErrorIs(t, err, ErrManagerNotFound)

	_, err = l.AddEntry(EntryInput{
		ManagerID:    manager.ID,
		TargetUserID: 999,
		SourceType:   models.SourceManualAdjustment,
		Points:       5,
	}, 500)
	assert.ErrorIs(t, err, ErrTargetUserNotFound)
}

func TestUsageRespectsUTCDayBoundary(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	stamps := []time.Time{
		day.Add(-time.Second),                  // previous day
		day,                                    // inclusive start
		day.Add(23*time.Hour + 59*time.Minute), // same day
		day.Add(24 * time.Hour),                // exclusive end, next day
	}
	for _, ts := range stamps {
		require.NoError(t, db.Create(&models.PointEntry{
			ManagerID:    manager.ID,
			TargetUserID: staff.ID,
			SourceType:   models.SourceManualAdjustment,
			Points:       10,
			CreatedAt:    ts,
		}).Error)
	}

	used, err := l.ManagerDailyUsage(manager.ID, day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 20, used)
}

func TestRemainingBudgetNeverNegative(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	// Usage over the limit can only arise from a lowered limit; remaining
	// must still clamp at zero.
	require.NoError(t, db.Create(&models.PointEntry{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       700,
		CreatedAt:    time.Now().UTC(),
	}).Error)

	remaining, err := l.RemainingBudget(manager.ID, 500, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestCachedTotalMatchesReplay(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	for _, pts := range []int{50, -20, 120, 0, -30} {
		_, err := l.AddEntry(EntryInput{
			ManagerID:    manager.ID,
			TargetUserID: staff.ID,
			SourceType:   models.SourceManualAdjustment,
			Points:       pts,
		}, 500)
		require.NoError(t, err)
	}

	var replayed int64
	require.NoError(t, db.Model(&models.PointEntry{}).
		Where("target_user_id = ?", staff.ID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&replayed).Error)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, staff.ID).Error)
	assert.EqualValues(t, replayed, reloaded.Points)
}

func TestStaffCannotAllocatePoints(t *testing.T) {
	db := testDB(t)
	l := New(db)
	issuer := seedUser(t, db, "cook_ben", models.RoleStaff)
	target := seedUser(t, db, "cook_cara", models.RoleStaff)

	_, err := l.AddEntry(EntryInput{
		ManagerID:    issuer.ID,
		TargetUserID: target.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       50,
	}, 500)
	assert.ErrorIs(t, err, ErrNotManager)
	assert.EqualValues(t, 0, entryCount(t, db))

	// Admins allocate like managers.
	admin := seedUser(t, db, "owner_dee", models.RoleAdmin)
	_, err = l.AddEntry(EntryInput{
		ManagerID:    admin.ID,
		TargetUserID: target.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       50,
	}, 500)
	assert.NoError(t, err)
}

func TestConcurrentAddEntriesRespectBudget(t *testing.T) {
	db := testDB(t)
	l := New(db)
	manager := seedUser(t, db, "chef_anna", models.RoleManager)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	const callers = 10
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, _ = l.AddEntry(EntryInput{
				ManagerID:    manager.ID,
				TargetUserID: staff.ID,
				SourceType:   models.SourceManualAdjustment,
				Points:       100,
			}, 500)
		}()
	}
	wg.Wait()

	used, err := l.ManagerDailyUsage(manager.ID, time.Now())
	require.NoError(t, err)
	assert.LessOrEqual(t, used, 500, "concurrent writers must never jointly exceed the budget")
	assert.EqualValues(t, used/100, entryCount(t, db))
}

func TestConcurrentManagersKeepCachedTotalConsistent(t *testing.T) {
	db := testDB(t)
	l := New(db)
	staff := seedUser(t, db, "cook_ben", models.RoleStaff)

	// Distinct managers hold distinct locks, so their transactions interleave
	// freely; the target's cached total must still end up equal to the ledger.
	const managers = 8
	const perManager = 5
	issuers := make([]models.User, managers)
	for i := range issuers {
		issuers[i] = seedUser(t, db, "manager_"+strconv.Itoa(i), models.RoleManager)
	}

	var wg sync.WaitGroup
	wg.Add(managers)
	for _, m := range issuers {
		go func(managerID uint) {
			defer wg.Done()
			for j := 0; j < perManager; j++ {
				_, err := l.AddEntry(EntryInput{
					ManagerID:    managerID,
					TargetUserID: staff.ID,
					SourceType:   models.SourceManualAdjustment,
					Points:       10,
				}, 500)
				assert.NoError(t, err)
			}
		}(m.ID)
	}
	wg.Wait()

	var replayed int64
	require.NoError(t, db.Model(&models.PointEntry{}).
		Where("target_user_id = ?", staff.ID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&replayed).Error)
	assert.EqualValues(t, managers*perManager*10, replayed)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, staff.ID).Error)
	assert.EqualValues(t, replayed, reloaded.Points, "cached total must match the ledger replay")
}
