package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/makanmoments/staffboard/leaderboard"
	"github.com/makanmoments/staffboard/ledger"
	"github.com/makanmoments/staffboard/models"
	"github.com/makanmoments/staffboard/utils"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PointEntry{}, &models.Task{}, &models.SkillVerification{}))
	return db
}

func board(n int) []leaderboard.Entry {
	out := make([]leaderboard.Entry, n)
	for i := range out {
		out[i] = leaderboard.Entry{Rank: i + 1, UserID: uint(i + 1), Points: (n - i) * 10}
	}
	return out
}

func TestPagePreservesGlobalRanks(t *testing.T) {
	full := board(10)

	page1 := page(full, 3, 0)
	require.Len(t, page1, 3)
	assert.Equal(t, 1, page1[0].Rank)

	deep := page(full, 3, 5)
	require.Len(t, deep, 3)
	assert.Equal(t, 6, deep[0].Rank, "paging must not renumber ranks")
	assert.Equal(t, 8, deep[2].Rank)

	assert.Empty(t, page(full, 3, 50))
	assert.Len(t, page(full, 0, 0), 10, "limit 0 means the full board")
	assert.Len(t, page(full, 3, -2), 3, "negative offset clamps to the start")
}

func TestRespondLedgerErrorBudgetExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	respondLedgerError(ctx, &ledger.BudgetExceededError{
		ManagerID: 1,
		Used:      300,
		Requested: 250,
		Limit:     500,
	})

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 40910, resp.Code)
	assert.Equal(t, "daily point budget exceeded", resp.Message)
}

func TestRespondLedgerErrorNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	respondLedgerError(ctx, ledger.ErrTargetUserNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondLedgerErrorInvalidInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	respondLedgerError(ctx, &ledger.InvalidInputError{Reason: "unknown source type"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondLedgerErrorNotManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	respondLedgerError(ctx, ledger.ErrNotManager)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportCSVWritesBoard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	db := testDB(t)
	manager := models.User{Username: "chef_anna", Role: models.RoleManager}
	require.NoError(t, db.Create(&manager).Error)
	staff := models.User{Username: "cook_ben", FullName: "Ben Tan", Role: models.RoleStaff}
	require.NoError(t, db.Create(&staff).Error)
	require.NoError(t, db.Create(&models.PointEntry{
		ManagerID:    manager.ID,
		TargetUserID: staff.ID,
		SourceType:   models.SourceManualAdjustment,
		Points:       80,
		CreatedAt:    time.Now().UTC(),
	}).Error)

	ctrl := NewLeaderboardController(db, leaderboard.NewEngine(db))

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard/export?period=weekly", nil)

	ctrl.ExportCSV(ctx)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name,Points", strings.TrimSpace(lines[0]))
	assert.Equal(t, "Ben Tan,80", strings.TrimSpace(lines[1]))
}
