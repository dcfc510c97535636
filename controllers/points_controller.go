package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/config"
	"github.com/makanmoments/staffboard/ledger"
	"github.com/makanmoments/staffboard/models"
	"github.com/makanmoments/staffboard/utils"
)

// PointsController exposes the budget ledger: manual grants and deductions,
// daily usage, and audit history.
type PointsController struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewPointsController creates a new controller instance.
func NewPointsController(db *gorm.DB, l *ledger.Ledger) *PointsController {
	return &PointsController{db: db, ledger: l}
}

// Allocate records a manual point grant or deduction against the caller's
// daily budget.
func (p *PointsController) Allocate(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	type request struct {
		TargetUserID uint   `json:"target_user_id" binding:"required"`
		SourceType   string `json:"source_type"`
		SourceID     *uint  `json:"source_id"`
		Points       int    `json:"points"`
		Note         string `json:"note"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	sourceType := models.PointSource(req.SourceType)
	if req.SourceType == "" {
		sourceType = models.SourceManualAdjustment
	}

	cfg := config.Get()
	entry, err := p.ledger.AddEntry(ledger.EntryInput{
		ManagerID:    managerID,
		TargetUserID: req.TargetUserID,
		SourceType:   sourceType,
		SourceID:     req.SourceID,
		Points:       req.Points,
		Note:         utils.Sanitize(req.Note),
	}, cfg.DailyPointLimit)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}

	utils.InvalidateByPrefix("leaderboard:")

	remaining, err := p.ledger.RemainingBudget(managerID, cfg.DailyPointLimit, time.Now())
	if err != nil {
		// The entry is recorded; report the write and a conservative zero.
		utils.Sugar.Warnf("remaining budget read failed after allocation: %v", err)
	}
	utils.Success(ctx, gin.H{
		"entry":            entry,
		"remaining_budget": remaining,
	})
}

// DailyUsage returns the caller's budget consumption for a UTC calendar day.
// Accepts an optional ?date=YYYY-MM-DD, defaulting to today.
func (p *PointsController) DailyUsage(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	date, err := parseDateParam(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid date, expected YYYY-MM-DD")
		return
	}

	cfg := config.Get()
	used, err := p.ledger.ManagerDailyUsage(managerID, date)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to compute daily usage")
		return
	}
	remaining, err := p.ledger.RemainingBudget(managerID, cfg.DailyPointLimit, date)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to compute daily usage")
		return
	}

	utils.Success(ctx, gin.H{
		"date":        ledgerDay(date),
		"used":        used,
		"daily_limit": cfg.DailyPointLimit,
		"remaining":   remaining,
	})
}

// Audit lists the entries the caller issued on a UTC calendar day.
func (p *PointsController) Audit(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	date, err := parseDateParam(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid date, expected YYYY-MM-DD")
		return
	}

	entries, err := p.ledger.EntriesForManager(managerID, date)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load entries")
		return
	}

	utils.Success(ctx, gin.H{
		"date":    ledgerDay(date),
		"entries": entries,
	})
}

// UserHistory lists a user's point entries, newest first.
func (p *PointsController) UserHistory(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid user id")
		return
	}

	var user models.User
	if err := p.db.First(&user, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "user not found")
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	entries, err := p.ledger.EntriesForUser(uint(id), limit, offset)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load entries")
		return
	}

	utils.Success(ctx, gin.H{
		"user_id": user.ID,
		"points":  user.Points,
		"entries": entries,
	})
}

// respondLedgerError maps ledger errors to HTTP responses.
func respondLedgerError(ctx *gin.Context, err error) {
	var budgetErr *ledger.BudgetExceededError
	var inputErr *ledger.InvalidInputError
	switch {
	case errors.As(err, &budgetErr):
		utils.Respond(ctx, http.StatusConflict, 40910, "daily point budget exceeded", gin.H{
			"used":      budgetErr.Used,
			"requested": budgetErr.Requested,
			"limit":     budgetErr.Limit,
		})
	case errors.As(err, &inputErr):
		utils.Error(ctx, http.StatusBadRequest, 40023, inputErr.Error())
	case errors.Is(err, ledger.ErrManagerNotFound), errors.Is(err, ledger.ErrTargetUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40421, err.Error())
	case errors.Is(err, ledger.ErrNotManager):
		utils.Error(ctx, http.StatusForbidden, 40304, err.Error())
	case errors.Is(err, ledger.ErrAlreadyAwarded):
		utils.Error(ctx, http.StatusConflict, 40911, err.Error())
	default:
		utils.Sugar.Errorf("ledger write failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to record point entry")
	}
}

func parseDateParam(ctx *gin.Context) (time.Time, error) {
	raw := ctx.Query("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func ledgerDay(t time.Time) string {
	start, _ := ledger.DayBounds(t)
	return start.Format("2006-01-02")
}
