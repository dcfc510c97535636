package controllers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/config"
	"github.com/makanmoments/staffboard/leaderboard"
	"github.com/makanmoments/staffboard/utils"
)

// LeaderboardController serves ranked point views computed by the engine.
type LeaderboardController struct {
	db     *gorm.DB
	engine *leaderboard.Engine
}

// NewLeaderboardController creates a new controller instance.
func NewLeaderboardController(db *gorm.DB, engine *leaderboard.Engine) *LeaderboardController {
	return &LeaderboardController{db: db, engine: engine}
}

// Get returns the leaderboard for ?period= (weekly default), optionally
// paged with ?limit= and ?offset=. Ranks always reflect the full board, so a
// page deep in the list keeps its global positions.
func (l *LeaderboardController) Get(ctx *gin.Context) {
	period, ok := parsePeriodParam(ctx)
	if !ok {
		return
	}

	board, err := l.fullBoard(period)
	if err != nil {
		utils.Sugar.Errorf("leaderboard compute failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to compute leaderboard")
		return
	}

	total := len(board)
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	board = page(board, limit, offset)

	utils.Success(ctx, gin.H{
		"period":      string(period),
		"total_users": total,
		"leaderboard": board,
	})
}

// Podium returns the top three rows for the period.
func (l *LeaderboardController) Podium(ctx *gin.Context) {
	period, ok := parsePeriodParam(ctx)
	if !ok {
		return
	}

	board, err := l.fullBoard(period)
	if err != nil {
		utils.Sugar.Errorf("leaderboard compute failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to compute leaderboard")
		return
	}

	utils.Success(ctx, gin.H{
		"period": string(period),
		"podium": page(board, 3, 0),
	})
}

// UserRank returns one user's row in the full leaderboard, 404 when the user
// has no qualifying activity in the window.
func (l *LeaderboardController) UserRank(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid user id")
		return
	}
	l.rankOf(ctx, uint(id))
}

// MyRank returns the authenticated user's leaderboard row.
func (l *LeaderboardController) MyRank(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	l.rankOf(ctx, userID)
}

func (l *LeaderboardController) rankOf(ctx *gin.Context, userID uint) {
	period, ok := parsePeriodParam(ctx)
	if !ok {
		return
	}

	board, err := l.fullBoard(period)
	if err != nil {
		utils.Sugar.Errorf("leaderboard compute failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to compute leaderboard")
		return
	}

	for _, row := range board {
		if row.UserID == userID {
			utils.Success(ctx, row)
			return
		}
	}
	utils.Error(ctx, http.StatusNotFound, 40440, "no qualifying activity in period")
}

// ExportCSV streams the full leaderboard as "Name,Points" rows for reporting.
func (l *LeaderboardController) ExportCSV(ctx *gin.Context) {
	period, ok := parsePeriodParam(ctx)
	if !ok {
		return
	}

	board, err := l.fullBoard(period)
	if err != nil {
		utils.Sugar.Errorf("leaderboard compute failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to compute leaderboard")
		return
	}

	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", `attachment; filename="leaderboard-`+string(period)+`.csv"`)

	w := csv.NewWriter(ctx.Writer)
	_ = w.Write([]string{"Name", "Points"})
	for _, row := range board {
		name := row.FullName
		if name == "" {
			name = row.Username
		}
		_ = w.Write([]string{name, strconv.Itoa(row.Points)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		utils.Sugar.Warnf("leaderboard csv export aborted: %v", err)
	}
}

// fullBoard computes the board with a short Redis read-through cache. The
// cache is invalidated on every successful ledger write, so a hit is at most
// one TTL stale.
func (l *LeaderboardController) fullBoard(period leaderboard.Period) ([]leaderboard.Entry, error) {
	key := "leaderboard:" + string(period)
	if b, ok := utils.CacheGetBytes(key); ok {
		var cached []leaderboard.Entry
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	}

	board, err := l.engine.Compute(period, time.Now())
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	utils.CacheSetJSON(key, board, time.Duration(cfg.LeaderboardCacheTTLSec)*time.Second)
	return board, nil
}

func parsePeriodParam(ctx *gin.Context) (leaderboard.Period, bool) {
	period, err := leaderboard.ParsePeriod(ctx.DefaultQuery("period", "weekly"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "unknown period, expected weekly, monthly or all_time")
		return "", false
	}
	return period, true
}

func page(board []leaderboard.Entry, limit, offset int) []leaderboard.Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(board) {
		return []leaderboard.Entry{}
	}
	board = board[offset:]
	if limit > 0 && limit < len(board) {
		board = board[:limit]
	}
	return board
}
