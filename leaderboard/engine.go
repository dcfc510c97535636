package leaderboard

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/models"
)

// Trend directions for period-over-period comparison.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendSame = "same"
)

// Entry is one computed leaderboard row. It is a view derived from the point
// ledger and task records, never persisted as authoritative data.
type Entry struct {
	Rank             int     `json:"rank"`
	UserID           uint    `json:"user_id"`
	Username         string  `json:"username"`
	FullName         string  `json:"full_name"`
	Station          string  `json:"station"`
	Points           int     `json:"points"`
	Trend            string  `json:"trend"`
	TrendDelta       int     `json:"trend_delta"`
	TasksCompleted   int     `json:"tasks_completed"`
	AvgApprovalHours float64 `json:"avg_approval_hours"`
	TopStation       string  `json:"top_station"`
	IsTied           bool    `json:"is_tied"`
}

// Engine computes ranked point totals over time windows. It holds no state
// between calls; every computation is a fresh read over the ledger.
type Engine struct {
	db *gorm.DB
}

// NewEngine creates an Engine backed by the given database handle.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Compute produces the full ranked leaderboard for the period ending at asOf.
// Every user with at least one point entry or completed task in the window
// qualifies. Rows are sorted by period points descending; among equal totals
// the user whose in-window running sum first reached the final value ranks
// higher and both rows carry IsTied. Ranks are contiguous 1..N over the full
// set; callers that page must slice the result without renumbering.
func (e *Engine) Compute(period Period, asOf time.Time) ([]Entry, error) {
	start, end, bounded := period.Window(asOf)

	rows, err := e.entriesInWindow(start, end, bounded)
	if err != nil {
		return nil, err
	}

	totals := map[uint]int{}
	for _, r := range rows {
		totals[r.TargetUserID] += r.Points
	}

	// Earliest moment each user's running sum first equals their final total.
	reached := map[uint]time.Time{}
	running := map[uint]int{}
	for _, r := range rows {
		uid := r.TargetUserID
		running[uid] += r.Points
		if _, done := reached[uid]; !done && running[uid] == totals[uid] {
			reached[uid] = r.CreatedAt
		}
	}

	tasks, err := e.tasksInWindow(start, end, bounded)
	if err != nil {
		return nil, err
	}

	taskCount := map[uint]int{}
	latencySum := map[uint]float64{}
	latencyN := map[uint]int{}
	stationCount := map[uint]map[string]int{}
	for _, t := range tasks {
		uid := t.AssigneeID
		taskCount[uid]++
		if t.ApprovedAt != nil && t.CompletedAt != nil {
			latencySum[uid] += t.ApprovedAt.Sub(*t.CompletedAt).Hours()
			latencyN[uid]++
		}
		if t.Station != "" {
			if stationCount[uid] == nil {
				stationCount[uid] = map[string]int{}
			}
			stationCount[uid][t.Station]++
		}
		if _, ok := totals[uid]; !ok {
			totals[uid] = 0
		}
	}

	ids := make([]uint, 0, len(totals))
	for uid := range totals {
		ids = append(ids, uid)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}

	var users []models.User
	if err := e.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	previous, hasPrev, err := e.previousTotals(period, asOf)
	if err != nil {
		return nil, err
	}

	board := make([]Entry, 0, len(totals))
	for uid, pts := range totals {
		user, ok := byID[uid]
		if !ok {
			// Ledger entries can outlive a deactivated account.
			continue
		}
		// All-time has no preceding period; it always reports a flat trend.
		delta := 0
		if hasPrev {
			delta = pts - previous[uid]
		}
		trend := TrendSame
		if delta > 0 {
			trend = TrendUp
		} else if delta < 0 {
			trend = TrendDown
		}

		avg := 0.0
		if n := latencyN[uid]; n > 0 {
			avg = latencySum[uid] / float64(n)
		}

		board = append(board, Entry{
			UserID:           uid,
			Username:         user.Username,
			FullName:         user.FullName,
			Station:          user.Station,
			Points:           pts,
			Trend:            trend,
			TrendDelta:       delta,
			TasksCompleted:   taskCount[uid],
			AvgApprovalHours: avg,
			TopStation:       topStation(stationCount[uid]),
		})
	}

	sort.SliceStable(board, func(i, j int) bool {
		a, b := board[i], board[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		ra, rb := reachedOrEnd(reached, a.UserID, end), reachedOrEnd(reached, b.UserID, end)
		if !ra.Equal(rb) {
			return ra.Before(rb)
		}
		return a.UserID < b.UserID
	})

	for i := range board {
		board[i].Rank = i + 1
		if i > 0 && board[i].Points == board[i-1].Points {
			board[i].IsTied = true
			board[i-1].IsTied = true
		}
	}

	return board, nil
}

// UserRank returns the user's row in the full leaderboard for the period.
// ok is false when the user has no qualifying activity in the window.
func (e *Engine) UserRank(userID uint, period Period, asOf time.Time) (Entry, bool, error) {
	board, err := e.Compute(period, asOf)
	if err != nil {
		return Entry{}, false, err
	}
	for _, row := range board {
		if row.UserID == userID {
			return row, true, nil
		}
	}
	return Entry{}, false, nil
}

// TotalActiveUsers counts users with at least one qualifying entry or
// completed task in the window.
func (e *Engine) TotalActiveUsers(period Period, asOf time.Time) (int, error) {
	board, err := e.Compute(period, asOf)
	if err != nil {
		return 0, err
	}
	return len(board), nil
}

func (e *Engine) entriesInWindow(start, end time.Time, bounded bool) ([]models.PointEntry, error) {
	var rows []models.PointEntry
	q := e.db.Where("created_at < ?", end)
	if bounded {
		q = q.Where("created_at >= ?", start)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) tasksInWindow(start, end time.Time, bounded bool) ([]models.Task, error) {
	var tasks []models.Task
	q := e.db.
		Where("status IN ?", []string{models.TaskCompleted, models.TaskApproved}).
		Where("completed_at IS NOT NULL AND completed_at < ?", end)
	if bounded {
		q = q.Where("completed_at >= ?", start)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (e *Engine) previousTotals(period Period, asOf time.Time) (map[uint]int, bool, error) {
	prevStart, prevEnd, ok := period.PreviousWindow(asOf)
	totals := map[uint]int{}
	if !ok {
		return totals, false, nil
	}

	type row struct {
		TargetUserID uint
		Total        int
	}
	var rows []row
	err := e.db.Model(&models.PointEntry{}).
		Select("target_user_id, COALESCE(SUM(points), 0) AS total").
		Where("created_at >= ? AND created_at < ?", prevStart, prevEnd).
		Group("target_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, false, err
	}
	for _, r := range rows {
		totals[r.TargetUserID] = r.Total
	}
	return totals, true, nil
}

// reachedOrEnd falls back to the window end for users who qualified without
// any point entries, so they sort after anyone who earned their total.
func reachedOrEnd(reached map[uint]time.Time, uid uint, end time.Time) time.Time {
	if t, ok := reached[uid]; ok {
		return t
	}
	return end
}

// topStation picks the station with the most completed tasks; equal counts
// resolve to the lexicographically smaller name.
func topStation(counts map[string]int) string {
	best := ""
	bestN := 0
	for station, n := range counts {
		if n > bestN || (n == bestN && (best == "" || station < best)) {
			best = station
			bestN = n
		}
	}
	return best
}
