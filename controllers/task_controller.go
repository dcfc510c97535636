package controllers

import (
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

// TaskController handles kitchen tasks and the point-affecting actions that
// feed the ledger: task approval, disciplinary deductions and skill
// verifications.
type TaskController struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewTaskController creates a new controller instance.
func NewTaskController(db *gorm.DB, l *ledger.Ledger) *TaskController {
	return &TaskController{db: db, ledger: l}
}

// CreateTask assigns a new task to a staff member. Manager only.
func (t *TaskController) CreateTask(ctx *gin.Context) {
	type request struct {
		Title      string     `json:"title" binding:"required"`
		Station    string     `json:"station"`
		AssigneeID uint       `json:"assignee_id" binding:"required"`
		BasePoints int        `json:"base_points"`
		DueDate    *time.Time `json:"due_date"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	if req.BasePoints < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40031, "base points must not be negative")
		return
	}

	var assignee models.User
	if err := t.db.First(&assignee, req.AssigneeID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "assignee not found")
		return
	}

	task := models.Task{
		Title:      utils.Sanitize(req.Title),
		Station:    req.Station,
		AssigneeID: req.AssigneeID,
		Status:     models.TaskPending,
		BasePoints: req.BasePoints,
		DueDate:    req.DueDate,
	}
	if err := t.db.Create(&task).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create task")
		return
	}

	utils.Success(ctx, task)
}

// ListTasks returns tasks filtered by ?assignee_id= and ?status=.
func (t *TaskController) ListTasks(ctx *gin.Context) {
	q := t.db.Model(&models.Task{}).Order("created_at DESC")
	if raw := ctx.Query("assignee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40032, "invalid assignee id")
			return
		}
		q = q.Where("assignee_id = ?", uint(id))
	}
	if status := ctx.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load tasks")
		return
	}

	utils.Success(ctx, gin.H{"tasks": tasks})
}

// CompleteTask lets the assignee mark their task completed.
func (t *TaskController) CompleteTask(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	task, ok := t.loadTask(ctx)
	if !ok {
		return
	}
	if task.AssigneeID != userID {
		utils.Error(ctx, http.StatusForbidden, 40303, "task belongs to another staff member")
		return
	}
	if task.Status != models.TaskPending {
		utils.Error(ctx, http.StatusConflict, 40920, "task is not pending")
		return
	}

	now := time.Now().UTC()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	if err := t.db.Save(&task).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update task")
		return
	}

	utils.InvalidateByPrefix("leaderboard:")
	utils.Success(ctx, task)
}

// ApproveTask awards the task's base points through the ledger and marks the
// task approved. A rejected budget leaves the task completed but unapproved;
// the manager sees the rejection and can retry after the day boundary.
func (t *TaskController) ApproveTask(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	task, ok := t.loadTask(ctx)
	if !ok {
		return
	}
	if task.Status != models.TaskCompleted {
		utils.Error(ctx, http.StatusConflict, 40921, "task is not awaiting approval")
		return
	}

	cfg := config.Get()
	taskID := task.ID
	entry, err := t.ledger.AddEntry(ledger.EntryInput{
		ManagerID:    managerID,
		TargetUserID: task.AssigneeID,
		SourceType:   models.SourceTaskCompletion,
		SourceID:     &taskID,
		Points:       task.BasePoints,
		Note:         "task approved: " + task.Title,
	}, cfg.DailyPointLimit)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}

	now := time.Now().UTC()
	task.Status = models.TaskApproved
	task.ApprovedAt = &now
	task.UpdatedAt = now
	if err := t.db.Save(&task).Error; err != nil {
		// Points are already in the ledger; surface the inconsistency for ops.
		utils.Sugar.Errorf("task %d approval state update failed after award: %v", task.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update task")
		return
	}

	utils.InvalidateByPrefix("leaderboard:")
	utils.Success(ctx, gin.H{
		"task":  task,
		"entry": entry,
	})
}

// Discipline records a disciplinary point deduction. Manager only.
func (t *TaskController) Discipline(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	type request struct {
		UserID uint   `json:"user_id" binding:"required"`
		Points int    `json:"points" binding:"required,gt=0"`
		Reason string `json:"reason" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid request payload")
		return
	}

	cfg := config.Get()
	entry, err := t.ledger.AddEntry(ledger.EntryInput{
		ManagerID:    managerID,
		TargetUserID: req.UserID,
		SourceType:   models.SourceDisciplinaryAction,
		Points:       -req.Points,
		Note:         utils.Sanitize(req.Reason),
	}, cfg.DailyPointLimit)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}

	utils.InvalidateByPrefix("leaderboard:")
	utils.Success(ctx, entry)
}

// VerifySkill records a skill verification and its one-time point award.
// Manager only; a second verification of the same skill is rejected.
func (t *TaskController) VerifySkill(ctx *gin.Context) {
	managerID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	type request struct {
		UserID uint   `json:"user_id" binding:"required"`
		Skill  string `json:"skill" binding:"required"`
		Points int    `json:"points"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "invalid request payload")
		return
	}

	cfg := config.Get()
	points := req.Points
	if points == 0 {
		points = cfg.SkillVerifyPoints
	}

	entry, err := t.ledger.AwardSkillVerification(managerID, req.UserID, req.Skill, points, cfg.DailyPointLimit)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}

	utils.InvalidateByPrefix("leaderboard:")
	utils.Success(ctx, entry)
}

func (t *TaskController) loadTask(ctx *gin.Context) (models.Task, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40035, "invalid task id")
		return models.Task{}, false
	}

	var task models.Task
	if err := t.db.First(&task, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40431, "task not found")
		return models.Task{}, false
	}
	return task, true
}
