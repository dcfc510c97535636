package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makanmoments/staffboard/config"
	"github.com/makanmoments/staffboard/controllers"
	"github.com/makanmoments/staffboard/leaderboard"
	"github.com/makanmoments/staffboard/ledger"
	"github.com/makanmoments/staffboard/middleware"
	"github.com/makanmoments/staffboard/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	pointLedger := ledger.New(db)
	engine := leaderboard.NewEngine(db)

	authController := controllers.NewAuthController(db)
	pointsController := controllers.NewPointsController(db, pointLedger)
	leaderboardController := controllers.NewLeaderboardController(db, engine)
	taskController := controllers.NewTaskController(db, pointLedger)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())

	// Leaderboard views are open to all authenticated staff.
	protected.GET("/leaderboard", leaderboardController.Get)
	protected.GET("/leaderboard/podium", leaderboardController.Podium)
	protected.GET("/leaderboard/me", leaderboardController.MyRank)
	protected.GET("/leaderboard/export", leaderboardController.ExportCSV)
	protected.GET("/users/:id/rank", leaderboardController.UserRank)
	protected.GET("/users/:id/points", pointsController.UserHistory)

	protected.GET("/tasks", taskController.ListTasks)
	protected.POST("/tasks/:id/complete", taskController.CompleteTask)

	// Point allocation and task administration require the manager role.
	managers := protected.Group("")
	managers.Use(middleware.ManagerRequired(), middleware.RateLimitMiddleware())
	managers.POST("/points", pointsController.Allocate)
	managers.GET("/points/usage", pointsController.DailyUsage)
	managers.GET("/points/audit", pointsController.Audit)
	managers.POST("/tasks", taskController.CreateTask)
	managers.POST("/tasks/:id/approve", taskController.ApproveTask)
	managers.POST("/discipline", taskController.Discipline)
	managers.POST("/skills/verify", taskController.VerifySkill)
	managers.POST("/users", authController.CreateStaff)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
