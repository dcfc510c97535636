package main

import (
	"github.com/makanmoments/staffboard/config"
	"github.com/makanmoments/staffboard/models"
	"github.com/makanmoments/staffboard/routes"
	"github.com/makanmoments/staffboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.PointEntry{}, &models.Task{}, &models.SkillVerification{})

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
