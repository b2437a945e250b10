package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"stint/backend/internal/config"
	"stint/backend/internal/db"
	"stint/backend/internal/events"
	"stint/backend/internal/handler"
	"stint/backend/internal/repository"
	"stint/backend/internal/router"
	"stint/backend/internal/service"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	stintRepo := repository.NewStintRepository(database)

	bus := events.NewBus()
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	projectService := service.NewProjectService(projectRepo)
	stintService := service.NewStintService(stintRepo, projectRepo, userRepo, bus)

	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService)
	stintHandler := handler.NewStintHandler(stintService, bus)
	sweepHandler := handler.NewSweepHandler(stintService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Safety net: expired stints reach a terminal state even if every client
	// disconnects before the deadline.
	go stintService.RunSweeper(ctx, cfg.SweepInterval)

	engine := router.New(authService, authHandler, projectHandler, stintHandler, sweepHandler, cfg.CORSOrigins)
	log.Printf("backend listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
