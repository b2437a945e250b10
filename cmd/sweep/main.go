// One-shot sweep pass for external schedulers (cron and the like). The
// server runs its own sweeper; this binary covers deployments where the
// server process is not always up.
package main

import (
	"context"
	"log"

	"stint/backend/internal/config"
	"stint/backend/internal/db"
	"stint/backend/internal/repository"
	"stint/backend/internal/service"
)

func main() {
	cfg := config.Load()
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	userRepo := repository.NewUserRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	stintRepo := repository.NewStintRepository(database)
	stintService := service.NewStintService(stintRepo, projectRepo, userRepo, nil)

	result, apiErr := stintService.Sweep(context.Background())
	if apiErr != nil {
		log.Fatalf("sweep: %s", apiErr.Message)
	}
	log.Printf("sweep: scanned=%d completed=%d errored=%d", result.Scanned, result.Completed, result.Errored)
}
