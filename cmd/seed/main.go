package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/orienta-app/orienta/internal/config"
	"github.com/orienta-app/orienta/internal/models"
	"github.com/orienta-app/orienta/internal/repository"
)

// seed loads a catalog export (a JSON array of programs) into the database.
// The catalog is maintained outside the app, so this is how program records
// get in.
func main() {
	file := flag.String("file", "programs.json", "path to a JSON array of programs")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := repository.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	var programs []models.Program
	if err := json.Unmarshal(data, &programs); err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	repo := repository.NewProgramRepository(db)
	for i := range programs {
		if err := repo.Create(ctx, &programs[i]); err != nil {
			log.Fatalf("Failed to insert program %q: %v", programs[i].Institution, err)
		}
	}

	log.Printf("Seeded %d programs", len(programs))
}
