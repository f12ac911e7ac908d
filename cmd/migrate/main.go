package main

import (
	"context"
	"fmt"
	"time"

	"ecopunto-backend/internal/config"
	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/storage"
)

// Creates the schema and loads the demo data into DATABASE_URL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if !cfg.UsesPostgres() {
		logging.Fatal().Msg("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	logging.Info().Msg("Connected to database successfully")

	if err := storage.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("Migration failed")
	}

	store := storage.NewPostgresStore(db, cfg.NotificationRetention)
	if err := storage.Seed(ctx, store, cfg.DemoUserID, time.Now()); err != nil {
		logging.Fatal().Err(err).Msg("Seeding failed")
	}

	var result struct {
		Containers    int `db:"containers"`
		Full          int `db:"full_containers"`
		Notifications int `db:"notifications"`
	}
	err = db.GetContext(ctx, &result, `
		SELECT
			(SELECT COUNT(*) FROM containers) AS containers,
			(SELECT COUNT(*) FROM containers WHERE fill_level >= $1) AS full_containers,
			(SELECT COUNT(*) FROM notifications) AS notifications
	`, cfg.Simulation.FullThreshold)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to query summary")
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Containers:              %d\n", result.Containers)
	fmt.Printf("Full containers:         %d\n", result.Full)
	fmt.Printf("Notifications:           %d\n", result.Notifications)
	fmt.Println("============================================================")
}
