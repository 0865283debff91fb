package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/go-dealer-router/internal/config"
	"github.com/safar/go-dealer-router/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down|status|reset] [args...]")
	}

	command := os.Args[1]
	switch command {
	case "up", "down", "status", "reset", "version", "redo":
	default:
		log.Fatalf("Unsupported command %q", command)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db, command, os.Args[2:]...); err != nil {
		log.Fatalf("Run migrations: %v", err)
	}

	log.Printf("Migration command %q finished", command)
}
