// devnotesdb initializes and inspects a notes database. It is an operator
// tool; the application itself applies the schema on startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/devnotes/devnotes/internal/config"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/obs"
)

func main() {
	var (
		dbPath   = flag.String("db", "", "database path (overrides DATABASE_PATH)")
		initOnly = flag.Bool("init", false, "apply the schema and exit")
		stats    = flag.Bool("stats", false, "print row counts per table")
	)
	flag.Parse()

	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	database, err := db.Open(cfg.DatabasePath, cfg.MasterKey)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.ApplySchema(ctx); err != nil {
		log.Fatal(err)
	}
	if *initOnly {
		fmt.Printf("schema applied to %s (encrypted: %v)\n", cfg.DatabasePath, cfg.Encrypted())
		return
	}

	if *stats {
		if err := printStats(ctx, database); err != nil {
			log.Fatal(err)
		}
		return
	}

	flag.Usage()
	os.Exit(2)
}

func printStats(ctx context.Context, database *db.DB) error {
	tables := []string{"users", "folders", "notes", "note_images", "shared_folders", "shared_notes"}
	for _, table := range tables {
		var count int64
		if err := database.Pool().QueryRowxContext(ctx, "SELECT count(*) FROM "+table).Scan(&count); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		fmt.Printf("%-16s %d\n", table, count)
	}
	return nil
}
