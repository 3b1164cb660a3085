// migrate applies the embedded SQL migrations to DATABASE_URL and exits.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"time"

	"field-dispatch/internal/config"
	"field-dispatch/internal/db"
	"field-dispatch/migrations"
)

func main() {
	cfg, err := config.Load()
	log := config.NewLogger("info", "text")
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Info("[CONNECT] success")

	if err := db.Migrate(ctx, pool, migrations.FS, log); err != nil {
		log.Fatalf("[MIGRATE] %v", err)
	}
	log.Info("[DONE] All migrations processed.")
}
