// seed-demo loads the demo suppliers, stock, technicians and service requests into
// the configured store. Running it twice is safe.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"

	"field-dispatch/internal/bootstrap"
	"field-dispatch/internal/config"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel, "text")

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, log, true)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer rt.Close()

	if err := bootstrap.SeedDemo(ctx, rt, log); err != nil {
		rt.Close()
		log.Fatalf("Failed to seed demo data: %v", err)
	}
	log.Info("Demo data ready.")
}
