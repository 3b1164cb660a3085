package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"field-dispatch/internal/adapters/cli"
	"field-dispatch/internal/app"
	"field-dispatch/internal/bootstrap"
	"field-dispatch/internal/config"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	// Command output goes to stdout; keep engine logs on stderr.
	log := config.NewLogger(cfg.LogLevel, "text")
	log.SetOutput(os.Stderr)

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, log, false)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	svc := app.NewAppService(rt.Engine)
	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		rt.Close()
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
