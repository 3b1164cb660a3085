package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "field-dispatch/internal/adapters/web"
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
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, log, true)
	if err != nil {
		config.LogError(log, "main", "main", "bootstrap", nil, err)
		os.Exit(1)
	}
	defer rt.Close()

	if cfg.StoreBackend == config.BackendMemory {
		if err := bootstrap.SeedDemo(ctx, rt, log); err != nil {
			config.LogError(log, "main", "main", "seed demo data", nil, err)
			os.Exit(1)
		}
	}

	svc := app.NewAppService(rt.Engine)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"port": cfg.ServerPort, "backend": cfg.StoreBackend}).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		config.LogError(log, "main", "main", "listen", nil, err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
