package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/app"
	"github.com/Leonardofps/gomarketplace/internal/version"
)

// setupLogger настраивает формат и уровень логирования; неизвестный уровень заменяется на info.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(parsed)
	return nil
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		_ = setupLogger("info")
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		log.WithError(err).WithField("log_level", cfg.LogLevel).Warn("unknown log level, falling back to info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.GetVersion(),
		"commit":         version.GetCommit(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("starting cart service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("cart service exited with error")
	}

	log.Info("cart service stopped")
}
