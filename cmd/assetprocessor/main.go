package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"assetprocessor/internal/assetworker"
	"assetprocessor/internal/config"
	"assetprocessor/internal/logger"
)

func main() {
	cfg, err := config.LoadFromEnv(".env")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logr := logger.New(cfg.LogLevel, os.Stdout)
	logr.Info("Config loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := assetworker.Run(ctx, cfg, logr); err != nil {
		logr.Error("Asset processor exited with error", "error", err)
		stop()
		os.Exit(1)
	}
	logr.Info("Program terminated")
}
