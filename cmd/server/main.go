// Package main is the entry point for the foodgram API server.
//
// main stays minimal: load the configuration, build the logger, hand both
// to server.New and block in Start. All wiring lives in internal/server.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/logging"
	"github.com/sakif/foodgram/internal/server"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// blocks until SIGINT/SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
