// Command loadingredients fills the ingredient catalog from a JSON file:
//
//	loadingredients data/ingredients.json
//
// The file is an array of {"name", "measurement_unit"} objects. Pairs that
// are already in the catalog are skipped, so the command can be rerun.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/logging"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: loadingredients <file.json>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		slog.Error("loading ingredients failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(path string) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	added, err := service.NewIngredientService(db, logger).Load(ctx, f)
	if err != nil {
		return err
	}

	fmt.Printf("%d ingredients added\n", added)
	return nil
}
