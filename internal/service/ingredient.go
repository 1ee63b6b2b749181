package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// IngredientService serves the read-only ingredient catalog and loads it
// from JSON dumps.
type IngredientService struct {
	repo   repository.IngredientRepository
	logger *slog.Logger
}

func NewIngredientService(repo repository.IngredientRepository, logger *slog.Logger) *IngredientService {
	return &IngredientService{repo: repo, logger: logger}
}

// Search lists ingredients whose name starts with prefix. Catalog names are
// stored lower-case, so the prefix is lower-cased too.
func (s *IngredientService) Search(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	ingredients, err := s.repo.SearchIngredients(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("searching ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *IngredientService) Get(ctx context.Context, id int64) (*model.Ingredient, error) {
	return s.repo.GetIngredient(ctx, id)
}

// Load reads a JSON array of {"name", "measurement_unit"} objects and adds
// the new pairs to the catalog. Names and units are trimmed and lower-cased;
// pairs already present are skipped. Returns the number of rows added.
func (s *IngredientService) Load(ctx context.Context, r io.Reader) (int, error) {
	var raw []model.Ingredient
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return 0, apperror.ValidationFailed("file", fmt.Sprintf("ingredients file is not a JSON array of ingredients: %v", err))
	}

	batch := make([]model.Ingredient, 0, len(raw))
	for i, in := range raw {
		name := strings.ToLower(strings.TrimSpace(in.Name))
		unit := strings.ToLower(strings.TrimSpace(in.MeasurementUnit))
		if name == "" || unit == "" {
			return 0, apperror.ValidationFailed("file",
				fmt.Sprintf("ingredient #%d needs both name and measurement_unit", i+1))
		}
		batch = append(batch, model.Ingredient{Name: name, MeasurementUnit: unit})
	}

	added, err := s.repo.InsertIngredients(ctx, batch)
	if err != nil {
		s.logger.Error("failed to load ingredients", slog.String("error", err.Error()))
		return 0, fmt.Errorf("loading ingredients: %w", err)
	}

	s.logger.Info("ingredients loaded",
		slog.Int("read", len(batch)),
		slog.Int("added", added),
	)
	return added, nil
}
