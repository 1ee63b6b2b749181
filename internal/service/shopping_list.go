package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// ShoppingListService aggregates the ingredients of every recipe in a
// user's cart.
type ShoppingListService struct {
	repo   repository.ShoppingListRepository
	logger *slog.Logger
}

func NewShoppingListService(repo repository.ShoppingListRepository, logger *slog.Logger) *ShoppingListService {
	return &ShoppingListService{repo: repo, logger: logger}
}

// Items returns one line per (name, measurement unit) with the summed
// amount, ordered by name. An empty cart is apperror.ErrEmptyCart.
func (s *ShoppingListService) Items(ctx context.Context, actor access.Actor) ([]model.ShoppingListItem, error) {
	if err := access.CheckCollection(actor, access.ActionCreate); err != nil {
		return nil, err
	}

	items, err := s.repo.ShoppingList(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("building shopping list: %w", err)
	}
	if len(items) == 0 {
		return nil, apperror.EmptyCart()
	}
	return items, nil
}

// Render formats items as "name: amount unit" lines.
func Render(items []model.ShoppingListItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s: %d %s", it.Name, it.Amount, it.MeasurementUnit)
	}
	return strings.Join(lines, "\n")
}

// Export returns the rendered shopping list of the actor.
func (s *ShoppingListService) Export(ctx context.Context, actor access.Actor) (string, error) {
	items, err := s.Items(ctx, actor)
	if err != nil {
		return "", err
	}

	s.logger.Info("shopping list exported",
		slog.Int64("user_id", actor.UserID),
		slog.Int("lines", len(items)),
	)
	return Render(items), nil
}
