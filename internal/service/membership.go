package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// MembershipService manages the per-user recipe sets. Favorites and the
// shopping cart follow identical rules and differ only by model.ListKind.
type MembershipService struct {
	recipes     repository.RecipeRepository
	memberships repository.MembershipRepository
	present     presenter
	logger      *slog.Logger
}

func NewMembershipService(
	recipes repository.RecipeRepository,
	memberships repository.MembershipRepository,
	images imagestore.Store,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		recipes:     recipes,
		memberships: memberships,
		present:     presenter{images: images},
		logger:      logger,
	}
}

// Add puts the recipe in the actor's list and returns its summary.
func (s *MembershipService) Add(ctx context.Context, actor access.Actor, kind model.ListKind, recipeID int64) (*model.RecipeSummary, error) {
	if err := access.CheckCollection(actor, access.ActionCreate); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown list kind %q", kind)
	}

	recipe, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	exists, err := s.memberships.HasMembership(ctx, kind, actor.UserID, recipeID)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", kind.Label(), err)
	}
	if exists {
		return nil, apperror.Conflict(fmt.Sprintf("recipe already added to %s", kind.Label()))
	}

	// the primary key still catches a concurrent duplicate
	if err := s.memberships.AddMembership(ctx, kind, actor.UserID, recipeID); err != nil {
		return nil, err
	}

	s.logger.Info("recipe added to list",
		slog.String("list", string(kind)),
		slog.Int64("user_id", actor.UserID),
		slog.Int64("recipe_id", recipeID),
	)

	summary := s.present.summary(*recipe)
	return &summary, nil
}

// Remove takes the recipe out of the actor's list. A recipe that does not
// exist is NotFound; one that exists but is not in the list is NotInList.
func (s *MembershipService) Remove(ctx context.Context, actor access.Actor, kind model.ListKind, recipeID int64) error {
	if err := access.CheckCollection(actor, access.ActionDelete); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown list kind %q", kind)
	}

	if _, err := s.recipes.GetRecipe(ctx, recipeID); err != nil {
		return err
	}
	if err := s.memberships.RemoveMembership(ctx, kind, actor.UserID, recipeID); err != nil {
		return err
	}

	s.logger.Info("recipe removed from list",
		slog.String("list", string(kind)),
		slog.Int64("user_id", actor.UserID),
		slog.Int64("recipe_id", recipeID),
	)
	return nil
}
