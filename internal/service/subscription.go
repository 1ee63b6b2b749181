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

// AllRecipes disables the recipes_limit of author profiles.
const AllRecipes = -1

type SubscriptionService struct {
	subs    repository.SubscriptionRepository
	users   repository.UserRepository
	recipes repository.RecipeRepository
	present presenter
	logger  *slog.Logger
}

func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	images imagestore.Store,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subs:    subs,
		users:   users,
		recipes: recipes,
		present: presenter{subs: subs, images: images},
		logger:  logger,
	}
}

// Subscribe makes the actor follow authorID. Following yourself is rejected
// before the author is looked up.
func (s *SubscriptionService) Subscribe(ctx context.Context, actor access.Actor, authorID int64, recipesLimit int) (*model.AuthorProfile, error) {
	if err := access.CheckCollection(actor, access.ActionCreate); err != nil {
		return nil, err
	}
	if err := checkRecipesLimit(recipesLimit); err != nil {
		return nil, err
	}
	if actor.UserID == authorID {
		return nil, apperror.SelfSubscription()
	}

	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	if err := s.subs.CreateSubscription(ctx, actor.UserID, authorID); err != nil {
		return nil, err
	}

	s.logger.Info("subscribed",
		slog.Int64("user_id", actor.UserID),
		slog.Int64("author_id", authorID),
	)

	return s.authorProfile(ctx, s.present.profile(*author, true), recipesLimit)
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, actor access.Actor, authorID int64) error {
	if err := access.CheckCollection(actor, access.ActionDelete); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return err
	}
	if err := s.subs.DeleteSubscription(ctx, actor.UserID, authorID); err != nil {
		return err
	}

	s.logger.Info("unsubscribed",
		slog.Int64("user_id", actor.UserID),
		slog.Int64("author_id", authorID),
	)
	return nil
}

// List returns the authors the actor follows, most recent subscription first.
func (s *SubscriptionService) List(ctx context.Context, actor access.Actor, opts repository.ListOptions, recipesLimit int) (model.Page[model.AuthorProfile], error) {
	if err := access.CheckCollection(actor, access.ActionCreate); err != nil {
		return model.Page[model.AuthorProfile]{}, err
	}
	if err := checkRecipesLimit(recipesLimit); err != nil {
		return model.Page[model.AuthorProfile]{}, err
	}

	authors, total, err := s.subs.ListSubscriptions(ctx, actor.UserID, opts)
	if err != nil {
		return model.Page[model.AuthorProfile]{}, fmt.Errorf("listing subscriptions: %w", err)
	}

	items := make([]model.AuthorProfile, 0, len(authors))
	for _, a := range authors {
		ap, err := s.authorProfile(ctx, s.present.profile(a, true), recipesLimit)
		if err != nil {
			return model.Page[model.AuthorProfile]{}, err
		}
		items = append(items, *ap)
	}
	return model.Page[model.AuthorProfile]{Items: items, Total: total}, nil
}

// authorProfile attaches the author's newest recipes (at most recipesLimit,
// or all of them for AllRecipes) and their total count.
func (s *SubscriptionService) authorProfile(ctx context.Context, p model.Profile, recipesLimit int) (*model.AuthorProfile, error) {
	opts := repository.ListOptions{}
	if recipesLimit > 0 {
		opts.Limit = recipesLimit
	}
	recipes, count, err := s.recipes.ListRecipes(ctx, repository.RecipeFilter{AuthorID: p.ID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing recipes of author %d: %w", p.ID, err)
	}
	if recipesLimit == 0 {
		recipes = nil
	}

	summaries := make([]model.RecipeSummary, len(recipes))
	for i, r := range recipes {
		summaries[i] = s.present.summary(r)
	}
	return &model.AuthorProfile{
		Profile:      p,
		Recipes:      summaries,
		RecipesCount: count,
	}, nil
}

func checkRecipesLimit(n int) error {
	if n < AllRecipes {
		return apperror.ValidationFailed("recipes_limit", "recipes_limit must be a non-negative integer")
	}
	return nil
}
