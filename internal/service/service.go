// Package service holds the business rules of foodgram.
//
//	Handler (HTTP) → Service (rules, permissions) → Repository (SQL)
//
// Every operation takes the caller as an explicit access.Actor; nothing here
// reads request state. Services return *apperror.AppError values for domain
// failures and wrapped errors for infrastructure failures.
package service

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// presenter turns stored rows into the representations seen by one actor:
// image keys become URLs, is_subscribed is computed for the actor.
type presenter struct {
	subs   repository.SubscriptionRepository
	images imagestore.Store
}

func (p presenter) profiles(ctx context.Context, actor access.Actor, users []model.User) ([]model.Profile, error) {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	subscribed := map[int64]bool{}
	if actor.Authenticated() && len(ids) > 0 {
		var err error
		subscribed, err = p.subs.SubscribedTo(ctx, actor.UserID, ids)
		if err != nil {
			return nil, fmt.Errorf("loading subscriptions: %w", err)
		}
	}

	out := make([]model.Profile, len(users))
	for i, u := range users {
		out[i] = p.profile(u, subscribed[u.ID])
	}
	return out, nil
}

func (p presenter) profileFor(ctx context.Context, actor access.Actor, user model.User) (model.Profile, error) {
	profiles, err := p.profiles(ctx, actor, []model.User{user})
	if err != nil {
		return model.Profile{}, err
	}
	return profiles[0], nil
}

func (p presenter) profile(u model.User, subscribed bool) model.Profile {
	var avatar *string
	if u.Avatar != "" {
		url := p.images.URL(u.Avatar)
		avatar = &url
	}
	return model.Profile{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Avatar:       avatar,
		IsSubscribed: subscribed,
	}
}

func (p presenter) summary(r model.Recipe) model.RecipeSummary {
	return model.RecipeSummary{
		ID:          r.ID,
		Name:        r.Name,
		Image:       p.images.URL(r.Image),
		CookingTime: r.CookingTime,
	}
}
