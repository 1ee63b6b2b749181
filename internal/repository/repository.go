// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite implements all of them on one *DB.
package repository

import (
	"context"

	"github.com/sakif/foodgram/internal/model"
)

// ListOptions selects a window of a collection. Limit <= 0 means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// RecipeFilter narrows ListRecipes. Zero values mean "no filter". The
// membership filters are evaluated for ViewerID and are ignored when it is 0.
type RecipeFilter struct {
	AuthorID         int64
	ViewerID         int64
	IsFavorited      *bool
	IsInShoppingCart *bool
}

type UserRepository interface {
	// CreateUser fails with apperror.ErrConflict when the email or username
	// is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateAvatar(ctx context.Context, id int64, key string) error
	LinkGitHub(ctx context.Context, id, githubID int64) error
}

type IngredientRepository interface {
	// SearchIngredients returns ingredients whose name starts with prefix,
	// case-insensitively, ordered by name.
	SearchIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error)
	GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error)
	// MissingIngredients returns the ids from ids that are not in the catalog.
	MissingIngredients(ctx context.Context, ids []int64) ([]int64, error)
	// InsertIngredients adds the ingredients in one transaction, skipping
	// pairs that already exist, and returns the number of new rows.
	InsertIngredients(ctx context.Context, ingredients []model.Ingredient) (int, error)
}

type RecipeRepository interface {
	// CreateRecipe stores the header and all line items atomically.
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	// UpdateRecipe rewrites the header and replaces every line item
	// atomically.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteRecipe(ctx context.Context, id int64) error
	// GetRecipe returns the header with its line items.
	GetRecipe(ctx context.Context, id int64) (*model.Recipe, error)
	// RecipeIngredients returns the line items joined with the catalog,
	// ordered by ingredient name.
	RecipeIngredients(ctx context.Context, recipeID int64) ([]model.RecipeIngredient, error)
	// ListRecipes returns headers (without line items), newest first, and
	// the total number of matches.
	ListRecipes(ctx context.Context, filter RecipeFilter, opts ListOptions) ([]model.Recipe, int, error)
}

// MembershipRepository stores the per-user recipe sets (favorites, shopping
// cart) in one table tagged by model.ListKind.
type MembershipRepository interface {
	// AddMembership fails with apperror.ErrConflict on a duplicate pair.
	AddMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) error
	// RemoveMembership fails with apperror.ErrNotInList when the pair is
	// absent.
	RemoveMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) error
	HasMembership(ctx context.Context, kind model.ListKind, userID, recipeID int64) (bool, error)
	// MemberRecipes reports which of recipeIDs are in the user's list.
	MemberRecipes(ctx context.Context, kind model.ListKind, userID int64, recipeIDs []int64) (map[int64]bool, error)
}

type SubscriptionRepository interface {
	// CreateSubscription fails with apperror.ErrConflict on a duplicate pair.
	CreateSubscription(ctx context.Context, userID, authorID int64) error
	// DeleteSubscription fails with apperror.ErrNotFound when absent.
	DeleteSubscription(ctx context.Context, userID, authorID int64) error
	// SubscribedTo reports which of authorIDs the user follows.
	SubscribedTo(ctx context.Context, userID int64, authorIDs []int64) (map[int64]bool, error)
	// ListSubscriptions returns the authors the user follows and their total.
	ListSubscriptions(ctx context.Context, userID int64, opts ListOptions) ([]model.User, int, error)
}

type ShoppingListRepository interface {
	// ShoppingList sums the line items of every recipe in the user's cart,
	// grouped by ingredient name and unit, ordered by name.
	ShoppingList(ctx context.Context, userID int64) ([]model.ShoppingListItem, error)
}
