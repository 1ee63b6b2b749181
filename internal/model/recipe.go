package model

import "time"

// Bounds shared by validation and the storage CHECK constraints.
const (
	MinCookingTime      = 1
	MaxCookingTime      = 32000
	MinAmount           = 1
	MaxAmount           = 32000
	MaxRecipeNameLength = 256
)

// Ingredient is an entry of the reference catalog. The (Name, MeasurementUnit)
// pair is unique.
type Ingredient struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// Recipe is the stored recipe header. Line items live in Ingredients and are
// always replaced as a whole.
type Recipe struct {
	ID          int64
	AuthorID    int64
	Name        string
	Text        string
	CookingTime int
	Image       string // storage key
	Ingredients []LineItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineItem is one (ingredient, amount) pair of a recipe.
type LineItem struct {
	IngredientID int64 `json:"id" validate:"gt=0"`
	Amount       int   `json:"amount" validate:"gte=1,lte=32000"`
}

// RecipeIngredient is a line item joined with its catalog entry.
type RecipeIngredient struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeView is the full read representation of a recipe for one actor.
type RecipeView struct {
	ID               int64              `json:"id"`
	Author           Profile            `json:"author"`
	Ingredients      []RecipeIngredient `json:"ingredients"`
	IsFavorited      bool               `json:"is_favorited"`
	IsInShoppingCart bool               `json:"is_in_shopping_cart"`
	Name             string             `json:"name"`
	Image            string             `json:"image"`
	Text             string             `json:"text"`
	CookingTime      int                `json:"cooking_time"`
}

// RecipeSummary is the compact representation returned by the favorite and
// shopping cart endpoints and embedded in author profiles.
type RecipeSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}
