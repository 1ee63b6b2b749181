package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// =========================================================================
// ValidateDraft
// =========================================================================

func validDraft() RecipeDraft {
	return RecipeDraft{
		Name:        "Pancakes",
		Text:        "Whisk and fry.",
		CookingTime: 20,
		Image:       pngDataURI,
		Ingredients: []model.LineItem{{IngredientID: 1, Amount: 200}, {IngredientID: 2, Amount: 1}},
	}
}

func TestValidateDraft(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *RecipeDraft)
		field  string
	}{
		{"valid", func(d *RecipeDraft) {}, ""},
		{"missing image", func(d *RecipeDraft) { d.Image = "" }, "image"},
		{"missing name", func(d *RecipeDraft) { d.Name = "" }, "name"},
		{"name too long", func(d *RecipeDraft) { d.Name = strings.Repeat("a", 257) }, "name"},
		{"missing text", func(d *RecipeDraft) { d.Text = "" }, "text"},
		{"cooking time zero", func(d *RecipeDraft) { d.CookingTime = 0 }, "cooking_time"},
		{"cooking time too long", func(d *RecipeDraft) { d.CookingTime = 32001 }, "cooking_time"},
		{"no ingredients", func(d *RecipeDraft) { d.Ingredients = nil }, "ingredients"},
		{"zero amount", func(d *RecipeDraft) { d.Ingredients[0].Amount = 0 }, "ingredients[0].amount"},
		{"amount too large", func(d *RecipeDraft) { d.Ingredients[1].Amount = 32001 }, "ingredients[1].amount"},
		{"duplicate ingredient", func(d *RecipeDraft) { d.Ingredients[1].IngredientID = 1 }, "ingredients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.modify(&d)

			err := ValidateDraft(d)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestValidateDraft_BoundariesAccepted(t *testing.T) {
	d := validDraft()
	d.CookingTime = 1
	d.Ingredients = []model.LineItem{{IngredientID: 1, Amount: 1}, {IngredientID: 2, Amount: 32000}}
	assert.NoError(t, ValidateDraft(d))

	d.CookingTime = 32000
	assert.NoError(t, ValidateDraft(d))
}

// =========================================================================
// Create / Get
// =========================================================================

func TestRecipeCreate(t *testing.T) {
	env := newTestEnv(t)
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "sugar/g", "flour/g")

	view := env.createRecipe(t, chef, "Cake",
		model.LineItem{IngredientID: ids[0], Amount: 100},
		model.LineItem{IngredientID: ids[1], Amount: 250},
	)

	assert.NotZero(t, view.ID)
	assert.Equal(t, "Cake", view.Name)
	assert.Equal(t, chef.UserID, view.Author.ID)
	assert.False(t, view.Author.IsSubscribed)
	assert.False(t, view.IsFavorited)
	assert.False(t, view.IsInShoppingCart)
	assert.True(t, strings.HasPrefix(view.Image, "http://test/media/recipes/images/"))

	require.Len(t, view.Ingredients, 2)
	assert.Equal(t, model.RecipeIngredient{ID: ids[1], Name: "flour", MeasurementUnit: "g", Amount: 250}, view.Ingredients[0])
	assert.Equal(t, model.RecipeIngredient{ID: ids[0], Name: "sugar", MeasurementUnit: "g", Amount: 100}, view.Ingredients[1])

	// visible to anonymous readers straight away
	got, err := env.recipes.Get(context.Background(), access.Anonymous, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Name, got.Name)
}

func TestRecipeCreate_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	ids := env.loadIngredients(t, "salt/g")

	d := validDraft()
	d.Ingredients = []model.LineItem{{IngredientID: ids[0], Amount: 1}}
	_, err := env.recipes.Create(context.Background(), access.Anonymous, d)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRecipeCreate_UnknownIngredient(t *testing.T) {
	env := newTestEnv(t)
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "salt/g")

	d := validDraft()
	d.Ingredients = []model.LineItem{{IngredientID: ids[0], Amount: 1}, {IngredientID: 9999, Amount: 1}}
	_, err := env.recipes.Create(context.Background(), chef, d)
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "9999")

	page, err := env.recipes.List(context.Background(), access.Anonymous, RecipeQuery{}, repository.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestRecipeCreate_InvalidImage(t *testing.T) {
	env := newTestEnv(t)
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "salt/g")

	for _, image := range []string{
		"not-a-data-uri",
		"data:image/svg+xml;base64,PHN2Zy8+",
		"data:image/x/../../../pwned;base64,aGk=",
	} {
		d := validDraft()
		d.Image = image
		d.Ingredients = []model.LineItem{{IngredientID: ids[0], Amount: 1}}
		_, err := env.recipes.Create(context.Background(), chef, d)
		assert.ErrorIs(t, err, apperror.ErrValidation, image)
	}

	entries, err := os.ReadDir(env.images.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecipeGet_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.recipes.Get(context.Background(), access.Anonymous, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// Update
// =========================================================================

func TestRecipeUpdate_PartialReplacesIngredients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "egg/pcs", "milk/ml", "butter/g")
	created := env.createRecipe(t, chef, "Omelette",
		model.LineItem{IngredientID: ids[0], Amount: 3},
		model.LineItem{IngredientID: ids[1], Amount: 50},
	)

	cooking := 15
	updated, err := env.recipes.Update(ctx, chef, created.ID, RecipeUpdate{
		CookingTime: &cooking,
		Ingredients: []model.LineItem{{IngredientID: ids[2], Amount: 10}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Omelette", updated.Name)
	assert.Equal(t, created.Text, updated.Text)
	assert.Equal(t, 15, updated.CookingTime)
	assert.Equal(t, created.Image, updated.Image)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "butter", updated.Ingredients[0].Name)
}

func TestRecipeUpdate_ReplacesImageFile(t *testing.T) {
	env := newTestEnv(t)
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "egg/pcs")
	created := env.createRecipe(t, chef, "Boiled egg", model.LineItem{IngredientID: ids[0], Amount: 1})

	oldPath := filepath.Join(env.images.Dir(), strings.TrimPrefix(created.Image, "http://test/media/"))
	_, err := os.Stat(oldPath)
	require.NoError(t, err)

	img := pngDataURI
	updated, err := env.recipes.Update(context.Background(), chef, created.ID, RecipeUpdate{
		Image:       &img,
		Ingredients: []model.LineItem{{IngredientID: ids[0], Amount: 2}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, created.Image, updated.Image)
	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "old image should be removed")
}

func TestRecipeUpdate_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chef := env.register(t, "chef")
	other := env.register(t, "other")
	ids := env.loadIngredients(t, "egg/pcs")
	created := env.createRecipe(t, chef, "Egg", model.LineItem{IngredientID: ids[0], Amount: 1})
	items := []model.LineItem{{IngredientID: ids[0], Amount: 2}}
	empty := ""

	tests := []struct {
		name  string
		actor access.Actor
		id    int64
		upd   RecipeUpdate
		want  error
	}{
		{"anonymous", access.Anonymous, created.ID, RecipeUpdate{Ingredients: items}, apperror.ErrUnauthorized},
		{"missing recipe before author check", other, 9999, RecipeUpdate{Ingredients: items}, apperror.ErrNotFound},
		{"not the author", other, created.ID, RecipeUpdate{Ingredients: items}, apperror.ErrForbidden},
		{"no ingredients", chef, created.ID, RecipeUpdate{}, apperror.ErrValidation},
		{"empty ingredients", chef, created.ID, RecipeUpdate{Ingredients: []model.LineItem{}}, apperror.ErrValidation},
		{"blank name", chef, created.ID, RecipeUpdate{Name: &empty, Ingredients: items}, apperror.ErrValidation},
		{"bad image", chef, created.ID, RecipeUpdate{Image: &empty, Ingredients: items}, apperror.ErrValidation},
		{"unknown ingredient", chef, created.ID, RecipeUpdate{Ingredients: []model.LineItem{{IngredientID: 777, Amount: 1}}}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.recipes.Update(ctx, tt.actor, tt.id, tt.upd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// nothing above changed the recipe
	got, err := env.recipes.Get(ctx, access.Anonymous, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Ingredients[0].Amount)
}

// =========================================================================
// Delete
// =========================================================================

func TestRecipeDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chef := env.register(t, "chef")
	fan := env.register(t, "fan")
	ids := env.loadIngredients(t, "rice/g")
	created := env.createRecipe(t, chef, "Rice", model.LineItem{IngredientID: ids[0], Amount: 100})

	_, err := env.memberships.Add(ctx, fan, model.ListFavorite, created.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.recipes.Delete(ctx, fan, created.ID), apperror.ErrForbidden)
	assert.ErrorIs(t, env.recipes.Delete(ctx, access.Anonymous, created.ID), apperror.ErrUnauthorized)

	require.NoError(t, env.recipes.Delete(ctx, chef, created.ID))

	_, err = env.recipes.Get(ctx, access.Anonymous, created.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, env.recipes.Delete(ctx, chef, created.ID), apperror.ErrNotFound)

	fav, err := env.db.HasMembership(ctx, model.ListFavorite, fan.UserID, created.ID)
	require.NoError(t, err)
	assert.False(t, fav, "favorite should be removed with the recipe")
}

// =========================================================================
// List
// =========================================================================

func TestRecipeList_FiltersAndFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chef := env.register(t, "chef")
	other := env.register(t, "other")
	ids := env.loadIngredients(t, "rice/g")
	item := model.LineItem{IngredientID: ids[0], Amount: 1}

	first := env.createRecipe(t, chef, "First", item)
	second := env.createRecipe(t, chef, "Second", item)
	third := env.createRecipe(t, other, "Third", item)

	_, err := env.memberships.Add(ctx, other, model.ListFavorite, first.ID)
	require.NoError(t, err)
	_, err = env.memberships.Add(ctx, other, model.ListShoppingCart, second.ID)
	require.NoError(t, err)

	yes, no := true, false

	t.Run("newest first", func(t *testing.T) {
		page, err := env.recipes.List(ctx, access.Anonymous, RecipeQuery{}, repository.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Items, 3)
		assert.Equal(t, []int64{third.ID, second.ID, first.ID},
			[]int64{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})
	})

	t.Run("by author", func(t *testing.T) {
		page, err := env.recipes.List(ctx, access.Anonymous, RecipeQuery{AuthorID: chef.UserID}, repository.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("favorited", func(t *testing.T) {
		page, err := env.recipes.List(ctx, other, RecipeQuery{IsFavorited: &yes}, repository.ListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, first.ID, page.Items[0].ID)
		assert.True(t, page.Items[0].IsFavorited)
	})

	t.Run("not in cart", func(t *testing.T) {
		page, err := env.recipes.List(ctx, other, RecipeQuery{IsInShoppingCart: &no}, repository.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("membership filters ignored for anonymous", func(t *testing.T) {
		page, err := env.recipes.List(ctx, access.Anonymous, RecipeQuery{IsFavorited: &yes}, repository.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		for _, v := range page.Items {
			assert.False(t, v.IsFavorited)
		}
	})

	t.Run("paged", func(t *testing.T) {
		page, err := env.recipes.List(ctx, access.Anonymous, RecipeQuery{}, repository.ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, first.ID, page.Items[0].ID)
	})
}

// =========================================================================
// Short links
// =========================================================================

func TestRecipeShortLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chef := env.register(t, "chef")
	ids := env.loadIngredients(t, "rice/g")
	created := env.createRecipe(t, chef, "Rice", model.LineItem{IngredientID: ids[0], Amount: 1})

	link, err := env.recipes.ShortLink(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "http://test/s/"))

	id, err := env.recipes.ResolveShortLink(ctx, strings.TrimPrefix(link, "http://test/s/"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)

	_, err = env.recipes.ShortLink(ctx, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = env.recipes.ResolveShortLink(ctx, "!!")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
