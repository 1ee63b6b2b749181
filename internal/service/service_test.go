package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository/sqlite"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// testEnv wires every service to one in-memory database and a local image
// store in a temp directory.
type testEnv struct {
	db     *sqlite.DB
	images *imagestore.LocalStore
	tokens *auth.TokenService

	users         *UserService
	ingredients   *IngredientService
	recipes       *RecipeService
	memberships   *MembershipService
	shoppingList  *ShoppingListService
	subscriptions *SubscriptionService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := imagestore.NewLocalStore(t.TempDir(), "http://test/media/")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)

	logger := discardLogger()
	return &testEnv{
		db:            db,
		images:        images,
		tokens:        tokens,
		users:         NewUserService(db, db, tokens, passwords, images, logger),
		ingredients:   NewIngredientService(db, logger),
		recipes:       NewRecipeService(db, db, db, db, db, images, "http://test", logger),
		memberships:   NewMembershipService(db, db, images, logger),
		shoppingList:  NewShoppingListService(db, logger),
		subscriptions: NewSubscriptionService(db, db, db, images, logger),
	}
}

// register creates a user with password "s3cret-pass" and returns its actor.
func (e *testEnv) register(t *testing.T, username string) access.Actor {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)
	return access.User(u.ID)
}

// loadIngredients loads the given "name/unit" pairs and returns their ids in
// order.
func (e *testEnv) loadIngredients(t *testing.T, pairs ...string) []int64 {
	t.Helper()
	var b strings.Builder
	b.WriteString("[")
	for i, p := range pairs {
		name, unit, _ := strings.Cut(p, "/")
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"name":"` + name + `","measurement_unit":"` + unit + `"}`)
	}
	b.WriteString("]")
	_, err := e.ingredients.Load(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)

	ids := make([]int64, len(pairs))
	for i, p := range pairs {
		name, unit, _ := strings.Cut(p, "/")
		found, err := e.ingredients.Search(context.Background(), name)
		require.NoError(t, err)
		for _, f := range found {
			if f.Name == name && f.MeasurementUnit == unit {
				ids[i] = f.ID
			}
		}
		require.NotZero(t, ids[i], "ingredient %s not loaded", p)
	}
	return ids
}

func (e *testEnv) createRecipe(t *testing.T, actor access.Actor, name string, items ...model.LineItem) *model.RecipeView {
	t.Helper()
	v, err := e.recipes.Create(context.Background(), actor, RecipeDraft{
		Name:        name,
		Text:        "Mix and bake.",
		CookingTime: 30,
		Image:       pngDataURI,
		Ingredients: items,
	})
	require.NoError(t, err)
	return v
}
