package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/foodgram/internal/access"
	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// RecipeDraft is the input of Create. Image is a base64 data URI.
type RecipeDraft struct {
	Name        string           `json:"name" validate:"required,max=256"`
	Text        string           `json:"text" validate:"required"`
	CookingTime int              `json:"cooking_time" validate:"gte=1,lte=32000"`
	Image       string           `json:"image"`
	Ingredients []model.LineItem `json:"ingredients" validate:"min=1,dive"`
}

// RecipeUpdate is the input of Update. Header fields are optional; the
// ingredient list is not, and replaces the stored one entirely.
type RecipeUpdate struct {
	Name        *string          `json:"name" validate:"omitnil,min=1,max=256"`
	Text        *string          `json:"text" validate:"omitnil,min=1"`
	CookingTime *int             `json:"cooking_time" validate:"omitnil,gte=1,lte=32000"`
	Image       *string          `json:"image"`
	Ingredients []model.LineItem `json:"ingredients" validate:"min=1,dive"`
}

// RecipeQuery holds the list filters. Membership filters only apply to
// authenticated actors.
type RecipeQuery struct {
	AuthorID         int64
	IsFavorited      *bool
	IsInShoppingCart *bool
}

// ValidateDraft checks a draft without touching storage:
//   - image present
//   - name and text present, name at most 256 characters
//   - cooking_time within [1, 32000]
//   - at least one ingredient, each amount within [1, 32000]
//   - no ingredient id repeated
func ValidateDraft(d RecipeDraft) error {
	if strings.TrimSpace(d.Image) == "" {
		return apperror.ValidationFailed("image", "image is required")
	}
	if err := validateStruct(d); err != nil {
		return err
	}
	return checkDuplicateIngredients(d.Ingredients)
}

func checkDuplicateIngredients(items []model.LineItem) error {
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if seen[it.IngredientID] {
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("ingredient %d is listed more than once", it.IngredientID))
		}
		seen[it.IngredientID] = true
	}
	return nil
}

// RecipeService implements recipe authoring and reading.
type RecipeService struct {
	recipes     repository.RecipeRepository
	ingredients repository.IngredientRepository
	users       repository.UserRepository
	memberships repository.MembershipRepository
	images      imagestore.Store
	present     presenter
	baseURL     string
	logger      *slog.Logger
}

func NewRecipeService(
	recipes repository.RecipeRepository,
	ingredients repository.IngredientRepository,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	subs repository.SubscriptionRepository,
	images imagestore.Store,
	baseURL string,
	logger *slog.Logger,
) *RecipeService {
	return &RecipeService{
		recipes:     recipes,
		ingredients: ingredients,
		users:       users,
		memberships: memberships,
		images:      images,
		present:     presenter{subs: subs, images: images},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

// Validate runs ValidateDraft and checks that every ingredient exists.
func (s *RecipeService) Validate(ctx context.Context, d RecipeDraft) error {
	if err := ValidateDraft(d); err != nil {
		return err
	}
	return s.checkIngredientsExist(ctx, d.Ingredients)
}

func (s *RecipeService) checkIngredientsExist(ctx context.Context, items []model.LineItem) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.IngredientID
	}
	missing, err := s.ingredients.MissingIngredients(ctx, ids)
	if err != nil {
		return fmt.Errorf("checking ingredients: %w", err)
	}
	if len(missing) > 0 {
		return apperror.ValidationFailed("ingredients",
			fmt.Sprintf("ingredient %d does not exist", missing[0]))
	}
	return nil
}

// Create validates the draft, stores the image and persists the recipe with
// its line items atomically. The recipe is public as soon as it exists.
func (s *RecipeService) Create(ctx context.Context, actor access.Actor, d RecipeDraft) (*model.RecipeView, error) {
	if err := access.CheckCollection(actor, access.ActionCreate); err != nil {
		return nil, err
	}

	d.Name = strings.TrimSpace(d.Name)
	d.Text = strings.TrimSpace(d.Text)
	if err := s.Validate(ctx, d); err != nil {
		return nil, err
	}

	img, err := imagestore.DecodeDataURI("image", d.Image)
	if err != nil {
		return nil, err
	}
	key, err := s.images.Save(ctx, imagestore.FolderRecipes, img)
	if err != nil {
		s.logger.Error("failed to store recipe image", slog.String("error", err.Error()))
		return nil, fmt.Errorf("storing recipe image: %w", err)
	}

	recipe := &model.Recipe{
		AuthorID:    actor.UserID,
		Name:        d.Name,
		Text:        d.Text,
		CookingTime: d.CookingTime,
		Image:       key,
		Ingredients: d.Ingredients,
	}
	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		s.discardImage(ctx, key)
		if !isDomainError(err) {
			s.logger.Error("failed to create recipe",
				slog.Int64("author_id", actor.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", recipe.ID),
		slog.Int64("author_id", recipe.AuthorID),
		slog.Int("ingredients", len(recipe.Ingredients)),
	)

	return s.view(ctx, actor, *recipe)
}

// Update applies u to the recipe. Only the author may update; the ingredient
// list is mandatory and replaces the previous one.
func (s *RecipeService) Update(ctx context.Context, actor access.Actor, id int64, u RecipeUpdate) (*model.RecipeView, error) {
	recipe, err := s.authorize(ctx, actor, access.ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	if u.Ingredients == nil {
		return nil, apperror.ValidationFailed("ingredients", "ingredients required for update")
	}
	if u.Name != nil {
		trimmed := strings.TrimSpace(*u.Name)
		u.Name = &trimmed
	}
	if u.Text != nil {
		trimmed := strings.TrimSpace(*u.Text)
		u.Text = &trimmed
	}
	if err := validateStruct(u); err != nil {
		return nil, err
	}
	if err := checkDuplicateIngredients(u.Ingredients); err != nil {
		return nil, err
	}
	if err := s.checkIngredientsExist(ctx, u.Ingredients); err != nil {
		return nil, err
	}

	oldImage := recipe.Image
	if u.Image != nil {
		img, err := imagestore.DecodeDataURI("image", *u.Image)
		if err != nil {
			return nil, err
		}
		key, err := s.images.Save(ctx, imagestore.FolderRecipes, img)
		if err != nil {
			return nil, fmt.Errorf("storing recipe image: %w", err)
		}
		recipe.Image = key
	}
	if u.Name != nil {
		recipe.Name = *u.Name
	}
	if u.Text != nil {
		recipe.Text = *u.Text
	}
	if u.CookingTime != nil {
		recipe.CookingTime = *u.CookingTime
	}
	recipe.Ingredients = u.Ingredients

	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		if recipe.Image != oldImage {
			s.discardImage(ctx, recipe.Image)
		}
		if !isDomainError(err) {
			s.logger.Error("failed to update recipe",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating recipe %d: %w", id, err)
	}
	if recipe.Image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	s.logger.Info("recipe updated", slog.Int64("id", id))

	return s.view(ctx, actor, *recipe)
}

// Delete removes the recipe; favorites, cart entries and line items go with
// it.
func (s *RecipeService) Delete(ctx context.Context, actor access.Actor, id int64) error {
	recipe, err := s.authorize(ctx, actor, access.ActionDelete, id)
	if err != nil {
		return err
	}

	if err := s.recipes.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("deleting recipe %d: %w", id, err)
	}
	s.discardImage(ctx, recipe.Image)

	s.logger.Info("recipe deleted", slog.Int64("id", id), slog.Int64("author_id", recipe.AuthorID))
	return nil
}

// Get returns the full view of one recipe. Anonymous actors are allowed.
func (s *RecipeService) Get(ctx context.Context, actor access.Actor, id int64) (*model.RecipeView, error) {
	recipe, err := s.recipes.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, actor, *recipe)
}

// List returns one page of recipes, newest first.
func (s *RecipeService) List(ctx context.Context, actor access.Actor, q RecipeQuery, opts repository.ListOptions) (model.Page[model.RecipeView], error) {
	filter := repository.RecipeFilter{AuthorID: q.AuthorID}
	if actor.Authenticated() {
		filter.ViewerID = actor.UserID
		filter.IsFavorited = q.IsFavorited
		filter.IsInShoppingCart = q.IsInShoppingCart
	}

	recipes, total, err := s.recipes.ListRecipes(ctx, filter, opts)
	if err != nil {
		return model.Page[model.RecipeView]{}, fmt.Errorf("listing recipes: %w", err)
	}

	views, err := s.views(ctx, actor, recipes)
	if err != nil {
		return model.Page[model.RecipeView]{}, err
	}
	return model.Page[model.RecipeView]{Items: views, Total: total}, nil
}

// ShortLink returns the shareable link of an existing recipe.
func (s *RecipeService) ShortLink(ctx context.Context, id int64) (string, error) {
	if _, err := s.recipes.GetRecipe(ctx, id); err != nil {
		return "", err
	}
	return s.baseURL + "/s/" + strconv.FormatInt(id, 36), nil
}

// ResolveShortLink maps a short link code back to a recipe id.
func (s *RecipeService) ResolveShortLink(ctx context.Context, code string) (int64, error) {
	id, err := strconv.ParseInt(strings.ToLower(code), 36, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("short link", code)
	}
	if _, err := s.recipes.GetRecipe(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *RecipeService) view(ctx context.Context, actor access.Actor, r model.Recipe) (*model.RecipeView, error) {
	views, err := s.views(ctx, actor, []model.Recipe{r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views builds RecipeViews for a batch, loading authors and membership flags
// once per batch.
func (s *RecipeService) views(ctx context.Context, actor access.Actor, recipes []model.Recipe) ([]model.RecipeView, error) {
	ids := make([]int64, len(recipes))
	var authors []model.User
	seenAuthor := map[int64]bool{}
	for i, r := range recipes {
		ids[i] = r.ID
		if seenAuthor[r.AuthorID] {
			continue
		}
		seenAuthor[r.AuthorID] = true
		u, err := s.users.GetUserByID(ctx, r.AuthorID)
		if err != nil {
			return nil, fmt.Errorf("loading author of recipe %d: %w", r.ID, err)
		}
		authors = append(authors, *u)
	}

	profiles, err := s.present.profiles(ctx, actor, authors)
	if err != nil {
		return nil, err
	}
	byAuthor := make(map[int64]model.Profile, len(profiles))
	for _, p := range profiles {
		byAuthor[p.ID] = p
	}

	favorited, err := s.memberships.MemberRecipes(ctx, model.ListFavorite, actor.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	inCart, err := s.memberships.MemberRecipes(ctx, model.ListShoppingCart, actor.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading shopping cart: %w", err)
	}

	views := make([]model.RecipeView, len(recipes))
	for i, r := range recipes {
		ingredients, err := s.recipes.RecipeIngredients(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("loading ingredients of recipe %d: %w", r.ID, err)
		}
		views[i] = model.RecipeView{
			ID:               r.ID,
			Author:           byAuthor[r.AuthorID],
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            s.images.URL(r.Image),
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		}
	}
	return views, nil
}

// discardImage removes a stored image that is no longer referenced. Failures
// only leave an orphaned file, so they are logged and ignored.
// authorize loads recipe id for an update or delete by actor.
func (s *RecipeService) authorize(ctx context.Context, actor access.Actor, action access.Action, id int64) (*model.Recipe, error) {
	var recipe *model.Recipe
	err := access.Check(actor, action, func() (int64, error) {
		r, err := s.recipes.GetRecipe(ctx, id)
		if err != nil {
			return 0, err
		}
		recipe = r
		return r.AuthorID, nil
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// isDomainError reports whether err is an *apperror.AppError rather than an
// infrastructure failure.
func isDomainError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
