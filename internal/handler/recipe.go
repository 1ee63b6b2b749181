package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/service"
)

// RecipeHandler serves /api/recipes, the favorite and shopping cart
// sub-resources, the shopping list download and short links.
type RecipeHandler struct {
	recipes      *service.RecipeService
	memberships  *service.MembershipService
	shoppingList *service.ShoppingListService
	pageSize     int
	logger       *slog.Logger
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	memberships *service.MembershipService,
	shoppingList *service.ShoppingListService,
	pageSize int,
	logger *slog.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:      recipes,
		memberships:  memberships,
		shoppingList: shoppingList,
		pageSize:     pageSize,
		logger:       logger,
	}
}

// HandleList returns one page of recipes, newest first.
//
// HTTP: GET /api/recipes?author=&is_favorited=0|1&is_in_shopping_cart=0|1&page=&limit=
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, h.pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := parseRecipeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.recipes.List(r.Context(), auth.ActorFromContext(r.Context()), q, p.options())
	if err != nil {
		writeError(w, err)
		return
	}
	writePage(w, r, p, page)
}

func parseRecipeQuery(r *http.Request) (service.RecipeQuery, error) {
	var q service.RecipeQuery
	values := r.URL.Query()

	if raw := values.Get("author"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return q, apperror.ValidationFailed("author", "author must be a user id")
		}
		q.AuthorID = id
	}

	flags := []struct {
		name string
		dst  **bool
	}{
		{"is_favorited", &q.IsFavorited},
		{"is_in_shopping_cart", &q.IsInShoppingCart},
	}
	for _, f := range flags {
		raw := values.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperror.ValidationFailed(f.name, f.name+" must be 0 or 1")
		}
		*f.dst = &v
	}
	return q, nil
}

// HandleCreate publishes a new recipe.
//
// HTTP: POST /api/recipes
// REQUEST BODY: {"name", "text", "cooking_time", "image": "data:image/png;base64,...",
// "ingredients": [{"id", "amount"}]}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft service.RecipeDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Create(r.Context(), auth.ActorFromContext(r.Context()), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HTTP: GET /api/recipes/{id}
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Get(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdate applies a partial update. The ingredient list is required.
//
// HTTP: PATCH /api/recipes/{id}
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var upd service.RecipeUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Update(r.Context(), auth.ActorFromContext(r.Context()), id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HTTP: DELETE /api/recipes/{id}
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.recipes.Delete(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/recipes/{id}/get-link
func (h *RecipeHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.recipes.ShortLink(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"short-link": link})
}

// HandleShortLink redirects a short link to the recipe page.
//
// HTTP: GET /s/{code}
func (h *RecipeHandler) HandleShortLink(w http.ResponseWriter, r *http.Request) {
	id, err := h.recipes.ResolveShortLink(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/recipes/"+strconv.FormatInt(id, 10), http.StatusFound)
}

// HandleAddTo returns the handler for POST /api/recipes/{id}/favorite or
// /shopping_cart, depending on kind.
func (h *RecipeHandler) HandleAddTo(kind model.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		summary, err := h.memberships.Add(r.Context(), auth.ActorFromContext(r.Context()), kind, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, summary)
	}
}

// HandleRemoveFrom is the DELETE counterpart of HandleAddTo.
func (h *RecipeHandler) HandleRemoveFrom(kind model.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		if err := h.memberships.Remove(r.Context(), auth.ActorFromContext(r.Context()), kind, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDownloadShoppingCart sends the aggregated shopping list as a text
// attachment.
//
// HTTP: GET /api/recipes/download_shopping_cart
func (h *RecipeHandler) HandleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	text, err := h.shoppingList.Export(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shopping_list.txt"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Error("failed to write shopping list", slog.String("error", err.Error()))
	}
}
