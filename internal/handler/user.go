package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/service"
)

// UserHandler serves /api/users: accounts, profiles, avatars and
// subscriptions.
type UserHandler struct {
	users         *service.UserService
	subscriptions *service.SubscriptionService
	pageSize      int
	logger        *slog.Logger
}

func NewUserHandler(
	users *service.UserService,
	subscriptions *service.SubscriptionService,
	pageSize int,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:         users,
		subscriptions: subscriptions,
		pageSize:      pageSize,
		logger:        logger,
	}
}

// HTTP: GET /api/users?page=&limit=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, h.pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.users.List(r.Context(), auth.ActorFromContext(r.Context()), p.options())
	if err != nil {
		writeError(w, err)
		return
	}
	writePage(w, r, p, page)
}

// HandleRegister creates an account. The response carries neither avatar
// nor is_subscribed.
//
// HTTP: POST /api/users
// REQUEST BODY: {"email", "username", "first_name", "last_name", "password"}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HTTP: GET /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Me(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.users.Get(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HTTP: PUT /api/users/me/avatar
// REQUEST BODY: {"avatar": "data:image/png;base64,..."}
func (h *UserHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	url, err := h.users.SetAvatar(r.Context(), auth.ActorFromContext(r.Context()), body.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar": url})
}

// HTTP: DELETE /api/users/me/avatar
func (h *UserHandler) HandleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteAvatar(r.Context(), auth.ActorFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/users/set_password
// REQUEST BODY: {"current_password", "new_password"}
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	err := h.users.SetPassword(r.Context(), auth.ActorFromContext(r.Context()), body.CurrentPassword, body.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubscriptions lists the authors the caller follows.
//
// HTTP: GET /api/users/subscriptions?page=&limit=&recipes_limit=
func (h *UserHandler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, h.pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	recipesLimit := parseRecipesLimit(r)

	page, err := h.subscriptions.List(r.Context(), auth.ActorFromContext(r.Context()), p.options(), recipesLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writePage(w, r, p, page)
}

// HTTP: POST /api/users/{id}/subscribe?recipes_limit=
func (h *UserHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	recipesLimit := parseRecipesLimit(r)

	author, err := h.subscriptions.Subscribe(r.Context(), auth.ActorFromContext(r.Context()), id, recipesLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, author)
}

// HTTP: DELETE /api/users/{id}/subscribe
func (h *UserHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.subscriptions.Unsubscribe(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRecipesLimit reads ?recipes_limit=. Anything but a non-negative
// integer means no limit.
func parseRecipesLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("recipes_limit"))
	if err != nil || n < 0 {
		return service.AllRecipes
	}
	return n
}
