package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/model"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type testServer struct {
	*httptest.Server
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.JWTSecret = "test-secret-at-least-16-chars!!"
	cfg.PageSize = 2
	cfg.Media.Dir = t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &testServer{Server: ts, srv: srv}
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Redirects are not followed.
func (ts *testServer) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// signup registers username and returns its id and token.
func (ts *testServer) signup(t *testing.T, username string) (int64, string) {
	t.Helper()

	var user model.User
	resp := ts.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "Test",
		"last_name":  "User",
		"password":   "s3cret-pass",
	}, &user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login struct {
		AuthToken string `json:"auth_token"`
	}
	resp = ts.do(t, http.MethodPost, "/api/auth/token/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": "s3cret-pass",
	}, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, login.AuthToken)
	return user.ID, login.AuthToken
}

func (ts *testServer) ingredient(t *testing.T, name, unit string) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := ts.srv.db.InsertIngredients(ctx, []model.Ingredient{{Name: name, MeasurementUnit: unit}})
	require.NoError(t, err)

	var found []model.Ingredient
	ts.do(t, http.MethodGet, "/api/ingredients?name="+name, "", nil, &found)
	for _, f := range found {
		if f.Name == name && f.MeasurementUnit == unit {
			return f.ID
		}
	}
	t.Fatalf("ingredient %s/%s not found", name, unit)
	return 0
}

func recipeBody(name string, ingredientID int64, amount int) map[string]any {
	return map[string]any{
		"name":         name,
		"text":         "Cook it.",
		"cooking_time": 10,
		"image":        pngDataURI,
		"ingredients":  []map[string]any{{"id": ingredientID, "amount": amount}},
	}
}

func TestRecipeLifecycle(t *testing.T) {
	ts := newTestServer(t)
	chefID, chef := ts.signup(t, "chef")
	_, fan := ts.signup(t, "fan")
	flour := ts.ingredient(t, "flour", "g")

	// create
	var created model.RecipeView
	resp := ts.do(t, http.MethodPost, "/api/recipes", chef, recipeBody("Bread", flour, 500), &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, chefID, created.Author.ID)
	recipePath := "/api/recipes/" + strconv.FormatInt(created.ID, 10)

	// anonymous create is rejected
	resp = ts.do(t, http.MethodPost, "/api/recipes", "", recipeBody("Nope", flour, 1), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// validation errors name the field
	var verr struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	bad := recipeBody("Bad", flour, 0)
	resp = ts.do(t, http.MethodPost, "/api/recipes", chef, bad, &verr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", verr.Error)
	assert.Equal(t, "ingredients[0].amount", verr.Field)

	// the image is served
	imgPath := strings.TrimPrefix(created.Image, "http://localhost:8080")
	resp = ts.do(t, http.MethodGet, imgPath, "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// read
	var got model.RecipeView
	resp = ts.do(t, http.MethodGet, recipePath, fan, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bread", got.Name)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, 500, got.Ingredients[0].Amount)

	// favorites
	var summary model.RecipeSummary
	resp = ts.do(t, http.MethodPost, recipePath+"/favorite", fan, nil, &summary)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, created.ID, summary.ID)
	resp = ts.do(t, http.MethodPost, recipePath+"/favorite", fan, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, recipePath, fan, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.IsFavorited)

	resp = ts.do(t, http.MethodDelete, recipePath+"/favorite", fan, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, recipePath+"/favorite", fan, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/recipes/9999/favorite", fan, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// shopping cart download
	resp = ts.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", fan, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, recipePath+"/shopping_cart", fan, nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", fan, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "shopping_list.txt")
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "flour: 500 g", string(text))

	// short link
	var link map[string]string
	resp = ts.do(t, http.MethodGet, recipePath+"/get-link", "", nil, &link)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	short := strings.TrimPrefix(link["short-link"], "http://localhost:8080")
	resp = ts.do(t, http.MethodGet, short, "", nil, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/recipes/"+strconv.FormatInt(created.ID, 10), resp.Header.Get("Location"))

	// update: author only
	upd := map[string]any{"ingredients": []map[string]any{{"id": flour, "amount": 250}}}
	resp = ts.do(t, http.MethodPatch, recipePath, fan, upd, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(t, http.MethodPatch, recipePath, chef, map[string]any{"name": "Loaf"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(t, http.MethodPatch, recipePath, chef, upd, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bread", got.Name)
	assert.Equal(t, 250, got.Ingredients[0].Amount)

	// delete
	resp = ts.do(t, http.MethodDelete, recipePath, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, recipePath, fan, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, recipePath, chef, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, recipePath, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the cart entry went with the recipe
	resp = ts.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", fan, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecipeListPagination(t *testing.T) {
	ts := newTestServer(t)
	_, chef := ts.signup(t, "chef")
	rice := ts.ingredient(t, "rice", "g")
	for _, name := range []string{"One", "Two", "Three"} {
		resp := ts.do(t, http.MethodPost, "/api/recipes", chef, recipeBody(name, rice, 100), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var page struct {
		Count    int                `json:"count"`
		Next     *string            `json:"next"`
		Previous *string            `json:"previous"`
		Results  []model.RecipeView `json:"results"`
	}
	resp := ts.do(t, http.MethodGet, "/api/recipes", "", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "Three", page.Results[0].Name)
	assert.Nil(t, page.Previous)
	require.NotNil(t, page.Next)
	assert.Equal(t, ts.URL+"/api/recipes?page=2", *page.Next)

	resp = ts.do(t, http.MethodGet, "/api/recipes?page=2", "", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "One", page.Results[0].Name)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, ts.URL+"/api/recipes", *page.Previous)

	resp = ts.do(t, http.MethodGet, "/api/recipes?page=3", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/recipes?limit=10", "", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Results, 3)
}

func TestUsersAndSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	chefID, chef := ts.signup(t, "chef")
	fanID, fan := ts.signup(t, "fan")
	rice := ts.ingredient(t, "rice", "g")
	resp := ts.do(t, http.MethodPost, "/api/recipes", chef, recipeBody("Rice", rice, 100), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	chefPath := "/api/users/" + strconv.FormatInt(chefID, 10)

	// duplicate registration
	resp = ts.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email": "chef@example.com", "username": "chef2", "first_name": "A", "last_name": "B", "password": "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// me
	var me model.Profile
	resp = ts.do(t, http.MethodGet, "/api/users/me", fan, nil, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fanID, me.ID)
	resp = ts.do(t, http.MethodGet, "/api/users/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// an invalid token is treated as anonymous on public routes
	resp = ts.do(t, http.MethodGet, "/api/recipes", "garbage", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// subscribe
	var author model.AuthorProfile
	resp = ts.do(t, http.MethodPost, chefPath+"/subscribe?recipes_limit=1", fan, nil, &author)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, author.IsSubscribed)
	assert.Equal(t, 1, author.RecipesCount)
	require.Len(t, author.Recipes, 1)

	resp = ts.do(t, http.MethodPost, chefPath+"/subscribe", fan, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/users/"+strconv.FormatInt(fanID, 10)+"/subscribe", fan, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/users/9999/subscribe", fan, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var profile model.Profile
	resp = ts.do(t, http.MethodGet, chefPath, fan, nil, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, profile.IsSubscribed)

	var subs struct {
		Count   int                   `json:"count"`
		Results []model.AuthorProfile `json:"results"`
	}
	resp = ts.do(t, http.MethodGet, "/api/users/subscriptions", fan, nil, &subs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, subs.Count)

	// a malformed recipes_limit means no limit
	resp = ts.do(t, http.MethodGet, "/api/users/subscriptions?recipes_limit=x", fan, nil, &subs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, subs.Results, 1)
	assert.Len(t, subs.Results[0].Recipes, 1)

	resp = ts.do(t, http.MethodDelete, chefPath+"/subscribe", fan, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, chefPath+"/subscribe", fan, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// avatar
	var avatar map[string]string
	resp = ts.do(t, http.MethodPut, "/api/users/me/avatar", fan, map[string]string{"avatar": pngDataURI}, &avatar)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, avatar["avatar"], "/media/users/")
	resp = ts.do(t, http.MethodDelete, "/api/users/me/avatar", fan, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// password
	resp = ts.do(t, http.MethodPost, "/api/users/set_password", fan, map[string]string{
		"current_password": "s3cret-pass", "new_password": "another-pass",
	}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/auth/token/login", "", map[string]string{
		"email": "fan@example.com", "password": "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// logout
	resp = ts.do(t, http.MethodPost, "/api/auth/token/logout", fan, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/auth/token/logout", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOperationalRoutes(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])

	ts.do(t, http.MethodGet, "/api/ingredients", "", nil, nil)

	resp = ts.do(t, http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `foodgram_http_requests_total{method="GET",route="/api/ingredients",status="200"} 1`)

	// GitHub login is off without client credentials
	resp = ts.do(t, http.MethodGet, "/auth/github/login", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
