// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New opens the database, builds the
// image store, services and handlers, and wires them to routes. main.go only
// loads the configuration and calls Start.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/middleware"
	"github.com/sakif/foodgram/internal/model"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

// Server represents the HTTP server and all its dependencies. It owns the
// database connection, which is closed when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server from cfg.
//
// Each layer only receives what it needs:
//   - services get repository interfaces (the *sqlite.DB implements them all)
//   - handlers get services
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection.
func (s *Server) Close() error {
	return s.db.Close()
}

// newImageStore builds the configured image store. The local store is also
// returned so its directory can be served under the media URL.
func newImageStore(ctx context.Context, cfg config.Config) (imagestore.Store, *imagestore.LocalStore, error) {
	if cfg.Media.Backend == config.ImageBackendS3 {
		store, err := imagestore.NewS3Store(ctx, imagestore.S3Config{
			Bucket:    cfg.Media.S3.Bucket,
			Region:    cfg.Media.S3.Region,
			AccessKey: cfg.Media.S3.AccessKey,
			SecretKey: cfg.Media.S3.SecretKey,
			Endpoint:  cfg.Media.S3.Endpoint,
			PublicURL: cfg.Media.S3.PublicURL,
		})
		return store, nil, err
	}

	prefix := cfg.Media.URL
	if strings.HasPrefix(prefix, "/") {
		prefix = strings.TrimSuffix(cfg.BaseURL, "/") + prefix
	}
	local, err := imagestore.NewLocalStore(cfg.Media.Dir, prefix)
	return local, local, err
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP, Recoverer (chi)
//  2. Logger, Metrics: see the final status and the matched route
//  3. CORS
//  4. OptionalAuth: puts the caller's access.Actor in the context; an
//     invalid or missing token leaves the caller anonymous
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	images, local, err := newImageStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("creating image store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(registry)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware)
	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	s.router.Use(auth.OptionalAuth(tokens))

	// === Services ===
	db := s.db
	userService := service.NewUserService(db, db, tokens, passwords, images, s.logger)
	ingredientService := service.NewIngredientService(db, s.logger)
	recipeService := service.NewRecipeService(db, db, db, db, db, images, cfg.BaseURL, s.logger)
	membershipService := service.NewMembershipService(db, db, images, s.logger)
	shoppingListService := service.NewShoppingListService(db, s.logger)
	subscriptionService := service.NewSubscriptionService(db, db, db, images, s.logger)

	// === Handlers ===
	var github *auth.GitHubProvider
	if cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}
	authHandler := handler.NewAuthHandler(userService, github, tokens.TTL(), s.logger)
	userHandler := handler.NewUserHandler(userService, subscriptionService, cfg.PageSize, s.logger)
	ingredientHandler := handler.NewIngredientHandler(ingredientService)
	recipeHandler := handler.NewRecipeHandler(recipeService, membershipService, shoppingListService, cfg.PageSize, s.logger)

	// === Operational Routes ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if local != nil && strings.HasPrefix(cfg.Media.URL, "/") {
		mount := "/" + strings.Trim(cfg.Media.URL, "/") + "/"
		fileServer := http.FileServer(http.Dir(local.Dir()))
		s.router.Handle(mount+"*", http.StripPrefix(mount, fileServer))
	}

	s.router.Get("/s/{code}", recipeHandler.HandleShortLink)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub login disabled (GITHUB_CLIENT_ID not set)")
	}

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/token/login", authHandler.HandleTokenLogin)
		r.With(auth.RequireAuth(tokens)).Post("/auth/token/logout", authHandler.HandleTokenLogout)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleRegister)
			r.Get("/me", userHandler.HandleMe)
			r.Put("/me/avatar", userHandler.HandleSetAvatar)
			r.Delete("/me/avatar", userHandler.HandleDeleteAvatar)
			r.Post("/set_password", userHandler.HandleSetPassword)
			r.Get("/subscriptions", userHandler.HandleSubscriptions)
			r.Get("/{id}", userHandler.HandleGet)
			r.Post("/{id}/subscribe", userHandler.HandleSubscribe)
			r.Delete("/{id}/subscribe", userHandler.HandleUnsubscribe)
		})

		r.Get("/ingredients", ingredientHandler.HandleList)
		r.Get("/ingredients/{id}", ingredientHandler.HandleGet)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.HandleList)
			r.Post("/", recipeHandler.HandleCreate)
			r.Get("/download_shopping_cart", recipeHandler.HandleDownloadShoppingCart)
			r.Get("/{id}", recipeHandler.HandleGet)
			r.Patch("/{id}", recipeHandler.HandleUpdate)
			r.Delete("/{id}", recipeHandler.HandleDelete)
			r.Get("/{id}/get-link", recipeHandler.HandleGetLink)
			r.Post("/{id}/favorite", recipeHandler.HandleAddTo(model.ListFavorite))
			r.Delete("/{id}/favorite", recipeHandler.HandleRemoveFrom(model.ListFavorite))
			r.Post("/{id}/shopping_cart", recipeHandler.HandleAddTo(model.ListShoppingCart))
			r.Delete("/{id}/shopping_cart", recipeHandler.HandleRemoveFrom(model.ListShoppingCart))
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("media", s.config.Media.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
