package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/foodgram/internal/access"
)

// contextKey is package-private so no other package can read or shadow the
// values stored here.
type contextKey string

const actorKey contextKey = "actor"

// CookieName is the HttpOnly cookie set by the GitHub login callback.
const CookieName = "token"

var errNoCredentials = errors.New("auth: no credentials")

// OptionalAuth resolves the caller if a valid token is present and never
// blocks the request. Anonymous and invalid-token requests continue with
// access.Anonymous; the service layer decides whether that is enough.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithActor(r.Context(), access.User(userID)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid token with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "authentication credentials were not provided",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), access.User(userID))))
		})
	}
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the caller stored by the middleware, or
// access.Anonymous.
func ActorFromContext(ctx context.Context) access.Actor {
	actor, ok := ctx.Value(actorKey).(access.Actor)
	if !ok {
		return access.Anonymous
	}
	return actor
}

// extractUserID reads the token from the Authorization header
// ("Token <jwt>" or "Bearer <jwt>") and falls back to the cookie.
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	if raw := r.Header.Get("Authorization"); raw != "" {
		scheme, token, ok := strings.Cut(raw, " ")
		if !ok {
			return 0, errNoCredentials
		}
		switch strings.ToLower(scheme) {
		case "token", "bearer":
			return tokens.Validate(strings.TrimSpace(token))
		default:
			return 0, errNoCredentials
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, errNoCredentials
	}
	return tokens.Validate(cookie.Value)
}
