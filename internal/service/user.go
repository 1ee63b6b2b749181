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
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/imagestore"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

const errBadCredentials = "unable to log in with provided credentials"

// maxGitHubUsernameAttempts bounds the suffixed usernames tried for a new
// GitHub account.
const maxGitHubUsernameAttempts = 5

// RegisterInput is the body of POST /api/users.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,bcryptmax"`
}

type setPasswordInput struct {
	NewPassword string `json:"new_password" validate:"required,min=8,bcryptmax"`
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// UserService owns accounts: registration, both login flows, profiles,
// passwords and avatars.
//
//	UserHandler (HTTP) → UserService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	images    imagestore.Store
	present   presenter
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	images imagestore.Store,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		images:    images,
		present:   presenter{subs: subs, images: images},
		logger:    logger,
	}
}

// Register creates an account with a password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks email and password and issues a token. Unknown email and
// wrong password are reported identically.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", apperror.ValidationFailed("", errBadCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.ValidationFailed("", errBadCredentials)
		}
		return "", fmt.Errorf("service/user: looking up %q: %w", email, err)
	}
	if user.PasswordHash == "" {
		return "", apperror.ValidationFailed("", errBadCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return "", apperror.ValidationFailed("", errBadCredentials)
		}
		return "", fmt.Errorf("service/user: verifying password: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("service/user: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return token, nil
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// A known GitHub id logs in its user. Otherwise an account with the same
// email gets the GitHub id linked to it. Otherwise a new password-less
// account is created: username is the GitHub login (suffixed with the GitHub
// id when taken), email falls back to the noreply address.
func (s *UserService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/user: GitHub user must not be nil")
	}

	user, err := s.githubAccount(ctx, gh)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) githubAccount(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/user: looking up github id %d: %w", gh.ID, err)
	}

	email := gh.Email
	if email == "" {
		email = gh.Login + "@users.noreply.github.com"
	}

	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkGitHub(ctx, user.ID, gh.ID); err != nil {
			return nil, err
		}
		user.GitHubID = &gh.ID
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/user: looking up %q: %w", email, err)
	}

	first, last, _ := strings.Cut(strings.TrimSpace(gh.Name), " ")
	for _, username := range githubUsernames(gh) {
		taken, err := s.users.UsernameTaken(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("service/user: %w", err)
		}
		if taken {
			continue
		}

		user = &model.User{
			Email:     email,
			Username:  username,
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			GitHubID:  &gh.ID,
		}
		err = s.users.CreateUser(ctx, user)
		if errors.Is(err, apperror.ErrConflict) {
			// lost a race for the username
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service/user: creating user for github id %d: %w", gh.ID, err)
		}
		return user, nil
	}

	return nil, apperror.Conflict(fmt.Sprintf("no free username for GitHub login %q", gh.Login))
}

// githubUsernames lists the usernames tried for a new GitHub account, in
// order: the login, then the login suffixed with the GitHub id and a counter.
func githubUsernames(gh *auth.GitHubUser) []string {
	base := gh.Login + "_" + strconv.FormatInt(gh.ID, 10)
	names := []string{gh.Login, base}
	for i := 2; i <= maxGitHubUsernameAttempts; i++ {
		names = append(names, base+"_"+strconv.Itoa(i))
	}
	return names
}

// Get returns the profile of user id as seen by actor.
func (s *UserService) Get(ctx context.Context, actor access.Actor, id int64) (*model.Profile, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.present.profileFor(ctx, actor, *user)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Me returns the actor's own profile.
func (s *UserService) Me(ctx context.Context, actor access.Actor) (*model.Profile, error) {
	if !actor.Authenticated() {
		return nil, apperror.Unauthorized()
	}
	return s.Get(ctx, actor, actor.UserID)
}

func (s *UserService) List(ctx context.Context, actor access.Actor, opts repository.ListOptions) (model.Page[model.Profile], error) {
	users, total, err := s.users.ListUsers(ctx, opts)
	if err != nil {
		return model.Page[model.Profile]{}, fmt.Errorf("service/user: listing users: %w", err)
	}
	profiles, err := s.present.profiles(ctx, actor, users)
	if err != nil {
		return model.Page[model.Profile]{}, err
	}
	return model.Page[model.Profile]{Items: profiles, Total: total}, nil
}

// SetPassword replaces the actor's password after checking the current one.
func (s *UserService) SetPassword(ctx context.Context, actor access.Actor, current, next string) error {
	if err := access.CheckCollection(actor, access.ActionUpdate); err != nil {
		return err
	}
	if err := validateStruct(setPasswordInput{NewPassword: next}); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || s.passwords.Verify(user.PasswordHash, current) != nil {
		return apperror.ValidationFailed("current_password", "current password is incorrect")
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/user: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.Int64("userID", user.ID))
	return nil
}

// SetAvatar stores a new avatar from a data URI and returns its URL. The
// previous avatar file is removed.
func (s *UserService) SetAvatar(ctx context.Context, actor access.Actor, dataURI string) (string, error) {
	if err := access.CheckCollection(actor, access.ActionUpdate); err != nil {
		return "", err
	}

	img, err := imagestore.DecodeDataURI("avatar", dataURI)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return "", err
	}

	key, err := s.images.Save(ctx, imagestore.FolderAvatars, img)
	if err != nil {
		return "", fmt.Errorf("service/user: storing avatar: %w", err)
	}
	if err := s.users.UpdateAvatar(ctx, user.ID, key); err != nil {
		s.discardImage(ctx, key)
		return "", err
	}
	if user.Avatar != "" {
		s.discardImage(ctx, user.Avatar)
	}

	s.logger.Info("avatar updated", slog.Int64("userID", user.ID))
	return s.images.URL(key), nil
}

// DeleteAvatar clears the actor's avatar. Clearing an unset avatar is a no-op.
func (s *UserService) DeleteAvatar(ctx context.Context, actor access.Actor) error {
	if err := access.CheckCollection(actor, access.ActionDelete); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if user.Avatar == "" {
		return nil
	}
	if err := s.users.UpdateAvatar(ctx, user.ID, ""); err != nil {
		return err
	}
	s.discardImage(ctx, user.Avatar)

	s.logger.Info("avatar removed", slog.Int64("userID", user.ID))
	return nil
}

func (s *UserService) discardImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image", slog.String("key", key), slog.String("error", err.Error()))
	}
}
