package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lawfx/ScrumPokerServer/internal/store"
)

var (
	// ErrWrongCredentials is returned when username/password don't match.
	ErrWrongCredentials = errors.New("wrong credentials")
	// ErrUserNotFound is returned when logging in with an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the username is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUsernameEmpty is returned for a blank username.
	ErrUsernameEmpty = errors.New("username is empty")
	// ErrUsernameTooLong is returned for usernames over 20 characters.
	ErrUsernameTooLong = errors.New("username exceeds 20 characters")
	// ErrPasswordEmpty is returned for a blank password.
	ErrPasswordEmpty = errors.New("password is empty")
)

// maxUsernameLen matches the room/task name bound; usernames appear verbatim
// in status payloads.
const maxUsernameLen = 20

// Service provides registration, login and token verification. It is the only
// collaborator the realtime core consumes: everything downstream of it is just
// an authenticated username.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with a hashed password.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if err := validateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordEmpty
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return ErrUserExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.CreateUser(ctx, username, hashed); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", ErrUserNotFound
	}
	if err := ComparePassword(user.PasswordHash, strings.TrimSpace(password)); err != nil {
		return "", ErrWrongCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.Username, s.jwtConfig.TTL)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// GuestLogin issues a short-lived token for a username that is not registered.
// Nothing is persisted; collisions with live connections are caught by the
// lobby at connect time.
func (s *Service) GuestLogin(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return "", err
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return "", ErrUserExists
	}

	token, err := GenerateToken(s.jwtConfig, username, s.jwtConfig.GuestTTL)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a token and returns the username it was issued for.
// Used by both the HTTP middleware and the WebSocket handshake.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return ErrUsernameEmpty
	case len(username) > maxUsernameLen:
		return ErrUsernameTooLong
	}
	return nil
}
