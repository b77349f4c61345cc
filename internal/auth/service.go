package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chat-hub/internal/repositories"
)

var (
	// ErrValidation covers undersized usernames and passwords.
	ErrValidation = errors.New("validation failed")
	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned on unknown username or bad password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired, or revoked tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	minUsernameLen = 2
	minPasswordLen = 6
)

// Result is the outcome of a successful registration or login.
type Result struct {
	UserID   int
	Username string
	Token    string
}

// Identity is the authenticated identity bound to a verified token.
type Identity struct {
	UserID   int
	Username string
}

// Verifier validates session tokens. The websocket hub depends on this
// rather than the full Service.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Service is the credential store: it owns user records, password hashes,
// and persisted login sessions.
type Service struct {
	users    repositories.UserRepository
	sessions repositories.SessionRepository
	secret   string
	tokenTTL time.Duration
}

// NewService constructs a Service.
func NewService(users repositories.UserRepository, sessions repositories.SessionRepository, secret string, tokenTTL time.Duration) *Service {
	return &Service{users: users, sessions: sessions, secret: secret, tokenTTL: tokenTTL}
}

// Register creates a new user and immediately logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (Result, error) {
	if len(username) < minUsernameLen {
		return Result{}, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLen)
	}
	if len(password) < minPasswordLen {
		return Result{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			return Result{}, ErrUsernameTaken
		}
		return Result{}, fmt.Errorf("create user: %w", err)
	}

	return s.mintSession(ctx, user.ID, user.Username)
}

// Login checks credentials and mints a fresh session token. Each login gets
// its own session, so multiple devices can stay signed in.
func (s *Service) Login(ctx context.Context, username, password string) (Result, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Result{}, ErrInvalidCredentials
	}

	return s.mintSession(ctx, user.ID, user.Username)
}

// Verify parses a token, checks the signature and expiry, and confirms the
// backing session still exists in storage.
func (s *Service) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := parseToken(token, s.secret)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	if _, err := s.sessions.GetSession(ctx, claims.SessionID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("load session: %w", err)
	}

	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

func (s *Service) mintSession(ctx context.Context, userID int, username string) (Result, error) {
	sessionID := uuid.NewString()
	if _, err := s.sessions.CreateSession(ctx, sessionID, userID); err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}

	token, err := signToken(userID, username, sessionID, s.secret, s.tokenTTL)
	if err != nil {
		return Result{}, err
	}

	return Result{UserID: userID, Username: username, Token: token}, nil
}
