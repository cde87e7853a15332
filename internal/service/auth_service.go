package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingField       = errors.New("name, email and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

const (
	defaultRole     = "user"
	defaultLanguage = "english"
)

// AuthService manages dashboard accounts and their login sessions. Active
// sessions with a phone number double as SMS recipients.
type AuthService struct {
	users    repository.UserRepository
	sessions session.Store
	clock    clock.Clock
	ttl      time.Duration
}

func NewAuthService(users repository.UserRepository, sessions session.Store, clk clock.Clock, ttl time.Duration) *AuthService {
	if clk == nil {
		clk = clock.New()
	}
	return &AuthService{users: users, sessions: sessions, clock: clk, ttl: ttl}
}

func (s *AuthService) TTL() time.Duration {
	return s.ttl
}

func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return models.User{}, ErrMissingField
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hash),
		Role:      req.Role,
		Phone:     strings.TrimSpace(req.Phone),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Language:  req.Language,
		Age:       req.Age,
		CreatedAt: s.clock.Now().UTC(),
	}
	if user.Role == "" {
		user.Role = defaultRole
	}
	if user.Language == "" {
		user.Language = defaultLanguage
	}
	return s.users.Create(user)
}

// Login verifies the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.Session, error) {
	user, err := s.users.FindByEmail(strings.TrimSpace(req.Email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return models.Session{}, ErrInvalidCredentials
	}

	sess := models.Session{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		Phone:     user.Phone,
		Language:  user.Language,
		Latitude:  user.Latitude,
		Longitude: user.Longitude,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// Authenticate resolves a session token. Expired sessions are not returned.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrNotAuthenticated
	}
	sess, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		return models.Session{}, err
	}
	if !ok {
		return models.Session{}, ErrNotAuthenticated
	}
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}
