// Package auth implements account registration, password login and
// session-token authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/models"
	"github.com/starford/casedesk/internal/session"
)

// Users is the account storage used by Service.
type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Registration is the input of Register.
type Registration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate checks the registration fields.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Name, validation.Length(0, 200)),
		// bcrypt ignores input beyond 72 bytes.
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
	)
}

// Service authenticates users.
type Service struct {
	users     Users
	sessions  session.Store
	ttl       time.Duration
	cost      int
	logger    *slog.Logger
	dummyHash []byte
}

// NewService creates an auth service issuing sessions valid for ttl.
// cost is the bcrypt work factor; zero selects bcrypt.DefaultCost.
func NewService(users Users, sessions session.Store, ttl time.Duration, cost int, logger *slog.Logger) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("casedesk-dummy-password"), cost)
	return &Service{
		users:     users,
		sessions:  sessions,
		ttl:       ttl,
		cost:      cost,
		logger:    logger,
		dummyHash: dummy,
	}
}

// Register creates an account. A taken email is apperr.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, r Registration) (*models.User, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if err := r.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	u := &models.User{Email: r.Email, Name: r.Name, PasswordHash: string(hash)}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// Login verifies a password and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		// Equalise timing with the known-user path.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}

	sess, err := session.New(u.ID, s.ttl)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("auth: store session: %w", err)
	}
	return sess, u, nil
}

// Logout revokes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a session token to its user id. Unknown or expired
// tokens yield apperr.ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.ErrUnauthenticated
	}
	sess, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// Me returns the account of userID.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUser(ctx, userID)
}
