// Package session issues and resolves opaque login tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/models"
)

// Store persists sessions. Lookup of an unknown or expired token returns
// apperr.ErrUnauthenticated.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	Lookup(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, token string) error
}

// NewToken returns a random URL-safe token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// New builds a session for userID valid for ttl.
func New(userID string, ttl time.Duration) (*models.Session, error) {
	tok, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &models.Session{
		Token:     tok,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// sessionRows is the subset of store.DB used by DBStore.
type sessionRows interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// DBStore keeps sessions in the relational datastore.
type DBStore struct {
	db sessionRows
}

// NewDBStore wraps the datastore session table.
func NewDBStore(db sessionRows) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Create(ctx context.Context, sess *models.Session) error {
	return s.db.CreateSession(ctx, sess)
}

func (s *DBStore) Lookup(ctx context.Context, token string) (*models.Session, error) {
	sess, err := s.db.GetSession(ctx, token)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		return nil, apperr.ErrUnauthenticated
	}
	return sess, nil
}

func (s *DBStore) Revoke(ctx context.Context, token string) error {
	return s.db.DeleteSession(ctx, token)
}
