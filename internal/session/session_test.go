package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestNewToken_Unique(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	sess, err := New("user-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, sess))

	assert.True(t, mr.Exists(keyPrefix+sess.Token))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(keyPrefix+sess.Token).Seconds(), 5)

	got, err := store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	require.NoError(t, store.Revoke(ctx, sess.Token))
	_, err = store.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	sess, _ := New("user-1", time.Minute)
	require.NoError(t, store.Create(ctx, sess))

	mr.FastForward(2 * time.Minute)
	_, err := store.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRedisStore_RejectsExpired(t *testing.T) {
	store, _ := newRedisStore(t)
	sess := &models.Session{Token: "t", UserID: "u", ExpiresAt: time.Now().Add(-time.Second)}
	assert.Error(t, store.Create(context.Background(), sess))
}

func TestRedisStore_UnknownToken(t *testing.T) {
	store, _ := newRedisStore(t)
	_, err := store.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

type memRows struct {
	rows map[string]*models.Session
}

func (m *memRows) CreateSession(_ context.Context, s *models.Session) error {
	m.rows[s.Token] = s
	return nil
}

func (m *memRows) GetSession(_ context.Context, token string) (*models.Session, error) {
	s, ok := m.rows[token]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

func (m *memRows) DeleteSession(_ context.Context, token string) error {
	delete(m.rows, token)
	return nil
}

func TestDBStore(t *testing.T) {
	rows := &memRows{rows: map[string]*models.Session{}}
	store := NewDBStore(rows)
	ctx := context.Background()

	live, _ := New("u1", time.Hour)
	require.NoError(t, store.Create(ctx, live))
	got, err := store.Lookup(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	rows.rows["old"] = &models.Session{Token: "old", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}
	_, err = store.Lookup(ctx, "old")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = store.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	require.NoError(t, store.Revoke(ctx, live.Token))
	_, err = store.Lookup(ctx, live.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
