package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiomarket/curio-backend/pkg/redis"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", redis.ErrNil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "curio:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "notifications", "evt_123")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "curio:idempotency:evt:processed:notifications:evt_123", store.lastKey)
	assert.Equal(t, 24*time.Hour, store.lastTTL)
}

func TestCheckAndMarkProcessed_Error(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "notifications", "evt_1")
	require.Error(t, err)
}

func TestCheckAndMarkProcessed_RequiresIdentifiers(t *testing.T) {
	manager, err := NewManager(&fakeStore{}, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", "evt_1")
	require.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "notifications", " ")
	require.Error(t, err)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(&fakeStore{}, -time.Second)
	require.Error(t, err)
}

func TestManagerAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	manager, err := NewManager(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := manager.Seen(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.False(t, seen)

	already, err := manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.True(t, already)

	seen, err = manager.Seen(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, manager.Delete(ctx, "stripe-webhook", "evt_abc"))
	already, err = manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.False(t, already)

	mr.FastForward(2 * time.Minute)
	already, err = manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_abc")
	require.NoError(t, err)
	assert.False(t, already)
}
