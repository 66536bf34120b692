package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCmdable struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	mock := newMockCmdable()
	s := &RedisStorage{store: mock, ttl: time.Hour}
	ctx := context.Background()

	_, err := s.Get(ctx, "cart:u1")
	assert.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, s.Set(ctx, "cart:u1", `[{"id":"p1"}]`))
	assert.Equal(t, time.Hour, mock.ttls["cart:u1"])

	v, err := s.Get(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, v)

	require.NoError(t, s.Delete(ctx, "cart:u1"))
	_, err = s.Get(ctx, "cart:u1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestRedisStorage_GetError(t *testing.T) {
	mock := newMockCmdable()
	mock.getErr = errors.New("connection reset")
	s := &RedisStorage{store: mock}

	_, err := s.Get(context.Background(), "cart:u1")
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, cart.ErrNotFound)
}

func TestRedisStorage_Uninitialized(t *testing.T) {
	s := &RedisStorage{}
	_, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), "k", "v"))
	assert.Error(t, s.Delete(context.Background(), "k"))
}

func TestRedisStorage_WithPersister(t *testing.T) {
	mock := newMockCmdable()
	s := &RedisStorage{store: mock}
	ctx := context.Background()

	c := cart.New()
	p := cart.NewPersister(s, "cart:u1")
	require.NoError(t, p.Hydrate(ctx, c))
	defer p.Attach(c)()

	c.AddToCart(cart.RawProduct{ID: "p1", Name: "Lamp", Price: 30})
	require.NoError(t, p.Flush(ctx))

	restored := cart.New()
	require.NoError(t, cart.NewPersister(s, "cart:u1").Hydrate(ctx, restored))
	assert.Equal(t, c.Items(), restored.Items())
}
