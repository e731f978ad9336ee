package storage

import (
	"context"
	"errors"
	"testing"

	"pos-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "pendingActions")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	value := []byte(`[]`)
	require.NoError(t, store.Set(ctx, "pendingActions", value))
	value[0] = 'x'

	got, err := store.Get(ctx, "pendingActions")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "pendingActions"))
	_, err = store.Get(ctx, "pendingActions")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type entry struct {
		ID       string `json:"id"`
		Attempts int    `json:"attempts"`
	}
	require.NoError(t, SetJSON(ctx, store, "queue", []entry{{ID: "a", Attempts: 2}}))

	var out []entry
	require.NoError(t, GetJSON(ctx, store, "queue", &out))
	assert.Equal(t, []entry{{ID: "a", Attempts: 2}}, out)

	assert.True(t, errors.Is(GetJSON(ctx, store, "missing", &out), ErrKeyNotFound))
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	cfg := &config.Config{RedisHost: "127.0.0.1", RedisPort: "1", RedisKeyPrefix: "pos:"}

	store, err := NewRedisStore(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, store)
}
