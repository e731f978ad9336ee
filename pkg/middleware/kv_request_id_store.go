package middleware

import (
	"context"
	"errors"
	"time"

	"pos-service/internal/storage"
)

const idempotencyKeyPrefix = "idempotency:"

// KVRequestIDStore keeps replayable responses in the configured key-value
// backend so a till restart does not forget a checkout it already answered
type KVRequestIDStore struct {
	kv  storage.KeyValueStore
	now func() time.Time
}

type kvEntry struct {
	Response  CachedResponse `json:"response"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func NewKVRequestIDStore(kv storage.KeyValueStore) *KVRequestIDStore {
	return &KVRequestIDStore{kv: kv, now: time.Now}
}

func (s *KVRequestIDStore) Store(ctx context.Context, requestID string, response CachedResponse, ttl time.Duration) error {
	return storage.SetJSON(ctx, s.kv, idempotencyKeyPrefix+requestID, kvEntry{
		Response:  response,
		ExpiresAt: s.now().Add(ttl),
	})
}

func (s *KVRequestIDStore) Get(ctx context.Context, requestID string) (CachedResponse, error) {
	var entry kvEntry
	err := storage.GetJSON(ctx, s.kv, idempotencyKeyPrefix+requestID, &entry)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return CachedResponse{}, ErrRequestIDNotFound
	}
	if err != nil {
		return CachedResponse{}, err
	}
	if s.now().After(entry.ExpiresAt) {
		_ = s.kv.Delete(ctx, idempotencyKeyPrefix+requestID)
		return CachedResponse{}, ErrRequestIDNotFound
	}
	return entry.Response, nil
}
