package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisIdempotencyStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *RedisClient, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisIdempotencyStore) GetOrLock(key string) (*model.IdempotencyRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, _ := json.Marshal(model.IdempotencyRecord{
		CreatedAt:  time.Now().UTC(),
		Processing: true,
	})
	ok, err := s.client.Client.SetNX(ctx, s.client.key("idem", key), payload, s.ttl).Result()
	if err != nil {
		// Fail open; the treasury still rejects double settlement on its own.
		logger.Warn("idempotency lock failed", "key", key, "error", err)
		return nil, false
	}
	if ok {
		return nil, false
	}

	raw, err := s.client.Client.Get(ctx, s.client.key("idem", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	var rec model.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *RedisIdempotencyStore) Save(key string, status int, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(model.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.client.Client.Set(ctx, s.client.key("idem", key), payload, s.ttl).Err(); err != nil {
		logger.Warn("idempotency save failed", "key", key, "error", err)
	}
}

func (s *RedisIdempotencyStore) Unlock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.client.Client.Del(ctx, s.client.key("idem", key)).Err()
}
