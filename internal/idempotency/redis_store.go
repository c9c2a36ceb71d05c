package idempotency

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/ridehub/bus-booking/internal/model"
)

const redisKeyPrefix = "idem:"

// RedisStore keeps idempotency records in Redis so deduplication works
// across replicas.  SET NX provides the atomic insert-if-absent; Redis TTLs
// handle garbage collection, so ExpiresAt is informational here.
type RedisStore struct {
    rdb *redis.Client
}

// NewRedisStore returns a Store backed by the given client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
    return &RedisStore{rdb: rdb}
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, rec model.IdempotencyRecord) (*model.IdempotencyRecord, error) {
    body, err := json.Marshal(rec)
    if err != nil {
        return nil, fmt.Errorf("marshal record: %w", err)
    }
    ttl := time.Until(rec.ExpiresAt)
    if ttl <= 0 {
        ttl = time.Minute
    }
    ok, err := s.rdb.SetNX(ctx, redisKeyPrefix+key, body, ttl).Result()
    if err != nil {
        return nil, fmt.Errorf("setnx: %w", err)
    }
    if ok {
        return nil, nil
    }
    raw, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
    if err != nil {
        if errors.Is(err, redis.Nil) {
            // The competing record expired between SETNX and GET; claim it.
            return s.PutIfAbsent(ctx, key, rec)
        }
        return nil, fmt.Errorf("get existing: %w", err)
    }
    var existing model.IdempotencyRecord
    if err := json.Unmarshal(raw, &existing); err != nil {
        return nil, fmt.Errorf("unmarshal existing: %w", err)
    }
    return &existing, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, rec model.IdempotencyRecord) error {
    body, err := json.Marshal(rec)
    if err != nil {
        return fmt.Errorf("marshal record: %w", err)
    }
    ttl := time.Until(rec.ExpiresAt)
    if ttl <= 0 {
        ttl = time.Minute
    }
    if err := s.rdb.Set(ctx, redisKeyPrefix+key, body, ttl).Err(); err != nil {
        return fmt.Errorf("set: %w", err)
    }
    return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
    if err := s.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
        return fmt.Errorf("del: %w", err)
    }
    return nil
}
