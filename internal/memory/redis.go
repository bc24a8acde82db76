package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces per-user history lists in Redis.
const keyPrefix = "chat:"

// probeTimeout bounds the construction-time reachability check.
const probeTimeout = 5 * time.Second

// redisBackend stores each user's history as a Redis list of serialized
// messages with a sliding TTL refreshed on every append. Redis serializes
// operations per key, so append and replace are atomic without extra locking.
type redisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisBackend(url string, ttl time.Duration) (*redisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return &redisBackend{client: client, ttl: ttl}, nil
}

func (b *redisBackend) Name() string { return "redis" }

func (b *redisBackend) Append(ctx context.Context, userID string, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := keyPrefix + userID
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, b.ttl)
		return nil
	})
	return err
}

func (b *redisBackend) Read(ctx context.Context, userID string, limit int64) ([]Message, error) {
	raw, err := b.client.LRange(ctx, keyPrefix+userID, -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var m Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, errors.Wrap(err, "corrupt history entry")
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (b *redisBackend) Count(ctx context.Context, userID string) (int64, error) {
	return b.client.LLen(ctx, keyPrefix+userID).Result()
}

func (b *redisBackend) Replace(ctx context.Context, userID string, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := keyPrefix + userID
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, b.ttl)
		return nil
	})
	return err
}

func (b *redisBackend) Clear(ctx context.Context, userID string) error {
	return b.client.Del(ctx, keyPrefix+userID).Err()
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
