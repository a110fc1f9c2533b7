package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending registrations in redis so every API instance
// sees the same entries.  Keys expire on their own after TTL plus Grace.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "otp:pending:"}
}

func (s *RedisStore) key(handle string) string { return s.prefix + handle }

func (s *RedisStore) Put(ctx context.Context, handle string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal otp entry: %w", err)
	}
	ttl := time.Until(e.ExpiresAt) + Grace
	if ttl <= 0 {
		ttl = Grace
	}
	return s.rdb.Set(ctx, s.key(handle), b, ttl).Err()
}

func (s *RedisStore) get(ctx context.Context, c redis.Cmdable, handle string) (Entry, error) {
	b, err := c.Get(ctx, s.key(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, errNoEntry
	}
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("decode otp entry: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Get(ctx context.Context, handle string) (Entry, error) {
	return s.get(ctx, s.rdb, handle)
}

// Consume runs inside WATCH so two concurrent verifications of the same
// code cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, handle, code string, now time.Time) (Entry, error) {
	var out Entry
	key := s.key(handle)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		e, err := s.get(ctx, tx, handle)
		if err != nil {
			return err
		}
		if !Verify(e.Code, e.ExpiresAt, code, now) {
			return errBadCode
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		out = e
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return Entry{}, errNoEntry
	}
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, handle string) error {
	return s.rdb.Del(ctx, s.key(handle)).Err()
}

// Sweep is a no-op; redis expires keys itself.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
