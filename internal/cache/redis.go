package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flashlearn/backend/internal/models"
)

// RedisCache shares cached stats between server instances.
type RedisCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *goredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "flashlearn:stats:"}
}

func (c *RedisCache) key(userID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, userID)
}

func (c *RedisCache) versionKey(userID int64) string {
	return fmt.Sprintf("%sver:%d", c.prefix, userID)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) (models.DerivedStats, bool, error) {
	var s models.DerivedStats
	raw, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("redis get stats: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return s, true, nil
}

func (c *RedisCache) Version(ctx context.Context, userID int64) (uint64, error) {
	return readVersion(ctx, c.rdb, c.versionKey(userID))
}

// Set writes inside a WATCH on the version key, so an Invalidate from any
// instance between Version and Set makes it a no-op.
func (c *RedisCache) Set(ctx context.Context, userID int64, version uint64, s models.DerivedStats) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}

	verKey := c.versionKey(userID)
	err = c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := readVersion(ctx, tx, verKey)
		if err != nil {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, c.key(userID), raw, c.ttl)
			return nil
		})
		return err
	}, verKey)
	if errors.Is(err, goredis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, c.versionKey(userID))
		p.Del(ctx, c.key(userID))
		return nil
	})
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func readVersion(ctx context.Context, rdb getter, key string) (uint64, error) {
	v, err := rdb.Get(ctx, key).Uint64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get stats version: %w", err)
	}
	return v, nil
}
