package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ride-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// CommissionCache implements ports.CommissionCache using Redis.
//
// commission:version:<type> holds a counter and commission:active:<type>:<version>
// holds the setting. Readers only look at the key of the current version, so
// bumping the counter retires every entry written under an older one.
type CommissionCache struct {
	client        *goredis.Client
	prefix        string
	versionPrefix string
}

// NewCommissionCache creates a new Redis-backed commission cache.
func NewCommissionCache(client *goredis.Client) *CommissionCache {
	return &CommissionCache{
		client:        client,
		prefix:        "commission:active:",
		versionPrefix: "commission:version:",
	}
}

// Get returns the cached active setting for t and the version it was read at.
// Returns nil and the current version if the key does not exist.
func (c *CommissionCache) Get(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, int64, error) {
	version, err := c.version(ctx, t)
	if err != nil {
		return nil, 0, err
	}

	val, err := c.client.Get(ctx, c.key(t, version)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, version, nil
		}
		return nil, 0, fmt.Errorf("redis commission get: %w", err)
	}

	var s domain.CommissionSetting
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, 0, fmt.Errorf("decode cached commission: %w", err)
	}
	return &s, version, nil
}

// Set stores the active setting under version with TTL. A version that has
// since been invalidated lands on a key nobody reads and expires with ttl.
func (c *CommissionCache) Set(ctx context.Context, s *domain.CommissionSetting, version int64, ttl time.Duration) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode commission: %w", err)
	}
	if err := c.client.Set(ctx, c.key(s.Type, version), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis commission set: %w", err)
	}
	return nil
}

// Invalidate bumps the version of t and drops the entry it retires.
func (c *CommissionCache) Invalidate(ctx context.Context, t domain.CommissionType) error {
	next, err := c.client.Incr(ctx, c.versionPrefix+string(t)).Result()
	if err != nil {
		return fmt.Errorf("redis commission invalidate: %w", err)
	}
	if err := c.client.Del(ctx, c.key(t, next-1)).Err(); err != nil {
		return fmt.Errorf("redis commission invalidate: %w", err)
	}
	return nil
}

func (c *CommissionCache) version(ctx context.Context, t domain.CommissionType) (int64, error) {
	raw, err := c.client.Get(ctx, c.versionPrefix+string(t)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis commission version: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode commission version: %w", err)
	}
	return v, nil
}

func (c *CommissionCache) key(t domain.CommissionType, version int64) string {
	return c.prefix + string(t) + ":" + strconv.FormatInt(version, 10)
}
