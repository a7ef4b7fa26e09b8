package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_items.lua
var reserveItemsScript string

//go:embed scripts/release_items.lua
var releaseItemsScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveItemsScript),
		releaseScript: redis.NewScript(releaseItemsScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func itemKeys(itemIDs []int64) []string {
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = fmt.Sprintf("item:%d", id)
	}
	return keys
}

// ReserveItems atomically places holds on every item of a chain using a Lua
// script. All items must be free or the script takes nothing; returns false
// when a concurrent chain already holds any of them.
func (c *Client) ReserveItems(ctx context.Context, itemIDs []int64, chainKey string, ttl time.Duration) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, itemKeys(itemIDs),
		chainKey, int(ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("reserve items script failed: %w", err)
	}

	success, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return success == 1, nil
}

// ReleaseItems drops the holds a chain placed on its items. Holds owned by
// other chains are left alone.
func (c *Client) ReleaseItems(ctx context.Context, itemIDs []int64, chainKey string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, itemKeys(itemIDs), chainKey).Result()
	if err != nil {
		return fmt.Errorf("release items script failed: %w", err)
	}
	return nil
}

// GetTrustScores fetches per-user trust scores, used only as a ranking
// tiebreaker. Users without a score are simply absent from the result.
func (c *Client) GetTrustScores(ctx context.Context, userIDs []int64) (map[int64]float64, error) {
	if len(userIDs) == 0 {
		return map[int64]float64{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = fmt.Sprintf("trust:%d", id)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64, len(userIDs))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		scores[userIDs[i]] = score
	}
	return scores, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
