package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RankCache handles Redis ZSET operations for fast rank lookups. The cache
// is refreshed after each computation run; the snapshot store remains the
// source of truth.
type RankCache interface {
	Refresh(ctx context.Context, entries []Entry) error
	GetTop(ctx context.Context, limit int) ([]RankedModel, error)
	GetRank(ctx context.Context, modelName string) (int64, error)
	Ping(ctx context.Context) error
}

// RankedModel is a cached leaderboard position.
type RankedModel struct {
	ModelName  string  `json:"model_name"`
	TrustScore float64 `json:"trust_score"`
	Rank       int     `json:"rank"`
}

type rankCache struct {
	client *redis.Client
	scope  string
}

// NewRankCache creates a rank cache over a Redis client. scope namespaces
// the ZSET key so multiple deployments can share one Redis.
func NewRankCache(client *redis.Client, scope string) RankCache {
	if scope == "" {
		scope = "global"
	}
	return &rankCache{client: client, scope: scope}
}

func (c *rankCache) key() string {
	return fmt.Sprintf("trust:%s:lb", c.scope)
}

// Refresh atomically replaces the cached leaderboard with entries. A
// staging key is populated and renamed over the live one so readers never
// observe a half-filled ZSET.
func (c *rankCache) Refresh(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return c.client.Del(ctx, c.key()).Err()
	}

	staging := c.key() + ":staging"
	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{
			Score:  e.TrustScore,
			Member: e.ModelName,
		}
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, staging)
	pipe.ZAdd(ctx, staging, members...)
	pipe.Rename(ctx, staging, c.key())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh rank cache: %w", err)
	}
	return nil
}

func (c *rankCache) GetTop(ctx context.Context, limit int) ([]RankedModel, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("rank cache top: %w", err)
	}

	out := make([]RankedModel, len(results))
	for i, z := range results {
		out[i] = RankedModel{
			ModelName:  z.Member.(string),
			TrustScore: z.Score,
			Rank:       i + 1,
		}
	}
	return out, nil
}

func (c *rankCache) GetRank(ctx context.Context, modelName string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(), modelName).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}

// Ping reports Redis reachability for health checks.
func (c *rankCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
