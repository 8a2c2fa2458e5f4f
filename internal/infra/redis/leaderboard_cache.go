package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"assessment-service/internal/domain"
)

// LeaderboardCache stores the fully ranked best-attempt snapshot as JSON:
// SET challenge:{id}:board {json}. Dropped on every completion, so stale
// reads last at most one TTL after a lost invalidation.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	rnd    *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Get(ctx context.Context, challengeID string) (*domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, c.key(challengeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return nil, false
	}
	return &lb, true
}

func (c *LeaderboardCache) Set(ctx context.Context, challengeID string, lb *domain.Leaderboard) {
	raw, err := json.Marshal(lb)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(challengeID), raw, c.ttlWithJitter()).Err()
}

func (c *LeaderboardCache) Drop(ctx context.Context, challengeID string) {
	_ = c.client.Del(ctx, c.key(challengeID)).Err()
}

func (c *LeaderboardCache) key(challengeID string) string {
	return "challenge:" + challengeID + ":board"
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
