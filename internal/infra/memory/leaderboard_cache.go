package memory

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// LeaderboardCache holds ranked snapshots with a TTL, the no-Redis
// counterpart of the Redis cache.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedBoard
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedBoard),
	}
}

func (c *LeaderboardCache) Get(_ context.Context, challengeID string) (*domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[challengeID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	out := entry.board
	out.Entries = append([]domain.LeaderboardEntry(nil), entry.board.Entries...)
	return &out, true
}

func (c *LeaderboardCache) Set(_ context.Context, challengeID string, lb *domain.Leaderboard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *lb
	stored.Entries = append([]domain.LeaderboardEntry(nil), lb.Entries...)
	c.entries[challengeID] = cachedBoard{board: stored, expiresAt: c.clock().Add(c.ttl)}
}

func (c *LeaderboardCache) Drop(_ context.Context, challengeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, challengeID)
}
