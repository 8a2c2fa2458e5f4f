package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// QuestionCache wraps a question pool with a Redis cache for single-item
// lookups: SET question:{id} {json}. Find is not cached because filter
// combinations don't key well; pool queries on the create path are rare
// compared to per-submit Gets.
type QuestionCache struct {
	client *redis.Client
	inner  app.QuestionPool
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, inner app.QuestionPool, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Find(ctx context.Context, filter domain.PoolFilter, limit int) ([]domain.Question, error) {
	return c.inner.Find(ctx, filter, limit)
}

func (c *QuestionCache) Get(ctx context.Context, questionID string) (domain.Question, error) {
	key := c.key(questionID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var q domain.Question
			if err := json.Unmarshal(raw, &q); err == nil {
				return q, nil
			}
		}

		q, err := c.inner.Get(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		if raw, err := json.Marshal(q); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) key(questionID string) string {
	return "question:" + questionID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
