package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-competition-service/internal/domain"
)

// QuestionLoader fetches question content from the backing store.
type QuestionLoader interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListActiveQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache keeps question content in Redis so repeated round starts do
// not hit the database. Entries are stored as JSON:
//
//	SET question:{id}        {question JSON}
//	SET questions:active     {ordered question array JSON}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	key := questionKey(id)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var q domain.Question
			if err := json.Unmarshal(raw, &q); err == nil {
				return q, nil
			}
		}

		q, err := c.loader.GetQuestion(ctx, id)
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

func (c *QuestionCache) ListActiveQuestions(ctx context.Context) ([]domain.Question, error) {
	if raw, err := c.client.Get(ctx, activeKey).Bytes(); err == nil {
		var qs []domain.Question
		if err := json.Unmarshal(raw, &qs); err == nil {
			return qs, nil
		}
	}

	result, err, _ := c.sf.Do(activeKey, func() (interface{}, error) {
		if raw, err := c.client.Get(ctx, activeKey).Bytes(); err == nil {
			var qs []domain.Question
			if err := json.Unmarshal(raw, &qs); err == nil {
				return qs, nil
			}
		}

		qs, err := c.loader.ListActiveQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(qs); err == nil {
			_ = c.client.Set(ctx, activeKey, raw, c.ttlWithJitter()).Err()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

const activeKey = "questions:active"

func questionKey(id string) string {
	return "question:" + id
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
