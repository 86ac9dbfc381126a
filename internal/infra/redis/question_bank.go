package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the full question bank in a Redis hash
// (HSET questions:bank {questionID} {json}) and falls back to the loader
// on a miss, so multiple coordinator instances share one warm cache.
// Correct indices live only in this hash and the backing store; they are
// stripped before anything reaches a client.
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick returns up to n distinct questions in random order.
func (b *QuestionBank) Pick(ctx context.Context, n int) ([]domain.Question, error) {
	bank, err := b.loadBank(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrQuestionBankEmpty
	}

	if n > len(bank) {
		n = len(bank)
	}
	picked := make([]domain.Question, 0, n)
	for _, i := range b.rnd.Perm(len(bank))[:n] {
		picked = append(picked, bank[i])
	}
	return picked, nil
}

func (b *QuestionBank) loadBank(ctx context.Context) ([]domain.Question, error) {
	cached, err := b.client.HGetAll(ctx, b.bankKey()).Result()
	if err == nil && len(cached) > 0 {
		return decodeBank(cached)
	}

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := b.client.HGetAll(ctx, b.bankKey()).Result()
		if err == nil && len(cached) > 0 {
			return decodeBank(cached)
		}

		bank, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := b.client.Pipeline()
		for _, q := range bank {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, b.bankKey(), q.ID, raw)
		}
		if b.ttl > 0 {
			pipe.Expire(ctx, b.bankKey(), b.ttlWithJitter())
		}
		_, _ = pipe.Exec(ctx)

		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) bankKey() string {
	return "questions:bank"
}

func decodeBank(cached map[string]string) ([]domain.Question, error) {
	bank := make([]domain.Question, 0, len(cached))
	for id, raw := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode cached question %s: %w", id, err)
		}
		bank = append(bank, q)
	}
	return bank, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
