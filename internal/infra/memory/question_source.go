package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store
// (e.g., Postgres JSONB).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionSource serves random question draws out of a TTL cache so a
// burst of match starts does not hammer the backing store.
type QuestionSource struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.Mutex
	bank      []domain.Question
	expiresAt time.Time
}

func NewQuestionSource(loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick returns up to n distinct questions in random order. Fewer than n
// are returned only when the bank itself is smaller.
func (s *QuestionSource) Pick(ctx context.Context, n int) ([]domain.Question, error) {
	bank, err := s.loadBank(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrQuestionBankEmpty
	}

	s.mu.Lock()
	order := s.rnd.Perm(len(bank))
	s.mu.Unlock()

	if n > len(bank) {
		n = len(bank)
	}
	picked := make([]domain.Question, 0, n)
	for _, i := range order[:n] {
		picked = append(picked, bank[i])
	}
	return picked, nil
}

func (s *QuestionSource) loadBank(ctx context.Context) ([]domain.Question, error) {
	now := s.clock()

	s.mu.Lock()
	if s.bank != nil && s.expiresAt.After(now) {
		bank := s.bank
		s.mu.Unlock()
		return bank, nil
	}
	s.mu.Unlock()

	result, err, _ := s.sf.Do("bank", func() (interface{}, error) {
		now := s.clock()
		s.mu.Lock()
		if s.bank != nil && s.expiresAt.After(now) {
			bank := s.bank
			s.mu.Unlock()
			return bank, nil
		}
		s.mu.Unlock()

		bank, err := s.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.bank = bank
		s.expiresAt = now.Add(s.ttlWithJitter())
		s.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread refreshes
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by a fixed slice (tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}
