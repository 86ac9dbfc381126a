package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"quiz-duel-service/internal/domain"
)

type countingLoader struct {
	loads     atomic.Int32
	questions []domain.Question
}

func (l *countingLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	l.loads.Add(1)
	return l.questions, nil
}

func bankOf(n int) []domain.Question {
	bank := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		bank = append(bank, domain.Question{
			ID:           string(rune('a' + i)),
			Prompt:       "prompt",
			Choices:      []domain.Choice{{Text: "x"}, {Text: "y"}},
			CorrectIndex: i % 2,
		})
	}
	return bank
}

func TestPickReturnsDistinctQuestions(t *testing.T) {
	source := NewQuestionSource(NewStaticQuestionLoader(bankOf(10)), time.Minute)

	picked, err := source.Pick(context.Background(), 5)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if len(picked) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(picked))
	}
	seen := make(map[string]bool)
	for _, q := range picked {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s in pick", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestPickCapsAtBankSize(t *testing.T) {
	source := NewQuestionSource(NewStaticQuestionLoader(bankOf(3)), time.Minute)

	picked, err := source.Pick(context.Background(), 10)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if len(picked) != 3 {
		t.Fatalf("expected whole bank, got %d", len(picked))
	}
}

func TestPickEmptyBankFails(t *testing.T) {
	source := NewQuestionSource(NewStaticQuestionLoader(nil), time.Minute)

	if _, err := source.Pick(context.Background(), 5); err != domain.ErrQuestionBankEmpty {
		t.Fatalf("expected ErrQuestionBankEmpty, got %v", err)
	}
}

func TestBankIsCachedWithinTTL(t *testing.T) {
	loader := &countingLoader{questions: bankOf(5)}
	source := NewQuestionSource(loader, time.Hour)

	for i := 0; i < 10; i++ {
		if _, err := source.Pick(context.Background(), 3); err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
	}
	if got := loader.loads.Load(); got != 1 {
		t.Fatalf("expected a single backing load, got %d", got)
	}
}
