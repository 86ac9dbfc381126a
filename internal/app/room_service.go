package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-duel-service/internal/domain"
)

// MatchMode tags reported results so the rating service can keep modes apart.
const MatchMode = "duel"

// RoomRepository abstracts how live rooms are stored and how codes are
// allocated (in-memory today; the interface keeps tests isolated).
type RoomRepository interface {
	AllocateCode() (string, error)
	Put(room *Room)
	Get(code string) (*Room, bool)
	Remove(code string)
	SweepStale(maxAge time.Duration) []string
}

// QuestionSource supplies match questions.
type QuestionSource interface {
	Pick(ctx context.Context, n int) ([]domain.Question, error)
}

// MatchReporter receives one finished-match result per participant.
// Protocol correctness never depends on its outcome.
type MatchReporter interface {
	Report(ctx context.Context, result domain.PlayerResult) error
}

// AnswerOutcome is what a single submission produced.
type AnswerOutcome struct {
	Correct       bool
	Awarded       int
	CorrectIndex  int
	QuestionIndex int // zero-based question the answer was scored against
	TotalScore    int
	BothAnswered  bool
	Scoreboard    []domain.ParticipantView
}

// AdvanceOutcome describes the room after moving past the current question.
type AdvanceOutcome struct {
	Finished bool
	Question domain.QuestionView // next question, when not finished
	Number   int                 // 1-based, when not finished
	Total    int
	Result   *domain.MatchResult // set when finished
}

// DisconnectOutcome describes what a participant's departure did to the room.
type DisconnectOutcome struct {
	Handled     bool // false when the room or participant was unknown
	PriorStatus domain.RoomStatus
	RoomRemoved bool
	Snapshot    domain.RoomSnapshot // remaining occupants, for waiting rooms
	Forfeit     *domain.MatchResult // set when the departure ended a match
}

// RoomService is the lifecycle engine: every legal state transition for a
// room lives here, independent of transport. Business failures are returned
// as domain sentinel errors, never panics.
type RoomService struct {
	rooms             RoomRepository
	questions         QuestionSource
	questionsPerMatch int
	clock             clockwork.Clock
	log               zerolog.Logger
}

func NewRoomService(rooms RoomRepository, questions QuestionSource, questionsPerMatch int, clock clockwork.Clock, log zerolog.Logger) *RoomService {
	return &RoomService{
		rooms:             rooms,
		questions:         questions,
		questionsPerMatch: questionsPerMatch,
		clock:             clock,
		log:               log.With().Str("component", "rooms").Logger(),
	}
}

// Create allocates a code and opens a waiting room with the creator as host.
func (s *RoomService) Create(ctx context.Context, sessionID, username string) (domain.RoomSnapshot, error) {
	code, err := s.rooms.AllocateCode()
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	room := NewRoom(code, s.clock.Now())
	room.participants = append(room.participants, &domain.Participant{
		SessionID: sessionID,
		Username:  username,
		Role:      domain.RoleHost,
	})
	s.rooms.Put(room)

	s.log.Info().Str("room", code).Str("host", username).Msg("room created")
	return room.Snapshot(), nil
}

// Join seats a guest in a waiting room with exactly one occupant.
func (s *RoomService) Join(ctx context.Context, code, sessionID, username string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.status != domain.StatusWaiting {
		return domain.RoomSnapshot{}, domain.ErrAlreadyStarted
	}
	if room.participantLocked(sessionID) != nil {
		return domain.RoomSnapshot{}, domain.ErrAlreadyJoined
	}
	if len(room.participants) >= 2 {
		return domain.RoomSnapshot{}, domain.ErrRoomFull
	}

	room.participants = append(room.participants, &domain.Participant{
		SessionID: sessionID,
		Username:  username,
		Role:      domain.RoleGuest,
	})

	s.log.Info().Str("room", code).Str("guest", username).Msg("guest joined")
	return room.snapshotLocked(), nil
}

// Start draws the match's questions and moves the room into countdown.
// Only the host may start; the caller identifies itself by session ID.
func (s *RoomService) Start(ctx context.Context, code, sessionID string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}

	// Pick outside the room lock; the source may hit a backing store.
	questions, err := s.questions.Pick(ctx, s.questionsPerMatch)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.status != domain.StatusWaiting {
		return domain.ErrAlreadyStarted
	}
	if len(room.participants) < 2 {
		return domain.ErrNotEnoughPlayers
	}
	requester := room.participantLocked(sessionID)
	if requester == nil {
		return domain.ErrParticipantNotFound
	}
	if requester.Role != domain.RoleHost {
		return domain.ErrNotHost
	}

	room.questions = questions
	room.currentIndex = 0
	for _, p := range room.participants {
		p.Score = 0
		p.Answered = false
	}
	room.status = domain.StatusCountdown

	s.log.Info().Str("room", code).Int("questions", len(questions)).Msg("match starting")
	return nil
}

// BeginFirstQuestion flips a counting-down room to live and exposes the
// first question. The gateway calls this when the countdown timer fires.
func (s *RoomService) BeginFirstQuestion(code string) (domain.QuestionView, int, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.QuestionView{}, 0, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.status != domain.StatusCountdown {
		return domain.QuestionView{}, 0, domain.ErrWrongStatus
	}

	room.status = domain.StatusLive
	room.currentIndex = 0
	return room.questions[0].View(), len(room.questions), nil
}

// SubmitAnswer scores one participant's choice against the stored correct
// index. questionIndex is the zero-based question the client is answering;
// a mismatch with the room's current question means the answer arrived
// after a forced advance and is rejected rather than misapplied. A negative
// questionIndex targets whatever question is current, for clients that do
// not track question numbers.
func (s *RoomService) SubmitAnswer(code, sessionID string, questionIndex, choiceIndex int) (AnswerOutcome, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return AnswerOutcome{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.status != domain.StatusLive {
		return AnswerOutcome{}, domain.ErrNotLive
	}
	participant := room.participantLocked(sessionID)
	if participant == nil {
		return AnswerOutcome{}, domain.ErrParticipantNotFound
	}
	if questionIndex < 0 {
		questionIndex = room.currentIndex
	}
	if room.currentIndex >= len(room.questions) || questionIndex != room.currentIndex {
		return AnswerOutcome{}, domain.ErrNoActiveQuestion
	}
	if participant.Answered {
		return AnswerOutcome{}, domain.ErrAlreadyAnswered
	}

	question := room.questions[room.currentIndex]
	if choiceIndex < 0 || choiceIndex >= len(question.Choices) {
		return AnswerOutcome{}, domain.ErrInvalidChoice
	}

	outcome := AnswerOutcome{CorrectIndex: question.CorrectIndex, QuestionIndex: room.currentIndex}
	if choiceIndex == question.CorrectIndex {
		outcome.Correct = true
		outcome.Awarded = question.PointValue()
		participant.Score += outcome.Awarded
	}
	participant.Answered = true

	outcome.TotalScore = participant.Score
	outcome.BothAnswered = room.allAnsweredLocked()
	outcome.Scoreboard = room.scoreboardLocked()
	return outcome, nil
}

// Advance moves the room past the current question: either the next
// question becomes current, or the match finishes and the room is reaped
// from the store. Finished rooms are never mutated again.
func (s *RoomService) Advance(code string) (AdvanceOutcome, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return AdvanceOutcome{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.status != domain.StatusLive {
		return AdvanceOutcome{}, domain.ErrNotLive
	}

	room.currentIndex++
	for _, p := range room.participants {
		p.Answered = false
	}

	total := len(room.questions)
	if room.currentIndex >= total {
		room.status = domain.StatusFinished
		result := room.resultLocked()
		s.rooms.Remove(code)
		s.log.Info().Str("room", code).Bool("draw", result.Draw).Str("winner", result.Winner).Msg("match finished")
		return AdvanceOutcome{Finished: true, Total: total, Result: &result}, nil
	}

	return AdvanceOutcome{
		Question: room.questions[room.currentIndex].View(),
		Number:   room.currentIndex + 1,
		Total:    total,
	}, nil
}

// Disconnect handles a participant's transport loss. Unknown rooms or
// participants are a no-op. A departure from a waiting room just frees the
// seat (and the room, if now empty); a departure mid-countdown or mid-match
// ends it immediately with the survivor winning by forfeit.
func (s *RoomService) Disconnect(code, sessionID string) DisconnectOutcome {
	room, ok := s.rooms.Get(code)
	if !ok {
		return DisconnectOutcome{}
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	participant := room.participantLocked(sessionID)
	if participant == nil {
		return DisconnectOutcome{}
	}

	outcome := DisconnectOutcome{Handled: true, PriorStatus: room.status}

	switch room.status {
	case domain.StatusWaiting:
		remaining := room.participants[:0]
		for _, p := range room.participants {
			if p.SessionID != sessionID {
				remaining = append(remaining, p)
			}
		}
		room.participants = remaining
		if len(room.participants) == 0 {
			s.rooms.Remove(code)
			outcome.RoomRemoved = true
		} else {
			outcome.Snapshot = room.snapshotLocked()
		}
		s.log.Info().Str("room", code).Str("user", participant.Username).Msg("left waiting room")

	case domain.StatusCountdown, domain.StatusLive:
		room.status = domain.StatusFinished
		result := domain.MatchResult{
			RoomCode:    code,
			Forfeit:     true,
			FinalScores: room.scoreboardLocked(),
		}
		for _, p := range room.participants {
			if p.SessionID != sessionID {
				result.Winner = p.Username
			}
		}
		outcome.Forfeit = &result
		s.rooms.Remove(code)
		outcome.RoomRemoved = true
		s.log.Info().Str("room", code).Str("user", participant.Username).Str("winner", result.Winner).Msg("forfeit on disconnect")

	case domain.StatusFinished:
		// Terminal; nothing left to do.
	}

	return outcome
}

// SweepStale evicts rooms older than maxAge and returns their codes so the
// gateway can drop any timers it still holds for them.
func (s *RoomService) SweepStale(maxAge time.Duration) []string {
	evicted := s.rooms.SweepStale(maxAge)
	if len(evicted) > 0 {
		s.log.Info().Strs("rooms", evicted).Msg("swept stale rooms")
	}
	return evicted
}

// Snapshot exposes a room's client-safe view.
func (s *RoomService) Snapshot(code string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}
