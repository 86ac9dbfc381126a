package app

import (
	"sync"
	"time"

	"quiz-duel-service/internal/domain"
)

// Room is the in-memory aggregate for one 1v1 match. All mutation goes
// through RoomService; the mutex serializes socket events and timer
// callbacks that target the same room.
type Room struct {
	code      string
	createdAt time.Time

	mu           sync.Mutex
	status       domain.RoomStatus
	participants []*domain.Participant
	questions    []domain.Question
	currentIndex int
}

// NewRoom is exported for stores that need to seed rooms.
func NewRoom(code string, createdAt time.Time) *Room {
	return &Room{
		code:      code,
		createdAt: createdAt,
		status:    domain.StatusWaiting,
	}
}

// Code returns the room's shareable code.
func (r *Room) Code() string { return r.code }

// CreatedAt returns the creation timestamp used for stale-room eviction.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Status returns the room's current lifecycle status.
func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CurrentIndex returns the zero-based position of the current question.
func (r *Room) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentIndex
}

// Snapshot returns the client-safe view of the room.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		Code:         r.code,
		Status:       r.status,
		Participants: r.scoreboardLocked(),
		CreatedAt:    r.createdAt,
	}
}

func (r *Room) scoreboardLocked() []domain.ParticipantView {
	views := make([]domain.ParticipantView, 0, len(r.participants))
	for _, p := range r.participants {
		views = append(views, domain.ParticipantView{
			Username: p.Username,
			Role:     p.Role,
			Score:    p.Score,
			Answered: p.Answered,
		})
	}
	return views
}

func (r *Room) participantLocked(sessionID string) *domain.Participant {
	for _, p := range r.participants {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Room) allAnsweredLocked() bool {
	for _, p := range r.participants {
		if !p.Answered {
			return false
		}
	}
	return true
}

// resultLocked computes the final verdict from current scores.
func (r *Room) resultLocked() domain.MatchResult {
	result := domain.MatchResult{
		RoomCode:    r.code,
		FinalScores: r.scoreboardLocked(),
	}
	if len(r.participants) < 2 {
		result.Draw = true
		return result
	}
	a, b := r.participants[0], r.participants[1]
	switch {
	case a.Score > b.Score:
		result.Winner = a.Username
	case b.Score > a.Score:
		result.Winner = b.Username
	default:
		result.Draw = true
	}
	return result
}
