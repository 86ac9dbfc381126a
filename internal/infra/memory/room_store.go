package memory

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// Room codes come from an alphabet without 0/O, 1/I so they survive being
// read aloud or typed from a phone screen.
const (
	codeAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength       = 6
	allocateAttempts = 50
)

// RoomStore is the in-memory implementation of app.RoomRepository. It is
// the only owner of live rooms; everything else reaches them by code.
type RoomStore struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	rnd   *rand.Rand
	rooms map[string]*app.Room
}

func NewRoomStore(clock clockwork.Clock) *RoomStore {
	return &RoomStore{
		clock: clock,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms: make(map[string]*app.Room),
	}
}

// AllocateCode returns a code no live room currently holds. Codes are only
// recycled after the room that held them is removed. Running out of
// attempts means the keyspace is effectively saturated, which is a
// configuration fault rather than a runtime condition worth retrying.
func (s *RoomStore) AllocateCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < allocateAttempts; i++ {
		code := s.randomCodeLocked()
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", domain.ErrCodespaceExhausted
}

func (s *RoomStore) randomCodeLocked() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func (s *RoomStore) Put(room *app.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code()] = room
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// Len reports how many live rooms the store holds.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// SweepStale removes rooms older than maxAge regardless of status and
// returns the evicted codes.
func (s *RoomStore) SweepStale(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-maxAge)
	var evicted []string
	for code, room := range s.rooms {
		if room.CreatedAt().Before(cutoff) {
			delete(s.rooms, code)
			evicted = append(evicted, code)
		}
	}
	return evicted
}
