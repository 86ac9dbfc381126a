package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-duel-service/internal/app"
)

func TestAllocateCodeShape(t *testing.T) {
	store := NewRoomStore(clockwork.NewFakeClock())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := store.AllocateCode()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-char code, got %q", code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Fatalf("code %q contains %q outside the alphabet", code, ch)
			}
		}
		// Ambiguous glyphs stay out of codes people read aloud.
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("code %q contains an ambiguous character", code)
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Fatalf("suspiciously many collisions: %d distinct of 100", len(seen))
	}
}

func TestAllocateCodeAvoidsLiveRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewRoomStore(clock)

	code, err := store.AllocateCode()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	store.Put(app.NewRoom(code, clock.Now()))

	for i := 0; i < 50; i++ {
		next, err := store.AllocateCode()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if next == code {
			t.Fatalf("allocated a code held by a live room")
		}
	}
}

func TestRoomStoreLifecycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewRoomStore(clock)

	room := app.NewRoom("ABCDEF", clock.Now())
	store.Put(room)

	got, ok := store.Get("ABCDEF")
	if !ok || got != room {
		t.Fatalf("expected stored room back")
	}
	if _, ok := store.Get("MISSIN"); ok {
		t.Fatalf("expected miss for unknown code")
	}

	store.Remove("ABCDEF")
	if _, ok := store.Get("ABCDEF"); ok {
		t.Fatalf("expected room removed")
	}
}

func TestSweepStaleEvictsByAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewRoomStore(clock)

	old := app.NewRoom("OLDONE", clock.Now())
	store.Put(old)

	clock.Advance(31 * time.Minute)
	fresh := app.NewRoom("FRESH2", clock.Now())
	store.Put(fresh)

	evicted := store.SweepStale(30 * time.Minute)
	if len(evicted) != 1 || evicted[0] != "OLDONE" {
		t.Fatalf("expected OLDONE evicted, got %v", evicted)
	}
	if _, ok := store.Get("OLDONE"); ok {
		t.Fatalf("stale room survived sweep")
	}
	if _, ok := store.Get("FRESH2"); !ok {
		t.Fatalf("fresh room was evicted")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 room left, got %d", store.Len())
	}
}
