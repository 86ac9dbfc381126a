package ws

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// countdownStage orders the pre-match countdown before every question timer.
const countdownStage = -1

// roomTimer is the single cancellable timer handle a room may hold at any
// moment: countdown, question limit and inter-question pause all share the
// slot, so arming one always disarms whatever came before it.
type roomTimer struct {
	timer  clockwork.Timer
	index  int
	cancel chan struct{}
}

// armTimer schedules fn after d for the given room, replacing any timer the
// room already holds. index is the zero-based question the timer concerns
// (countdownStage for the countdown) and makes replacement monotonic: an arm
// for an earlier question than the installed handle lost a race to a timer
// fire that already moved the room on, and is discarded. Without that check
// a late pause arm could displace the next question's limit timer and cut
// the question short. A fire is likewise discarded if the handle was
// replaced or cancelled between firing and running.
func (g *Gateway) armTimer(code string, index int, d time.Duration, fn func()) {
	g.mu.Lock()
	if old, ok := g.timers[code]; ok {
		if old.index > index {
			g.mu.Unlock()
			return
		}
		stopRoomTimer(old)
	}
	handle := &roomTimer{
		timer:  g.clock.NewTimer(d),
		index:  index,
		cancel: make(chan struct{}),
	}
	g.timers[code] = handle
	g.mu.Unlock()

	go func() {
		select {
		case <-handle.timer.Chan():
		case <-handle.cancel:
			return
		}

		g.mu.Lock()
		if g.timers[code] != handle {
			g.mu.Unlock()
			return
		}
		delete(g.timers, code)
		g.mu.Unlock()

		fn()
	}()
}

// cancelTimer drops the room's timer, if any. Finished and evicted rooms
// must end up here so no dangling callback touches a terminal room.
func (g *Gateway) cancelTimer(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if handle, ok := g.timers[code]; ok {
		stopRoomTimer(handle)
		delete(g.timers, code)
	}
}

// stopRoomTimer stops the underlying timer, drains a fire that slipped in,
// and releases the waiting goroutine.
func stopRoomTimer(handle *roomTimer) {
	if !handle.timer.Stop() {
		select {
		case <-handle.timer.Chan():
		default:
		}
	}
	close(handle.cancel)
}
