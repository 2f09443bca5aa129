package game

import (
	"time"

	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

const (
	timerAdvance    = "advance"
	timerProposal   = "proposal"
	timerAccusation = "accusation"
)

// schedule runs fn under the room lock after d. A timer with the same name is replaced.
// The callback is dropped if the room was reset or the game ended in the meantime.
// Caller holds room.Mu.
func (e *Engine) schedule(room *internal.Room, name string, d time.Duration, fn func(room *internal.Room, out *outbox)) {
	cancelTimer(room, name)

	epoch := room.Epoch
	var t internal.Timer
	t = e.clock.AfterFunc(d, func() {
		out := newOutbox(room)
		room.Mu.Lock()
		if room.Epoch != epoch || room.Timers[name] != t || room.State.Phase == internal.PhaseGameOver {
			room.Mu.Unlock()
			e.log.Debug("[schedule] dropping stale timer",
				zap.String("room", room.Code), zap.String("timer", name))
			return
		}
		delete(room.Timers, name)
		fn(room, out)
		room.Mu.Unlock()
		e.flush(out)
	})
	room.Timers[name] = t
}

// scheduleAdvance queues a delayed transition. Intents are refused until it fires.
func (e *Engine) scheduleAdvance(room *internal.Room, d time.Duration, fn func(room *internal.Room, out *outbox)) {
	room.State.Pending = true
	e.schedule(room, timerAdvance, d, func(room *internal.Room, out *outbox) {
		room.State.Pending = false
		fn(room, out)
	})
}

// cancelTimer stops one named timer. Caller holds room.Mu.
func cancelTimer(room *internal.Room, name string) {
	if t, ok := room.Timers[name]; ok {
		t.Stop()
		delete(room.Timers, name)
	}
}

// stopTimers stops every timer of the room. Caller holds room.Mu.
func stopTimers(room *internal.Room) {
	for name, t := range room.Timers {
		t.Stop()
		delete(room.Timers, name)
	}
}
