package game

import (
	"context"
	"time"
)

// actionTimer is one per-player watchdog. gen identifies the arming; a
// callback whose gen no longer matches the registry was cancelled and does
// nothing.
type actionTimer struct {
	t     *time.Timer
	gen   uint64
	round int
}

func (a *roomActor) cancelTimer(playerID int64) {
	if at := a.timers[playerID]; at != nil {
		at.t.Stop()
		delete(a.timers, playerID)
	}
}

func (a *roomActor) cancelAllTimers() {
	for id, at := range a.timers {
		at.t.Stop()
		delete(a.timers, id)
	}
}

// armActionTimers starts a watchdog for every living player who has not
// acted and has none running. It returns the players that got one.
func (rm *RoomManager) armActionTimers(a *roomActor, room *Room, players []*Player) []PlayerRef {
	var armed []PlayerRef
	for _, p := range alivePlayers(players) {
		if room.State.HasActed(p.ID) || a.timers[p.ID] != nil {
			continue
		}
		a.timerGen++
		gen, playerID := a.timerGen, p.ID
		t := time.AfterFunc(rm.opts.ActionTimeout, func() {
			rm.post(a, func(ctx context.Context, a *roomActor) {
				rm.onActionTimeout(ctx, a, playerID, gen)
			})
		})
		a.timers[p.ID] = &actionTimer{t: t, gen: gen, round: room.State.Round}
		armed = append(armed, PlayerRef{ID: p.ID, Name: p.Username})
	}
	return armed
}

// fired consumes the registry entry if it still belongs to gen.
func (a *roomActor) fired(playerID int64, gen uint64) (*actionTimer, bool) {
	at := a.timers[playerID]
	if at == nil || at.gen != gen {
		return nil, false
	}
	delete(a.timers, playerID)
	return at, true
}
