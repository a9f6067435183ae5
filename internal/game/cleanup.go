package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

func (a *roomActor) stopIdle() {
	if a.idle != nil {
		a.idle.Stop()
		a.idle = nil
	}
	a.idleGen++
}

// scheduleIdleCleanup tears the room down if nobody reconnects within
// IdleCleanupDelay. Any join in between cancels it.
func (rm *RoomManager) scheduleIdleCleanup(a *roomActor) {
	if len(a.conns) > 0 {
		return
	}
	a.stopIdle()
	gen := a.idleGen
	a.idle = time.AfterFunc(rm.opts.IdleCleanupDelay, func() {
		rm.post(a, func(ctx context.Context, a *roomActor) {
			if a.idleGen != gen || len(a.conns) > 0 {
				return
			}
			a.idle = nil
			if err := rm.cleanupRoom(ctx, a, "idle"); err != nil {
				log.Error().Err(err).Str("room", a.code).Msg("room cleanup failed")
			}
		})
	})
	log.Debug().Str("room", a.code).Dur("delay", rm.opts.IdleCleanupDelay).Msg("idle cleanup scheduled")
}

// scheduleCleanup tears the room down after delay regardless of connections.
func (rm *RoomManager) scheduleCleanup(a *roomActor, delay time.Duration) {
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	a.cleanup = time.AfterFunc(delay, func() {
		rm.post(a, func(ctx context.Context, a *roomActor) {
			if err := rm.cleanupRoom(ctx, a, "finished"); err != nil {
				log.Error().Err(err).Str("room", a.code).Msg("room cleanup failed")
			}
		})
	})
}

// cleanupRoom deletes the room and retires its actor.
func (rm *RoomManager) cleanupRoom(ctx context.Context, a *roomActor, reason string) error {
	a.cancelAllTimers()
	room, err := rm.store.GetRoom(ctx, a.code)
	switch {
	case err == nil:
		if err := rm.store.DeleteRoom(ctx, room.ID); err != nil {
			return err
		}
	case !errors.Is(err, ErrRoomNotFound):
		return err
	}
	a.stopped = true
	log.Info().Str("room", a.code).Str("reason", reason).Msg("room cleaned up")
	return nil
}

// ForceCleanup removes a room immediately, whatever its state.
func (rm *RoomManager) ForceCleanup(ctx context.Context, code string) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		if _, err := rm.store.GetRoom(ctx, a.code); err != nil {
			return err
		}
		return rm.cleanupRoom(ctx, a, "forced")
	})
}
