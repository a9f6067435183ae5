package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ActionTimeout       time.Duration
	IdleCleanupDelay    time.Duration
	GameEndCleanupDelay time.Duration
	MaxPartySize        int
	// ExportFile receives a chronicle of every finished game. Empty disables.
	ExportFile string
	Dice       combat.Dice
	Now        func() time.Time
}

func (o *Options) defaults() {
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if o.IdleCleanupDelay <= 0 {
		o.IdleCleanupDelay = 30 * time.Second
	}
	if o.GameEndCleanupDelay <= 0 {
		o.GameEndCleanupDelay = 60 * time.Second
	}
	if o.MaxPartySize <= 0 {
		o.MaxPartySize = 4
	}
	if o.Dice == nil {
		o.Dice = combat.RandomDice{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
}

// RoomManager is the session engine. Every room code gets an actor that
// runs all mutations and timer expiries for that room one at a time;
// different rooms proceed in parallel.
type RoomManager struct {
	store    Store
	content  content.Generator
	fallback *content.Fallback
	bus      Broadcaster
	opts     Options

	mu     sync.Mutex
	actors map[string]*roomActor
	closed bool
	wg     sync.WaitGroup
}

func NewRoomManager(store Store, gen content.Generator, bus Broadcaster, opts Options) *RoomManager {
	opts.defaults()
	fb := content.NewFallback(opts.Dice)
	if _, ok := gen.(*content.Resilient); !ok {
		gen = content.WithFallback(gen, fb, 0)
	}
	return &RoomManager{
		store:    store,
		content:  gen,
		fallback: fb,
		bus:      bus,
		opts:     opts,
		actors:   make(map[string]*roomActor),
	}
}

type roomActor struct {
	code string
	jobs chan func()
	done chan struct{}

	// Everything below is touched only from the actor goroutine.
	stopped  bool
	timers   map[int64]*actionTimer
	timerGen uint64
	conns    map[string]int64
	idle     *time.Timer
	idleGen  uint64
	cleanup  *time.Timer
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (rm *RoomManager) actor(code string) (*roomActor, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return nil, ErrRoomNotFound
	}
	if a := rm.actors[code]; a != nil {
		return a, nil
	}
	a := &roomActor{
		code:   code,
		jobs:   make(chan func()),
		done:   make(chan struct{}),
		timers: make(map[int64]*actionTimer),
		conns:  make(map[string]int64),
	}
	rm.actors[code] = a
	rm.wg.Add(1)
	go rm.run(a)
	return a, nil
}

func (rm *RoomManager) run(a *roomActor) {
	defer rm.wg.Done()
	for job := range a.jobs {
		job()
		if a.stopped {
			break
		}
	}
	a.cancelAllTimers()
	a.stopIdle()
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	rm.mu.Lock()
	if rm.actors[a.code] == a {
		delete(rm.actors, a.code)
	}
	rm.mu.Unlock()
	close(a.done)
	log.Debug().Str("room", a.code).Msg("room actor stopped")
}

// do runs fn on the room's actor and waits for it. Once accepted, fn runs to
// completion even if ctx is cancelled.
func (rm *RoomManager) do(ctx context.Context, code string, fn func(ctx context.Context, a *roomActor) error) error {
	code = normalizeCode(code)
	if code == "" {
		return ErrRoomNotFound
	}
	for attempt := 0; attempt < 2; attempt++ {
		a, err := rm.actor(code)
		if err != nil {
			return err
		}
		result := make(chan error, 1)
		job := func() {
			err := fn(context.WithoutCancel(ctx), a)
			if errors.Is(err, ErrRoomNotFound) && len(a.conns) == 0 && len(a.timers) == 0 {
				a.stopped = true
			}
			result <- err
		}
		select {
		case a.jobs <- job:
			select {
			case err := <-result:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-a.done:
			// Actor retired between lookup and send. Try a fresh one.
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrRoomNotFound
}

// post queues fn on a specific actor without waiting. Used by timers, which
// must never reach a successor actor for the same code.
func (rm *RoomManager) post(a *roomActor, fn func(ctx context.Context, a *roomActor)) {
	select {
	case a.jobs <- func() { fn(context.Background(), a) }:
	case <-a.done:
	}
}

// Close stops all room actors and their timers. Persisted rooms are kept.
func (rm *RoomManager) Close() {
	rm.mu.Lock()
	rm.closed = true
	actors := make([]*roomActor, 0, len(rm.actors))
	for _, a := range rm.actors {
		actors = append(actors, a)
	}
	rm.mu.Unlock()

	for _, a := range actors {
		rm.post(a, func(context.Context, *roomActor) { a.stopped = true })
	}
	rm.wg.Wait()
}

// ActiveRooms returns the number of rooms with a live actor.
func (rm *RoomManager) ActiveRooms() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.actors)
}

func (rm *RoomManager) broadcast(code, event string, payload any) {
	if rm.bus == nil {
		return
	}
	rm.bus.Broadcast(code, event, payload)
}

// load re-reads the room and its players. It is the only way job code
// obtains state, so every operation starts from what is persisted.
func (rm *RoomManager) load(ctx context.Context, code string) (*Room, []*Player, error) {
	room, err := rm.store.GetRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := room.State.Validate(); err != nil {
		log.Error().Err(err).Str("room", code).Msg("invalid persisted game state")
		return nil, nil, err
	}
	players, err := rm.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, players, nil
}

func (rm *RoomManager) save(ctx context.Context, room *Room, players []*Player) error {
	room.UpdatedAt = rm.opts.Now()
	return rm.store.SaveRoom(ctx, room, players)
}

func findPlayer(players []*Player, id int64) *Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func alivePlayers(players []*Player) []*Player {
	var out []*Player
	for _, p := range players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}
