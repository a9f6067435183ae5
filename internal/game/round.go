package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/rs/zerolog/log"
)

type ActionRequest struct {
	Type  combat.ActionType `json:"type"`
	Skill string            `json:"skillName,omitempty"`
}

// SubmitAction records one player's move for the current round and resolves
// the round once every living player has acted.
func (rm *RoomManager) SubmitAction(ctx context.Context, code string, playerID int64, req ActionRequest) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if room.Status != StatusPlaying {
			return ErrNotPlaying
		}
		if room.State.Phase != PhaseCollecting {
			return ErrNotInBattle
		}
		p := findPlayer(players, playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if !p.IsAlive {
			return ErrPlayerDefeated
		}
		if room.State.HasActed(p.ID) {
			return ErrAlreadyActed
		}
		action, err := rm.buildAction(p, req)
		if err != nil {
			return err
		}
		return rm.record(ctx, a, room, players, p, action, nil)
	})
}

func (rm *RoomManager) buildAction(p *Player, req ActionRequest) (Action, error) {
	t := combat.ActionType(strings.ToLower(string(req.Type)))
	if !t.Valid() {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Type)
	}
	action := Action{
		ID:          uuid.NewString(),
		PlayerID:    p.ID,
		PlayerName:  p.Username,
		Type:        t,
		SubmittedAt: rm.opts.Now(),
	}
	switch t {
	case combat.ActionRest:
		rm.rest(p, &action)
	case combat.ActionAttack, combat.ActionHeal:
		skill, ok := p.Character.Skill(req.Skill)
		if !ok {
			return Action{}, fmt.Errorf("%w: %q", ErrUnknownSkill, req.Skill)
		}
		want := dungeon.SkillDamage
		if t == combat.ActionHeal {
			want = dungeon.SkillHealing
		}
		if skill.Kind != want {
			return Action{}, fmt.Errorf("%w: %s is a %s skill", ErrSkillMismatch, skill.Name, skill.Kind)
		}
		if p.Stamina < skill.StaminaCost {
			return Action{}, fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientStamina, skill.Name, skill.StaminaCost, p.Stamina)
		}
		p.Stamina -= skill.StaminaCost
		action.SkillID = skill.ID
		action.SkillName = skill.Name
		action.SkillKind = skill.Kind
		action.SkillAmount = skill.Amount
		action.SkillPower = p.Character.SkillPower
		action.StaminaCost = skill.StaminaCost
	}
	return action, nil
}

func (rm *RoomManager) rest(p *Player, action *Action) {
	roll := combat.D6(rm.opts.Dice)
	before := p.Stamina
	p.Stamina = min(p.Character.MaxStamina, p.Stamina+roll)
	action.DiceRoll = roll
	action.StaminaRegained = p.Stamina - before
}

// record appends action, persists, notifies and resolves when the round is
// complete. The caller has already checked the player may act.
func (rm *RoomManager) record(ctx context.Context, a *roomActor, room *Room, players []*Player, p *Player, action Action, out outbox) error {
	first := len(room.State.Actions) == 0
	room.State.Actions = append(room.State.Actions, action)
	a.cancelTimer(p.ID)
	if first {
		if armed := rm.armActionTimers(a, room, players); len(armed) > 0 {
			out.add(EventTimerStarted, TimerStarted{Round: room.State.Round, Seconds: int(rm.opts.ActionTimeout.Seconds()), Players: armed})
		}
	}

	alive := len(alivePlayers(players))
	out.add(EventActionReceived, ActionReceived{PlayerID: p.ID, Action: action, TotalActions: len(room.State.Actions), AliveCount: alive})
	log.Info().Str("room", a.code).Int64("player", p.ID).Str("action", string(action.Type)).Bool("auto", action.Auto).Int("round", room.State.Round).Msg("action")

	if len(room.State.Actions) < alive {
		if err := rm.save(ctx, room, []*Player{p}); err != nil {
			a.cancelAllTimers()
			rm.rearm(ctx, a)
			return err
		}
		out.add(EventWaitingOn, waitingOn(room, players))
		rm.flush(a.code, out)
		return nil
	}

	a.cancelAllTimers()
	if err := rm.resolveRound(ctx, a, room, players, out); err != nil {
		rm.rearm(ctx, a)
		return err
	}
	return nil
}

// rearm restores watchdogs from persisted state after a failed write, so a
// half-collected round cannot stall.
func (rm *RoomManager) rearm(ctx context.Context, a *roomActor) {
	room, players, err := rm.load(ctx, a.code)
	if err != nil || room.State.Phase != PhaseCollecting || len(room.State.Actions) == 0 {
		return
	}
	rm.armActionTimers(a, room, players)
}

// onActionTimeout submits a rest for a player whose watchdog expired.
func (rm *RoomManager) onActionTimeout(ctx context.Context, a *roomActor, playerID int64, gen uint64) {
	at, ok := a.fired(playerID, gen)
	if !ok {
		return
	}
	room, players, err := rm.load(ctx, a.code)
	if err != nil {
		log.Warn().Err(err).Str("room", a.code).Int64("player", playerID).Msg("action timeout: load failed")
		return
	}
	if room.Status != StatusPlaying || room.State.Phase != PhaseCollecting || room.State.Round != at.round {
		return
	}
	p := findPlayer(players, playerID)
	if p == nil || !p.IsAlive || room.State.HasActed(playerID) {
		return
	}

	action := Action{
		ID:          uuid.NewString(),
		PlayerID:    p.ID,
		PlayerName:  p.Username,
		Type:        combat.ActionRest,
		Auto:        true,
		SubmittedAt: rm.opts.Now(),
	}
	rm.rest(p, &action)
	var out outbox
	out.add(EventActionTimedOut, ActionTimedOut{
		PlayerID:        p.ID,
		PlayerName:      p.Username,
		AutoAction:      string(combat.ActionRest),
		StaminaRegained: action.StaminaRegained,
		DiceRoll:        action.DiceRoll,
	})
	if err := rm.record(ctx, a, room, players, p, action, out); err != nil {
		log.Error().Err(err).Str("room", a.code).Int64("player", playerID).Msg("action timeout: auto rest failed")
	}
}

func waitingOn(room *Room, players []*Player) WaitingOn {
	w := WaitingOn{ActedCount: len(room.State.Actions), WaitingFor: []PlayerRef{}}
	for _, p := range alivePlayers(players) {
		w.TotalCount++
		if !room.State.HasActed(p.ID) {
			w.WaitingFor = append(w.WaitingFor, PlayerRef{ID: p.ID, Name: p.Username})
		}
	}
	return w
}
