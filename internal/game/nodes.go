package game

import (
	"context"
	"fmt"

	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/rs/zerolog/log"
)

// enterNode points the room at node index and prepares its encounter.
// Events for the new encounter are added to out.
func (rm *RoomManager) enterNode(ctx context.Context, room *Room, players []*Player, index int, out *outbox) error {
	node, ok := room.Dungeon.Node(index)
	if !ok {
		return fmt.Errorf("%w: node %d out of range", ErrCorruptState, index)
	}
	st := &room.State
	room.NodeIndex = index
	st.Node = &node
	st.Round = 1
	st.Enemy = nil
	st.NPC = nil
	st.Actions = nil
	st.BattleLog = nil

	switch node.Type {
	case dungeon.NodeNPC:
		return rm.triggerNPC(ctx, room, players, out)
	default:
		e, ok := room.Dungeon.Enemy(node.EnemyID)
		if !ok {
			return fmt.Errorf("%w: node %s references unknown enemy %q", ErrCorruptState, node.ID, node.EnemyID)
		}
		st.Enemy = newEnemyState(e)
		st.Phase = PhaseCollecting
		out.add(EventRoundStarted, RoundStarted{Round: st.Round, Message: roundMessage(st.Round), Enemy: st.Enemy})
	}
	return nil
}

// NextNode advances a cleared room to its next node, or ends the adventure
// in victory after the last one. Host only.
func (rm *RoomManager) NextNode(ctx context.Context, code string, playerID int64) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if findPlayer(players, playerID) == nil {
			return ErrPlayerNotFound
		}
		if room.HostID != playerID {
			return ErrNotHost
		}
		if room.Status != StatusPlaying {
			return ErrNotPlaying
		}
		if room.State.Phase != PhaseCleared {
			return ErrBattleInProgress
		}

		var out outbox
		next := room.NodeIndex + 1
		if next >= len(room.Dungeon.Nodes) {
			return rm.endGame(ctx, a, room, players, content.OutcomeVictory, out)
		}

		from := dungeon.Node{}
		if room.State.Node != nil {
			from = *room.State.Node
		}
		to, _ := room.Dungeon.Node(next)
		transition, err := rm.content.NodeTransition(ctx, content.TransitionParams{
			Theme:    room.Theme,
			Language: room.Language,
			From:     from,
			To:       to,
			Party:    party(players),
		})
		if err != nil {
			log.Warn().Err(err).Str("room", a.code).Msg("transition narrative unavailable")
		}

		for _, p := range players {
			p.Stamina = min(p.Character.MaxStamina, p.Stamina+(p.Character.MaxStamina+1)/2)
		}
		room.State.AdventureLog = append(room.State.AdventureLog, AdventureEntry{
			Type:      EntryTransition,
			NodeID:    to.ID,
			NodeName:  to.Name,
			Narrative: transition.Narrative,
			At:        rm.opts.Now(),
		})

		var follow outbox
		if err := rm.enterNode(ctx, room, players, next, &follow); err != nil {
			return err
		}
		if err := rm.save(ctx, room, players); err != nil {
			return err
		}
		out.add(EventNodeTransition, NodeTransitionEvent{
			Transition:   transition,
			NextNode:     to,
			NodeIndex:    next,
			TotalNodes:   len(room.Dungeon.Nodes),
			CurrentEnemy: room.State.Enemy,
			Players:      ViewPlayers(room, players),
		})
		rm.flush(a.code, append(out, follow...))
		log.Info().Str("room", a.code).Int("node", next).Str("type", string(to.Type)).Msg("node entered")
		return nil
	})
}

// endGame finishes the room, persists, announces the outcome and schedules
// teardown.
func (rm *RoomManager) endGame(ctx context.Context, a *roomActor, room *Room, players []*Player, outcome string, out outbox) error {
	a.cancelAllTimers()
	st := &room.State
	st.Phase = PhaseOver
	st.Outcome = outcome
	st.Actions = nil
	st.NPC = nil
	room.Status = StatusFinished

	summary, err := rm.content.FinalSummary(ctx, finalSummaryParams(room, players, outcome))
	if err != nil {
		log.Warn().Err(err).Str("room", a.code).Msg("final summary unavailable")
	}
	if err := rm.save(ctx, room, players); err != nil {
		return err
	}
	out.add(EventGameOver, GameOver{Outcome: outcome, Summary: summary, Players: ViewPlayers(room, players)})
	rm.flush(a.code, out)
	log.Info().Str("room", a.code).Str("outcome", outcome).Msg("game over")

	if err := rm.export(room, players, summary); err != nil {
		log.Error().Err(err).Str("room", a.code).Msg("chronicle export failed")
	}
	rm.scheduleCleanup(a, rm.opts.GameEndCleanupDelay)
	return nil
}

func finalSummaryParams(room *Room, players []*Player, outcome string) content.FinalSummaryParams {
	p := content.FinalSummaryParams{
		Theme:       room.Theme,
		Language:    room.Language,
		DungeonName: room.Dungeon.Name,
		Outcome:     outcome,
		Party:       party(players),
	}
	for _, e := range room.State.AdventureLog {
		switch e.Type {
		case EntryBattle:
			p.Battles++
			if e.Result == BattleVictory {
				p.Victories++
			}
		case EntryNPCEvent:
			p.NPCEvents++
		}
		p.Moments = append(p.Moments, e.Moment())
	}
	return p
}
