package game

import (
	"context"
	"fmt"
	"math"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/rs/zerolog/log"
)

const (
	minMaxHP      = 1
	minMaxStamina = 1
	minSkillPower = 0.1
)

// triggerNPC generates the encounter for the current npc node and hands the
// choice to the host.
func (rm *RoomManager) triggerNPC(ctx context.Context, room *Room, players []*Player, out *outbox) error {
	st := &room.State
	ev, err := rm.content.NPCEvent(ctx, content.NPCParams{
		Theme:    room.Theme,
		Language: room.Language,
		Node:     *st.Node,
		Party:    averages(players),
	})
	if err == nil {
		err = ev.Validate()
	}
	if err != nil {
		log.Warn().Err(err).Str("room", room.Code).Msg("npc event unusable, using a local one")
		if ev, err = rm.fallback.NPCEvent(ctx, content.NPCParams{Theme: room.Theme, Language: room.Language, Node: *st.Node, Party: averages(players)}); err != nil {
			return err
		}
	}

	chooser := findPlayer(players, room.HostID)
	if chooser == nil && len(players) > 0 {
		chooser = players[0]
	}
	if chooser == nil {
		return ErrNoPlayers
	}
	st.NPC = &PendingNPC{NodeID: st.Node.ID, Event: ev, ChooserID: chooser.ID, ChooserName: chooser.Username}
	st.Phase = PhaseNPCChoice
	st.AdventureLog = append(st.AdventureLog, AdventureEntry{
		Type:      EntryNPCEvent,
		NodeID:    st.Node.ID,
		NodeName:  st.Node.Name,
		NPC:       ev.NPCName,
		ChooserID: chooser.ID,
		Narrative: ev.Description,
		At:        rm.opts.Now(),
	})
	out.add(EventNPCEvent, npcNotice(st.NPC, st.Node))
	log.Info().Str("room", room.Code).Str("npc", ev.NPCName).Int64("chooser", chooser.ID).Msg("npc event")
	return nil
}

func npcNotice(pending *PendingNPC, node *dungeon.Node) *NPCEventNotice {
	n := &NPCEventNotice{Event: pending.Event, ChooserID: pending.ChooserID, ChooserName: pending.ChooserName}
	if node != nil {
		n.Node = *node
	}
	return n
}

func averages(players []*Player) content.PartyAverages {
	var avg content.PartyAverages
	if len(players) == 0 {
		return avg
	}
	for _, p := range players {
		avg.HP += p.HP
		avg.MaxHP += p.Character.MaxHP
		avg.Stamina += float64(p.Stamina)
		avg.MaxStamina += float64(p.Character.MaxStamina)
	}
	n := float64(len(players))
	avg.HP = combat.Round1(avg.HP / n)
	avg.MaxHP = combat.Round1(avg.MaxHP / n)
	avg.Stamina = combat.Round1(avg.Stamina / n)
	avg.MaxStamina = combat.Round1(avg.MaxStamina / n)
	return avg
}

// NPCChoice applies the chooser's pick to the whole party.
func (rm *RoomManager) NPCChoice(ctx context.Context, code string, playerID int64, choiceID string) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if room.Status != StatusPlaying {
			return ErrNotPlaying
		}
		if findPlayer(players, playerID) == nil {
			return ErrPlayerNotFound
		}
		st := &room.State
		if st.Phase != PhaseNPCChoice || st.NPC == nil {
			return ErrNoPendingEvent
		}
		if st.NPC.ChooserID != playerID {
			return ErrNotChooser
		}
		choice, ok := st.NPC.Event.Choice(choiceID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidChoice, choiceID)
		}

		for _, p := range players {
			applyEffects(p, choice.Outcome.Effects)
		}
		st.AdventureLog = append(st.AdventureLog, AdventureEntry{
			Type:      EntryNPCChoice,
			NodeID:    st.NPC.NodeID,
			NodeName:  st.Node.Name,
			NPC:       st.NPC.Event.NPCName,
			ChooserID: playerID,
			ChoiceID:  choice.ID,
			Narrative: choice.Outcome.Narrative,
			Effects:   &choice.Outcome.Effects,
			At:        rm.opts.Now(),
		})
		st.NPC = nil
		st.Phase = PhaseCleared

		if err := rm.save(ctx, room, players); err != nil {
			return err
		}
		rm.broadcast(a.code, EventNPCResolution, NPCResolution{
			ChoiceID:  choice.ID,
			Narrative: choice.Outcome.Narrative,
			Effects:   choice.Outcome.Effects,
			Players:   ViewPlayers(room, players),
		})
		log.Info().Str("room", a.code).Str("choice", choice.ID).Msg("npc choice resolved")
		return nil
	})
}

// applyEffects shifts a player's maxima and current values. Maxima keep a
// floor, current values stay within [0, max], and an NPC never kills.
func applyEffects(p *Player, fx dungeon.Effects) {
	c := &p.Character
	c.MaxHP = math.Max(minMaxHP, combat.Round1(c.MaxHP+fx.HPBonus))
	c.MaxStamina = max(minMaxStamina, c.MaxStamina+fx.StaminaBonus)
	c.SkillPower = math.Max(minSkillPower, combat.Round1(c.SkillPower+fx.SkillPowerBonus))

	if p.IsAlive {
		p.HP = math.Min(c.MaxHP, math.Max(1, combat.Round1(p.HP+fx.HPBonus)))
		p.Stamina = min(c.MaxStamina, max(0, p.Stamina+fx.StaminaBonus))
		return
	}
	p.HP = math.Min(c.MaxHP, math.Max(0, p.HP))
	p.Stamina = min(c.MaxStamina, max(0, p.Stamina))
}
