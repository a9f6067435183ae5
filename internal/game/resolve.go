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

// StaminaRegenPerRound is restored to every living player after each round.
const StaminaRegenPerRound = 1

// resolveRound runs once per round, when the last living player has acted.
// It applies the party's actions, the enemy's countermove and the
// per-round regeneration, then persists everything in one write.
func (rm *RoomManager) resolveRound(ctx context.Context, a *roomActor, room *Room, players []*Player, out outbox) error {
	st := &room.State
	st.Phase = PhaseResolving
	enemy := st.Enemy
	sheet := enemy.Sheet()
	hpBefore := enemy.HP

	inputs := make([]combat.ActionInput, 0, len(st.Actions))
	for _, act := range st.Actions {
		inputs = append(inputs, combat.ActionInput{
			PlayerID:   act.PlayerID,
			PlayerName: act.PlayerName,
			Type:       act.Type,
			Skill:      dungeon.Skill{ID: act.SkillID, Name: act.SkillName, Kind: act.SkillKind, Amount: act.SkillAmount},
			Power:      act.SkillPower,
		})
	}
	res := combat.ResolveActions(rm.opts.Dice, inputs)
	enemy.HP = combat.ApplyDamage(enemy.HP, res.TotalDamage)
	for _, r := range res.Results {
		if r.Heal <= 0 {
			continue
		}
		if target := weakestAlly(players); target != nil {
			target.HP = combat.ApplyHeal(target.HP, r.Heal, target.Character.MaxHP)
		}
	}

	narr, err := rm.content.BattleNarration(ctx, content.BattleParams{
		Theme:         room.Theme,
		Language:      room.Language,
		Round:         st.Round,
		Enemy:         sheet,
		EnemyHP:       hpBefore,
		EnemyHPAfter:  enemy.HP,
		Results:       res.Results,
		Party:         party(players),
		EnemyDefeated: enemy.HP <= 0,
	})
	if err != nil {
		log.Warn().Err(err).Str("room", a.code).Msg("battle narration unavailable")
	}

	var enemyResult *EnemyActionResult
	if enemy.HP > 0 {
		enemyResult = rm.enemyTurn(a.code, enemy, sheet, narr.EnemySkill, players)
	}

	for _, p := range players {
		if p.IsAlive {
			p.Stamina = min(p.Character.MaxStamina, p.Stamina+StaminaRegenPerRound)
		}
	}

	st.BattleLog = append(st.BattleLog, RoundLog{
		Round:         st.Round,
		Narrative:     narr.Narrative,
		TotalDamage:   res.TotalDamage,
		HasCritical:   res.HasCritical,
		Actions:       st.Actions,
		PlayerResults: res.Results,
		EnemyAction:   enemyResult,
	})
	resolvedRound := st.Round
	st.Round++
	st.Actions = nil

	status := BattleOngoing
	switch {
	case enemy.HP <= 0:
		status = BattleVictory
	case len(alivePlayers(players)) == 0:
		status = BattleDefeat
	}
	out.add(EventBattleResult, BattleResult{
		Round:            resolvedRound,
		Narrative:        narr.Narrative,
		PlayerNarratives: narr.PlayerNarratives,
		PlayerResults:    res.Results,
		TotalDamage:      res.TotalDamage,
		HasCritical:      res.HasCritical,
		EnemyAction:      enemyResult,
		Enemy:            enemy,
		BattleStatus:     status,
		Players:          ViewPlayers(room, players),
	})
	log.Info().Str("room", a.code).Int("round", resolvedRound).Float64("damage", res.TotalDamage).Float64("enemyHP", enemy.HP).Str("status", status).Msg("round resolved")

	if status != BattleOngoing {
		node := dungeon.Node{}
		if st.Node != nil {
			node = *st.Node
		}
		st.AdventureLog = append(st.AdventureLog, AdventureEntry{
			Type:     EntryBattle,
			NodeID:   node.ID,
			NodeName: node.Name,
			Enemy:    enemy.Name,
			Result:   status,
			Rounds:   resolvedRound,
			At:       rm.opts.Now(),
		})
	}

	switch status {
	case BattleDefeat:
		return rm.endGame(ctx, a, room, players, content.OutcomeDefeat, out)
	case BattleVictory:
		rewards := content.Rewards{
			XP:   50 + int(math.Floor(enemy.MaxHP/5)),
			Gold: 20 + rm.opts.Dice.Roll(50) - 1,
		}
		summary, err := rm.content.BattleSummary(ctx, content.BattleSummaryParams{
			Theme:    room.Theme,
			Language: room.Language,
			Enemy:    sheet,
			Rounds:   resolvedRound,
			Party:    party(players),
			Rewards:  rewards,
		})
		if err != nil {
			log.Warn().Err(err).Str("room", a.code).Msg("battle summary unavailable")
			summary.Rewards = rewards
		}
		st.Phase = PhaseCleared
		out.add(EventBattleSummary, BattleSummaryEvent{BattleSummary: summary, Enemy: enemy.Name, Rounds: resolvedRound})
	default:
		st.Phase = PhaseCollecting
		out.add(EventRoundStarted, RoundStarted{Round: st.Round, Message: roundMessage(st.Round), Enemy: enemy})
	}

	if err := rm.save(ctx, room, players); err != nil {
		return err
	}
	rm.flush(a.code, out)
	return nil
}

// enemyTurn applies the narrator's nominated skill. A nomination outside the
// enemy's kit forfeits the enemy's turn.
func (rm *RoomManager) enemyTurn(code string, enemy *EnemyState, sheet dungeon.Enemy, nominated string, players []*Player) *EnemyActionResult {
	skill, ok := combat.ValidateNomination(sheet, nominated)
	if !ok {
		log.Debug().Str("room", code).Str("skill", nominated).Msg("rejected enemy skill nomination")
		return nil
	}
	act := combat.ResolveEnemy(rm.opts.Dice, sheet, skill)
	result := &EnemyActionResult{EnemyAction: act}

	if act.Kind == dungeon.SkillHealing {
		enemy.HP = combat.ApplyHeal(enemy.HP, act.Amount, enemy.MaxHP)
		result.EnemyHP = enemy.HP
		return result
	}
	living := alivePlayers(players)
	if len(living) > 0 {
		target := living[combat.Pick(rm.opts.Dice, len(living))]
		target.HP = combat.ApplyDamage(target.HP, act.Amount)
		if target.HP <= 0 {
			target.IsAlive = false
		}
		result.TargetID = target.ID
		result.TargetName = target.Username
		result.TargetHP = target.HP
		result.TargetDefeated = !target.IsAlive
	}
	result.EnemyHP = enemy.HP
	return result
}

// weakestAlly is the living player with the lowest HP ratio, earliest joined
// on ties.
func weakestAlly(players []*Player) *Player {
	var best *Player
	bestRatio := math.Inf(1)
	for _, p := range alivePlayers(players) {
		if p.Character.MaxHP <= 0 {
			continue
		}
		if r := p.HP / p.Character.MaxHP; r < bestRatio {
			best, bestRatio = p, r
		}
	}
	return best
}

func roundMessage(round int) string {
	return fmt.Sprintf("Round %d begins. Choose your action.", round)
}
