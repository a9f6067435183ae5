package content

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

// Fallback is the deterministic-shape generator. Its answers always
// validate; only stat rolls and node layout depend on the dice.
type Fallback struct {
	Dice combat.Dice
}

var _ Generator = (*Fallback)(nil)

func NewFallback(d combat.Dice) *Fallback {
	if d == nil {
		d = combat.RandomDice{}
	}
	return &Fallback{Dice: d}
}

var difficultyScale = map[dungeon.Difficulty]float64{
	dungeon.DifficultyEasy:   0.8,
	dungeon.DifficultyMedium: 1.0,
	dungeon.DifficultyHard:   1.3,
}

func (f *Fallback) Dungeon(_ context.Context, p DungeonParams) (dungeon.Dungeon, error) {
	theme := strings.TrimSpace(p.Theme)
	if theme == "" {
		theme = "Forgotten Crypt"
	}
	p.Theme = theme
	scale := difficultyScale[p.Difficulty]
	if scale == 0 {
		scale = 1
	}
	n := max(p.NodeCount, 1)

	d := dungeon.Dungeon{Difficulty: p.Difficulty}
	d.Name, _ = expand(fallbackText, "dungeonName", p)
	d.Description, _ = expand(fallbackText, "dungeonDescription", p)

	prevNPC := false
	for i := 1; i <= n; i++ {
		last := i == n
		// Never two encounters in a row, and never an encounter first.
		if !last && i > 1 && !prevNPC && f.Dice.Roll(10) <= 3 {
			d.Nodes = append(d.Nodes, dungeon.Node{
				ID:   fmt.Sprintf("node-%d", i),
				Name: fmt.Sprintf("Mysterious Encounter %d", i),
				Type: dungeon.NodeNPC,
			})
			prevNPC = true
			continue
		}
		prevNPC = false

		role := dungeon.RoleMinion
		switch {
		case last:
			role = dungeon.RoleBoss
		case f.Dice.Roll(2) == 2:
			role = dungeon.RoleElite
		}
		enemy := f.enemy(i, theme, role, scale)
		name := fmt.Sprintf("Combat Zone %d", i)
		if last {
			name = "Final Confrontation"
		}
		d.Nodes = append(d.Nodes, dungeon.Node{
			ID:      fmt.Sprintf("node-%d", i),
			Name:    name,
			Type:    dungeon.NodeEnemy,
			EnemyID: enemy.ID,
		})
		d.Enemies = append(d.Enemies, enemy)
	}
	d.Normalize()
	return d, nil
}

var archetypes = []string{"warrior", "mage", "assassin"}

func (f *Fallback) enemy(i int, theme string, role dungeon.EnemyRole, scale float64) dungeon.Enemy {
	e := dungeon.Enemy{
		ID:        fmt.Sprintf("enemy-%d", i),
		Role:      role,
		Archetype: archetypes[combat.Pick(f.Dice, len(archetypes))],
	}
	var hp float64
	switch role {
	case dungeon.RoleBoss:
		e.Name = theme + " Lord"
		hp = float64(150 + f.Dice.Roll(100) - 1)
		e.SkillPower = 1.6
		e.Skills = []dungeon.Skill{
			{Name: "Crushing Blow", Kind: dungeon.SkillDamage, Amount: 10},
			{Name: "Dark Magic", Kind: dungeon.SkillDamage, Amount: 14},
			{Name: "Shadow Mend", Kind: dungeon.SkillHealing, Amount: 12},
			{Name: "Shadow Step", Kind: dungeon.SkillDamage, Amount: 8},
		}
	case dungeon.RoleElite:
		e.Name = theme + " Champion"
		hp = float64(80 + f.Dice.Roll(40) - 1)
		e.SkillPower = 1.3
		e.Skills = []dungeon.Skill{
			{Name: "Strike", Kind: dungeon.SkillDamage, Amount: 9},
			{Name: "Power Strike", Kind: dungeon.SkillDamage, Amount: 12},
		}
	default:
		e.Name = theme + " Guardian"
		hp = float64(30 + f.Dice.Roll(30) - 1)
		e.SkillPower = 1.0
		e.Skills = []dungeon.Skill{
			{Name: "Basic Attack", Kind: dungeon.SkillDamage, Amount: 6},
			{Name: "Lunge", Kind: dungeon.SkillDamage, Amount: 8},
		}
	}
	e.HP = math.Round(hp * scale)
	return e
}

type roleSheet struct {
	hp, hpSpread           int
	stamina, staminaSpread int
	power                  float64
	skills                 []dungeon.Skill
}

var roleSheets = map[string]roleSheet{
	"Warrior": {hp: 120, hpSpread: 30, stamina: 60, staminaSpread: 20, power: 1.5, skills: []dungeon.Skill{
		{Name: "Slash", Description: "A basic melee attack", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 2},
		{Name: "Power Strike", Description: "A powerful charging attack", Kind: dungeon.SkillDamage, Amount: 20, StaminaCost: 5},
		{Name: "Second Wind", Description: "Shake off the pain", Kind: dungeon.SkillHealing, Amount: 10, StaminaCost: 3},
		{Name: "Whirlwind", Description: "A sweeping spin attack", Kind: dungeon.SkillDamage, Amount: 25, StaminaCost: 7},
	}},
	"Mage": {hp: 80, hpSpread: 30, stamina: 80, staminaSpread: 20, power: 2.5, skills: []dungeon.Skill{
		{Name: "Fireball", Description: "Hurl a ball of fire", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 4},
		{Name: "Ice Storm", Description: "Freeze foes with magical ice", Kind: dungeon.SkillDamage, Amount: 10, StaminaCost: 3},
		{Name: "Mana Shield", Description: "A shimmering restorative barrier", Kind: dungeon.SkillHealing, Amount: 8, StaminaCost: 3},
		{Name: "Lightning Bolt", Description: "Strike with electricity", Kind: dungeon.SkillDamage, Amount: 15, StaminaCost: 6},
	}},
	"Rogue": {hp: 90, hpSpread: 30, stamina: 70, staminaSpread: 20, power: 2.0, skills: []dungeon.Skill{
		{Name: "Backstab", Description: "Strike from the shadows", Kind: dungeon.SkillDamage, Amount: 14, StaminaCost: 4},
		{Name: "Quick Cut", Description: "A fast, cheap slice", Kind: dungeon.SkillDamage, Amount: 7, StaminaCost: 1},
		{Name: "Evasion", Description: "Dodge and recover", Kind: dungeon.SkillHealing, Amount: 8, StaminaCost: 2},
		{Name: "Poison Strike", Description: "Poison your blade", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 3},
	}},
	"Paladin": {hp: 110, hpSpread: 30, stamina: 60, staminaSpread: 20, power: 2.0, skills: []dungeon.Skill{
		{Name: "Holy Strike", Description: "Strike with divine power", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 3},
		{Name: "Protection Aura", Description: "Shield nearby allies", Kind: dungeon.SkillHealing, Amount: 10, StaminaCost: 3},
		{Name: "Healing Light", Description: "Heal an ally", Kind: dungeon.SkillHealing, Amount: 14, StaminaCost: 5},
		{Name: "Judgement", Description: "Call down righteous fury", Kind: dungeon.SkillDamage, Amount: 18, StaminaCost: 6},
	}},
	"Ranger": {hp: 100, hpSpread: 30, stamina: 70, staminaSpread: 20, power: 2.0, skills: []dungeon.Skill{
		{Name: "Arrow Shot", Description: "Fire an accurate arrow", Kind: dungeon.SkillDamage, Amount: 10, StaminaCost: 2},
		{Name: "Multi-Shot", Description: "Fire multiple arrows", Kind: dungeon.SkillDamage, Amount: 16, StaminaCost: 5},
		{Name: "Trap", Description: "Set a trap for enemies", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 3},
		{Name: "Beast Companion", Description: "A helpful animal tends wounds", Kind: dungeon.SkillHealing, Amount: 9, StaminaCost: 3},
	}},
	"Cleric": {hp: 95, hpSpread: 30, stamina: 75, staminaSpread: 20, power: 2.0, skills: []dungeon.Skill{
		{Name: "Heal", Description: "Restore HP to an ally", Kind: dungeon.SkillHealing, Amount: 15, StaminaCost: 4},
		{Name: "Holy Smite", Description: "Deal holy damage", Kind: dungeon.SkillDamage, Amount: 12, StaminaCost: 3},
		{Name: "Blessing", Description: "A gentle restoring prayer", Kind: dungeon.SkillHealing, Amount: 10, StaminaCost: 2},
		{Name: "Radiance", Description: "Blinding holy light", Kind: dungeon.SkillDamage, Amount: 16, StaminaCost: 6},
	}},
}

func (f *Fallback) Character(_ context.Context, p CharacterParams) (dungeon.Character, error) {
	role := dungeon.Roles[combat.Pick(f.Dice, len(dungeon.Roles))]
	sheet := roleSheets[role]
	theme := strings.TrimSpace(p.Theme)
	if theme == "" {
		theme = "Depths"
	}
	c := dungeon.Character{
		Name:       fmt.Sprintf("%s of the %s", role, theme),
		Role:       role,
		MaxHP:      float64(sheet.hp + f.Dice.Roll(sheet.hpSpread) - 1),
		MaxStamina: sheet.stamina + f.Dice.Roll(sheet.staminaSpread) - 1,
		SkillPower: sheet.power + float64(f.Dice.Roll(6)-1)/10,
		Skills:     append([]dungeon.Skill(nil), sheet.skills[:3+f.Dice.Roll(2)-1]...),
	}
	c.Normalize()
	return c, nil
}

func (f *Fallback) BattleNarration(_ context.Context, p BattleParams) (BattleNarration, error) {
	narrative, err := expand(fallbackText, "battle", p)
	if err != nil {
		narrative = fmt.Sprintf("Round %d ends.", p.Round)
	}
	out := BattleNarration{Narrative: narrative}
	for _, r := range p.Results {
		out.PlayerNarratives = append(out.PlayerNarratives, PlayerNarrative{
			PlayerID:  r.PlayerID,
			Narrative: fmt.Sprintf("%s's action: %s", r.PlayerName, r.Type),
		})
	}
	if !p.EnemyDefeated {
		if s, ok := combat.FallbackSkill(p.Enemy, p.EnemyHPAfter); ok {
			out.EnemySkill = s.ID
		}
	}
	return out, nil
}

func (f *Fallback) NPCEvent(_ context.Context, p NPCParams) (dungeon.NPCEvent, error) {
	lowHP := p.Party.HP < p.Party.MaxHP*0.5
	lowStamina := p.Party.Stamina < p.Party.MaxStamina*0.5
	theme := strings.ToLower(strings.TrimSpace(p.Theme))
	if theme == "" {
		theme = "dungeon"
	}

	switch {
	case lowHP && lowStamina:
		return npcEvent("Mysterious Healer",
			fmt.Sprintf("A hooded figure emerges from the shadows of the %s. They offer aid, but at what cost?", theme),
			"Accept the powerful healing ritual", "The healer channels mysterious energy. You feel rejuvenated but exhausted.", dungeon.Effects{HPBonus: 30, StaminaBonus: -2, SkillPowerBonus: 0.2},
			"Take only the basic healing herbs", "You accept some healing herbs and rest briefly.", dungeon.Effects{HPBonus: 15, StaminaBonus: 3}), nil
	case lowHP:
		return npcEvent("Wounded Warrior",
			"An injured warrior rests against the wall. They offer medical supplies in exchange for your help.",
			"Help them and share supplies", "Working together, you both patch your wounds more effectively.", dungeon.Effects{HPBonus: 25, StaminaBonus: 2, SkillPowerBonus: 0.3},
			"Politely decline and move on", "They toss you a basic healing potion before you leave.", dungeon.Effects{HPBonus: 12}), nil
	case lowStamina:
		return npcEvent("Resting Merchant",
			"A traveling merchant is taking a break. They offer energy-restoring items.",
			"Buy the premium energy elixir", "The elixir courses through you, restoring your vigor significantly.", dungeon.Effects{HPBonus: 5, StaminaBonus: 6, SkillPowerBonus: 0.2},
			"Take the free water and rest", "A brief rest and some water restore your energy partially.", dungeon.Effects{HPBonus: 8, StaminaBonus: 4}), nil
	default:
		return npcEvent("Wise Sage",
			"An old sage sits meditating. They offer to share ancient knowledge or blessings.",
			"Receive the powerful blessing", "Ancient power flows through you. Your abilities are enhanced!", dungeon.Effects{HPBonus: 10, StaminaBonus: 4, SkillPowerBonus: 0.5},
			"Listen to their wisdom", "Their words calm your mind. You feel steadier.", dungeon.Effects{HPBonus: 5, StaminaBonus: 2, SkillPowerBonus: 0.1}), nil
	}
}

func npcEvent(name, description, posLabel, posNarrative string, posEffects dungeon.Effects, negLabel, negNarrative string, negEffects dungeon.Effects) dungeon.NPCEvent {
	return dungeon.NPCEvent{
		NPCName:     name,
		Description: description,
		Choices: []dungeon.Choice{
			{ID: dungeon.ChoicePositive, Label: posLabel, Outcome: dungeon.Outcome{Narrative: posNarrative, Effects: posEffects}},
			{ID: dungeon.ChoiceNegative, Label: negLabel, Outcome: dungeon.Outcome{Narrative: negNarrative, Effects: negEffects}},
		},
	}
}

func (f *Fallback) NodeTransition(_ context.Context, p TransitionParams) (Transition, error) {
	narrative, err := expand(fallbackText, "transition", p)
	if err != nil {
		narrative = "The party presses on."
	}
	return Transition{Narrative: narrative, Mood: "neutral"}, nil
}

func (f *Fallback) StoryThusFar(_ context.Context, p StoryParams) (Story, error) {
	summary, err := expand(fallbackText, "story", p)
	if err != nil {
		summary = "The party presses deeper."
	}
	outlook := "promising"
	for _, m := range p.Party {
		if !m.Alive {
			outlook = "challenging"
			break
		}
	}
	return Story{Summary: summary, KeyMoments: lastN(p.Moments, 3), Outlook: outlook}, nil
}

func (f *Fallback) BattleSummary(_ context.Context, p BattleSummaryParams) (BattleSummary, error) {
	summary, err := expand(fallbackText, "battleSummary", p)
	if err != nil {
		summary = "The enemy falls."
	}
	return BattleSummary{Summary: summary, Tone: "hard-won", Rewards: p.Rewards}, nil
}

func (f *Fallback) FinalSummary(_ context.Context, p FinalSummaryParams) (FinalSummary, error) {
	summary, err := expand(fallbackText, "finalSummary", p)
	if err != nil {
		summary = "The adventure has come to an end."
	}
	status := "tragic"
	if p.Outcome == OutcomeVictory {
		status = "heroic"
	}
	return FinalSummary{
		Summary: summary,
		Highlights: []string{
			fmt.Sprintf("%d enemies defeated", p.Victories),
			fmt.Sprintf("%d strangers met", p.NPCEvents),
			fmt.Sprintf("%s achieved", p.Outcome),
		},
		LegendStatus: status,
		Epitaph:      fmt.Sprintf("They walked into %s together.", p.DungeonName),
	}, nil
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return append([]string(nil), s...)
	}
	return append([]string(nil), s[len(s)-n:]...)
}
