package combat

import "github.com/kiliankoe/gptdungeon/internal/dungeon"

type EnemyAction struct {
	SkillID   string            `json:"skillId"`
	SkillName string            `json:"skillName"`
	Kind      dungeon.SkillKind `json:"type"`
	Roll      Roll              `json:"roll"`
	Amount    float64           `json:"amount"`
}

// FallbackSkill picks a countermove without a narrator: heal when below
// LowHealthRatio and a healing skill exists, otherwise the first damage skill.
func FallbackSkill(e dungeon.Enemy, hp float64) (dungeon.Skill, bool) {
	if e.HP > 0 && hp/e.HP < LowHealthRatio {
		for _, s := range e.Skills {
			if s.Kind == dungeon.SkillHealing {
				return s, true
			}
		}
	}
	for _, s := range e.Skills {
		if s.Kind == dungeon.SkillDamage {
			return s, true
		}
	}
	if len(e.Skills) > 0 {
		return e.Skills[0], true
	}
	return dungeon.Skill{}, false
}

// ValidateNomination accepts a nominated skill only if it belongs to the kit.
func ValidateNomination(e dungeon.Enemy, ref string) (dungeon.Skill, bool) {
	return e.FindSkill(ref)
}

// ResolveEnemy rolls the enemy's countermove with the same formula players use.
func ResolveEnemy(d Dice, e dungeon.Enemy, s dungeon.Skill) EnemyAction {
	power := e.SkillPower
	if power <= 0 {
		power = dungeon.DefaultEnemySkillPower
	}
	r := Effect(s.Amount, power, D20(d))
	return EnemyAction{
		SkillID:   s.ID,
		SkillName: s.Name,
		Kind:      s.Kind,
		Roll:      r,
		Amount:    r.Value,
	}
}

var damageVerbs = []struct {
	max  float64
	verb string
}{
	{0, "misses"},
	{3, "grazes"},
	{8, "hits"},
	{15, "hits hard"},
	{25, "mauls"},
	{40, "devastates"},
}

// DamageVerb describes a damage amount for narration.
func DamageVerb(damage float64) string {
	for _, v := range damageVerbs {
		if damage <= v.max {
			return v.verb
		}
	}
	return "obliterates"
}
