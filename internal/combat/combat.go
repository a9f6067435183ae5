// Package combat resolves dice-driven action outcomes. Everything here is a
// pure function of its inputs and the supplied dice.
package combat

import (
	"math"

	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

const (
	// A d20 roll at or below MissThreshold misses.
	MissThreshold = 2
	// A d20 roll at or above CritThreshold doubles the result.
	CritThreshold = 18
	// DefenseBonus is recorded on defend actions. It does not reduce damage.
	DefenseBonus = 0.4
	// LowHealthRatio makes a wounded enemy prefer healing.
	LowHealthRatio = 0.4
)

type ActionType string

const (
	ActionAttack ActionType = "attack"
	ActionHeal   ActionType = "heal"
	ActionDefend ActionType = "defend"
	ActionRest   ActionType = "rest"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionAttack, ActionHeal, ActionDefend, ActionRest:
		return true
	}
	return false
}

// Roll is the outcome of one d20 applied to a base amount.
type Roll struct {
	Die      int     `json:"diceRoll"`
	Miss     bool    `json:"miss"`
	Critical bool    `json:"critical"`
	Value    float64 `json:"value"`
}

// Effect computes round1(base*power + die/10), zero on a miss, doubled on a
// critical.
func Effect(base, power float64, die int) Roll {
	r := Roll{Die: die}
	switch {
	case die <= MissThreshold:
		r.Miss = true
		return r
	case die >= CritThreshold:
		r.Critical = true
	}
	v := Round1(base*power + float64(die)/10)
	if r.Critical {
		v = Round1(v * 2)
	}
	r.Value = v
	return r
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ActionInput is one player's submitted action as the resolver needs it.
type ActionInput struct {
	PlayerID   int64
	PlayerName string
	Type       ActionType
	Skill      dungeon.Skill
	Power      float64
}

type ActionResult struct {
	PlayerID     int64      `json:"playerId"`
	PlayerName   string     `json:"playerName"`
	Type         ActionType `json:"action"`
	SkillName    string     `json:"skillName,omitempty"`
	Roll         Roll       `json:"roll"`
	Damage       float64    `json:"damage"`
	Heal         float64    `json:"heal"`
	DefenseBonus float64    `json:"defenseBonus,omitempty"`
}

type Resolution struct {
	Results     []ActionResult `json:"results"`
	TotalDamage float64        `json:"totalDamage"`
	HasCritical bool           `json:"hasCritical"`
}

// ResolveActions rolls one d20 per attack or heal in submission order.
// Defend and rest consume no roll.
func ResolveActions(d Dice, inputs []ActionInput) Resolution {
	var res Resolution
	for _, in := range inputs {
		r := ActionResult{PlayerID: in.PlayerID, PlayerName: in.PlayerName, Type: in.Type, SkillName: in.Skill.Name}
		power := in.Power
		if power <= 0 {
			power = dungeon.DefaultSkillPower
		}
		switch in.Type {
		case ActionAttack:
			r.Roll = Effect(in.Skill.Amount, power, D20(d))
			r.Damage = r.Roll.Value
			res.TotalDamage += r.Damage
		case ActionHeal:
			r.Roll = Effect(in.Skill.Amount, power, D20(d))
			r.Heal = r.Roll.Value
		case ActionDefend:
			r.DefenseBonus = DefenseBonus
		}
		if r.Roll.Critical {
			res.HasCritical = true
		}
		res.Results = append(res.Results, r)
	}
	res.TotalDamage = Round1(res.TotalDamage)
	return res
}

// ApplyDamage subtracts damage from hp without going below zero.
func ApplyDamage(hp, damage float64) float64 {
	return math.Max(0, Round1(hp-damage))
}

// ApplyHeal adds amount to hp without exceeding maxHP.
func ApplyHeal(hp, amount, maxHP float64) float64 {
	return math.Min(maxHP, Round1(hp+amount))
}
