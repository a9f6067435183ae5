package dungeon

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type SkillKind string

const (
	SkillDamage  SkillKind = "damage"
	SkillHealing SkillKind = "healing"
)

// DefaultSkillPower is the multiplier for characters whose sheet does not state one.
const DefaultSkillPower = 1.0

// Skill is identified by a stable ID; names are for display and lookups by
// older clients.
type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        SkillKind `json:"type"`
	Amount      float64   `json:"amount"`
	StaminaCost int       `json:"staminaCost"`
}

var Roles = []string{"Warrior", "Mage", "Rogue", "Paladin", "Ranger", "Cleric"}

type Character struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Background string  `json:"background,omitempty"`
	MaxHP      float64 `json:"maxHP"`
	MaxStamina int     `json:"maxStamina"`
	SkillPower float64 `json:"skillPower"`
	Skills     []Skill `json:"skills"`
}

// IsZero reports whether no character sheet has been generated yet.
func (c Character) IsZero() bool {
	return c.Role == "" && len(c.Skills) == 0
}

// Skill resolves ref against skill IDs first and display names second.
func (c Character) Skill(ref string) (Skill, bool) {
	return findSkill(c.Skills, ref)
}

// Normalize fills skill IDs and defaults. It is idempotent.
func (c *Character) Normalize() {
	if c.SkillPower <= 0 {
		c.SkillPower = DefaultSkillPower
	}
	normalizeSkills(c.Skills)
}

func (c Character) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Role) == "" {
		errs = append(errs, errors.New("character has no role"))
	}
	if c.MaxHP <= 0 {
		errs = append(errs, errors.New("character max hp must be positive"))
	}
	if c.MaxStamina <= 0 {
		errs = append(errs, errors.New("character max stamina must be positive"))
	}
	if len(c.Skills) == 0 {
		errs = append(errs, errors.New("character has no skills"))
	}
	for _, s := range c.Skills {
		if s.Kind != SkillDamage && s.Kind != SkillHealing {
			errs = append(errs, fmt.Errorf("skill %q has unknown type %q", s.Name, s.Kind))
		}
	}
	return errors.Join(errs...)
}

func findSkill(skills []Skill, ref string) (Skill, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Skill{}, false
	}
	for _, s := range skills {
		if s.ID == ref {
			return s, true
		}
	}
	for _, s := range skills {
		if strings.EqualFold(s.Name, ref) {
			return s, true
		}
	}
	return Skill{}, false
}

// FindSkill is findSkill for enemy kits.
func (e Enemy) FindSkill(ref string) (Skill, bool) {
	return findSkill(e.Skills, ref)
}

func normalizeSkills(skills []Skill) {
	for i := range skills {
		s := &skills[i]
		if s.ID == "" {
			s.ID = fmt.Sprintf("skill-%d", i+1)
		}
		s.Kind = SkillKind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
		switch s.Kind {
		case "heal", "healing":
			s.Kind = SkillHealing
		case "":
			s.Kind = SkillDamage
		}
		if s.Amount < 0 {
			s.Amount = 0
		}
		if s.StaminaCost < 0 {
			s.StaminaCost = 0
		}
	}
}

// DefaultStaminaCost prices a skill that came without a cost.
func DefaultStaminaCost(amount float64) int {
	return int(math.Max(1, math.Round(amount/5)))
}
