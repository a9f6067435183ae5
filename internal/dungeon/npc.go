package dungeon

import (
	"errors"
	"fmt"
)

const (
	ChoicePositive = "positive"
	ChoiceNegative = "negative"
)

type Effects struct {
	HPBonus         float64 `json:"hpBonus"`
	StaminaBonus    int     `json:"staminaBonus"`
	SkillPowerBonus float64 `json:"skillPowerBonus"`
}

type Outcome struct {
	Narrative string  `json:"narrative"`
	Effects   Effects `json:"effects"`
}

type Choice struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Outcome Outcome `json:"outcome"`
}

type NPCEvent struct {
	NPCName     string   `json:"npcName"`
	Description string   `json:"description"`
	Choices     []Choice `json:"choices"`
}

// Choice returns the choice with the given id.
func (e NPCEvent) Choice(id string) (Choice, bool) {
	for _, c := range e.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Validate requires exactly two choices with distinct ids.
func (e NPCEvent) Validate() error {
	if e.NPCName == "" {
		return errors.New("npc event has no npc")
	}
	if len(e.Choices) != 2 {
		return fmt.Errorf("npc event needs 2 choices, got %d", len(e.Choices))
	}
	if e.Choices[0].ID == "" || e.Choices[0].ID == e.Choices[1].ID {
		return errors.New("npc event choices need distinct ids")
	}
	return nil
}
