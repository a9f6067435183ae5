package combat

import "math/rand/v2"

// Dice produces rolls in [1, sides]. Tests inject scripted dice.
type Dice interface {
	Roll(sides int) int
}

// RandomDice rolls with math/rand/v2.
type RandomDice struct{}

func (RandomDice) Roll(sides int) int {
	if sides < 1 {
		return 0
	}
	return rand.IntN(sides) + 1
}

// D20 rolls the action die.
func D20(d Dice) int { return d.Roll(20) }

// D6 rolls the rest die.
func D6(d Dice) int { return d.Roll(6) }

// Pick returns an index in [0, n) using the dice.
func Pick(d Dice, n int) int {
	if n <= 1 {
		return 0
	}
	return d.Roll(n) - 1
}
