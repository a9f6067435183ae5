// Package content produces the narrative side of an adventure: dungeons,
// character sheets, battle narration, NPC encounters and summaries.
//
// Generators may be slow or fail. Engine code always goes through
// WithFallback, which guarantees a structurally valid answer.
package content

import (
	"context"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

type Generator interface {
	Dungeon(ctx context.Context, p DungeonParams) (dungeon.Dungeon, error)
	Character(ctx context.Context, p CharacterParams) (dungeon.Character, error)
	BattleNarration(ctx context.Context, p BattleParams) (BattleNarration, error)
	NPCEvent(ctx context.Context, p NPCParams) (dungeon.NPCEvent, error)
	NodeTransition(ctx context.Context, p TransitionParams) (Transition, error)
	StoryThusFar(ctx context.Context, p StoryParams) (Story, error)
	BattleSummary(ctx context.Context, p BattleSummaryParams) (BattleSummary, error)
	FinalSummary(ctx context.Context, p FinalSummaryParams) (FinalSummary, error)
}

type DungeonParams struct {
	Theme      string
	Difficulty dungeon.Difficulty
	NodeCount  int
	Language   string
}

type CharacterParams struct {
	Theme      string
	Language   string
	PlayerName string
}

// PartyMember is the narration view of a player.
type PartyMember struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	HP         float64 `json:"hp"`
	MaxHP      float64 `json:"maxHP"`
	Stamina    int     `json:"stamina"`
	MaxStamina int     `json:"maxStamina"`
	Alive      bool    `json:"alive"`
}

type BattleParams struct {
	Theme         string
	Language      string
	Round         int
	Enemy         dungeon.Enemy
	EnemyHP       float64
	EnemyHPAfter  float64
	Results       []combat.ActionResult
	Party         []PartyMember
	EnemyDefeated bool
}

type PlayerNarrative struct {
	PlayerID  int64  `json:"playerId"`
	Narrative string `json:"narrative"`
}

// BattleNarration describes a round. EnemySkill is only a nomination; the
// resolver re-validates it against the enemy's kit.
type BattleNarration struct {
	Narrative        string            `json:"narrative"`
	PlayerNarratives []PlayerNarrative `json:"playerNarratives"`
	EnemySkill       string            `json:"enemySkill"`
}

// PartyAverages summarizes the party for NPC encounter generation.
type PartyAverages struct {
	HP         float64 `json:"hp"`
	MaxHP      float64 `json:"maxHP"`
	Stamina    float64 `json:"stamina"`
	MaxStamina float64 `json:"maxStamina"`
}

type NPCParams struct {
	Theme    string
	Language string
	Node     dungeon.Node
	Party    PartyAverages
}

type TransitionParams struct {
	Theme    string
	Language string
	From     dungeon.Node
	To       dungeon.Node
	Party    []PartyMember
}

type Transition struct {
	Narrative string `json:"narrative"`
	Mood      string `json:"mood"`
}

type StoryParams struct {
	Theme           string
	Language        string
	DungeonName     string
	NodeIndex       int
	TotalNodes      int
	DefeatedEnemies int
	Moments         []string
	Party           []PartyMember
}

type Story struct {
	Summary    string   `json:"summary"`
	KeyMoments []string `json:"keyMoments"`
	Outlook    string   `json:"outlook"`
}

type Rewards struct {
	XP   int `json:"xp"`
	Gold int `json:"gold"`
}

type BattleSummaryParams struct {
	Theme    string
	Language string
	Enemy    dungeon.Enemy
	Rounds   int
	Party    []PartyMember
	Rewards  Rewards
}

type BattleSummary struct {
	Summary string  `json:"summary"`
	Tone    string  `json:"tone"`
	Quote   string  `json:"quote,omitempty"`
	Rewards Rewards `json:"rewards"`
}

const (
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
)

type FinalSummaryParams struct {
	Theme       string
	Language    string
	DungeonName string
	Outcome     string
	Battles     int
	Victories   int
	NPCEvents   int
	Moments     []string
	Party       []PartyMember
}

type FinalSummary struct {
	Summary      string   `json:"summary"`
	Highlights   []string `json:"highlights"`
	LegendStatus string   `json:"legendStatus"`
	Epitaph      string   `json:"epitaph"`
}
