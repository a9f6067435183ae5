package game

import (
	"fmt"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseCollecting Phase = "collecting"
	// PhaseResolving only exists inside the room actor while a round is
	// being resolved. It is never persisted.
	PhaseResolving Phase = "resolving"
	PhaseNPCChoice Phase = "npc_choice"
	PhaseCleared   Phase = "cleared"
	PhaseOver      Phase = "over"
)

type Room struct {
	ID         int64              `json:"id"`
	Code       string             `json:"roomCode"`
	HostName   string             `json:"hostName"`
	HostID     int64              `json:"hostId,omitempty"`
	Theme      string             `json:"theme"`
	Difficulty dungeon.Difficulty `json:"difficulty"`
	NodeCount  int                `json:"maxNode"`
	Language   string             `json:"language"`
	Status     Status             `json:"status"`
	Dungeon    dungeon.Dungeon    `json:"dungeon"`
	NodeIndex  int                `json:"currentNodeIndex"`
	State      GameState          `json:"gameState"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type Player struct {
	ID        int64             `json:"id"`
	RoomID    int64             `json:"roomId"`
	Username  string            `json:"username"`
	ConnID    string            `json:"-"`
	IsReady   bool              `json:"isReady"`
	Character dungeon.Character `json:"character"`
	HP        float64           `json:"currentHP"`
	Stamina   int               `json:"currentStamina"`
	IsAlive   bool              `json:"isAlive"`
	JoinedAt  time.Time         `json:"joinedAt"`
}

func (p *Player) HasCharacter() bool { return !p.Character.IsZero() }

// EnemyState is the live copy of the enemy in the current battle.
type EnemyState struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Role       dungeon.EnemyRole `json:"role"`
	Archetype  string            `json:"archetype"`
	HP         float64           `json:"hp"`
	MaxHP      float64           `json:"maxHP"`
	SkillPower float64           `json:"skillPower"`
	Skills     []dungeon.Skill   `json:"skills"`
}

func newEnemyState(e dungeon.Enemy) *EnemyState {
	return &EnemyState{
		ID:         e.ID,
		Name:       e.Name,
		Role:       e.Role,
		Archetype:  e.Archetype,
		HP:         e.HP,
		MaxHP:      e.HP,
		SkillPower: e.SkillPower,
		Skills:     append([]dungeon.Skill(nil), e.Skills...),
	}
}

// Sheet returns the enemy as the combat package sees it, with full HP.
func (e *EnemyState) Sheet() dungeon.Enemy {
	return dungeon.Enemy{
		ID:         e.ID,
		Name:       e.Name,
		Role:       e.Role,
		Archetype:  e.Archetype,
		HP:         e.MaxHP,
		SkillPower: e.SkillPower,
		Skills:     e.Skills,
	}
}

type Action struct {
	ID              string            `json:"id"`
	PlayerID        int64             `json:"playerId"`
	PlayerName      string            `json:"playerName"`
	Type            combat.ActionType `json:"action"`
	SkillID         string            `json:"skillId,omitempty"`
	SkillName       string            `json:"skillName,omitempty"`
	SkillKind       dungeon.SkillKind `json:"skillType,omitempty"`
	SkillAmount     float64           `json:"skillAmount,omitempty"`
	SkillPower      float64           `json:"skillPower,omitempty"`
	StaminaCost     int               `json:"staminaCost,omitempty"`
	StaminaRegained int               `json:"staminaRegained,omitempty"`
	DiceRoll        int               `json:"diceRoll,omitempty"`
	Auto            bool              `json:"auto,omitempty"`
	SubmittedAt     time.Time         `json:"submittedAt"`
}

type PendingNPC struct {
	NodeID      string           `json:"nodeId"`
	Event       dungeon.NPCEvent `json:"event"`
	ChooserID   int64            `json:"chooserId"`
	ChooserName string           `json:"chooserName"`
}

type RoundLog struct {
	Round         int                   `json:"round"`
	Narrative     string                `json:"narrative"`
	TotalDamage   float64               `json:"totalDamage"`
	HasCritical   bool                  `json:"hasCritical"`
	Actions       []Action              `json:"actions"`
	PlayerResults []combat.ActionResult `json:"playerResults,omitempty"`
	EnemyAction   *EnemyActionResult    `json:"enemyAction,omitempty"`
}

const (
	EntryBattle     = "battle"
	EntryNPCEvent   = "npc_event"
	EntryNPCChoice  = "npc_choice"
	EntryTransition = "transition"
)

type AdventureEntry struct {
	Type      string           `json:"type"`
	NodeID    string           `json:"nodeId,omitempty"`
	NodeName  string           `json:"nodeName,omitempty"`
	Enemy     string           `json:"enemy,omitempty"`
	Result    string           `json:"result,omitempty"`
	Rounds    int              `json:"rounds,omitempty"`
	NPC       string           `json:"npc,omitempty"`
	ChooserID int64            `json:"chooserId,omitempty"`
	ChoiceID  string           `json:"choiceId,omitempty"`
	Narrative string           `json:"narrative,omitempty"`
	Effects   *dungeon.Effects `json:"effects,omitempty"`
	At        time.Time        `json:"at"`
}

// Moment renders an entry as one line for summaries and exports.
func (e AdventureEntry) Moment() string {
	switch e.Type {
	case EntryBattle:
		return fmt.Sprintf("Battle against %s at %s: %s after %d rounds", e.Enemy, e.NodeName, e.Result, e.Rounds)
	case EntryNPCEvent:
		return fmt.Sprintf("Met %s at %s", e.NPC, e.NodeName)
	case EntryNPCChoice:
		return fmt.Sprintf("Chose %q with %s: %s", e.ChoiceID, e.NPC, e.Narrative)
	case EntryTransition:
		return fmt.Sprintf("Travelled to %s: %s", e.NodeName, e.Narrative)
	}
	return e.Narrative
}

// GameState is the tagged per-room state. Which fields are meaningful
// depends on Phase; Validate enforces that.
type GameState struct {
	Phase        Phase            `json:"phase"`
	Round        int              `json:"round"`
	Node         *dungeon.Node    `json:"currentNode,omitempty"`
	Enemy        *EnemyState      `json:"currentEnemy,omitempty"`
	Actions      []Action         `json:"currentTurnActions"`
	NPC          *PendingNPC      `json:"pendingNpcEvent,omitempty"`
	BattleLog    []RoundLog       `json:"logs"`
	AdventureLog []AdventureEntry `json:"adventureLog"`
	Outcome      string           `json:"outcome,omitempty"`
}

func (s *GameState) Validate() error {
	switch s.Phase {
	case PhaseLobby:
		if s.Node != nil || s.Enemy != nil || len(s.Actions) > 0 || s.NPC != nil {
			return fmt.Errorf("%w: lobby state carries game data", ErrCorruptState)
		}
		return nil
	case PhaseCollecting:
		if s.Enemy == nil || s.Node == nil {
			return fmt.Errorf("%w: battle without enemy", ErrCorruptState)
		}
		if s.NPC != nil {
			return fmt.Errorf("%w: battle with pending npc event", ErrCorruptState)
		}
		seen := make(map[int64]bool, len(s.Actions))
		for _, a := range s.Actions {
			if seen[a.PlayerID] {
				return fmt.Errorf("%w: player %d acted twice", ErrCorruptState, a.PlayerID)
			}
			seen[a.PlayerID] = true
		}
	case PhaseNPCChoice:
		if s.NPC == nil || s.Node == nil {
			return fmt.Errorf("%w: npc phase without event", ErrCorruptState)
		}
		if s.Enemy != nil || len(s.Actions) > 0 {
			return fmt.Errorf("%w: npc phase with battle data", ErrCorruptState)
		}
	case PhaseCleared, PhaseOver:
		if s.NPC != nil || len(s.Actions) > 0 {
			return fmt.Errorf("%w: %s with pending input", ErrCorruptState, s.Phase)
		}
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrCorruptState, s.Phase)
	}
	if s.Round < 1 {
		return fmt.Errorf("%w: round %d", ErrCorruptState, s.Round)
	}
	return nil
}

// HasActed reports whether playerID already submitted this round.
func (s *GameState) HasActed(playerID int64) bool {
	for _, a := range s.Actions {
		if a.PlayerID == playerID {
			return true
		}
	}
	return false
}
