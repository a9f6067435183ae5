package game

import (
	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

// Broadcaster delivers an event to every connection in a room.
type Broadcaster interface {
	Broadcast(roomCode, event string, payload any)
}

const (
	EventJoinSuccess        = "joinSuccess"
	EventRoomUpdate         = "roomUpdate"
	EventGameStart          = "gameStart"
	EventGameStateSync      = "gameStateSync"
	EventStorySummary       = "storySummary"
	EventRoundStarted       = "roundStarted"
	EventActionReceived     = "actionReceived"
	EventWaitingOn          = "waitingOn"
	EventTimerStarted       = "timerStarted"
	EventBattleResult       = "battleResult"
	EventBattleSummary      = "battleSummary"
	EventNPCEvent           = "npcEvent"
	EventNPCResolution      = "npcResolution"
	EventNodeTransition     = "nodeTransition"
	EventGameOver           = "gameOver"
	EventActionTimedOut     = "actionTimedOut"
	EventPlayerReconnected  = "playerReconnected"
	EventPlayerDisconnected = "playerDisconnected"
	EventError              = "error"
)

type RoomView struct {
	Code        string             `json:"roomCode"`
	HostID      int64              `json:"hostId,omitempty"`
	HostName    string             `json:"hostName"`
	Theme       string             `json:"theme"`
	Difficulty  dungeon.Difficulty `json:"difficulty"`
	Language    string             `json:"language"`
	Status      Status             `json:"status"`
	DungeonName string             `json:"dungeonName"`
	NodeIndex   int                `json:"currentNodeIndex"`
	TotalNodes  int                `json:"totalNodes"`
}

// ViewRoom is the public room summary, without the dungeon or game state.
func ViewRoom(r *Room) RoomView {
	return RoomView{
		Code:        r.Code,
		HostID:      r.HostID,
		HostName:    r.HostName,
		Theme:       r.Theme,
		Difficulty:  r.Difficulty,
		Language:    r.Language,
		Status:      r.Status,
		DungeonName: r.Dungeon.Name,
		NodeIndex:   r.NodeIndex,
		TotalNodes:  len(r.Dungeon.Nodes),
	}
}

type PlayerView struct {
	Player
	IsHost    bool `json:"isHost"`
	Connected bool `json:"connected"`
}

func ViewPlayers(r *Room, players []*Player) []PlayerView {
	out := make([]PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerView{Player: *p, IsHost: p.ID == r.HostID, Connected: p.ConnID != ""})
	}
	return out
}

type PlayerRef struct {
	ID   int64  `json:"playerId"`
	Name string `json:"username"`
}

type RoomUpdate struct {
	Room    RoomView     `json:"room"`
	Players []PlayerView `json:"players"`
}

type JoinSuccess struct {
	PlayerID    int64  `json:"playerId"`
	RoomCode    string `json:"roomCode"`
	Username    string `json:"username"`
	IsHost      bool   `json:"isHost"`
	Reconnected bool   `json:"reconnected"`
}

type GameStart struct {
	Room         RoomView        `json:"room"`
	Players      []PlayerView    `json:"players"`
	Dungeon      dungeon.Dungeon `json:"dungeon"`
	CurrentNode  *dungeon.Node   `json:"currentNode"`
	CurrentEnemy *EnemyState     `json:"currentEnemy,omitempty"`
	Round        int             `json:"round"`
}

type RoundStarted struct {
	Round   int         `json:"round"`
	Message string      `json:"message"`
	Enemy   *EnemyState `json:"currentEnemy,omitempty"`
}

type ActionReceived struct {
	PlayerID     int64  `json:"playerId"`
	Action       Action `json:"action"`
	TotalActions int    `json:"totalActions"`
	AliveCount   int    `json:"aliveCount"`
}

type WaitingOn struct {
	ActedCount int         `json:"actedCount"`
	TotalCount int         `json:"totalCount"`
	WaitingFor []PlayerRef `json:"waitingFor"`
}

type TimerStarted struct {
	Round   int         `json:"round"`
	Seconds int         `json:"seconds"`
	Players []PlayerRef `json:"players"`
}

type EnemyActionResult struct {
	combat.EnemyAction
	TargetID       int64   `json:"targetId,omitempty"`
	TargetName     string  `json:"targetName,omitempty"`
	TargetHP       float64 `json:"targetHP,omitempty"`
	TargetDefeated bool    `json:"targetDefeated,omitempty"`
	EnemyHP        float64 `json:"enemyHP"`
}

const (
	BattleOngoing = "ongoing"
	BattleVictory = "victory"
	BattleDefeat  = "defeat"
)

type BattleResult struct {
	Round            int                       `json:"round"`
	Narrative        string                    `json:"narrative"`
	PlayerNarratives []content.PlayerNarrative `json:"playerNarratives"`
	PlayerResults    []combat.ActionResult     `json:"playerResults"`
	TotalDamage      float64                   `json:"totalDamage"`
	HasCritical      bool                      `json:"hasCritical"`
	EnemyAction      *EnemyActionResult        `json:"enemyAction,omitempty"`
	Enemy            *EnemyState               `json:"enemy"`
	BattleStatus     string                    `json:"battleStatus"`
	Players          []PlayerView              `json:"players"`
}

type BattleSummaryEvent struct {
	content.BattleSummary
	Enemy  string `json:"enemy"`
	Rounds int    `json:"rounds"`
}

type NPCEventNotice struct {
	Node        dungeon.Node     `json:"node"`
	Event       dungeon.NPCEvent `json:"event"`
	ChooserID   int64            `json:"chooserId"`
	ChooserName string           `json:"chooserName"`
}

type NPCResolution struct {
	ChoiceID  string          `json:"choiceId"`
	Narrative string          `json:"narrative"`
	Effects   dungeon.Effects `json:"effects"`
	Players   []PlayerView    `json:"players"`
}

type NodeTransitionEvent struct {
	Transition   content.Transition `json:"transition"`
	NextNode     dungeon.Node       `json:"nextNode"`
	NodeIndex    int                `json:"currentNodeIndex"`
	TotalNodes   int                `json:"totalNodes"`
	CurrentEnemy *EnemyState        `json:"currentEnemy,omitempty"`
	Players      []PlayerView       `json:"players"`
}

type GameOver struct {
	Outcome string               `json:"outcome"`
	Summary content.FinalSummary `json:"summary"`
	Players []PlayerView         `json:"players"`
}

type ActionTimedOut struct {
	PlayerID        int64  `json:"playerId"`
	PlayerName      string `json:"playerName"`
	AutoAction      string `json:"autoAction"`
	StaminaRegained int    `json:"staminaRegained"`
	DiceRoll        int    `json:"diceRoll"`
}

type PlayerReconnected struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
}

type PlayerDisconnected struct {
	PlayerID  int64  `json:"playerId"`
	Username  string `json:"username"`
	Remaining int    `json:"remainingConnections"`
	Removed   bool   `json:"removed"`
}
