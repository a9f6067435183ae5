package game

import (
	"context"

	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

// Snapshot is everything a client needs to redraw a playing room from
// nothing. It is sent as gameStateSync.
type Snapshot struct {
	Room         RoomView         `json:"room"`
	Dungeon      dungeon.Dungeon  `json:"dungeon"`
	Status       Status           `json:"status"`
	HostID       int64            `json:"hostId"`
	NodeIndex    int              `json:"currentNodeIndex"`
	TotalNodes   int              `json:"totalNodes"`
	Phase        Phase            `json:"phase"`
	Round        int              `json:"round"`
	CurrentNode  *dungeon.Node    `json:"currentNode,omitempty"`
	CurrentEnemy *EnemyState      `json:"currentEnemy,omitempty"`
	Actions      []Action         `json:"currentTurnActions"`
	PendingNPC   *PendingNPC      `json:"pendingNpcEvent,omitempty"`
	BattleLog    []RoundLog       `json:"logs"`
	AdventureLog []AdventureEntry `json:"adventureLog"`
	Outcome      string           `json:"outcome,omitempty"`
	Players      []PlayerView     `json:"players"`
	TotalPlayers int              `json:"totalPlayers"`
	AlivePlayers int              `json:"alivePlayers"`
	WaitingFor   []PlayerRef      `json:"waitingFor"`
}

func buildSnapshot(room *Room, players []*Player) Snapshot {
	st := room.State
	s := Snapshot{
		Room:         ViewRoom(room),
		Dungeon:      room.Dungeon,
		Status:       room.Status,
		HostID:       room.HostID,
		NodeIndex:    room.NodeIndex,
		TotalNodes:   len(room.Dungeon.Nodes),
		Phase:        st.Phase,
		Round:        st.Round,
		CurrentNode:  st.Node,
		CurrentEnemy: st.Enemy,
		Actions:      nonNil(st.Actions),
		PendingNPC:   st.NPC,
		BattleLog:    nonNil(st.BattleLog),
		AdventureLog: nonNil(st.AdventureLog),
		Outcome:      st.Outcome,
		Players:      ViewPlayers(room, players),
		TotalPlayers: len(players),
		AlivePlayers: len(alivePlayers(players)),
		WaitingFor:   []PlayerRef{},
	}
	if st.Phase == PhaseCollecting {
		s.WaitingFor = waitingOn(room, players).WaitingFor
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Sync returns the current snapshot for a player of the room.
func (rm *RoomManager) Sync(ctx context.Context, code string, playerID int64) (*Snapshot, error) {
	var snap *Snapshot
	err := rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if findPlayer(players, playerID) == nil {
			return ErrWrongRoom
		}
		s := buildSnapshot(room, players)
		snap = &s
		return nil
	})
	return snap, err
}
