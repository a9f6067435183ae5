package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/pixil98/go-testutil"
)

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	room, err := h.rm.CreateRoom(ctx, CreateRoomParams{
		HostName:   "ann",
		Theme:      "haunted lighthouse",
		Difficulty: dungeon.DifficultyMedium,
		NodeCount:  4,
		Language:   "de-DE",
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	testutil.AssertEqual(t, "code length", len(room.Code), 6)
	testutil.AssertEqual(t, "code case", room.Code, strings.ToUpper(room.Code))
	testutil.AssertEqual(t, "status", room.Status, StatusWaiting)
	testutil.AssertEqual(t, "language", room.Language, "de")
	testutil.AssertEqual(t, "nodes", len(room.Dungeon.Nodes), 4)
	if err := room.Dungeon.Validate(); err != nil {
		t.Fatalf("generated dungeon invalid: %v", err)
	}

	stored := h.store.room(t, room.Code)
	testutil.AssertEqual(t, "stored phase", stored.State.Phase, PhaseLobby)
}

func TestCreateRoomRejectsBadParams(t *testing.T) {
	h := newHarness(t, Options{})
	tests := map[string]CreateRoomParams{
		"no host":        {Theme: "x", Difficulty: dungeon.DifficultyEasy, NodeCount: 3},
		"no theme":       {HostName: "ann", Difficulty: dungeon.DifficultyEasy, NodeCount: 3},
		"bad difficulty": {HostName: "ann", Theme: "x", Difficulty: "brutal", NodeCount: 3},
		"too few nodes":  {HostName: "ann", Theme: "x", Difficulty: dungeon.DifficultyEasy, NodeCount: 1},
		"too many nodes": {HostName: "ann", Theme: "x", Difficulty: dungeon.DifficultyEasy, NodeCount: 40},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.rm.CreateRoom(context.Background(), p)
			if !errors.Is(err, ErrInvalidRoom) {
				t.Fatalf("expected ErrInvalidRoom, got %v", err)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	h := newHarness(t, Options{MaxPartySize: 2})
	ctx := context.Background()
	room, players := h.seed(t, battleDungeon(50), "ann")

	res, err := h.rm.Join(ctx, JoinRequest{RoomCode: strings.ToLower(room.Code), Username: "bob", ConnID: "c2"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	testutil.AssertEqual(t, "host", res.Success.IsHost, false)
	testutil.AssertEqual(t, "reconnected", res.Success.Reconnected, false)
	testutil.AssertEqual(t, "snapshot", res.Snapshot == nil, true)

	bob := h.store.player(t, room.ID, res.Success.PlayerID)
	testutil.AssertEqual(t, "hp", bob.HP, float64(startingHP))
	testutil.AssertEqual(t, "alive", bob.IsAlive, true)

	res, err = h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, Username: "ANN", ConnID: "c1"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	testutil.AssertEqual(t, "reconnect id", res.Success.PlayerID, players[0].ID)
	testutil.AssertEqual(t, "reconnect host", res.Success.IsHost, true)
	testutil.AssertEqual(t, "reconnected", res.Success.Reconnected, true)
	testutil.AssertEqual(t, "reconnect events", h.bus.count(EventPlayerReconnected), 1)

	_, err = h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, Username: "cid"})
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	_, err = h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, Username: "  "})
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	_, err = h.rm.Join(ctx, JoinRequest{RoomCode: "NOPE00", Username: "dan"})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	_, err = h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, PlayerID: 999})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestStartGameRules(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, players := h.seed(t, battleDungeon(50), "ann", "bob")
	ann, bob := players[0], players[1]

	if err := h.rm.StartGame(ctx, room.Code, bob.ID); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if err := h.rm.SetReady(ctx, room.Code, bob.ID, false); err != nil {
		t.Fatalf("set ready: %v", err)
	}
	if err := h.rm.StartGame(ctx, room.Code, ann.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	h.update(t, room, bob.ID, func(p *Player) {
		p.IsReady = true
		p.Character = dungeon.Character{}
	})
	if err := h.rm.StartGame(ctx, room.Code, ann.ID); !errors.Is(err, ErrMissingCharacter) {
		t.Fatalf("expected ErrMissingCharacter, got %v", err)
	}
	h.update(t, room, bob.ID, func(p *Player) { p.Character = testCharacter("bob") })

	if err := h.rm.StartGame(ctx, room.Code, ann.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := h.store.room(t, room.Code)
	testutil.AssertEqual(t, "status", got.Status, StatusPlaying)
	testutil.AssertEqual(t, "phase", got.State.Phase, PhaseCollecting)
	testutil.AssertEqual(t, "round", got.State.Round, 1)
	testutil.AssertEqual(t, "enemy hp", got.State.Enemy.HP, 50.0)

	names := strings.Join(h.bus.names(), ",")
	if !strings.Contains(names, EventGameStart+","+EventRoundStarted) {
		t.Fatalf("expected gameStart then roundStarted, got %s", names)
	}
	if err := h.rm.StartGame(ctx, room.Code, ann.ID); !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("expected ErrGameInProgress, got %v", err)
	}
	if _, err := h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, Username: "late"}); !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("expected ErrGameInProgress for late joiner, got %v", err)
	}
}

func TestGenerateCharacter(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, _ := h.seed(t, battleDungeon(50), "ann")
	res, err := h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, Username: "bob", ConnID: "c2"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	p, err := h.rm.GenerateCharacter(ctx, room.Code, res.Success.PlayerID, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := p.Character.Validate(); err != nil {
		t.Fatalf("character invalid: %v", err)
	}
	testutil.AssertEqual(t, "hp", p.HP, p.Character.MaxHP)
	testutil.AssertEqual(t, "stamina", p.Stamina, p.Character.MaxStamina)

	_, err = h.rm.GenerateCharacter(ctx, room.Code, res.Success.PlayerID, false)
	if !errors.Is(err, ErrCharacterExists) {
		t.Fatalf("expected ErrCharacterExists, got %v", err)
	}
	if _, err := h.rm.GenerateCharacter(ctx, room.Code, res.Success.PlayerID, true); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
}

func TestLeaveWaitingRoomReassignsHost(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, players := h.seed(t, battleDungeon(50), "ann", "bob")

	if err := h.rm.Leave(ctx, room.Code, players[0].ID, ""); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, remaining, err := h.rm.GetRoom(ctx, room.Code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	testutil.AssertEqual(t, "players", len(remaining), 1)
	testutil.AssertEqual(t, "host", got.HostID, players[1].ID)

	ev := h.bus.last(EventPlayerDisconnected).(PlayerDisconnected)
	testutil.AssertEqual(t, "removed", ev.Removed, true)
}

func TestReconnectDuringPlay(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, players := h.started(t, battleDungeon(100), "ann", "bob")
	ann, bob := players[0], players[1]

	if err := h.rm.SubmitAction(ctx, room.Code, ann.ID, ActionRequest{Type: "attack", Skill: "Slash"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, PlayerID: bob.ID, ConnID: "c9"})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if res.Snapshot == nil || res.Story == nil || res.Waiting == nil {
		t.Fatalf("reconnect during play should carry snapshot, story and waiting list: %+v", res)
	}
	snap := res.Snapshot
	testutil.AssertEqual(t, "phase", snap.Phase, PhaseCollecting)
	testutil.AssertEqual(t, "actions", len(snap.Actions), 1)
	testutil.AssertEqual(t, "waiting", len(snap.WaitingFor), 1)
	testutil.AssertEqual(t, "waiting for", snap.WaitingFor[0].ID, bob.ID)
	testutil.AssertEqual(t, "alive", snap.AlivePlayers, 2)
	testutil.AssertEqual(t, "enemy", snap.CurrentEnemy.Name, "Ghoul")

	synced, err := h.rm.Sync(ctx, room.Code, bob.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	first, _ := json.Marshal(snap)
	again, _ := json.Marshal(synced)
	testutil.AssertEqual(t, "sync matches join snapshot", string(again), string(first))

	var decoded Snapshot
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	roundTrip, _ := json.Marshal(decoded)
	testutil.AssertEqual(t, "round trip", string(roundTrip), string(first))

	if _, err := h.rm.Sync(ctx, room.Code, 999); !errors.Is(err, ErrWrongRoom) {
		t.Fatalf("expected ErrWrongRoom, got %v", err)
	}
}

func TestIdleCleanup(t *testing.T) {
	h := newHarness(t, Options{IdleCleanupDelay: 20 * time.Millisecond})
	ctx := context.Background()
	room, players := h.started(t, battleDungeon(100), "ann")

	if _, err := h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, PlayerID: players[0].ID, ConnID: "c1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := h.rm.Disconnect(ctx, room.Code, "c1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	// Coming back inside the grace window keeps the room.
	if _, err := h.rm.Join(ctx, JoinRequest{RoomCode: room.Code, PlayerID: players[0].ID, ConnID: "c2"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	h.store.room(t, room.Code)

	if err := h.rm.Disconnect(ctx, room.Code, "c2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	h.waitDeleted(t, room.Code)
}

func TestForceCleanup(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, _ := h.started(t, battleDungeon(100), "ann")

	if err := h.rm.ForceCleanup(ctx, room.Code); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := h.store.GetRoom(ctx, room.Code); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}
	if err := h.rm.ForceCleanup(ctx, room.Code); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestIsUserError(t *testing.T) {
	testutil.AssertEqual(t, "wrapped", IsUserError(fmt.Errorf("%w: slash", ErrUnknownSkill)), true)
	testutil.AssertEqual(t, "internal", IsUserError(errBoom), false)
	testutil.AssertEqual(t, "corrupt", IsUserError(ErrCorruptState), false)
}
