package ws

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/kiliankoe/gptdungeon/internal/game"
	"github.com/kiliankoe/gptdungeon/internal/storage/sqlite"
	"github.com/pixil98/go-testutil"
)

type emitted struct {
	event string
	args  []any
}

// fakeConn records what the gateway does to a socket. Methods the gateway
// never calls stay on the nil embedded interface.
type fakeConn struct {
	socketio.Conn
	id      string
	ctx     any
	rooms   map[string]bool
	emitted []emitted
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, rooms: make(map[string]bool)}
}

func (c *fakeConn) ID() string                 { return c.id }
func (c *fakeConn) Context() interface{}       { return c.ctx }
func (c *fakeConn) SetContext(ctx interface{}) { c.ctx = ctx }
func (c *fakeConn) Join(room string)           { c.rooms[room] = true }
func (c *fakeConn) Leave(room string)          { delete(c.rooms, room) }

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.emitted = append(c.emitted, emitted{event, v})
}

func (c *fakeConn) last(event string) (emitted, bool) {
	for i := len(c.emitted) - 1; i >= 0; i-- {
		if c.emitted[i].event == event {
			return c.emitted[i], true
		}
	}
	return emitted{}, false
}

func (c *fakeConn) errorMessage(t *testing.T) string {
	t.Helper()
	e, ok := c.last(game.EventError)
	if !ok {
		t.Fatalf("no error emitted, got %v", c.emitted)
	}
	return e.args[0].(map[string]any)["message"].(string)
}

type fixedDice int

func (d fixedDice) Roll(sides int) int { return min(int(d), sides) }

func newGateway(t *testing.T, burst int) (*Gateway, *game.RoomManager) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ws.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	gw := New(100, burst)
	rm := game.NewRoomManager(store, nil, gw, game.Options{Dice: fixedDice(10)})
	gw.Attach(rm)
	t.Cleanup(func() {
		rm.Close()
		_ = store.Close()
	})
	return gw, rm
}

func createRoom(t *testing.T, rm *game.RoomManager) string {
	t.Helper()
	room, err := rm.CreateRoom(context.Background(), game.CreateRoomParams{
		HostName:   "ann",
		Theme:      "flooded crypt",
		Difficulty: dungeon.DifficultyEasy,
		NodeCount:  3,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room.Code
}

func TestJoinSeatsConnection(t *testing.T) {
	t.Parallel()

	gw, rm := newGateway(t, 50)
	code := createRoom(t, rm)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	ack := gw.onJoin(s, joinPayload{RoomCode: " " + code + " ", Username: "ann"})
	testutil.AssertEqual(t, "ack ok", ack["ok"], true)
	testutil.AssertEqual(t, "in broadcast room", s.rooms[code], true)

	cc := s.ctx.(*ConnCtx)
	testutil.AssertEqual(t, "room", cc.RoomCode, code)
	testutil.AssertEqual(t, "player", cc.PlayerID, ack["playerId"].(int64))

	e, ok := s.last(game.EventJoinSuccess)
	if !ok {
		t.Fatalf("joinSuccess not emitted")
	}
	success := e.args[0].(game.JoinSuccess)
	testutil.AssertEqual(t, "host", success.IsHost, true)
	testutil.AssertEqual(t, "reconnected", success.Reconnected, false)
	if _, ok := s.last(game.EventGameStateSync); ok {
		t.Fatalf("waiting room join should not carry a snapshot")
	}
}

func TestJoinFailureLeavesBroadcastRoom(t *testing.T) {
	t.Parallel()

	gw, _ := newGateway(t, 50)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	ack := gw.onJoin(s, joinPayload{RoomCode: "NOPE01", Username: "ann"})
	testutil.AssertEqual(t, "ack error", ack["error"], game.ErrRoomNotFound.Error())
	testutil.AssertEqual(t, "rooms", len(s.rooms), 0)
	testutil.AssertEqual(t, "message", s.errorMessage(t), "room not found")
	testutil.AssertEqual(t, "not seated", s.ctx.(*ConnCtx).seated(), false)
}

func TestJoinOtherRoomReleasesPrevious(t *testing.T) {
	t.Parallel()

	gw, rm := newGateway(t, 50)
	first, second := createRoom(t, rm), createRoom(t, rm)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	if ack := gw.onJoin(s, joinPayload{RoomCode: first, Username: "ann"}); ack["ok"] != true {
		t.Fatalf("join first: %v", ack)
	}
	ack := gw.onJoin(s, joinPayload{RoomCode: second, Username: "ann"})
	testutil.AssertEqual(t, "ack ok", ack["ok"], true)
	testutil.AssertEqual(t, "left first", s.rooms[first], false)
	testutil.AssertEqual(t, "in second", s.rooms[second], true)
	testutil.AssertEqual(t, "seated room", s.ctx.(*ConnCtx).RoomCode, second)

	_, players, err := rm.GetRoom(context.Background(), first)
	if err != nil {
		t.Fatalf("get first room: %v", err)
	}
	testutil.AssertEqual(t, "first room roster", len(players), 0)
}

func TestFailedRejoinKeepsSeat(t *testing.T) {
	t.Parallel()

	gw, rm := newGateway(t, 50)
	code := createRoom(t, rm)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	ack := gw.onJoin(s, joinPayload{RoomCode: code, Username: "ann"})
	playerID := ack["playerId"].(int64)

	ack = gw.onJoin(s, joinPayload{RoomCode: code, PlayerID: 999})
	testutil.AssertEqual(t, "ack error", ack["error"], game.ErrPlayerNotFound.Error())
	testutil.AssertEqual(t, "still in room", s.rooms[code], true)
	cc := s.ctx.(*ConnCtx)
	testutil.AssertEqual(t, "room", cc.RoomCode, code)
	testutil.AssertEqual(t, "player", cc.PlayerID, playerID)
}

func TestRequestsRequireJoin(t *testing.T) {
	t.Parallel()

	gw, _ := newGateway(t, 50)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	ack := gw.onSubmitAction(s, actionPayload{Type: combat.ActionDefend})
	testutil.AssertEqual(t, "ack error", ack["error"], game.ErrPlayerNotFound.Error())
	ack = gw.onNextNode(s)
	testutil.AssertEqual(t, "next node", ack["error"], game.ErrPlayerNotFound.Error())
}

func TestFullFlowOverSocket(t *testing.T) {
	t.Parallel()

	gw, rm := newGateway(t, 50)
	code := createRoom(t, rm)
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	if ack := gw.onJoin(s, joinPayload{RoomCode: code, Username: "ann"}); ack["ok"] != true {
		t.Fatalf("join: %v", ack)
	}
	if ack := gw.onGenerateCharacter(s, characterPayload{}); ack["ok"] != true {
		t.Fatalf("character: %v", ack)
	}
	if ack := gw.onSetReady(s, readyPayload{}); ack["ok"] != true {
		t.Fatalf("ready: %v", ack)
	}
	if ack := gw.onStartGame(s); ack["ok"] != true {
		t.Fatalf("start: %v", ack)
	}

	ack := gw.onSubmitAction(s, actionPayload{Type: "dance"})
	testutil.AssertEqual(t, "bad action", ack["error"], `invalid action: "dance"`)

	if ack := gw.onSync(s); ack["ok"] != true {
		t.Fatalf("sync: %v", ack)
	}
	e, ok := s.last(game.EventGameStateSync)
	if !ok {
		t.Fatalf("snapshot not emitted")
	}
	snap := e.args[0].(*game.Snapshot)
	testutil.AssertEqual(t, "status", snap.Status, game.StatusPlaying)
	testutil.AssertEqual(t, "players", snap.TotalPlayers, 1)
}

func TestLeaveClearsSeat(t *testing.T) {
	t.Parallel()

	gw, rm := newGateway(t, 50)
	code := createRoom(t, rm)
	s := newFakeConn("sid-1")
	gw.onConnect(s)
	gw.onJoin(s, joinPayload{RoomCode: code, Username: "ann"})

	ack := gw.onLeave(s)
	testutil.AssertEqual(t, "ack", ack["ok"], true)
	testutil.AssertEqual(t, "rooms", len(s.rooms), 0)
	testutil.AssertEqual(t, "seated", s.ctx.(*ConnCtx).seated(), false)

	_, players, err := rm.GetRoom(context.Background(), code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	testutil.AssertEqual(t, "players", len(players), 0)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	gw, _ := newGateway(t, 2)
	gw.rate = 0
	s := newFakeConn("sid-1")
	gw.onConnect(s)

	gw.onSync(s)
	gw.onSync(s)
	ack := gw.onSync(s)
	testutil.AssertEqual(t, "limited", ack["error"], "rate limited")
	testutil.AssertEqual(t, "message", s.errorMessage(t), "Too many requests, slow down")
}

func TestFailHidesInternalErrors(t *testing.T) {
	t.Parallel()

	gw, _ := newGateway(t, 2)
	s := newFakeConn("sid-1")

	ack := gw.fail(s, "ROOM01", "sync", errors.New("disk on fire"))
	testutil.AssertEqual(t, "ack", ack["error"], "Something went wrong, try again")

	ack = gw.fail(s, "ROOM01", "sync", game.ErrNotHost)
	testutil.AssertEqual(t, "user error", ack["error"], "not host")
}

func TestBroadcastBeforeMount(t *testing.T) {
	t.Parallel()

	gw := New(1, 1)
	gw.Broadcast("ROOM01", game.EventRoomUpdate, map[string]any{"x": 1})
	gw.Deliver("ROOM01", game.EventRoomUpdate, []byte(`{"x":1}`))
}
