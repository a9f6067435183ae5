package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/game"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const namespace = "/"

// ConnCtx is the per-connection state kept on the socket.
type ConnCtx struct {
	RoomCode string
	PlayerID int64
	limiter  *rate.Limiter
}

func (c *ConnCtx) seated() bool { return c.RoomCode != "" && c.PlayerID != 0 }

// Gateway bridges socket connections to the room engine. It is also the
// engine's Broadcaster, either directly or behind the NATS relay.
type Gateway struct {
	rm    *game.RoomManager
	io    *socketio.Server
	rate  rate.Limit
	burst int
}

func New(eventsPerSecond float64, burst int) *Gateway {
	if burst < 1 {
		burst = 1
	}
	return &Gateway{rate: rate.Limit(eventsPerSecond), burst: burst}
}

// Attach sets the engine. The engine is built with the gateway as its
// broadcaster, so the two are wired in two steps.
func (g *Gateway) Attach(rm *game.RoomManager) { g.rm = rm }

// Broadcast sends an event to every connection in the room.
func (g *Gateway) Broadcast(roomCode, event string, payload any) {
	if g.io == nil {
		log.Debug().Str("room", roomCode).Str("event", event).Msg("broadcast before mount dropped")
		return
	}
	g.io.BroadcastToRoom(namespace, roomCode, event, payload)
}

// Deliver forwards an event relayed over the message bus.
func (g *Gateway) Deliver(roomCode, event string, payload json.RawMessage) {
	g.Broadcast(roomCode, event, payload)
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
}

type readyPayload struct {
	Ready *bool `json:"isReady"`
}

type actionPayload struct {
	Type  combat.ActionType `json:"type"`
	Skill string            `json:"skillName"`
}

type choicePayload struct {
	ChoiceID string `json:"choiceId"`
}

type characterPayload struct {
	Regenerate bool `json:"regenerate"`
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (g *Gateway) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	g.io = io

	io.OnConnect(namespace, func(s socketio.Conn) error {
		g.onConnect(s)
		return nil
	})
	io.OnEvent(namespace, "join", g.onJoin)
	io.OnEvent(namespace, "generateCharacter", g.onGenerateCharacter)
	io.OnEvent(namespace, "setReady", g.onSetReady)
	io.OnEvent(namespace, "startGame", g.onStartGame)
	io.OnEvent(namespace, "submitAction", g.onSubmitAction)
	io.OnEvent(namespace, "npcChoice", g.onNPCChoice)
	io.OnEvent(namespace, "nextNode", g.onNextNode)
	io.OnEvent(namespace, "sync", g.onSync)
	io.OnEvent(namespace, "leave", g.onLeave)

	io.OnError(namespace, func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect(namespace, g.onDisconnect)

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (g *Gateway) onConnect(s socketio.Conn) {
	s.SetContext(&ConnCtx{limiter: rate.NewLimiter(g.rate, g.burst)})
	log.Info().Str("sid", s.ID()).Msg("socket connected")
}

// conn returns the connection state, or nil after reporting a rate limit.
func (g *Gateway) conn(s socketio.Conn) *ConnCtx {
	cc, ok := s.Context().(*ConnCtx)
	if !ok || cc == nil {
		cc = &ConnCtx{limiter: rate.NewLimiter(g.rate, g.burst)}
		s.SetContext(cc)
	}
	if !cc.limiter.Allow() {
		log.Warn().Str("sid", s.ID()).Msg("socket rate limited")
		s.Emit(game.EventError, map[string]any{"message": "Too many requests, slow down"})
		return nil
	}
	return cc
}

// seat is conn plus the requirement that the socket has joined a room.
func (g *Gateway) seat(s socketio.Conn) (*ConnCtx, map[string]any) {
	cc := g.conn(s)
	if cc == nil {
		return nil, map[string]any{"error": "rate limited"}
	}
	if !cc.seated() {
		return nil, g.fail(s, "", "not joined", game.ErrPlayerNotFound)
	}
	return cc, nil
}

func (g *Gateway) onJoin(s socketio.Conn, p joinPayload) map[string]any {
	cc := g.conn(s)
	if cc == nil {
		return map[string]any{"error": "rate limited"}
	}
	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	if code == "" {
		return g.fail(s, "", "join", game.ErrRoomNotFound)
	}
	ctx := context.Background()
	if cc.RoomCode != "" && cc.RoomCode != code {
		// Release the connection in the room being left.
		if err := g.rm.Disconnect(ctx, cc.RoomCode, s.ID()); err != nil && !game.IsUserError(err) {
			log.Error().Err(err).Str("sid", s.ID()).Str("room", cc.RoomCode).Msg("release previous room")
		}
		s.Leave(cc.RoomCode)
		cc = &ConnCtx{limiter: cc.limiter}
		s.SetContext(cc)
	}

	// Join the broadcast room first so nothing emitted by the engine for
	// this join is missed.
	rejoin := cc.RoomCode == code
	s.Join(code)
	res, err := g.rm.Join(ctx, game.JoinRequest{
		RoomCode: code,
		PlayerID: p.PlayerID,
		Username: p.Username,
		ConnID:   s.ID(),
	})
	if err != nil {
		if !rejoin {
			s.Leave(code)
		}
		return g.fail(s, code, "join", err)
	}
	s.SetContext(&ConnCtx{RoomCode: res.Success.RoomCode, PlayerID: res.Success.PlayerID, limiter: cc.limiter})

	s.Emit(game.EventJoinSuccess, res.Success)
	if res.Snapshot != nil {
		s.Emit(game.EventGameStateSync, res.Snapshot)
	}
	if res.Story != nil {
		s.Emit(game.EventStorySummary, res.Story)
	}
	if res.NPC != nil {
		s.Emit(game.EventNPCEvent, res.NPC)
	}
	if res.Waiting != nil {
		s.Emit(game.EventWaitingOn, res.Waiting)
	}
	log.Info().Str("sid", s.ID()).Str("room", code).Int64("player", res.Success.PlayerID).Msg("socket join")
	return map[string]any{"ok": true, "playerId": res.Success.PlayerID, "roomCode": res.Success.RoomCode}
}

func (g *Gateway) onGenerateCharacter(s socketio.Conn, p characterPayload) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	player, err := g.rm.GenerateCharacter(context.Background(), cc.RoomCode, cc.PlayerID, p.Regenerate)
	if err != nil {
		return g.fail(s, cc.RoomCode, "generateCharacter", err)
	}
	return map[string]any{"ok": true, "character": player.Character}
}

func (g *Gateway) onSetReady(s socketio.Conn, p readyPayload) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	ready := true
	if p.Ready != nil {
		ready = *p.Ready
	}
	if err := g.rm.SetReady(context.Background(), cc.RoomCode, cc.PlayerID, ready); err != nil {
		return g.fail(s, cc.RoomCode, "setReady", err)
	}
	return map[string]any{"ok": true}
}

func (g *Gateway) onStartGame(s socketio.Conn) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	if err := g.rm.StartGame(context.Background(), cc.RoomCode, cc.PlayerID); err != nil {
		return g.fail(s, cc.RoomCode, "startGame", err)
	}
	return map[string]any{"ok": true}
}

func (g *Gateway) onSubmitAction(s socketio.Conn, p actionPayload) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	req := game.ActionRequest{Type: p.Type, Skill: p.Skill}
	if err := g.rm.SubmitAction(context.Background(), cc.RoomCode, cc.PlayerID, req); err != nil {
		return g.fail(s, cc.RoomCode, "submitAction", err)
	}
	return map[string]any{"ok": true}
}

func (g *Gateway) onNPCChoice(s socketio.Conn, p choicePayload) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	if err := g.rm.NPCChoice(context.Background(), cc.RoomCode, cc.PlayerID, p.ChoiceID); err != nil {
		return g.fail(s, cc.RoomCode, "npcChoice", err)
	}
	return map[string]any{"ok": true}
}

func (g *Gateway) onNextNode(s socketio.Conn) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	if err := g.rm.NextNode(context.Background(), cc.RoomCode, cc.PlayerID); err != nil {
		return g.fail(s, cc.RoomCode, "nextNode", err)
	}
	return map[string]any{"ok": true}
}

func (g *Gateway) onSync(s socketio.Conn) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	snap, err := g.rm.Sync(context.Background(), cc.RoomCode, cc.PlayerID)
	if err != nil {
		return g.fail(s, cc.RoomCode, "sync", err)
	}
	s.Emit(game.EventGameStateSync, snap)
	return map[string]any{"ok": true}
}

func (g *Gateway) onLeave(s socketio.Conn) map[string]any {
	cc, failed := g.seat(s)
	if cc == nil {
		return failed
	}
	code := cc.RoomCode
	if err := g.rm.Leave(context.Background(), code, cc.PlayerID, s.ID()); err != nil {
		return g.fail(s, code, "leave", err)
	}
	s.Leave(code)
	s.SetContext(&ConnCtx{limiter: cc.limiter})
	log.Info().Str("sid", s.ID()).Str("room", code).Msg("socket leave")
	return map[string]any{"ok": true}
}

func (g *Gateway) onDisconnect(s socketio.Conn, reason string) {
	if cc, ok := s.Context().(*ConnCtx); ok && cc.RoomCode != "" {
		if err := g.rm.Disconnect(context.Background(), cc.RoomCode, s.ID()); err != nil && !game.IsUserError(err) {
			log.Error().Err(err).Str("room", cc.RoomCode).Msg("disconnect")
		}
	}
	log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
}

// fail reports err to the socket. Rejections go out verbatim; anything
// else is logged and hidden behind a generic message.
func (g *Gateway) fail(s socketio.Conn, room, op string, err error) map[string]any {
	message := "Something went wrong, try again"
	if game.IsUserError(err) {
		message = err.Error()
	} else {
		log.Error().Err(err).Str("sid", s.ID()).Str("room", room).Str("op", op).Msg("socket request failed")
	}
	s.Emit(game.EventError, map[string]any{"message": message})
	return map[string]any{"error": message}
}
