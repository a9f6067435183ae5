package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/gptdungeon/internal/game"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	rm    *game.RoomManager
	store Pinger
}

func New(rm *game.RoomManager, store Pinger) *Handler {
	return &Handler{rm: rm, store: store}
}

// Register mounts the HTTP routes. GM routes are only mounted when both
// credentials are set.
func (h *Handler) Register(r *gin.Engine, gmUser, gmPass string) {
	r.GET("/health", h.health)

	rooms := r.Group("/api/rooms")
	rooms.POST("", h.createRoom)
	rooms.GET("", h.listRooms)
	rooms.GET("/:code", h.getRoom)
	rooms.POST("/:code/players/:id/character", h.generateCharacter)

	if gmUser != "" && gmPass != "" {
		auth := gin.BasicAuth(gin.Accounts{gmUser: gmPass})
		rooms.DELETE("/:code", auth, h.deleteRoom)
	}
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{"ok": true, "time": time.Now().UTC(), "activeRooms": h.rm.ActiveRooms()}
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			log.Error().Err(err).Msg("health: store unreachable")
			body["ok"] = false
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) createRoom(c *gin.Context) {
	var req game.CreateRoomParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	room, err := h.rm.CreateRoom(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create room", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"roomCode": room.Code,
		"room":     game.ViewRoom(room),
		"dungeon":  room.Dungeon,
	})
}

type roomListing struct {
	game.RoomView
	Usernames []string `json:"usernames"`
}

func (h *Handler) listRooms(c *gin.Context) {
	status := game.Status(c.DefaultQuery("status", string(game.StatusWaiting)))
	if status == "all" {
		status = ""
	}
	ctx := c.Request.Context()
	rooms, err := h.rm.ListRooms(ctx, status)
	if err != nil {
		h.fail(c, "list rooms", err)
		return
	}
	out := make([]roomListing, 0, len(rooms))
	for _, r := range rooms {
		_, players, err := h.rm.GetRoom(ctx, r.Code)
		if errors.Is(err, game.ErrRoomNotFound) {
			// Cleaned up since the listing.
			continue
		}
		if err != nil {
			h.fail(c, "list rooms", err)
			return
		}
		names := make([]string, 0, len(players))
		for _, p := range players {
			names = append(names, p.Username)
		}
		out = append(out, roomListing{RoomView: game.ViewRoom(r), Usernames: names})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (h *Handler) getRoom(c *gin.Context) {
	room, players, err := h.rm.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, "get room", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":    game.ViewRoom(room),
		"players": game.ViewPlayers(room, players),
	})
}

func (h *Handler) generateCharacter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
		return
	}
	var body struct {
		Regenerate bool `json:"regenerate"`
	}
	// An empty body means a first roll.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	p, err := h.rm.GenerateCharacter(c.Request.Context(), c.Param("code"), id, body.Regenerate)
	if err != nil {
		h.fail(c, "generate character", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": p})
}

func (h *Handler) deleteRoom(c *gin.Context) {
	if err := h.rm.ForceCleanup(c.Request.Context(), c.Param("code")); err != nil {
		h.fail(c, "delete room", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost), errors.Is(err, game.ErrNotChooser):
		return http.StatusForbidden
	case errors.Is(err, game.ErrGameInProgress), errors.Is(err, game.ErrRoomFinished),
		errors.Is(err, game.ErrCharacterExists), errors.Is(err, game.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case game.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
