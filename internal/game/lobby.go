package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/rs/zerolog/log"
)

const (
	MinNodes        = 3
	MaxNodes        = 15
	maxNameLength   = 32
	startingHP      = 100
	startingStamina = 100
)

type CreateRoomParams struct {
	HostName   string             `json:"hostName"`
	Theme      string             `json:"theme"`
	Difficulty dungeon.Difficulty `json:"difficulty"`
	NodeCount  int                `json:"maxNode"`
	Language   string             `json:"language"`
}

func (p CreateRoomParams) validate() error {
	var problems []string
	if strings.TrimSpace(p.HostName) == "" {
		problems = append(problems, "hostName is required")
	}
	if strings.TrimSpace(p.Theme) == "" {
		problems = append(problems, "theme is required")
	}
	if !p.Difficulty.Valid() {
		problems = append(problems, "difficulty must be easy, medium or hard")
	}
	if p.NodeCount < MinNodes || p.NodeCount > MaxNodes {
		problems = append(problems, fmt.Sprintf("maxNode must be between %d and %d", MinNodes, MaxNodes))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRoom, strings.Join(problems, "; "))
	}
	return nil
}

func newRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// CreateRoom generates a dungeon and persists a new waiting room.
func (rm *RoomManager) CreateRoom(ctx context.Context, p CreateRoomParams) (*Room, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	lang, err := content.NormalizeLanguage(p.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	theme := strings.TrimSpace(p.Theme)

	d, err := rm.content.Dungeon(ctx, content.DungeonParams{
		Theme:      theme,
		Difficulty: p.Difficulty,
		NodeCount:  p.NodeCount,
		Language:   lang,
	})
	if err != nil {
		return nil, fmt.Errorf("generate dungeon: %w", err)
	}
	d.Normalize()

	now := rm.opts.Now()
	room := &Room{
		HostName:   strings.TrimSpace(p.HostName),
		Theme:      theme,
		Difficulty: p.Difficulty,
		NodeCount:  len(d.Nodes),
		Language:   lang,
		Status:     StatusWaiting,
		Dungeon:    d,
		State:      GameState{Phase: PhaseLobby},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for attempt := 0; attempt < 5; attempt++ {
		room.Code = newRoomCode()
		err = rm.store.CreateRoom(ctx, room)
		if !errors.Is(err, ErrRoomCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("room", room.Code).Str("theme", theme).Int("nodes", room.NodeCount).Msg("room created")
	return room, nil
}

func (rm *RoomManager) GetRoom(ctx context.Context, code string) (*Room, []*Player, error) {
	room, err := rm.store.GetRoom(ctx, normalizeCode(code))
	if err != nil {
		return nil, nil, err
	}
	players, err := rm.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, players, nil
}

func (rm *RoomManager) ListRooms(ctx context.Context, status Status) ([]*Room, error) {
	return rm.store.ListRooms(ctx, status)
}

// GenerateCharacter rolls a character sheet for a player in a waiting room.
func (rm *RoomManager) GenerateCharacter(ctx context.Context, code string, playerID int64, regenerate bool) (*Player, error) {
	var out *Player
	err := rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if room.Status != StatusWaiting {
			return ErrGameInProgress
		}
		p := findPlayer(players, playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if p.HasCharacter() && !regenerate {
			return ErrCharacterExists
		}
		c, err := rm.content.Character(ctx, content.CharacterParams{Theme: room.Theme, Language: room.Language, PlayerName: p.Username})
		if err != nil {
			return fmt.Errorf("generate character: %w", err)
		}
		c.Normalize()
		p.Character = c
		p.HP = c.MaxHP
		p.Stamina = c.MaxStamina
		p.IsAlive = true
		if err := rm.save(ctx, room, []*Player{p}); err != nil {
			return err
		}
		rm.broadcast(a.code, EventRoomUpdate, RoomUpdate{Room: ViewRoom(room), Players: ViewPlayers(room, players)})
		log.Info().Str("room", a.code).Int64("player", p.ID).Str("role", c.Role).Msg("character generated")
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

type JoinRequest struct {
	RoomCode string
	PlayerID int64
	Username string
	ConnID   string
}

// JoinResult is what only the joining connection receives.
type JoinResult struct {
	Success  JoinSuccess
	Snapshot *Snapshot
	Story    *content.Story
	NPC      *NPCEventNotice
	Waiting  *WaitingOn
}

// Join adds a new player to a waiting room or re-associates a returning one.
func (rm *RoomManager) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	var res *JoinResult
	err := rm.do(ctx, req.RoomCode, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if room.Status == StatusFinished {
			return ErrRoomFinished
		}

		var p *Player
		if req.PlayerID != 0 {
			if p = findPlayer(players, req.PlayerID); p == nil {
				return ErrPlayerNotFound
			}
		} else {
			for _, existing := range players {
				if strings.EqualFold(existing.Username, strings.TrimSpace(req.Username)) {
					p = existing
					break
				}
			}
		}

		var out outbox
		reconnected := p != nil
		if reconnected {
			p.ConnID = req.ConnID
			if err := rm.save(ctx, room, []*Player{p}); err != nil {
				return err
			}
			out.add(EventPlayerReconnected, PlayerReconnected{PlayerID: p.ID, Username: p.Username})
		} else {
			if room.Status != StatusWaiting {
				return ErrGameInProgress
			}
			name := strings.TrimSpace(req.Username)
			if name == "" || utf8.RuneCountInString(name) > maxNameLength {
				return ErrInvalidName
			}
			if len(players) >= rm.opts.MaxPartySize {
				return ErrRoomFull
			}
			p = &Player{
				RoomID:   room.ID,
				Username: name,
				ConnID:   req.ConnID,
				HP:       startingHP,
				Stamina:  startingStamina,
				IsAlive:  true,
				JoinedAt: rm.opts.Now(),
			}
			if err := rm.store.AddPlayer(ctx, room, p); err != nil {
				return err
			}
			players = append(players, p)
		}

		if req.ConnID != "" {
			a.conns[req.ConnID] = p.ID
		}
		a.stopIdle()

		res = &JoinResult{Success: JoinSuccess{
			PlayerID:    p.ID,
			RoomCode:    room.Code,
			Username:    p.Username,
			IsHost:      room.HostID == p.ID,
			Reconnected: reconnected,
		}}
		out.add(EventRoomUpdate, RoomUpdate{Room: ViewRoom(room), Players: ViewPlayers(room, players)})

		if room.Status == StatusPlaying {
			snap := buildSnapshot(room, players)
			res.Snapshot = &snap
			if room.State.NPC != nil {
				res.NPC = npcNotice(room.State.NPC, room.State.Node)
			}
			if room.State.Phase == PhaseCollecting {
				w := waitingOn(room, players)
				res.Waiting = &w
				if len(room.State.Actions) > 0 && p.IsAlive && !room.State.HasActed(p.ID) {
					if armed := rm.armActionTimers(a, room, []*Player{p}); len(armed) > 0 {
						out.add(EventTimerStarted, TimerStarted{Round: room.State.Round, Seconds: int(rm.opts.ActionTimeout.Seconds()), Players: armed})
					}
				}
			}
			story, err := rm.content.StoryThusFar(ctx, storyParams(room, players))
			if err == nil {
				res.Story = &story
			}
		}
		rm.flush(a.code, out)
		log.Info().Str("room", a.code).Int64("player", p.ID).Str("username", p.Username).Bool("reconnected", reconnected).Msg("join")
		return nil
	})
	return res, err
}

// SetReady toggles a player's ready flag in a waiting room.
func (rm *RoomManager) SetReady(ctx context.Context, code string, playerID int64, ready bool) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if room.Status != StatusWaiting {
			return ErrGameInProgress
		}
		p := findPlayer(players, playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		p.IsReady = ready
		if err := rm.save(ctx, room, []*Player{p}); err != nil {
			return err
		}
		rm.broadcast(a.code, EventRoomUpdate, RoomUpdate{Room: ViewRoom(room), Players: ViewPlayers(room, players)})
		log.Info().Str("room", a.code).Int64("player", playerID).Bool("ready", ready).Msg("ready")
		return nil
	})
}

// StartGame moves a waiting room into play at the first node. Host only.
func (rm *RoomManager) StartGame(ctx context.Context, code string, playerID int64) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		if findPlayer(players, playerID) == nil {
			return ErrPlayerNotFound
		}
		if room.HostID != playerID {
			return ErrNotHost
		}
		switch room.Status {
		case StatusFinished:
			return ErrRoomFinished
		case StatusPlaying:
			return ErrGameInProgress
		}
		if len(players) == 0 {
			return ErrNoPlayers
		}
		for _, p := range players {
			if !p.IsReady {
				return ErrNotReady
			}
		}
		for _, p := range players {
			if !p.HasCharacter() {
				return ErrMissingCharacter
			}
		}

		room.Status = StatusPlaying
		room.NodeIndex = 0
		room.State = GameState{Phase: PhaseCleared, Round: 1}
		for _, p := range players {
			p.HP = p.Character.MaxHP
			p.Stamina = p.Character.MaxStamina
			p.IsAlive = true
		}

		var out outbox
		if err := rm.enterNode(ctx, room, players, 0, &out); err != nil {
			return err
		}
		if err := rm.save(ctx, room, players); err != nil {
			return err
		}
		start := GameStart{
			Room:         ViewRoom(room),
			Players:      ViewPlayers(room, players),
			Dungeon:      room.Dungeon,
			CurrentNode:  room.State.Node,
			CurrentEnemy: room.State.Enemy,
			Round:        room.State.Round,
		}
		rm.broadcast(a.code, EventGameStart, start)
		rm.flush(a.code, out)
		log.Info().Str("room", a.code).Int("players", len(players)).Msg("game started")
		return nil
	})
}

// Leave removes a player on purpose. In a waiting room the player record
// goes away; during play it is kept so the player can come back.
func (rm *RoomManager) Leave(ctx context.Context, code string, playerID int64, connID string) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		p := findPlayer(players, playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		for id, pid := range a.conns {
			if pid == playerID {
				delete(a.conns, id)
			}
		}
		return rm.departed(ctx, a, room, players, p, true)
	})
}

// Disconnect handles a dropped connection.
func (rm *RoomManager) Disconnect(ctx context.Context, code string, connID string) error {
	return rm.do(ctx, code, func(ctx context.Context, a *roomActor) error {
		playerID, ok := a.conns[connID]
		if !ok {
			return nil
		}
		delete(a.conns, connID)
		room, players, err := rm.load(ctx, a.code)
		if err != nil {
			return err
		}
		p := findPlayer(players, playerID)
		if p == nil {
			rm.scheduleIdleCleanup(a)
			return nil
		}
		for _, pid := range a.conns {
			if pid == playerID {
				// Another connection still carries this player.
				return nil
			}
		}
		return rm.departed(ctx, a, room, players, p, false)
	})
}

// departed drops a player from the room's live roster. An action timer keeps
// running so a stalled round still resolves.
func (rm *RoomManager) departed(ctx context.Context, a *roomActor, room *Room, players []*Player, p *Player, left bool) error {
	var out outbox
	removed := false
	if room.Status == StatusWaiting {
		remaining := make([]*Player, 0, len(players))
		for _, other := range players {
			if other.ID != p.ID {
				remaining = append(remaining, other)
			}
		}
		if room.HostID == p.ID {
			room.HostID = 0
			if len(remaining) > 0 {
				room.HostID = remaining[0].ID
			}
		}
		room.UpdatedAt = rm.opts.Now()
		if err := rm.store.RemovePlayer(ctx, room, p.ID); err != nil {
			return err
		}
		players = remaining
		removed = true
	} else {
		p.ConnID = ""
		if err := rm.save(ctx, room, []*Player{p}); err != nil {
			return err
		}
	}
	out.add(EventPlayerDisconnected, PlayerDisconnected{PlayerID: p.ID, Username: p.Username, Remaining: len(a.conns), Removed: removed})
	out.add(EventRoomUpdate, RoomUpdate{Room: ViewRoom(room), Players: ViewPlayers(room, players)})
	rm.flush(a.code, out)
	rm.scheduleIdleCleanup(a)
	log.Info().Str("room", a.code).Int64("player", p.ID).Bool("left", left).Bool("removed", removed).Int("connections", len(a.conns)).Msg("player departed")
	return nil
}

func storyParams(room *Room, players []*Player) content.StoryParams {
	defeated := 0
	moments := make([]string, 0, len(room.State.AdventureLog))
	for _, e := range room.State.AdventureLog {
		if e.Type == EntryBattle && e.Result == BattleVictory {
			defeated++
		}
		moments = append(moments, e.Moment())
	}
	return content.StoryParams{
		Theme:           room.Theme,
		Language:        room.Language,
		DungeonName:     room.Dungeon.Name,
		NodeIndex:       room.NodeIndex + 1,
		TotalNodes:      len(room.Dungeon.Nodes),
		DefeatedEnemies: defeated,
		Moments:         moments,
		Party:           party(players),
	}
}

func party(players []*Player) []content.PartyMember {
	out := make([]content.PartyMember, 0, len(players))
	for _, p := range players {
		out = append(out, content.PartyMember{
			ID:         p.ID,
			Name:       p.Username,
			Role:       p.Character.Role,
			HP:         p.HP,
			MaxHP:      p.Character.MaxHP,
			Stamina:    p.Stamina,
			MaxStamina: p.Character.MaxStamina,
			Alive:      p.IsAlive,
		})
	}
	return out
}
