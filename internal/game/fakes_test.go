package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

type memStore struct {
	mu         sync.Mutex
	nextRoom   int64
	nextPlayer int64
	rooms      map[string]*Room
	players    map[int64][]*Player
	failSave   error
	saves      int
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]*Room), players: make(map[int64][]*Player)}
}

func cloneRoom(r *Room) *Room {
	b, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	var out Room
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

func clonePlayer(p *Player) *Player {
	cp := *p
	cp.Character.Skills = append([]dungeon.Skill(nil), p.Character.Skills...)
	return &cp
}

func (s *memStore) CreateRoom(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; ok {
		return ErrRoomCodeTaken
	}
	s.nextRoom++
	room.ID = s.nextRoom
	s.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (s *memStore) GetRoom(_ context.Context, code string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(r), nil
}

func (s *memStore) ListRooms(_ context.Context, status Status) ([]*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Room
	for _, r := range s.rooms {
		if status == "" || r.Status == status {
			out = append(out, cloneRoom(r))
		}
	}
	return out, nil
}

func (s *memStore) ListPlayers(_ context.Context, roomID int64) ([]*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Player
	for _, p := range s.players[roomID] {
		out = append(out, clonePlayer(p))
	}
	return out, nil
}

func (s *memStore) AddPlayer(_ context.Context, room *Room, p *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rooms[room.Code]
	if !ok {
		return ErrRoomNotFound
	}
	s.nextPlayer++
	p.ID = s.nextPlayer
	p.RoomID = room.ID
	s.players[room.ID] = append(s.players[room.ID], clonePlayer(p))
	if stored.HostID == 0 {
		stored.HostID = p.ID
		room.HostID = p.ID
	}
	return nil
}

func (s *memStore) RemovePlayer(_ context.Context, room *Room, playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*Player
	for _, p := range s.players[room.ID] {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	s.players[room.ID] = kept
	s.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (s *memStore) SaveRoom(_ context.Context, room *Room, players []*Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.saves++
	s.rooms[room.Code] = cloneRoom(room)
	for _, p := range players {
		for i, existing := range s.players[room.ID] {
			if existing.ID == p.ID {
				s.players[room.ID][i] = clonePlayer(p)
			}
		}
	}
	return nil
}

func (s *memStore) DeleteRoom(_ context.Context, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, r := range s.rooms {
		if r.ID == roomID {
			delete(s.rooms, code)
		}
	}
	delete(s.players, roomID)
	return nil
}

func (s *memStore) room(t *testing.T, code string) *Room {
	t.Helper()
	r, err := s.GetRoom(context.Background(), code)
	if err != nil {
		t.Fatalf("get room %s: %v", code, err)
	}
	return r
}

func (s *memStore) player(t *testing.T, roomID, playerID int64) *Player {
	t.Helper()
	players, _ := s.ListPlayers(context.Background(), roomID)
	if p := findPlayer(players, playerID); p != nil {
		return p
	}
	t.Fatalf("player %d not found", playerID)
	return nil
}

type recorded struct {
	room    string
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) Broadcast(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{room: room, event: event, payload: payload})
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event == event {
			return r.events[i].payload
		}
	}
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, event string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(event) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s events, have %v", n, event, r.names())
}

// scriptedDice returns queued rolls, then def. Rolls are clamped to the die.
type scriptedDice struct {
	mu    sync.Mutex
	rolls []int
	def   int
}

func (d *scriptedDice) Roll(sides int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.def
	if len(d.rolls) > 0 {
		v, d.rolls = d.rolls[0], d.rolls[1:]
	}
	return max(1, min(sides, v))
}

func (d *scriptedDice) queue(rolls ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolls = append(d.rolls, rolls...)
}

type harness struct {
	rm    *RoomManager
	store *memStore
	bus   *recorder
	dice  *scriptedDice
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	return newHarnessWith(t, opts, nil)
}

// newHarnessWith builds a harness around gen. A nil gen uses the local
// fallback content.
func newHarnessWith(t *testing.T, opts Options, gen content.Generator) *harness {
	t.Helper()
	h := &harness{store: newMemStore(), bus: &recorder{}, dice: &scriptedDice{def: 10}}
	opts.Dice = h.dice
	h.rm = NewRoomManager(h.store, gen, h.bus, opts)
	t.Cleanup(h.rm.Close)
	return h
}

// nominator narrates like the fallback but always nominates skill for the
// enemy.
type nominator struct {
	*content.Fallback
	skill string
}

func (n nominator) BattleNarration(ctx context.Context, p content.BattleParams) (content.BattleNarration, error) {
	out, err := n.Fallback.BattleNarration(ctx, p)
	out.EnemySkill = n.skill
	return out, err
}

var errBoom = errors.New("boom")

func testCharacter(name string) dungeon.Character {
	return dungeon.Character{
		Name:       name,
		Role:       "Warrior",
		MaxHP:      100,
		MaxStamina: 20,
		SkillPower: 1,
		Skills: []dungeon.Skill{
			{ID: "skill-1", Name: "Slash", Kind: dungeon.SkillDamage, Amount: 10, StaminaCost: 2},
			{ID: "skill-2", Name: "Mend", Kind: dungeon.SkillHealing, Amount: 5, StaminaCost: 3},
			{ID: "skill-3", Name: "Cleave", Kind: dungeon.SkillDamage, Amount: 30, StaminaCost: 50},
		},
	}
}

// battleDungeon has one battle node per enemy HP given.
func battleDungeon(enemyHP ...float64) dungeon.Dungeon {
	d := dungeon.Dungeon{Name: "The Test Crypt", Difficulty: dungeon.DifficultyEasy}
	for i, hp := range enemyHP {
		role := dungeon.RoleMinion
		if i == len(enemyHP)-1 {
			role = dungeon.RoleBoss
		}
		d.Enemies = append(d.Enemies, dungeon.Enemy{
			Name:       "Ghoul",
			Role:       role,
			HP:         hp,
			SkillPower: 2,
			Skills: []dungeon.Skill{
				{Name: "Claw", Kind: dungeon.SkillDamage, Amount: 5},
			},
		})
		d.Nodes = append(d.Nodes, dungeon.Node{Name: "Hall", Type: dungeon.NodeEnemy})
	}
	d.Normalize()
	for i := range d.Nodes {
		d.Nodes[i].EnemyID = d.Enemies[i].ID
	}
	return d
}

// seed stores a waiting room with ready players carrying characters. The
// first player is the host.
func (h *harness) seed(t *testing.T, d dungeon.Dungeon, names ...string) (*Room, []*Player) {
	t.Helper()
	ctx := context.Background()
	room := &Room{
		Code:       "ABC123",
		HostName:   names[0],
		Theme:      "crypt",
		Difficulty: dungeon.DifficultyEasy,
		NodeCount:  len(d.Nodes),
		Language:   "en",
		Status:     StatusWaiting,
		Dungeon:    d,
		State:      GameState{Phase: PhaseLobby},
	}
	if err := h.store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	var players []*Player
	for _, name := range names {
		c := testCharacter(name)
		p := &Player{Username: name, IsReady: true, Character: c, HP: c.MaxHP, Stamina: c.MaxStamina, IsAlive: true}
		if err := h.store.AddPlayer(ctx, room, p); err != nil {
			t.Fatalf("add player: %v", err)
		}
		players = append(players, p)
	}
	return room, players
}

// started seeds a room and starts the game as the host.
func (h *harness) started(t *testing.T, d dungeon.Dungeon, names ...string) (*Room, []*Player) {
	t.Helper()
	room, players := h.seed(t, d, names...)
	if err := h.rm.StartGame(context.Background(), room.Code, players[0].ID); err != nil {
		t.Fatalf("start game: %v", err)
	}
	return h.store.room(t, room.Code), players
}

func (h *harness) update(t *testing.T, room *Room, playerID int64, fn func(p *Player)) {
	t.Helper()
	p := h.store.player(t, room.ID, playerID)
	fn(p)
	r := h.store.room(t, room.Code)
	if err := h.store.SaveRoom(context.Background(), r, []*Player{p}); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func (h *harness) waitDeleted(t *testing.T, code string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := h.store.GetRoom(context.Background(), code); errors.Is(err, ErrRoomNotFound) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s was not cleaned up", code)
}

func npcDungeon() dungeon.Dungeon {
	d := dungeon.Dungeon{
		Name:       "The Quiet Shrine",
		Difficulty: dungeon.DifficultyEasy,
		Nodes: []dungeon.Node{
			{ID: "shrine", Name: "Shrine", Type: dungeon.NodeNPC},
			{ID: "hall", Name: "Hall", Type: dungeon.NodeEnemy, EnemyID: "ghoul"},
		},
		Enemies: []dungeon.Enemy{{
			ID:     "ghoul",
			Name:   "Ghoul",
			Role:   dungeon.RoleBoss,
			HP:     30,
			Skills: []dungeon.Skill{{Name: "Claw", Kind: dungeon.SkillDamage, Amount: 5}},
		}},
	}
	d.Normalize()
	return d
}
