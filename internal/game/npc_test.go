package game

import (
	"context"
	"errors"
	"testing"

	"github.com/kiliankoe/gptdungeon/internal/combat"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/pixil98/go-testutil"
)

func TestNPCNodeAtStart(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	room, players := h.started(t, npcDungeon(), "ann", "bob")
	ann, bob := players[0], players[1]

	got := h.store.room(t, room.Code)
	testutil.AssertEqual(t, "phase", got.State.Phase, PhaseNPCChoice)
	testutil.AssertEqual(t, "chooser", got.State.NPC.ChooserID, ann.ID)
	notice := h.bus.last(EventNPCEvent).(*NPCEventNotice)
	testutil.AssertEqual(t, "npc", notice.Event.NPCName, "Wise Sage")
	testutil.AssertEqual(t, "node", notice.Node.ID, "shrine")

	if err := h.rm.NPCChoice(ctx, room.Code, bob.ID, dungeon.ChoicePositive); !errors.Is(err, ErrNotChooser) {
		t.Fatalf("expected ErrNotChooser, got %v", err)
	}
	if err := h.rm.SubmitAction(ctx, room.Code, ann.ID, slash); !errors.Is(err, ErrNotInBattle) {
		t.Fatalf("expected ErrNotInBattle, got %v", err)
	}
	if err := h.rm.NextNode(ctx, room.Code, ann.ID); !errors.Is(err, ErrBattleInProgress) {
		t.Fatalf("expected ErrBattleInProgress, got %v", err)
	}
	if err := h.rm.NPCChoice(ctx, room.Code, ann.ID, "bogus"); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}

	if err := h.rm.NPCChoice(ctx, room.Code, ann.ID, dungeon.ChoicePositive); err != nil {
		t.Fatalf("choice: %v", err)
	}
	for _, p := range players {
		got := h.store.player(t, room.ID, p.ID)
		testutil.AssertEqual(t, "max hp", got.Character.MaxHP, 110.0)
		testutil.AssertEqual(t, "hp", got.HP, 110.0)
		testutil.AssertEqual(t, "max stamina", got.Character.MaxStamina, 24)
		testutil.AssertEqual(t, "stamina", got.Stamina, 24)
		testutil.AssertEqual(t, "skill power", got.Character.SkillPower, 1.5)
	}
	got = h.store.room(t, room.Code)
	testutil.AssertEqual(t, "phase", got.State.Phase, PhaseCleared)
	testutil.AssertEqual(t, "pending", got.State.NPC == nil, true)
	testutil.AssertEqual(t, "resolutions", h.bus.count(EventNPCResolution), 1)

	if err := h.rm.NPCChoice(ctx, room.Code, ann.ID, dungeon.ChoicePositive); !errors.Is(err, ErrNoPendingEvent) {
		t.Fatalf("expected ErrNoPendingEvent, got %v", err)
	}

	if err := h.rm.NextNode(ctx, room.Code, ann.ID); err != nil {
		t.Fatalf("next node: %v", err)
	}
	got = h.store.room(t, room.Code)
	testutil.AssertEqual(t, "phase", got.State.Phase, PhaseCollecting)
	testutil.AssertEqual(t, "enemy", got.State.Enemy.ID, "ghoul")
	testutil.AssertEqual(t, "enemy power", got.State.Enemy.SkillPower, dungeon.DefaultEnemySkillPower)
}

func TestApplyEffectsClamps(t *testing.T) {
	tests := map[string]struct {
		player  Player
		fx      dungeon.Effects
		hp      float64
		maxHP   float64
		stamina int
		maxSt   int
		power   float64
	}{
		"floors": {
			player: Player{IsAlive: true, HP: 10, Stamina: 3, Character: dungeon.Character{MaxHP: 100, MaxStamina: 10, SkillPower: 1}},
			fx:     dungeon.Effects{HPBonus: -200, StaminaBonus: -50, SkillPowerBonus: -5},
			hp:     1, maxHP: 1, stamina: 0, maxSt: 1, power: 0.1,
		},
		"living never killed": {
			player: Player{IsAlive: true, HP: 15, Stamina: 5, Character: dungeon.Character{MaxHP: 100, MaxStamina: 10, SkillPower: 1}},
			fx:     dungeon.Effects{HPBonus: -20},
			hp:     1, maxHP: 80, stamina: 5, maxSt: 10, power: 1,
		},
		"dead stays down": {
			player: Player{IsAlive: false, HP: 0, Stamina: 2, Character: dungeon.Character{MaxHP: 100, MaxStamina: 10, SkillPower: 1}},
			fx:     dungeon.Effects{HPBonus: 40, StaminaBonus: 8, SkillPowerBonus: 0.5},
			hp:     0, maxHP: 140, stamina: 2, maxSt: 18, power: 1.5,
		},
		"capped at max": {
			player: Player{IsAlive: true, HP: 95, Stamina: 9, Character: dungeon.Character{MaxHP: 100, MaxStamina: 10, SkillPower: 1}},
			fx:     dungeon.Effects{HPBonus: 10, StaminaBonus: 1},
			hp:     105, maxHP: 110, stamina: 10, maxSt: 11, power: 1,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := tt.player
			applyEffects(&p, tt.fx)
			testutil.AssertEqual(t, "hp", p.HP, tt.hp)
			testutil.AssertEqual(t, "max hp", p.Character.MaxHP, tt.maxHP)
			testutil.AssertEqual(t, "stamina", p.Stamina, tt.stamina)
			testutil.AssertEqual(t, "max stamina", p.Character.MaxStamina, tt.maxSt)
			testutil.AssertEqual(t, "power", p.Character.SkillPower, tt.power)
		})
	}
}

func TestWeakestAlly(t *testing.T) {
	c := dungeon.Character{MaxHP: 100}
	big := dungeon.Character{MaxHP: 200}
	players := []*Player{
		{ID: 1, HP: 60, IsAlive: true, Character: c},
		{ID: 2, HP: 100, IsAlive: true, Character: big},
		{ID: 3, HP: 0, IsAlive: false, Character: c},
	}
	testutil.AssertEqual(t, "target", weakestAlly(players).ID, int64(2))
	testutil.AssertEqual(t, "none", weakestAlly(players[2:]) == nil, true)
}

func TestEnemyTurnRejectsForeignSkill(t *testing.T) {
	h := newHarness(t, Options{})
	d := battleDungeon(100)
	enemy := newEnemyState(d.Enemies[0])
	players := []*Player{{ID: 1, Username: "ann", HP: 50, IsAlive: true, Character: testCharacter("ann")}}

	tests := map[string]string{
		"foreign skill": "Meteor Swarm",
		"no nomination": "",
	}
	for name, nominated := range tests {
		t.Run(name, func(t *testing.T) {
			res := h.rm.enemyTurn("ABC123", enemy, enemy.Sheet(), nominated, players)
			testutil.AssertEqual(t, "no enemy action", res == nil, true)
			testutil.AssertEqual(t, "target hp", players[0].HP, 50.0)
		})
	}

	res := h.rm.enemyTurn("ABC123", enemy, enemy.Sheet(), "claw", players)
	if res == nil {
		t.Fatalf("expected an enemy action for a skill in the kit")
	}
	testutil.AssertEqual(t, "skill", res.SkillName, "Claw")
	testutil.AssertEqual(t, "damage", res.Amount, combat.Round1(5*2+1.0))
	testutil.AssertEqual(t, "target hp", players[0].HP, 39.0)
}
