// Package dungeon holds the static content of an adventure: the generated
// dungeon with its nodes and enemies, character sheets and NPC events.
package dungeon

import (
	"errors"
	"fmt"
	"strings"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type NodeType string

const (
	NodeEnemy NodeType = "enemy"
	NodeNPC   NodeType = "npc"
)

type EnemyRole string

const (
	RoleMinion EnemyRole = "minion"
	RoleElite  EnemyRole = "elite"
	RoleBoss   EnemyRole = "boss"
)

// DefaultEnemySkillPower applies to enemies whose sheet does not state one.
const DefaultEnemySkillPower = 2.0

type Node struct {
	ID          string   `json:"id"`
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Type        NodeType `json:"type"`
	EnemyID     string   `json:"enemyId,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Enemy struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       EnemyRole `json:"role"`
	Archetype  string    `json:"archetype"`
	HP         float64   `json:"hp"`
	SkillPower float64   `json:"skillPower"`
	Skills     []Skill   `json:"skills"`
}

type Dungeon struct {
	Name        string     `json:"dungeonName"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Nodes       []Node     `json:"nodes"`
	Enemies     []Enemy    `json:"enemies"`
}

// Enemy looks up an enemy by id.
func (d Dungeon) Enemy(id string) (Enemy, bool) {
	for _, e := range d.Enemies {
		if e.ID == id {
			return e, true
		}
	}
	return Enemy{}, false
}

// Node returns the node at position i.
func (d Dungeon) Node(i int) (Node, bool) {
	if i < 0 || i >= len(d.Nodes) {
		return Node{}, false
	}
	return d.Nodes[i], true
}

// Normalize fills identifiers and defaults a generator may have left out.
// It is idempotent.
func (d *Dungeon) Normalize() {
	for i := range d.Nodes {
		n := &d.Nodes[i]
		n.Index = i
		if n.ID == "" {
			n.ID = fmt.Sprintf("node-%d", i+1)
		}
		n.Type = NodeType(strings.ToLower(strings.TrimSpace(string(n.Type))))
		if n.Type == "" {
			n.Type = NodeEnemy
		}
		if n.Type == NodeNPC {
			n.EnemyID = ""
		}
	}
	for i := range d.Enemies {
		e := &d.Enemies[i]
		if e.ID == "" {
			e.ID = fmt.Sprintf("enemy-%d", i+1)
		}
		e.Role = EnemyRole(strings.ToLower(strings.TrimSpace(string(e.Role))))
		if e.Role == "" {
			e.Role = RoleMinion
		}
		if e.SkillPower <= 0 {
			e.SkillPower = DefaultEnemySkillPower
		}
		normalizeSkills(e.Skills)
	}
}

// Validate reports structural problems: enemy nodes must reference a known
// enemy with positive HP and at least one skill.
func (d Dungeon) Validate() error {
	if len(d.Nodes) == 0 {
		return errors.New("dungeon has no nodes")
	}
	var errs []error
	for _, n := range d.Nodes {
		switch n.Type {
		case NodeNPC:
		case NodeEnemy:
			e, ok := d.Enemy(n.EnemyID)
			if !ok {
				errs = append(errs, fmt.Errorf("node %s references unknown enemy %q", n.ID, n.EnemyID))
				continue
			}
			if e.HP <= 0 {
				errs = append(errs, fmt.Errorf("enemy %s has no hp", e.ID))
			}
			if len(e.Skills) == 0 {
				errs = append(errs, fmt.Errorf("enemy %s has no skills", e.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("node %s has unknown type %q", n.ID, n.Type))
		}
	}
	return errors.Join(errs...)
}
