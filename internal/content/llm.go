package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kiliankoe/gptdungeon/internal/ai"
	"github.com/kiliankoe/gptdungeon/internal/dungeon"
)

var ErrInvalidContent = errors.New("generated content is invalid")

// LLM asks a completion provider for JSON and validates what comes back.
type LLM struct {
	Provider ai.Provider
	Model    string
	System   string
}

var _ Generator = (*LLM)(nil)

func NewLLM(p ai.Provider, model, system string) *LLM {
	return &LLM{Provider: p, Model: model, System: system}
}

func (g *LLM) ask(ctx context.Context, tmpl string, data any, out any) error {
	prompt, err := expand(prompts, tmpl, data)
	if err != nil {
		return err
	}
	text, err := g.Provider.Complete(ctx, ai.Request{
		Model:     g.Model,
		System:    g.System,
		Prompt:    prompt,
		JSON:      true,
		MaxTokens: 1500,
	})
	if err != nil {
		return fmt.Errorf("%s completion: %w", g.Provider.Name(), err)
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, tmpl, err)
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidContent, fmt.Sprintf(format, args...))
}

// llmSkill accepts either a bare skill name or a full skill object.
type llmSkill struct {
	dungeon.Skill
	StaminaCost *int `json:"staminaCost"`
}

func (s *llmSkill) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		s.Name = name
		s.Kind = dungeon.SkillDamage
		return nil
	}
	type plain llmSkill
	return json.Unmarshal(b, (*plain)(s))
}

func (s llmSkill) skill(defaultAmount float64) dungeon.Skill {
	out := s.Skill
	if out.Amount <= 0 {
		out.Amount = defaultAmount
	}
	if s.StaminaCost != nil {
		out.StaminaCost = *s.StaminaCost
	} else {
		out.StaminaCost = dungeon.DefaultStaminaCost(out.Amount)
	}
	return out
}

type llmEnemy struct {
	dungeon.Enemy
	Skills []llmSkill `json:"skills"`
}

type llmDungeon struct {
	dungeon.Dungeon
	Enemies []llmEnemy `json:"enemies"`
}

func (g *LLM) Dungeon(ctx context.Context, p DungeonParams) (dungeon.Dungeon, error) {
	var raw llmDungeon
	data := struct {
		DungeonParams
		LanguageName string
	}{p, languageName(p.Language)}
	if err := g.ask(ctx, "dungeon", data, &raw); err != nil {
		return dungeon.Dungeon{}, err
	}
	d := raw.Dungeon
	d.Difficulty = p.Difficulty
	d.Enemies = nil
	for _, e := range raw.Enemies {
		enemy := e.Enemy
		enemy.Skills = nil
		for _, s := range e.Skills {
			enemy.Skills = append(enemy.Skills, s.skill(8))
		}
		d.Enemies = append(d.Enemies, enemy)
	}
	d.Normalize()

	if d.Name == "" || d.Description == "" {
		return dungeon.Dungeon{}, invalid("dungeon is missing name or description")
	}
	if len(d.Nodes) != p.NodeCount {
		return dungeon.Dungeon{}, invalid("dungeon has %d nodes, want %d", len(d.Nodes), p.NodeCount)
	}
	last := d.Nodes[len(d.Nodes)-1]
	boss, ok := d.Enemy(last.EnemyID)
	if last.Type != dungeon.NodeEnemy || !ok || boss.Role != dungeon.RoleBoss {
		return dungeon.Dungeon{}, invalid("last node must hold a boss")
	}
	if err := d.Validate(); err != nil {
		return dungeon.Dungeon{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return d, nil
}

type llmCharacter struct {
	dungeon.Character
	Skills []llmSkill `json:"skills"`
}

func (g *LLM) Character(ctx context.Context, p CharacterParams) (dungeon.Character, error) {
	var raw llmCharacter
	data := struct {
		CharacterParams
		LanguageName string
		Roles        []string
	}{p, languageName(p.Language), dungeon.Roles}
	if err := g.ask(ctx, "character", data, &raw); err != nil {
		return dungeon.Character{}, err
	}
	c := raw.Character
	c.Skills = nil
	for _, s := range raw.Skills {
		c.Skills = append(c.Skills, s.skill(10))
	}
	c.Normalize()

	if !slices.Contains(dungeon.Roles, c.Role) {
		return dungeon.Character{}, invalid("unknown role %q", c.Role)
	}
	if c.MaxHP < 50 || c.MaxHP > 200 || c.MaxStamina < 20 || c.MaxStamina > 120 {
		return dungeon.Character{}, invalid("stats out of range")
	}
	if c.SkillPower < 1 || c.SkillPower > 4 {
		return dungeon.Character{}, invalid("skill power %.2f out of range", c.SkillPower)
	}
	if len(c.Skills) < 3 {
		return dungeon.Character{}, invalid("character needs at least 3 skills")
	}
	if err := c.Validate(); err != nil {
		return dungeon.Character{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return c, nil
}

func (g *LLM) BattleNarration(ctx context.Context, p BattleParams) (BattleNarration, error) {
	names := make([]string, 0, len(p.Enemy.Skills))
	for _, s := range p.Enemy.Skills {
		names = append(names, s.Name)
	}
	data := struct {
		BattleParams
		LanguageName string
		SkillNames   []string
	}{p, languageName(p.Language), names}
	var out BattleNarration
	if err := g.ask(ctx, "battle", data, &out); err != nil {
		return BattleNarration{}, err
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return BattleNarration{}, invalid("empty battle narrative")
	}
	return out, nil
}

func (g *LLM) NPCEvent(ctx context.Context, p NPCParams) (dungeon.NPCEvent, error) {
	data := struct {
		NPCParams
		LanguageName string
	}{p, languageName(p.Language)}
	var ev dungeon.NPCEvent
	if err := g.ask(ctx, "npc", data, &ev); err != nil {
		return dungeon.NPCEvent{}, err
	}
	if err := ev.Validate(); err != nil {
		return dungeon.NPCEvent{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	for i := range ev.Choices {
		e := &ev.Choices[i].Outcome.Effects
		e.HPBonus = clamp(e.HPBonus, -20, 40)
		e.StaminaBonus = int(clamp(float64(e.StaminaBonus), -5, 8))
		e.SkillPowerBonus = clamp(e.SkillPowerBonus, -0.3, 0.5)
	}
	return ev, nil
}

func (g *LLM) NodeTransition(ctx context.Context, p TransitionParams) (Transition, error) {
	data := struct {
		TransitionParams
		LanguageName string
	}{p, languageName(p.Language)}
	var out Transition
	if err := g.ask(ctx, "transition", data, &out); err != nil {
		return Transition{}, err
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return Transition{}, invalid("empty transition")
	}
	if out.Mood == "" {
		out.Mood = "neutral"
	}
	return out, nil
}

func (g *LLM) StoryThusFar(ctx context.Context, p StoryParams) (Story, error) {
	data := struct {
		StoryParams
		LanguageName string
	}{p, languageName(p.Language)}
	var out Story
	if err := g.ask(ctx, "story", data, &out); err != nil {
		return Story{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return Story{}, invalid("empty story")
	}
	return out, nil
}

func (g *LLM) BattleSummary(ctx context.Context, p BattleSummaryParams) (BattleSummary, error) {
	data := struct {
		BattleSummaryParams
		LanguageName string
	}{p, languageName(p.Language)}
	var out BattleSummary
	if err := g.ask(ctx, "battleSummary", data, &out); err != nil {
		return BattleSummary{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return BattleSummary{}, invalid("empty battle summary")
	}
	// Rewards are computed by the engine, never by the model.
	out.Rewards = p.Rewards
	return out, nil
}

func (g *LLM) FinalSummary(ctx context.Context, p FinalSummaryParams) (FinalSummary, error) {
	data := struct {
		FinalSummaryParams
		LanguageName string
	}{p, languageName(p.Language)}
	var out FinalSummary
	if err := g.ask(ctx, "finalSummary", data, &out); err != nil {
		return FinalSummary{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return FinalSummary{}, invalid("empty final summary")
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
