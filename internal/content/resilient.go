package content

import (
	"context"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/dungeon"
	"github.com/rs/zerolog/log"
)

// Resilient runs every call against Primary under a time budget and answers
// from Fallback when it fails. Its methods never return an error.
type Resilient struct {
	Primary  Generator
	Fallback *Fallback
	Timeout  time.Duration
}

var _ Generator = (*Resilient)(nil)

// WithFallback wraps primary. A nil primary means fallback only.
func WithFallback(primary Generator, fb *Fallback, timeout time.Duration) *Resilient {
	if fb == nil {
		fb = NewFallback(nil)
	}
	return &Resilient{Primary: primary, Fallback: fb, Timeout: timeout}
}

func call[T any](ctx context.Context, r *Resilient, kind string, primary, fallback func(context.Context) (T, error)) (T, error) {
	if r.Primary != nil {
		cctx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		start := time.Now()
		v, err := primary(cctx)
		if err == nil {
			log.Debug().Str("kind", kind).Dur("dur", time.Since(start)).Msg("content generated")
			return v, nil
		}
		log.Warn().Err(err).Str("kind", kind).Dur("dur", time.Since(start)).Msg("content generation failed, using fallback")
	}
	return fallback(ctx)
}

func (r *Resilient) Dungeon(ctx context.Context, p DungeonParams) (dungeon.Dungeon, error) {
	return call(ctx, r, "dungeon",
		func(ctx context.Context) (dungeon.Dungeon, error) { return r.Primary.Dungeon(ctx, p) },
		func(ctx context.Context) (dungeon.Dungeon, error) { return r.Fallback.Dungeon(ctx, p) })
}

func (r *Resilient) Character(ctx context.Context, p CharacterParams) (dungeon.Character, error) {
	return call(ctx, r, "character",
		func(ctx context.Context) (dungeon.Character, error) { return r.Primary.Character(ctx, p) },
		func(ctx context.Context) (dungeon.Character, error) { return r.Fallback.Character(ctx, p) })
}

func (r *Resilient) BattleNarration(ctx context.Context, p BattleParams) (BattleNarration, error) {
	return call(ctx, r, "battle",
		func(ctx context.Context) (BattleNarration, error) { return r.Primary.BattleNarration(ctx, p) },
		func(ctx context.Context) (BattleNarration, error) { return r.Fallback.BattleNarration(ctx, p) })
}

func (r *Resilient) NPCEvent(ctx context.Context, p NPCParams) (dungeon.NPCEvent, error) {
	return call(ctx, r, "npc",
		func(ctx context.Context) (dungeon.NPCEvent, error) { return r.Primary.NPCEvent(ctx, p) },
		func(ctx context.Context) (dungeon.NPCEvent, error) { return r.Fallback.NPCEvent(ctx, p) })
}

func (r *Resilient) NodeTransition(ctx context.Context, p TransitionParams) (Transition, error) {
	return call(ctx, r, "transition",
		func(ctx context.Context) (Transition, error) { return r.Primary.NodeTransition(ctx, p) },
		func(ctx context.Context) (Transition, error) { return r.Fallback.NodeTransition(ctx, p) })
}

func (r *Resilient) StoryThusFar(ctx context.Context, p StoryParams) (Story, error) {
	return call(ctx, r, "story",
		func(ctx context.Context) (Story, error) { return r.Primary.StoryThusFar(ctx, p) },
		func(ctx context.Context) (Story, error) { return r.Fallback.StoryThusFar(ctx, p) })
}

func (r *Resilient) BattleSummary(ctx context.Context, p BattleSummaryParams) (BattleSummary, error) {
	return call(ctx, r, "battleSummary",
		func(ctx context.Context) (BattleSummary, error) { return r.Primary.BattleSummary(ctx, p) },
		func(ctx context.Context) (BattleSummary, error) { return r.Fallback.BattleSummary(ctx, p) })
}

func (r *Resilient) FinalSummary(ctx context.Context, p FinalSummaryParams) (FinalSummary, error) {
	return call(ctx, r, "finalSummary",
		func(ctx context.Context) (FinalSummary, error) { return r.Primary.FinalSummary(ctx, p) },
		func(ctx context.Context) (FinalSummary, error) { return r.Fallback.FinalSummary(ctx, p) })
}
