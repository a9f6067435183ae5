package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/muesli/reflow/wordwrap"
)

const chronicleWidth = 78

// export appends a plain-text chronicle of a finished adventure to
// Options.ExportFile.
func (rm *RoomManager) export(room *Room, players []*Player, summary content.FinalSummary) error {
	if rm.opts.ExportFile == "" {
		return nil
	}
	return ExportChronicle(rm.opts.ExportFile, room, players, summary)
}

// ExportChronicle writes one adventure to filename, appending when the file
// already has content.
func ExportChronicle(filename string, room *Room, players []*Player, summary content.FinalSummary) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if info, err := os.Stat(filename); err == nil && info.Size() > 0 {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(chronicle(room, players, summary, fileExists)); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func chronicle(room *Room, players []*Player, summary content.FinalSummary, separate bool) string {
	var sb strings.Builder
	if separate {
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "%s - Room %s\n", room.Dungeon.Name, room.Code)
	fmt.Fprintf(&sb, "Theme: %s (%s, %s)\n", room.Theme, room.Difficulty, room.Language)
	fmt.Fprintf(&sb, "Started: %s\n", room.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Outcome: %s\n", room.State.Outcome)
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Party:\n")
	for _, p := range players {
		state := "alive"
		if !p.IsAlive {
			state = "fallen"
		}
		fmt.Fprintf(&sb, "- %s the %s: %.1f/%.1f HP, %s\n", p.Username, p.Character.Role, p.HP, p.Character.MaxHP, state)
	}
	sb.WriteString("\n")

	if len(room.State.AdventureLog) > 0 {
		sb.WriteString("Journey:\n")
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		for _, e := range room.State.AdventureLog {
			sb.WriteString(indent(wordwrap.String(e.Moment(), chronicleWidth-2)))
		}
		sb.WriteString("\n")
	}

	if summary.Summary != "" {
		sb.WriteString(wordwrap.String(summary.Summary, chronicleWidth) + "\n")
	}
	for _, h := range summary.Highlights {
		sb.WriteString(indent(wordwrap.String(h, chronicleWidth-2)))
	}
	if summary.Epitaph != "" {
		fmt.Fprintf(&sb, "\n%s\n", wordwrap.String(summary.Epitaph, chronicleWidth))
	}
	fmt.Fprintf(&sb, "Ended: %s\n", room.UpdatedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	return sb.String()
}

// indent bullets the first line of a wrapped block and aligns the rest.
func indent(block string) string {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	var sb strings.Builder
	for i, l := range lines {
		if i == 0 {
			sb.WriteString("- ")
		} else {
			sb.WriteString("  ")
		}
		sb.WriteString(l + "\n")
	}
	return sb.String()
}
