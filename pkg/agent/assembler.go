package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/atimics/rati-sub002/pkg/ledger"
	"github.com/atimics/rati-sub002/pkg/logger"
	"github.com/atimics/rati-sub002/pkg/ranker"
)

// Assembler merges persona identity, recalled memories and the ledger's view
// of recent bot activity into the prompt payload handed to the model. The
// activity section is what stops the model from proposing an action it just
// performed.
type Assembler struct {
	agentName string
	persona   string
	ledger    *ledger.Ledger
}

func NewAssembler(agentName, persona string, l *ledger.Ledger) *Assembler {
	return &Assembler{agentName: agentName, persona: persona, ledger: l}
}

const recentActionsShown = 10

func (a *Assembler) identity() string {
	name := a.agentName
	if name == "" {
		name = "rati"
	}
	parts := []string{fmt.Sprintf("# %s\n\nYou are %s, an autonomous social agent.", name, name)}
	if strings.TrimSpace(a.persona) != "" {
		parts = append(parts, "## Persona\n\n"+strings.TrimSpace(a.persona))
	}
	return strings.Join(parts, "\n\n")
}

// Assemble builds the full prompt for one decision turn.
func (a *Assembler) Assemble(recalled ranker.Result, currentMessage string, now time.Time) string {
	parts := []string{a.identity()}

	if block := a.activityBlock(now); block != "" {
		parts = append(parts, block)
	}

	if strings.TrimSpace(recalled.ContextString) != "" {
		parts = append(parts, "## Recalled Memories\n\n"+strings.TrimSpace(recalled.ContextString))
	}

	if strings.TrimSpace(currentMessage) != "" {
		parts = append(parts, "## Current Message\n\n"+strings.TrimSpace(currentMessage))
	}

	prompt := strings.Join(parts, "\n\n---\n\n")

	logger.DebugCF("agent", "Prompt assembled",
		map[string]interface{}{
			"total_chars":   len(prompt),
			"section_count": len(parts),
			"recalled":      len(recalled.Memories),
			"fallback":      recalled.Fallback,
		})

	return prompt
}

// activityBlock renders the ledger's activity snapshot and recent history so
// the model knows what it already did.
func (a *Assembler) activityBlock(now time.Time) string {
	if a.ledger == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Recent Activity\n")

	activity := a.ledger.Activity()
	if !activity.LastSuccessAt.IsZero() {
		fmt.Fprintf(&sb, "\nLast successful action: %s ago.\n", humanDuration(now.Sub(activity.LastSuccessAt)))
	}

	history := a.ledger.RecentHistory(recentActionsShown)
	if len(history) == 0 && activity.LastSuccessAt.IsZero() {
		sb.WriteString("\nNo actions taken yet.\n")
		return sb.String()
	}

	if len(history) > 0 {
		sb.WriteString("\nRecent actions (oldest first):\n")
		for _, rec := range history {
			line := fmt.Sprintf("- %s %s", rec.Action, rec.Status)
			if rec.Target != "" {
				line += " target=" + rec.Target
			}
			if rec.Error != "" {
				line += " error=" + rec.Error
			}
			sb.WriteString(line + "\n")
		}
	}

	snap := a.ledger.Snapshot()
	if len(snap.DuplicatePrevention.CooldownActions) > 0 {
		sb.WriteString("\nActive cooldowns:\n")
		for _, cd := range snap.DuplicatePrevention.CooldownActions {
			if cd.ExpiresAt.After(now) {
				fmt.Fprintf(&sb, "- %s expires in %s\n", cd.Key, humanDuration(cd.ExpiresAt.Sub(now)))
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
