package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atimics/rati-sub002/pkg/ledger"
	"github.com/atimics/rati-sub002/pkg/logger"
)

// Deny reasons reported by the gate. Adapters surface these to the model so
// it can pick a different action instead of retrying the same one.
const (
	DenyCooldown  = "cooldown_active"
	DenyDuplicate = "duplicate_content"
	DenyDone      = "already_succeeded"
)

// Decision is the gate's verdict on a proposed action.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate sits between the decision loop and the platform dispatchers. Every
// side-effecting action passes through Permit before execution and Report
// after, so the ledger sees the full picture.
type Gate struct {
	ledger *ledger.Ledger
}

func NewGate(l *ledger.Ledger) *Gate {
	return &Gate{ledger: l}
}

// Permit checks a proposed action against the cooldown registry, the
// duplicate-content window, and prior successes for idempotent actions.
// A duplicate check consumes a slot in the content window, so a denied
// action should not be re-permitted with identical content.
func (g *Gate) Permit(ctx context.Context, action, target, content string) Decision {
	if g.ledger.InCooldown(ctx, action, target) {
		logger.DebugCF("gate", "Action denied by cooldown",
			map[string]interface{}{"action": action, "target": target})
		return Decision{Reason: DenyCooldown}
	}

	if content != "" && g.ledger.IsDuplicateContent(ctx, content) {
		logger.DebugCF("gate", "Action denied as duplicate content",
			map[string]interface{}{"action": action, "target": target})
		return Decision{Reason: DenyDuplicate}
	}

	if idempotentActions[action] && g.ledger.HasSucceeded(action, target) {
		logger.DebugCF("gate", "Action denied, already succeeded",
			map[string]interface{}{"action": action, "target": target})
		return Decision{Reason: DenyDone}
	}

	return Decision{Allowed: true}
}

// idempotentActions are actions that must not repeat against the same target
// once they have succeeded.
var idempotentActions = map[string]bool{
	"mint_nft":    true,
	"follow_user": true,
	"like_cast":   true,
}

// Report records the outcome of an executed action. The result value is
// marshalled into the record; a nil result is stored as empty.
func (g *Gate) Report(ctx context.Context, action, target, data string, result interface{}, status ledger.Status, execErr error) (ledger.ActionRecord, error) {
	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return ledger.ActionRecord{}, fmt.Errorf("marshal action result: %w", err)
		}
		raw = b
	}

	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	}

	return g.ledger.RecordAction(ctx, action, target, data, raw, status, errMsg), nil
}
