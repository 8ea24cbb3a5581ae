package action

import (
	"context"
	"sort"

	"github.com/mohitkumar/govflow/model"
)

const REASON_LIMIT_EXCEEDED string = "remediation_limit_exceeded"
const REASON_HIGH_RISK string = "high_risk"
const REASON_AWAITING_DECISION string = "awaiting_decision"

// EscalationDue reports whether a human has to look at the run. Attempts are
// counted from the last RETRY decision, and a RETRY also acknowledges a HIGH
// risk level.
func EscalationDue(state model.WorkflowState, maxAttempts int) (string, bool) {
	if state.RemediationAttempts-state.RemediationBaseline > maxAttempts {
		return REASON_LIMIT_EXCEEDED, true
	}
	if state.RiskLevel == model.RISK_HIGH && !state.RiskAcknowledged {
		return REASON_HIGH_RISK, true
	}
	return "", false
}

var _ Action = new(escalationAction)

type escalationAction struct {
	baseAction
	maxAttempts int
}

func NewEscalationAction(maxAttempts int) *escalationAction {
	return &escalationAction{
		baseAction:  newBaseAction(ESCALATION),
		maxAttempts: maxAttempts,
	}
}

// Execute always suspends the run. The payload is what the reviewer sees.
func (e *escalationAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	reason, due := EscalationDue(state, e.maxAttempts)
	if !due {
		reason = REASON_AWAITING_DECISION
	}
	rejected := []string{}
	for system, decision := range state.ApprovalStatus {
		if decision.State == "REJECTED" {
			rejected = append(rejected, system)
		}
	}
	sort.Strings(rejected)
	return Suspend(reason, map[string]any{
		"reason":                   reason,
		"subject_id":               state.SubjectId,
		"risk_level":               string(state.RiskLevel),
		"remediation_attempts":     state.RemediationAttempts,
		"max_remediation_attempts": e.maxAttempts,
		"cause":                    string(state.RemediationCause),
		"missing_artifacts":        toAny(state.MissingArtifacts),
		"eval_failed":              state.EvalFailed,
		"rejected_approvals":       toAny(rejected),
		"unavailable_systems":      toAny(state.UnavailableSystems()),
	})
}
