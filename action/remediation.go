package action

import (
	"context"

	"github.com/mohitkumar/govflow/model"
)

var _ Action = new(remediationAction)

type remediationAction struct {
	baseAction
}

func NewRemediationAction() *remediationAction {
	return &remediationAction{baseAction: newBaseAction(REMEDIATION)}
}

// CauseOf names what sent the run into remediation, earliest stage first.
func CauseOf(state model.WorkflowState) model.RemediationCause {
	switch {
	case len(state.MissingArtifacts) > 0:
		return model.CAUSE_MISSING_ARTIFACTS
	case state.EvalFailed:
		return model.CAUSE_EVAL_FAILED
	case state.ApprovalRejected:
		return model.CAUSE_APPROVAL_REJECTED
	default:
		return model.CAUSE_NONE
	}
}

// Execute counts the attempt and records its cause. Routing decides what
// happens next.
func (r *remediationAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	attempts := state.RemediationAttempts + 1
	cause := CauseOf(state)
	return Continue(model.Delta{
		RemediationAttempts: model.Ptr(attempts),
		RemediationCause:    model.Ptr(cause),
		Audit: audit("REMEDIATION_PLANNED", map[string]any{
			"attempt": attempts,
			"cause":   string(cause),
		}),
	})
}
