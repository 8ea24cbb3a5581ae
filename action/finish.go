package action

import (
	"context"

	"github.com/mohitkumar/govflow/model"
)

var _ Action = new(finishAction)

type finishAction struct {
	baseAction
	outcome model.RunStatus
}

// NewFinishAction builds a terminal node that records how the run ended.
func NewFinishAction(name string, outcome model.RunStatus) *finishAction {
	return &finishAction{baseAction: newBaseAction(name), outcome: outcome}
}

func (f *finishAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	details := map[string]any{"status": string(f.outcome)}
	if !state.PendingDecision.IsEmpty() {
		details["decision"] = string(state.PendingDecision.Action)
		details["actor"] = state.PendingDecision.Actor
	}
	return Continue(model.Delta{
		EscalationRequired: model.Ptr(false),
		Audit:              audit("FINISH", details),
	})
}
