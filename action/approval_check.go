package action

import (
	"context"
	"sort"

	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/model"
)

var _ Action = new(approvalCheckAction)

type approvalCheckAction struct {
	baseAction
	client governance.Client
}

func NewApprovalCheckAction(client governance.Client) *approvalCheckAction {
	return &approvalCheckAction{
		baseAction: newBaseAction(APPROVAL_CHECK),
		client:     client,
	}
}

// Execute re-reads approvals. The run is only approvable when no approver
// rejected and every governance system answered.
func (a *approvalCheckAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	delta := model.Delta{}
	systems := map[string]model.SystemStatus{}
	approvals := state.ApprovalStatus
	status, err := a.client.ApprovalStatus(ctx, state.SubjectId)
	switch {
	case err == nil:
		approvals = status.Snapshot()
		delta.ApprovalStatus = approvals
		systems[governance.SYSTEM_APPROVALS] = model.SystemStatus{Available: true}
	case governance.IsContractError(err):
		return Fatal(err)
	case ctx.Err() != nil:
		return Fatal(ctx.Err())
	default:
		systems[governance.SYSTEM_APPROVALS] = model.SystemStatus{Available: false, Error: err.Error()}
	}
	delta.Systems = systems

	var rejected []string
	for system, decision := range approvals {
		if decision.State == governance.APPROVAL_REJECTED {
			rejected = append(rejected, system)
		}
	}
	sort.Strings(rejected)
	unavailable := unavailableAfter(state.Systems, systems)

	if len(rejected) > 0 || len(unavailable) > 0 {
		delta.ApprovalRejected = model.Ptr(true)
		delta.Audit = audit("APPROVAL_REJECTED", map[string]any{
			"rejected":    toAny(rejected),
			"unavailable": toAny(unavailable),
		})
		return Continue(delta)
	}
	delta.ApprovalRejected = model.Ptr(false)
	delta.Audit = audit("APPROVAL_OK", map[string]any{})
	return Continue(delta)
}

func unavailableAfter(current map[string]model.SystemStatus, update map[string]model.SystemStatus) []string {
	merged := make(map[string]model.SystemStatus, len(current)+len(update))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return model.WorkflowState{Systems: merged}.UnavailableSystems()
}
