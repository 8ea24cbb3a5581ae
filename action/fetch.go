package action

import (
	"context"

	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

// fetchAction reads one governance system and writes only that system's
// snapshot. An unavailable system is recorded in state; a contract violation
// fails the run.
type fetchAction struct {
	baseAction
	system string
	event  string
	fetch  func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error)
}

var _ Action = new(fetchAction)

func (f *fetchAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	delta, details, err := f.fetch(ctx, state)
	if err != nil {
		if governance.IsContractError(err) {
			return Fatal(err)
		}
		if !governance.IsUnavailable(err) {
			if ctx.Err() != nil {
				return Fatal(ctx.Err())
			}
			err = governance.UnavailableError{System: f.system, Attempts: 1, Err: err}
		}
		logger.Warn("governance system unavailable", zap.String("system", f.system), zap.String("subject", state.SubjectId), zap.Error(err))
		return Continue(unavailableDelta(f.system, f.event, err, delta))
	}
	if details == nil {
		details = map[string]any{}
	}
	delta.Systems = map[string]model.SystemStatus{f.system: {Available: true}}
	delta.Audit = audit(f.event, details)
	return Continue(delta)
}

// unavailableDelta marks a system as not answering. fallback holds the
// conservative snapshot the node wants written in that case.
func unavailableDelta(system string, event string, err error, fallback model.Delta) model.Delta {
	fallback.Systems = map[string]model.SystemStatus{system: {Available: false, Error: err.Error()}}
	fallback.Audit = audit(event, map[string]any{"available": false, "error": err.Error()})
	return fallback
}

func NewFetchRegistrationAction(client governance.Client) *fetchAction {
	return &fetchAction{
		baseAction: newBaseAction(FETCH_REGISTRATION),
		system:     governance.SYSTEM_REGISTRATION,
		event:      "FETCH_REGISTRATION",
		fetch: func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error) {
			reg, err := client.RegistrationStatus(ctx, state.SubjectId)
			if err != nil {
				return model.Delta{Registration: map[string]any{"registered": false}}, nil, err
			}
			snapshot := map[string]any{
				"registered":  reg.Registered,
				"owner":       reg.Owner,
				"external_id": reg.ExternalId,
			}
			return model.Delta{Registration: snapshot}, map[string]any{"registered": reg.Registered}, nil
		},
	}
}

func NewFetchPolicyAction(client governance.Client) *fetchAction {
	return &fetchAction{
		baseAction: newBaseAction(FETCH_POLICY),
		system:     governance.SYSTEM_POLICY,
		event:      "FETCH_POLICY",
		fetch: func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error) {
			req := governance.PolicyRequest{
				DataClassification: state.Submission.DataClassification,
				DeploymentTarget:   state.Submission.DeploymentTarget,
				ModelProvider:      state.Submission.ModelProvider,
			}
			policy, err := client.PolicyRequirements(ctx, req)
			if err != nil {
				return model.Delta{}, nil, err
			}
			details := map[string]any{
				"required_artifacts":   toAny(policy.RequiredArtifacts),
				"required_evaluations": toAny(policy.RequiredEvaluations),
			}
			if v, ok := policy.Meta["policy_version"]; ok {
				details["policy_version"] = v
			}
			return model.Delta{
				RequiredArtifacts:   model.Ptr(append([]string{}, policy.RequiredArtifacts...)),
				RequiredEvaluations: model.Ptr(append([]string{}, policy.RequiredEvaluations...)),
			}, details, nil
		},
	}
}

func NewFetchApprovalsAction(client governance.Client) *fetchAction {
	return &fetchAction{
		baseAction: newBaseAction(FETCH_APPROVALS),
		system:     governance.SYSTEM_APPROVALS,
		event:      "FETCH_APPROVALS",
		fetch: func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error) {
			status, err := client.ApprovalStatus(ctx, state.SubjectId)
			if err != nil {
				return model.Delta{}, nil, err
			}
			return model.Delta{ApprovalStatus: status.Snapshot()}, map[string]any{"systems": len(status.Approvals)}, nil
		},
	}
}

func NewFetchEvaluationsAction(client governance.Client) *fetchAction {
	return &fetchAction{
		baseAction: newBaseAction(FETCH_EVALUATIONS),
		system:     governance.SYSTEM_EVALUATIONS,
		event:      "FETCH_EVAL_STATUS",
		fetch: func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error) {
			status, err := client.EvaluationStatus(ctx, state.SubjectId)
			if err != nil {
				return model.Delta{}, nil, err
			}
			return model.Delta{EvalMetrics: status.Metrics}, map[string]any{"metrics": len(status.Metrics)}, nil
		},
	}
}

func NewFetchArtifactsAction(client governance.Client) *fetchAction {
	return &fetchAction{
		baseAction: newBaseAction(FETCH_ARTIFACTS),
		system:     governance.SYSTEM_ARTIFACTS,
		event:      "FETCH_ARTIFACT_STATUS",
		fetch: func(ctx context.Context, state model.WorkflowState) (model.Delta, map[string]any, error) {
			status, err := client.ArtifactStatus(ctx, state.SubjectId)
			if err != nil {
				// nothing can be assumed present
				return model.Delta{PresentArtifacts: model.Ptr([]string{})}, nil, err
			}
			present := append([]string{}, status.ArtifactTypes...)
			return model.Delta{PresentArtifacts: &present}, map[string]any{"present": toAny(present)}, nil
		},
	}
}
