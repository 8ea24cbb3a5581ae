package flow

import (
	"fmt"

	"github.com/mohitkumar/govflow/action"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/model"
)

const APPROVAL_FLOW string = "governance_approval"

type Config struct {
	MaxRemediationAttempts   int
	SensitiveClassifications []string
	Thresholds               *action.ThresholdRules
}

// NewApprovalFlow wires the governance approval workflow over the given
// client.
func NewApprovalFlow(conf Config, client governance.Client) (*Flow, error) {
	if conf.MaxRemediationAttempts < 0 {
		return nil, fmt.Errorf("max remediation attempts can not be negative")
	}
	rules := conf.Thresholds
	if rules == nil {
		var err error
		rules, err = action.NewThresholdRules(action.DefaultCeilings(), nil)
		if err != nil {
			return nil, err
		}
	}
	maxAttempts := conf.MaxRemediationAttempts

	f := NewFlow(APPROVAL_FLOW, action.ENTRY)
	f.AddAction(action.NewEntryAction()).
		AddAction(action.NewClassifyAction(conf.SensitiveClassifications)).
		AddAction(action.NewFetchRegistrationAction(client)).
		AddAction(action.NewFetchPolicyAction(client)).
		AddAction(action.NewFetchApprovalsAction(client)).
		AddAction(action.NewFetchEvaluationsAction(client)).
		AddAction(action.NewFetchArtifactsAction(client)).
		AddAction(action.NewGapAnalysisAction()).
		AddAction(action.NewArtifactGenerationAction(client)).
		AddAction(action.NewEvalCheckAction(client, rules)).
		AddAction(action.NewApprovalCheckAction(client)).
		AddAction(action.NewRemediationAction()).
		AddAction(action.NewEscalationAction(maxAttempts)).
		AddAction(action.NewFinishAction(action.APPROVAL_READY, model.RUN_APPROVAL_READY)).
		AddAction(action.NewFinishAction(action.REJECTED, model.RUN_REJECTED))

	fetches := []string{
		action.FETCH_REGISTRATION,
		action.FETCH_POLICY,
		action.FETCH_APPROVALS,
		action.FETCH_EVALUATIONS,
		action.FETCH_ARTIFACTS,
	}
	f.AddEdge(action.ENTRY, action.CLASSIFY)
	f.AddEdge(action.CLASSIFY, fetches...)
	for _, fetch := range fetches {
		f.AddEdge(fetch, action.GAP_ANALYSIS)
	}
	f.AddConditionalEdge(action.GAP_ANALYSIS, afterGapAnalysis, action.ARTIFACT_GENERATION, action.EVAL_CHECK)
	f.AddEdge(action.ARTIFACT_GENERATION, action.EVAL_CHECK)
	f.AddConditionalEdge(action.EVAL_CHECK, afterEvalCheck, action.REMEDIATION, action.APPROVAL_CHECK)
	f.AddConditionalEdge(action.APPROVAL_CHECK, afterApprovalCheck, action.REMEDIATION, action.APPROVAL_READY)
	f.AddConditionalEdge(action.REMEDIATION, afterRemediation(maxAttempts),
		action.ESCALATION, action.CLASSIFY, action.ARTIFACT_GENERATION, action.EVAL_CHECK)
	f.AddConditionalEdge(action.ESCALATION, afterEscalation,
		action.APPROVAL_READY, action.REJECTED, action.CLASSIFY, action.ARTIFACT_GENERATION, action.EVAL_CHECK, action.ESCALATION)
	f.SetTerminal(action.APPROVAL_READY, model.RUN_APPROVAL_READY)
	f.SetTerminal(action.REJECTED, model.RUN_REJECTED)

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func afterGapAnalysis(state model.WorkflowState) (string, error) {
	if len(state.MissingArtifacts) > 0 {
		return action.ARTIFACT_GENERATION, nil
	}
	return action.EVAL_CHECK, nil
}

func afterEvalCheck(state model.WorkflowState) (string, error) {
	if state.EvalFailed {
		return action.REMEDIATION, nil
	}
	return action.APPROVAL_CHECK, nil
}

func afterApprovalCheck(state model.WorkflowState) (string, error) {
	if state.ApprovalRejected {
		return action.REMEDIATION, nil
	}
	return action.APPROVAL_READY, nil
}

func afterRemediation(maxAttempts int) Router {
	return func(state model.WorkflowState) (string, error) {
		if _, due := action.EscalationDue(state, maxAttempts); due {
			return action.ESCALATION, nil
		}
		return retryTarget(state), nil
	}
}

// afterEscalation routes on the human decision injected by a resume. With no
// decision the run suspends again.
func afterEscalation(state model.WorkflowState) (string, error) {
	switch state.PendingDecision.Action {
	case "":
		return action.ESCALATION, nil
	case model.DECISION_APPROVE:
		return action.APPROVAL_READY, nil
	case model.DECISION_REJECT:
		return action.REJECTED, nil
	case model.DECISION_RETRY:
		return retryTarget(state), nil
	default:
		return "", fmt.Errorf("unknown decision %q", state.PendingDecision.Action)
	}
}

// retryTarget re-runs the fan-out while any governance system is marked
// unavailable, so every snapshot is read again before the next check.
func retryTarget(state model.WorkflowState) string {
	if len(state.UnavailableSystems()) > 0 {
		return action.CLASSIFY
	}
	if state.RemediationCause == model.CAUSE_MISSING_ARTIFACTS {
		return action.ARTIFACT_GENERATION
	}
	return action.EVAL_CHECK
}
