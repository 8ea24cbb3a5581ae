package action

import (
	"context"

	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

var _ Action = new(evalCheckAction)

type evalCheckAction struct {
	baseAction
	client governance.Client
	rules  *ThresholdRules
}

func NewEvalCheckAction(client governance.Client, rules *ThresholdRules) *evalCheckAction {
	return &evalCheckAction{
		baseAction: newBaseAction(EVAL_CHECK),
		client:     client,
		rules:      rules,
	}
}

// Execute triggers the required evaluations that have no result yet and, when
// re-entered after an evaluation failure, the ones that breached. The merged
// snapshot is then checked against the threshold rules.
func (e *evalCheckAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	metrics := make(map[string]any, len(state.EvalMetrics))
	for k, v := range state.EvalMetrics {
		metrics[k] = v
	}
	retrigger := map[string]bool{}
	if state.RemediationCause == model.CAUSE_EVAL_FAILED {
		for _, b := range e.rules.Evaluate(metrics, state.RequiredEvaluations) {
			retrigger[b.Metric] = true
		}
	}
	var toTrigger []string
	for _, ev := range state.RequiredEvaluations {
		key := governance.MetricKey(ev)
		if _, ok := metrics[key]; !ok || retrigger[key] {
			toTrigger = append(toTrigger, ev)
		}
	}

	delta := model.Delta{}
	var entries []model.AuditEntry
	if len(toTrigger) > 0 {
		status, err := e.client.TriggerEvaluations(ctx, state.SubjectId, toTrigger)
		switch {
		case err == nil:
			delta.EvalMetrics = status.Metrics
			for k, v := range status.Metrics {
				metrics[k] = v
			}
			delta.Systems = map[string]model.SystemStatus{governance.SYSTEM_EVALUATIONS: {Available: true}}
			entries = append(entries, audit("EVAL_TRIGGERED", map[string]any{"evaluations": toAny(toTrigger)})...)
		case governance.IsContractError(err):
			return Fatal(err)
		case ctx.Err() != nil:
			return Fatal(ctx.Err())
		default:
			logger.Warn("could not trigger evaluations", zap.String("subject", state.SubjectId), zap.Error(err))
			delta.Systems = map[string]model.SystemStatus{governance.SYSTEM_EVALUATIONS: {Available: false, Error: err.Error()}}
			entries = append(entries, audit("EVAL_TRIGGER_FAILED", map[string]any{"evaluations": toAny(toTrigger), "error": err.Error()})...)
		}
	}

	breaches := e.rules.Evaluate(metrics, state.RequiredEvaluations)
	failed := len(breaches) > 0
	delta.EvalFailed = model.Ptr(failed)
	if failed {
		entries = append(entries, audit("EVAL_FAILED", map[string]any{"breaches": breachesToAny(breaches)})...)
	} else {
		entries = append(entries, audit("EVAL_OK", map[string]any{})...)
	}
	delta.Audit = entries
	return Continue(delta)
}
