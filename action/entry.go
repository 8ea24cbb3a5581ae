package action

import (
	"context"
	"strings"

	"github.com/mohitkumar/govflow/model"
)

var _ Action = new(entryAction)

type entryAction struct {
	baseAction
}

func NewEntryAction() *entryAction {
	return &entryAction{baseAction: newBaseAction(ENTRY)}
}

// Execute validates the submission and normalizes it. It writes the same
// delta every time it sees the same input.
func (e *entryAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	if strings.TrimSpace(state.SubjectId) == "" {
		return Fatal(ValidationError{Field: "subject_id", Message: "must not be empty"})
	}
	sub := state.Submission.Normalized()
	if sub.DataClassification == "" {
		return Fatal(ValidationError{Field: "data_classification", Message: "is required"})
	}
	if sub.ModelProvider == "" {
		return Fatal(ValidationError{Field: "model_provider", Message: "is required"})
	}
	return Continue(model.Delta{
		SubjectId:           model.Ptr(state.SubjectId),
		Submission:          &sub,
		RiskLevel:           model.Ptr(model.RISK_UNKNOWN),
		RemediationAttempts: model.Ptr(0),
		RemediationBaseline: model.Ptr(0),
		EscalationRequired:  model.Ptr(false),
		Audit: audit("ENTRY", map[string]any{
			"subject_id":          state.SubjectId,
			"data_classification": sub.DataClassification,
			"model_provider":      sub.ModelProvider,
			"deployment_target":   sub.DeploymentTarget,
		}),
	})
}
