package action

import (
	"context"

	"github.com/mohitkumar/govflow/model"
)

var _ Action = new(gapAnalysisAction)

type gapAnalysisAction struct {
	baseAction
}

func NewGapAnalysisAction() *gapAnalysisAction {
	return &gapAnalysisAction{baseAction: newBaseAction(GAP_ANALYSIS)}
}

// Execute computes required minus present, keeping the order of the policy.
func (g *gapAnalysisAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	missing := []string{}
	for _, req := range state.RequiredArtifacts {
		if !contains(state.PresentArtifacts, req) && !contains(missing, req) {
			missing = append(missing, req)
		}
	}
	return Continue(model.Delta{
		MissingArtifacts: &missing,
		Audit: audit("GAP_ANALYSIS", map[string]any{
			"required": toAny(state.RequiredArtifacts),
			"present":  toAny(state.PresentArtifacts),
			"missing":  toAny(missing),
		}),
	})
}
