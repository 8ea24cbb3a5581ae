package action

import (
	"context"

	"github.com/mohitkumar/govflow/model"
)

const DEPLOYMENT_CLOUD string = "CLOUD"
const DEPLOYMENT_ON_PREM string = "ON_PREM"
const PROVIDER_EXTERNAL string = "EXTERNAL"
const PROVIDER_INTERNAL string = "INTERNAL"
const TYPE_UNKNOWN string = "UNKNOWN"

var _ Action = new(classifyAction)

type classifyAction struct {
	baseAction
	sensitive []string
}

func NewClassifyAction(sensitive []string) *classifyAction {
	norm := make([]string, 0, len(sensitive))
	for _, s := range sensitive {
		norm = append(norm, model.NormalizeCode(s))
	}
	if len(norm) == 0 {
		norm = []string{"PCI"}
	}
	return &classifyAction{baseAction: newBaseAction(CLASSIFY), sensitive: norm}
}

// Execute derives the risk level: sensitive data served by an external
// provider is HIGH, either one alone is MEDIUM, neither is LOW.
func (c *classifyAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	sub := state.Submission
	deploymentType := TYPE_UNKNOWN
	switch model.NormalizeCode(sub.DeploymentTarget) {
	case "CLOUD", "PUBLIC_CLOUD":
		deploymentType = DEPLOYMENT_CLOUD
	case "ON_PREM", "ONPREM", "ON_PREMISE", "ON_PREMISES":
		deploymentType = DEPLOYMENT_ON_PREM
	}
	providerType := TYPE_UNKNOWN
	switch model.NormalizeCode(sub.ModelProvider) {
	case PROVIDER_EXTERNAL:
		providerType = PROVIDER_EXTERNAL
	case PROVIDER_INTERNAL:
		providerType = PROVIDER_INTERNAL
	}
	sensitive := contains(c.sensitive, model.NormalizeCode(sub.DataClassification))
	external := providerType == PROVIDER_EXTERNAL

	risk := model.RISK_LOW
	switch {
	case sensitive && external:
		risk = model.RISK_HIGH
	case sensitive || external:
		risk = model.RISK_MEDIUM
	}
	return Continue(model.Delta{
		Classification: map[string]string{
			"data_classification": sub.DataClassification,
			"deployment_target":   sub.DeploymentTarget,
			"model_provider":      sub.ModelProvider,
			"deployment_type":     deploymentType,
			"provider_type":       providerType,
		},
		RiskLevel: model.Ptr(risk),
		Audit: audit("CLASSIFY", map[string]any{
			"risk_level":      string(risk),
			"deployment_type": deploymentType,
			"provider_type":   providerType,
			"sensitive":       sensitive,
		}),
	})
}
