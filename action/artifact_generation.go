package action

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

var _ Action = new(artifactGenerationAction)

type artifactGenerationAction struct {
	baseAction
	client governance.Client
}

func NewArtifactGenerationAction(client governance.Client) *artifactGenerationAction {
	return &artifactGenerationAction{
		baseAction: newBaseAction(ARTIFACT_GENERATION),
		client:     client,
	}
}

// Execute renders every missing artifact and publishes it to the artifact
// system. Publishing is an upsert keyed by subject and type, so replaying the
// node after a crash writes the same records again. Artifacts the system did
// not accept stay missing.
func (a *artifactGenerationAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	generated := make(map[string]model.GeneratedArtifact)
	stillMissing := []string{}
	var failed []string
	present := append([]string{}, state.PresentArtifacts...)
	for _, artifactType := range state.MissingArtifacts {
		artifact := model.GeneratedArtifact{Type: artifactType, Content: renderArtifact(artifactType, state)}
		if _, err := a.client.UpsertArtifact(ctx, state.SubjectId, artifact); err != nil {
			if governance.IsContractError(err) {
				return Fatal(err)
			}
			if ctx.Err() != nil {
				return Fatal(ctx.Err())
			}
			logger.Warn("could not publish artifact", zap.String("subject", state.SubjectId), zap.String("artifact", artifactType), zap.Error(err))
			stillMissing = append(stillMissing, artifactType)
			failed = append(failed, artifactType)
			continue
		}
		generated[artifactType] = artifact
		if !contains(present, artifactType) {
			present = append(present, artifactType)
		}
	}
	names := make([]string, 0, len(generated))
	for name := range generated {
		names = append(names, name)
	}
	sort.Strings(names)
	details := map[string]any{"generated": toAny(names)}
	if len(failed) > 0 {
		details["failed"] = toAny(failed)
	}
	return Continue(model.Delta{
		GeneratedArtifacts: generated,
		MissingArtifacts:   &stillMissing,
		PresentArtifacts:   &present,
		Audit:              audit("ARTIFACT_GENERATION", details),
	})
}

func renderArtifact(artifactType string, state model.WorkflowState) string {
	keys := make([]string, 0, len(state.Classification))
	for k := range state.Classification {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", artifactType)
	fmt.Fprintf(&b, "## Use Case\n- ID: `%s`\n", state.SubjectId)
	if state.Submission.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", state.Submission.Name)
	}
	fmt.Fprintf(&b, "- Risk level: %s\n\n", state.RiskLevel)
	b.WriteString("## Classification\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, state.Classification[k])
	}
	b.WriteString("\n## Submission Snapshot\n")
	fmt.Fprintf(&b, "- data_classification: %s\n", state.Submission.DataClassification)
	fmt.Fprintf(&b, "- deployment_target: %s\n", state.Submission.DeploymentTarget)
	fmt.Fprintf(&b, "- model_provider: %s\n", state.Submission.ModelProvider)
	b.WriteString("\n## Generated Content\nGenerated from the submission and policy requirements for review.\n")
	return b.String()
}
