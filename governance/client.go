package governance

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohitkumar/govflow/model"
)

const SYSTEM_REGISTRATION string = "registration"
const SYSTEM_POLICY string = "policy"
const SYSTEM_APPROVALS string = "approvals"
const SYSTEM_EVALUATIONS string = "evaluations"
const SYSTEM_ARTIFACTS string = "artifacts"

const APPROVAL_PENDING string = "PENDING"
const APPROVAL_APPROVED string = "APPROVED"
const APPROVAL_REJECTED string = "REJECTED"

// Client is the boundary to the external governance systems. Every call is
// read-only except TriggerEvaluations and UpsertArtifact, which are
// idempotent.
type Client interface {
	RegistrationStatus(ctx context.Context, subjectId string) (*RegistrationStatus, error)
	PolicyRequirements(ctx context.Context, req PolicyRequest) (*PolicyRequirements, error)
	ApprovalStatus(ctx context.Context, subjectId string) (*ApprovalStatus, error)
	EvaluationStatus(ctx context.Context, subjectId string) (*EvaluationStatus, error)
	TriggerEvaluations(ctx context.Context, subjectId string, evaluations []string) (*EvaluationStatus, error)
	ArtifactStatus(ctx context.Context, subjectId string) (*ArtifactStatus, error)
	UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) (*ArtifactStatus, error)
}

type RegistrationStatus struct {
	SubjectId  string           `json:"subject_id"`
	Registered bool             `json:"registered"`
	Owner      string           `json:"owner,omitempty"`
	ExternalId string           `json:"external_id,omitempty"`
	Submission model.Submission `json:"submission"`
}

func (r *RegistrationStatus) Validate() error {
	if r.SubjectId == "" {
		return fmt.Errorf("registration status without subject_id")
	}
	return nil
}

type PolicyRequest struct {
	DataClassification string `json:"data_classification"`
	DeploymentTarget   string `json:"deployment_target"`
	ModelProvider      string `json:"model_provider"`
}

func (r PolicyRequest) Normalized() PolicyRequest {
	return PolicyRequest{
		DataClassification: model.NormalizeCode(r.DataClassification),
		DeploymentTarget:   model.NormalizeCode(r.DeploymentTarget),
		ModelProvider:      model.NormalizeCode(r.ModelProvider),
	}
}

type PolicyRequirements struct {
	RequiredArtifacts   []string       `json:"required_artifacts"`
	RequiredEvaluations []string       `json:"required_evaluations"`
	Meta                map[string]any `json:"meta,omitempty"`
}

func (p *PolicyRequirements) Validate() error {
	if p.RequiredArtifacts == nil || p.RequiredEvaluations == nil {
		return fmt.Errorf("policy requirements must list required_artifacts and required_evaluations")
	}
	for _, a := range append(append([]string{}, p.RequiredArtifacts...), p.RequiredEvaluations...) {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("policy requirements contain an empty entry")
		}
	}
	return nil
}

type ApprovalItem struct {
	System  string `json:"system"`
	State   string `json:"state"`
	Comment string `json:"comment,omitempty"`
}

type ApprovalStatus struct {
	Approvals []ApprovalItem `json:"approvals"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (a *ApprovalStatus) Validate() error {
	if a.Approvals == nil {
		return fmt.Errorf("approval status without approvals")
	}
	for _, item := range a.Approvals {
		if item.System == "" {
			return fmt.Errorf("approval without system")
		}
		switch strings.ToUpper(item.State) {
		case APPROVAL_PENDING, APPROVAL_APPROVED, APPROVAL_REJECTED:
		default:
			return fmt.Errorf("approval %s has unknown state %q", item.System, item.State)
		}
	}
	return nil
}

// Snapshot keys approvals by system with normalized states.
func (a *ApprovalStatus) Snapshot() map[string]model.ApprovalDecision {
	out := make(map[string]model.ApprovalDecision, len(a.Approvals))
	for _, item := range a.Approvals {
		out[item.System] = model.ApprovalDecision{State: strings.ToUpper(item.State), Comment: item.Comment}
	}
	return out
}

type EvaluationStatus struct {
	Metrics map[string]any `json:"eval_metrics"`
}

func (e *EvaluationStatus) Validate() error {
	if e.Metrics == nil {
		return fmt.Errorf("evaluation status without eval_metrics")
	}
	return nil
}

type TriggerRequest struct {
	Evaluations []string `json:"evaluations"`
}

type ArtifactStatus struct {
	ArtifactTypes []string `json:"artifact_types"`
}

func (a *ArtifactStatus) Validate() error {
	if a.ArtifactTypes == nil {
		return fmt.Errorf("artifact status without artifact_types")
	}
	return nil
}

// MetricKey maps an evaluation name to the key its result is stored under.
func MetricKey(evaluation string) string {
	switch evaluation {
	case "TOXICITY":
		return "toxicity"
	case "PROMPT_INJECTION":
		return "prompt_injection"
	case "REDACTABILITY":
		return "redactability"
	default:
		return strings.ToLower(evaluation)
	}
}
