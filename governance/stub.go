package governance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
)

const POLICY_VERSION string = "stub-2026-02-12"

var _ Client = new(StubSystems)

// StubSystems is a deterministic stand-in for the governance systems. It reads
// subjects and artifacts from storage and keeps evaluation results in memory.
type StubSystems struct {
	subjects  persistence.SubjectStorage
	artifacts persistence.ArtifactStorage
	mu        sync.Mutex
	metrics   map[string]map[string]any
}

func NewStubSystems(subjects persistence.SubjectStorage, artifacts persistence.ArtifactStorage) *StubSystems {
	return &StubSystems{
		subjects:  subjects,
		artifacts: artifacts,
		metrics:   make(map[string]map[string]any),
	}
}

func (s *StubSystems) subject(ctx context.Context, system string, subjectId string) (*model.Subject, error) {
	subject, err := s.subjects.GetSubject(ctx, subjectId)
	if err != nil {
		var nf persistence.NotFoundError
		if errors.As(err, &nf) {
			return nil, ContractError{System: system, Message: fmt.Sprintf("unknown subject %s", subjectId)}
		}
		return nil, UnavailableError{System: system, Attempts: 1, Err: err}
	}
	return subject, nil
}

func (s *StubSystems) RegistrationStatus(ctx context.Context, subjectId string) (*RegistrationStatus, error) {
	subject, err := s.subject(ctx, SYSTEM_REGISTRATION, subjectId)
	if err != nil {
		return nil, err
	}
	return &RegistrationStatus{
		SubjectId:  subject.Id,
		Registered: true,
		Owner:      subject.Owner,
		ExternalId: subject.ExternalId,
		Submission: subject.Submission.Clone(),
	}, nil
}

func (s *StubSystems) PolicyRequirements(ctx context.Context, req PolicyRequest) (*PolicyRequirements, error) {
	req = req.Normalized()
	artifacts := []string{}
	evaluations := []string{}
	if req.DataClassification == "PCI" {
		artifacts = append(artifacts, "REDACTION_PLAN", "THREAT_MODEL")
		evaluations = append(evaluations, "REDACTABILITY", "TOXICITY", "PROMPT_INJECTION")
	} else {
		artifacts = append(artifacts, "MODEL_GOVERNANCE_ANSWERS")
		evaluations = append(evaluations, "TOXICITY")
	}
	if req.DeploymentTarget == "CLOUD" {
		artifacts = append(artifacts, "AI_FIREWALL_RULES")
		evaluations = append(evaluations, "NETSEC_BASELINE")
	}
	if req.ModelProvider == "EXTERNAL" {
		artifacts = append(artifacts, "AI_FIREWALL_RULES")
	}
	return &PolicyRequirements{
		RequiredArtifacts:   dedupe(artifacts),
		RequiredEvaluations: dedupe(evaluations),
		Meta:                map[string]any{"policy_version": POLICY_VERSION},
	}, nil
}

// ApprovalStatus derives one decision per approving system from the artifacts
// on record and the latest evaluation metrics.
func (s *StubSystems) ApprovalStatus(ctx context.Context, subjectId string) (*ApprovalStatus, error) {
	subject, err := s.subject(ctx, SYSTEM_APPROVALS, subjectId)
	if err != nil {
		return nil, err
	}
	policy, _ := s.PolicyRequirements(ctx, policyRequestOf(subject.Submission))
	stored, err := s.artifactTypes(ctx, subjectId)
	if err != nil {
		return nil, UnavailableError{System: SYSTEM_APPROVALS, Attempts: 1, Err: err}
	}
	missing := make(map[string]bool)
	for _, a := range policy.RequiredArtifacts {
		if !contains(stored, a) {
			missing[a] = true
		}
	}
	metrics := s.metricsOf(subjectId)
	toxicity := metricValue(metrics, "toxicity")
	promptInjection := metricValue(metrics, "prompt_injection")

	approvals := []ApprovalItem{
		decide("MODEL_GOVERNANCE", missing["MODEL_GOVERNANCE_ANSWERS"], "Missing governance Q&A"),
		decide("NETSECOPS", missing["THREAT_MODEL"], "Threat model missing"),
		decide("RISK", toxicity > 0.07, fmt.Sprintf("Toxicity too high: %.2f", toxicity)),
		decide("AI_FIREWALL", promptInjection > 0.07 && missing["AI_FIREWALL_RULES"], "Firewall rules required"),
	}
	return &ApprovalStatus{Approvals: approvals, Meta: map[string]any{"source": "stub"}}, nil
}

func (s *StubSystems) EvaluationStatus(ctx context.Context, subjectId string) (*EvaluationStatus, error) {
	if _, err := s.subject(ctx, SYSTEM_EVALUATIONS, subjectId); err != nil {
		return nil, err
	}
	return &EvaluationStatus{Metrics: s.metricsOf(subjectId)}, nil
}

// TriggerEvaluations produces fixed metrics per classification. PCI subjects
// score slightly above the default ceilings.
func (s *StubSystems) TriggerEvaluations(ctx context.Context, subjectId string, evaluations []string) (*EvaluationStatus, error) {
	subject, err := s.subject(ctx, SYSTEM_EVALUATIONS, subjectId)
	if err != nil {
		return nil, err
	}
	cls := subject.Submission.Normalized().DataClassification
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics, ok := s.metrics[subjectId]
	if !ok {
		metrics = make(map[string]any)
		s.metrics[subjectId] = metrics
	}
	for _, ev := range evaluations {
		switch ev {
		case "TOXICITY":
			switch cls {
			case "PCI":
				metrics["toxicity"] = 0.08
			case "NON_PCI":
				metrics["toxicity"] = 0.03
			default:
				metrics["toxicity"] = 0.05
			}
		case "PROMPT_INJECTION":
			if cls == "PCI" {
				metrics["prompt_injection"] = 0.09
			} else {
				metrics["prompt_injection"] = 0.04
			}
		case "REDACTABILITY":
			if cls == "PCI" {
				metrics["redactability"] = 0.98
			} else {
				metrics["redactability"] = 0.9
			}
		default:
			metrics[MetricKey(ev)] = "PASS"
		}
	}
	return &EvaluationStatus{Metrics: copyMetrics(metrics)}, nil
}

func (s *StubSystems) ArtifactStatus(ctx context.Context, subjectId string) (*ArtifactStatus, error) {
	if _, err := s.subject(ctx, SYSTEM_ARTIFACTS, subjectId); err != nil {
		return nil, err
	}
	types, err := s.artifactTypes(ctx, subjectId)
	if err != nil {
		return nil, UnavailableError{System: SYSTEM_ARTIFACTS, Attempts: 1, Err: err}
	}
	return &ArtifactStatus{ArtifactTypes: types}, nil
}

func (s *StubSystems) UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) (*ArtifactStatus, error) {
	if artifact.Type == "" {
		return nil, ContractError{System: SYSTEM_ARTIFACTS, Message: "artifact without type"}
	}
	if _, err := s.subject(ctx, SYSTEM_ARTIFACTS, subjectId); err != nil {
		return nil, err
	}
	if err := s.artifacts.UpsertArtifact(ctx, subjectId, artifact); err != nil {
		return nil, UnavailableError{System: SYSTEM_ARTIFACTS, Attempts: 1, Err: err}
	}
	return s.ArtifactStatus(ctx, subjectId)
}

func (s *StubSystems) artifactTypes(ctx context.Context, subjectId string) ([]string, error) {
	artifacts, err := s.artifacts.ListArtifacts(ctx, subjectId)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		types = append(types, a.Type)
	}
	return types, nil
}

func (s *StubSystems) metricsOf(subjectId string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMetrics(s.metrics[subjectId])
}

func policyRequestOf(sub model.Submission) PolicyRequest {
	return PolicyRequest{
		DataClassification: sub.DataClassification,
		DeploymentTarget:   sub.DeploymentTarget,
		ModelProvider:      sub.ModelProvider,
	}
}

func decide(system string, rejected bool, comment string) ApprovalItem {
	if rejected {
		return ApprovalItem{System: system, State: APPROVAL_REJECTED, Comment: comment}
	}
	return ApprovalItem{System: system, State: APPROVAL_APPROVED}
}

func metricValue(metrics map[string]any, key string) float64 {
	v, ok := metrics[key]
	if !ok {
		return 0
	}
	f, err := util.ToFloat(v)
	if err != nil {
		return 0
	}
	return f
}

func copyMetrics(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
