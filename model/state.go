package model

import (
	"sort"
	"time"
)

type RiskLevel string

const RISK_UNKNOWN RiskLevel = ""
const RISK_LOW RiskLevel = "LOW"
const RISK_MEDIUM RiskLevel = "MEDIUM"
const RISK_HIGH RiskLevel = "HIGH"

type RemediationCause string

const CAUSE_NONE RemediationCause = ""
const CAUSE_MISSING_ARTIFACTS RemediationCause = "missing_artifacts"
const CAUSE_EVAL_FAILED RemediationCause = "eval_failed"
const CAUSE_APPROVAL_REJECTED RemediationCause = "approval_rejected"

// Submission is the use-case payload a run evaluates. It is never modified
// after the entry node has run.
type Submission struct {
	Name               string         `json:"name,omitempty"`
	DataClassification string         `json:"data_classification"`
	DeploymentTarget   string         `json:"deployment_target,omitempty"`
	ModelProvider      string         `json:"model_provider"`
	Attributes         map[string]any `json:"attributes,omitempty"`
}

type GeneratedArtifact struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type ApprovalDecision struct {
	State   string `json:"state"`
	Comment string `json:"comment,omitempty"`
}

// SystemStatus records whether a governance system answered during the run.
type SystemStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type AuditEntry struct {
	Node    string         `json:"node,omitempty"`
	Event   string         `json:"event"`
	Details map[string]any `json:"details,omitempty"`
	At      time.Time      `json:"at"`
}

type DecisionAction string

const DECISION_APPROVE DecisionAction = "APPROVE"
const DECISION_RETRY DecisionAction = "RETRY"
const DECISION_REJECT DecisionAction = "REJECT"

type HumanDecision struct {
	Action  DecisionAction `json:"action,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	Comment string         `json:"comment,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (d HumanDecision) IsEmpty() bool {
	return d.Action == ""
}

// WorkflowState is the typed state a run carries between steps. How each
// field combines with a node delta is declared in package state.
type WorkflowState struct {
	SubjectId           string                       `json:"subject_id"`
	Submission          Submission                   `json:"submission"`
	Classification      map[string]string            `json:"classification,omitempty"`
	RiskLevel           RiskLevel                    `json:"risk_level,omitempty"`
	Registration        map[string]any               `json:"registration,omitempty"`
	RequiredArtifacts   []string                     `json:"required_artifacts,omitempty"`
	RequiredEvaluations []string                     `json:"required_evaluations,omitempty"`
	PresentArtifacts    []string                     `json:"present_artifacts,omitempty"`
	MissingArtifacts    []string                     `json:"missing_artifacts,omitempty"`
	GeneratedArtifacts  map[string]GeneratedArtifact `json:"generated_artifacts,omitempty"`
	ApprovalStatus      map[string]ApprovalDecision  `json:"approval_status,omitempty"`
	EvalMetrics         map[string]any               `json:"eval_metrics,omitempty"`
	Systems             map[string]SystemStatus      `json:"systems,omitempty"`
	EvalFailed          bool                         `json:"eval_failed"`
	ApprovalRejected    bool                         `json:"approval_rejected"`
	RemediationCause    RemediationCause             `json:"remediation_cause,omitempty"`
	RemediationAttempts int                          `json:"remediation_attempts"`
	RemediationBaseline int                          `json:"remediation_baseline"`
	RiskAcknowledged    bool                         `json:"risk_acknowledged"`
	EscalationRequired  bool                         `json:"escalation_required"`
	Audit               []AuditEntry                 `json:"audit,omitempty"`
	PendingDecision     HumanDecision                `json:"pending_decision"`
}

// Delta is the partial update a node returns. A nil field is not written.
type Delta struct {
	SubjectId           *string                      `json:"subject_id,omitempty"`
	Submission          *Submission                  `json:"submission,omitempty"`
	Classification      map[string]string            `json:"classification,omitempty"`
	RiskLevel           *RiskLevel                   `json:"risk_level,omitempty"`
	Registration        map[string]any               `json:"registration,omitempty"`
	RequiredArtifacts   *[]string                    `json:"required_artifacts,omitempty"`
	RequiredEvaluations *[]string                    `json:"required_evaluations,omitempty"`
	PresentArtifacts    *[]string                    `json:"present_artifacts,omitempty"`
	MissingArtifacts    *[]string                    `json:"missing_artifacts,omitempty"`
	GeneratedArtifacts  map[string]GeneratedArtifact `json:"generated_artifacts,omitempty"`
	ApprovalStatus      map[string]ApprovalDecision  `json:"approval_status,omitempty"`
	EvalMetrics         map[string]any               `json:"eval_metrics,omitempty"`
	Systems             map[string]SystemStatus      `json:"systems,omitempty"`
	EvalFailed          *bool                        `json:"eval_failed,omitempty"`
	ApprovalRejected    *bool                        `json:"approval_rejected,omitempty"`
	RemediationCause    *RemediationCause            `json:"remediation_cause,omitempty"`
	RemediationAttempts *int                         `json:"remediation_attempts,omitempty"`
	RemediationBaseline *int                         `json:"remediation_baseline,omitempty"`
	RiskAcknowledged    *bool                        `json:"risk_acknowledged,omitempty"`
	EscalationRequired  *bool                        `json:"escalation_required,omitempty"`
	Audit               []AuditEntry                 `json:"audit,omitempty"`
	PendingDecision     *HumanDecision               `json:"pending_decision,omitempty"`
}

// Ptr returns a pointer to v, for building deltas.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a copy of the state that shares no maps or slices with s.
func (s WorkflowState) Clone() WorkflowState {
	c := s
	c.Submission = s.Submission.Clone()
	c.Classification = cloneMap(s.Classification)
	c.Registration = cloneAnyMap(s.Registration)
	c.RequiredArtifacts = cloneSlice(s.RequiredArtifacts)
	c.RequiredEvaluations = cloneSlice(s.RequiredEvaluations)
	c.PresentArtifacts = cloneSlice(s.PresentArtifacts)
	c.MissingArtifacts = cloneSlice(s.MissingArtifacts)
	c.GeneratedArtifacts = cloneMap(s.GeneratedArtifacts)
	c.ApprovalStatus = cloneMap(s.ApprovalStatus)
	c.EvalMetrics = cloneAnyMap(s.EvalMetrics)
	c.Systems = cloneMap(s.Systems)
	if s.Audit != nil {
		c.Audit = make([]AuditEntry, len(s.Audit))
		for i, e := range s.Audit {
			c.Audit[i] = e.Clone()
		}
	}
	c.PendingDecision = s.PendingDecision.Clone()
	return c
}

func (s Submission) Clone() Submission {
	s.Attributes = cloneAnyMap(s.Attributes)
	return s
}

func (e AuditEntry) Clone() AuditEntry {
	e.Details = cloneAnyMap(e.Details)
	return e
}

func (d HumanDecision) Clone() HumanDecision {
	d.Data = cloneAnyMap(d.Data)
	return d
}

// SystemAvailable reports false only when the system was queried and did not answer.
func (s WorkflowState) SystemAvailable(system string) bool {
	st, ok := s.Systems[system]
	return !ok || st.Available
}

func (s WorkflowState) UnavailableSystems() []string {
	var out []string
	for name, st := range s.Systems {
		if !st.Available {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies the map and slice shapes found in decoded documents.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return cloneSlice(t)
	default:
		return v
	}
}
