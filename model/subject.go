package model

import "time"

// Subject is a registered use case together with the governance snapshot of
// its most recent run.
type Subject struct {
	Id         string             `json:"id"`
	Owner      string             `json:"owner,omitempty"`
	ExternalId string             `json:"external_id,omitempty"`
	Submission Submission         `json:"submission"`
	Governance GovernanceSnapshot `json:"governance"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type GovernanceSnapshot struct {
	LastRunId        string                      `json:"last_run_id,omitempty"`
	LastStatus       RunStatus                   `json:"last_status,omitempty"`
	RiskLevel        RiskLevel                   `json:"risk_level,omitempty"`
	Classification   map[string]string           `json:"classification,omitempty"`
	ApprovalStatus   map[string]ApprovalDecision `json:"approval_status,omitempty"`
	EvalMetrics      map[string]any              `json:"eval_metrics,omitempty"`
	MissingArtifacts []string                    `json:"missing_artifacts,omitempty"`
	UpdatedAt        time.Time                   `json:"updated_at,omitempty"`
}

func SnapshotOf(run *Run, s WorkflowState) GovernanceSnapshot {
	c := s.Clone()
	return GovernanceSnapshot{
		LastRunId:        run.Id,
		LastStatus:       run.Status,
		RiskLevel:        c.RiskLevel,
		Classification:   c.Classification,
		ApprovalStatus:   c.ApprovalStatus,
		EvalMetrics:      c.EvalMetrics,
		MissingArtifacts: c.MissingArtifacts,
		UpdatedAt:        time.Now().UTC(),
	}
}
