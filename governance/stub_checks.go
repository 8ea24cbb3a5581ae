package governance

import (
	"context"
	"strings"
	"time"

	"github.com/mohitkumar/govflow/model"
)

const CHECK_PASS string = "PASS"
const CHECK_PENDING string = "PENDING"
const READINESS_READY string = "READY"
const READINESS_BLOCKED string = "BLOCKED"

// SYSTEM_DEPLOYMENT, SYSTEM_NETSEC and SYSTEM_FIREWALL are only simulated.
// No workflow node reads them.
const SYSTEM_DEPLOYMENT string = "deployment"
const SYSTEM_NETSEC string = "netsec"
const SYSTEM_FIREWALL string = "firewall"

type CheckStatus struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type LinkExternalRequest struct {
	ExternalId string `json:"external_id"`
}

// DeploymentReadiness is READY once the last run of the subject ended
// approval ready.
func (s *StubSystems) DeploymentReadiness(ctx context.Context, subjectId string) (*CheckStatus, error) {
	subject, err := s.subject(ctx, SYSTEM_DEPLOYMENT, subjectId)
	if err != nil {
		return nil, err
	}
	if subject.Governance.LastStatus == model.RUN_APPROVAL_READY {
		return &CheckStatus{Status: READINESS_READY, Notes: "deployment ready"}, nil
	}
	return &CheckStatus{Status: READINESS_BLOCKED, Notes: "approval not complete"}, nil
}

func (s *StubSystems) NetsecBaseline(ctx context.Context, subjectId string) (*CheckStatus, error) {
	subject, err := s.subject(ctx, SYSTEM_NETSEC, subjectId)
	if err != nil {
		return nil, err
	}
	switch subject.Submission.Normalized().DeploymentTarget {
	case "CLOUD":
		return &CheckStatus{Status: CHECK_PASS, Notes: "cloud baseline satisfied"}, nil
	case "ON_PREM":
		return &CheckStatus{Status: CHECK_PASS, Notes: "on-prem baseline satisfied"}, nil
	default:
		return &CheckStatus{Status: CHECK_PENDING, Notes: "missing deployment target"}, nil
	}
}

// FirewallCheck passes when firewall rules are on record for the subject.
func (s *StubSystems) FirewallCheck(ctx context.Context, subjectId string) (*CheckStatus, error) {
	if _, err := s.subject(ctx, SYSTEM_FIREWALL, subjectId); err != nil {
		return nil, err
	}
	types, err := s.artifactTypes(ctx, subjectId)
	if err != nil {
		return nil, UnavailableError{System: SYSTEM_FIREWALL, Attempts: 1, Err: err}
	}
	if contains(types, "AI_FIREWALL_RULES") {
		return &CheckStatus{Status: CHECK_PASS, Notes: "firewall rules present"}, nil
	}
	return &CheckStatus{Status: CHECK_PENDING, Notes: "firewall rules missing"}, nil
}

// LinkExternal records the id the upstream registry knows the subject by.
func (s *StubSystems) LinkExternal(ctx context.Context, subjectId string, req LinkExternalRequest) (*RegistrationStatus, error) {
	externalId := strings.TrimSpace(req.ExternalId)
	if externalId == "" || len(externalId) > 128 {
		return nil, ContractError{System: SYSTEM_REGISTRATION, Message: "external_id must hold 1 to 128 characters"}
	}
	subject, err := s.subject(ctx, SYSTEM_REGISTRATION, subjectId)
	if err != nil {
		return nil, err
	}
	subject.ExternalId = externalId
	subject.UpdatedAt = time.Now().UTC()
	if err := s.subjects.SaveSubject(ctx, subject); err != nil {
		return nil, UnavailableError{System: SYSTEM_REGISTRATION, Attempts: 1, Err: err}
	}
	return s.RegistrationStatus(ctx, subjectId)
}
