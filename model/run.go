package model

import "time"

type RunStatus string

const RUN_CREATED RunStatus = "CREATED"
const RUN_RUNNING RunStatus = "RUNNING"
const RUN_INTERRUPTED RunStatus = "INTERRUPTED"
const RUN_APPROVAL_READY RunStatus = "APPROVAL_READY"
const RUN_REJECTED RunStatus = "REJECTED"
const RUN_FAILED RunStatus = "FAILED"
const RUN_CANCELLED RunStatus = "CANCELLED"

func (s RunStatus) IsTerminal() bool {
	switch s {
	case RUN_APPROVAL_READY, RUN_REJECTED, RUN_FAILED, RUN_CANCELLED:
		return true
	}
	return false
}

type FailureCause string

const FAILURE_VALIDATION FailureCause = "validation_failed"
const FAILURE_CONTRACT FailureCause = "tool_contract_violation"
const FAILURE_NODE FailureCause = "node_failed"
const FAILURE_STORAGE FailureCause = "checkpoint_failed"
const FAILURE_ROUTING FailureCause = "routing_failed"

// Run is the lifecycle record of one workflow execution for one subject.
type Run struct {
	Id               string         `json:"id"`
	SubjectId        string         `json:"subject_id"`
	Submission       Submission     `json:"submission"`
	Status           RunStatus      `json:"status"`
	Sequence         int64          `json:"sequence"`
	SuspendedAt      string         `json:"suspended_at,omitempty"`
	InterruptReason  string         `json:"interrupt_reason,omitempty"`
	InterruptPayload map[string]any `json:"interrupt_payload,omitempty"`
	Error            string         `json:"error,omitempty"`
	FailureCause     FailureCause   `json:"failure_cause,omitempty"`
	FailedNode       string         `json:"failed_node,omitempty"`
	CancelRequested  bool           `json:"cancel_requested"`
	CreatedBy        string         `json:"created_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Checkpoint is the committed result of one scheduler step. Completed names
// the nodes whose deltas produced State; routing resumes from them.
type Checkpoint struct {
	RunId      string        `json:"run_id"`
	Sequence   int64         `json:"sequence"`
	Completed  []string      `json:"completed"`
	State      WorkflowState `json:"state"`
	AuditDelta []AuditEntry  `json:"audit_delta,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Outcome is what start, execute and resume return to callers.
type Outcome struct {
	RunId     string         `json:"run_id"`
	SubjectId string         `json:"subject_id"`
	Status    RunStatus      `json:"status"`
	Sequence  int64          `json:"sequence"`
	Reason    string         `json:"reason,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func OutcomeOf(run *Run) *Outcome {
	return &Outcome{
		RunId:     run.Id,
		SubjectId: run.SubjectId,
		Status:    run.Status,
		Sequence:  run.Sequence,
		Reason:    run.InterruptReason,
		Payload:   run.InterruptPayload,
		Error:     run.Error,
	}
}
