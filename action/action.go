package action

import (
	"context"
	"fmt"

	"github.com/mohitkumar/govflow/model"
)

const ENTRY string = "entry"
const CLASSIFY string = "classify"
const FETCH_REGISTRATION string = "fetch_registration"
const FETCH_POLICY string = "fetch_policy"
const FETCH_APPROVALS string = "fetch_approvals"
const FETCH_EVALUATIONS string = "fetch_evaluations"
const FETCH_ARTIFACTS string = "fetch_artifacts"
const GAP_ANALYSIS string = "gap_analysis"
const ARTIFACT_GENERATION string = "artifact_generation"
const EVAL_CHECK string = "eval_check"
const APPROVAL_CHECK string = "approval_check"
const REMEDIATION string = "remediation"
const ESCALATION string = "escalation"
const APPROVAL_READY string = "approval_ready"
const REJECTED string = "rejected"

type resultKind int

const (
	resultContinue resultKind = iota
	resultSuspend
	resultFatal
)

// Result is what a node hands back to the scheduler: a delta to merge, a
// request to suspend the run for a human, or a fatal error.
type Result struct {
	kind    resultKind
	Delta   model.Delta
	Reason  string
	Payload map[string]any
	Err     error
}

func Continue(delta model.Delta) Result {
	return Result{kind: resultContinue, Delta: delta}
}

func Suspend(reason string, payload map[string]any) Result {
	return Result{kind: resultSuspend, Reason: reason, Payload: payload}
}

func Fatal(err error) Result {
	return Result{kind: resultFatal, Err: err}
}

func (r Result) IsContinue() bool {
	return r.kind == resultContinue
}

func (r Result) IsSuspend() bool {
	return r.kind == resultSuspend
}

func (r Result) IsFatal() bool {
	return r.kind == resultFatal
}

// Action is one node of the workflow graph. Execute reads the state and must
// not modify it.
type Action interface {
	GetName() string
	Execute(ctx context.Context, state model.WorkflowState) Result
}

var _ Action = new(baseAction)

type baseAction struct {
	name string
}

func newBaseAction(name string) baseAction {
	return baseAction{name: name}
}

func (ba *baseAction) GetName() string {
	return ba.name
}

func (ba *baseAction) Execute(ctx context.Context, state model.WorkflowState) Result {
	return Fatal(fmt.Errorf("action %s can not be executed", ba.name))
}

// ValidationError is returned by the entry node for an incomplete submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid submission, %s: %s", e.Field, e.Message)
}

// audit builds a single entry. The engine stamps node and time when it merges.
func audit(event string, details map[string]any) []model.AuditEntry {
	return []model.AuditEntry{{Event: event, Details: details}}
}

func toAny(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
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
