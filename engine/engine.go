package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/govflow/action"
	"github.com/mohitkumar/govflow/analytics"
	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/flow"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"go.uber.org/zap"
)

type Storage interface {
	persistence.RunStorage
	persistence.CheckpointStorage
	persistence.SubjectStorage
	persistence.ArtifactStorage
}

// FlowEngine drives runs of one flow. A run is driven by at most one
// goroutine of this process at a time.
type FlowEngine struct {
	flow         *flow.Flow
	storage      Storage
	stateHandler *StateHandlerContainer
	mu           sync.Mutex
	active       map[string]bool
	cancels      map[string]bool
}

func NewFlowEngine(f *flow.Flow, storage Storage) *FlowEngine {
	return &FlowEngine{
		flow:         f,
		storage:      storage,
		stateHandler: NewStateHandlerContainer(storage),
		active:       make(map[string]bool),
		cancels:      make(map[string]bool),
	}
}

func (f *FlowEngine) GetFlow() *flow.Flow {
	return f.flow
}

func (f *FlowEngine) GetStateHandler() *StateHandlerContainer {
	return f.stateHandler
}

// IsActive reports whether this process is currently driving the run.
func (f *FlowEngine) IsActive(runId string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[runId]
}

func (f *FlowEngine) tryLock(runId string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[runId] {
		return false
	}
	f.active[runId] = true
	return true
}

func (f *FlowEngine) unlock(runId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, runId)
	delete(f.cancels, runId)
}

// requestCancel flags a run driven right now and reports true. Otherwise it
// takes the run lock for the caller and reports false.
func (f *FlowEngine) requestCancel(runId string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[runId] {
		f.cancels[runId] = true
		return true
	}
	f.active[runId] = true
	return false
}

func (f *FlowEngine) cancelRequested(runId string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels[runId]
}

// Create records a new run for the subject without executing it.
func (f *FlowEngine) Create(ctx context.Context, subjectId string, submission model.Submission, actor string) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		Id:         uuid.New().String(),
		SubjectId:  subjectId,
		Submission: submission.Clone(),
		Status:     model.RUN_CREATED,
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := f.storage.CreateRun(ctx, run); err != nil {
		logger.Error("error creating run", zap.String("subject", subjectId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	logger.Info("run created", zap.String("flow", f.flow.Id), zap.String("run", run.Id), zap.String("subject", subjectId))
	return run, nil
}

// Start creates a run and drives it until it comes to rest.
func (f *FlowEngine) Start(ctx context.Context, subjectId string, submission model.Submission, actor string) (*model.Outcome, error) {
	run, err := f.Create(ctx, subjectId, submission, actor)
	if err != nil {
		return nil, err
	}
	return f.Execute(ctx, run.Id)
}

// Execute drives the run from its latest committed checkpoint. It is also how
// a run left RUNNING by a crashed process is recovered.
func (f *FlowEngine) Execute(ctx context.Context, runId string) (*model.Outcome, error) {
	if !f.tryLock(runId) {
		return nil, api.RunBusyError{RunId: runId}
	}
	defer f.unlock(runId)

	run, err := f.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	switch {
	case run.Status.IsTerminal():
		return model.OutcomeOf(run), nil
	case run.Status == model.RUN_INTERRUPTED:
		return nil, api.InvalidRunStateError{RunId: runId, State: string(run.Status), Action: "execute"}
	}

	cp, err := f.storage.GetLatestCheckpoint(ctx, runId)
	if err != nil {
		logger.Error("error loading checkpoint", zap.String("run", runId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	var state model.WorkflowState
	var completed []string
	if cp == nil {
		state = InitialState(run)
	} else {
		state = cp.State
		completed = cp.Completed
		run.Sequence = cp.Sequence
	}
	if run.CancelRequested {
		return f.cancel(ctx, run, state, completed)
	}
	if run.Status != model.RUN_RUNNING {
		run.Status = model.RUN_RUNNING
		if err := f.updateRun(ctx, run); err != nil {
			return nil, err
		}
	}
	return f.drive(ctx, run, state, completed)
}

// Resume injects a human decision into an interrupted run and routes on from
// the node that suspended it.
func (f *FlowEngine) Resume(ctx context.Context, runId string, decision model.HumanDecision) (*model.Outcome, error) {
	switch decision.Action {
	case model.DECISION_APPROVE, model.DECISION_RETRY, model.DECISION_REJECT:
	default:
		return nil, api.ValidationError{Message: fmt.Sprintf("decision action must be one of APPROVE, RETRY, REJECT, got %q", decision.Action)}
	}
	if !f.tryLock(runId) {
		return nil, api.RunBusyError{RunId: runId}
	}
	defer f.unlock(runId)

	run, err := f.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status != model.RUN_INTERRUPTED {
		return nil, api.InvalidRunStateError{RunId: runId, State: string(run.Status), Action: "resume"}
	}
	cp, err := f.storage.GetLatestCheckpoint(ctx, runId)
	if err != nil || cp == nil {
		logger.Error("interrupted run without checkpoint", zap.String("run", runId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	state := cp.State
	decision = decision.Clone()
	delta := model.Delta{
		PendingDecision: &decision,
		Audit: []model.AuditEntry{{Event: "RUN_RESUMED", Details: map[string]any{
			"decision": string(decision.Action),
			"actor":    decision.Actor,
			"comment":  decision.Comment,
		}}},
	}
	if decision.Action == model.DECISION_RETRY {
		delta.RemediationBaseline = model.Ptr(state.RemediationAttempts)
		delta.RiskAcknowledged = model.Ptr(true)
		delta.EscalationRequired = model.Ptr(false)
	}
	suspendedAt := run.SuspendedAt
	if suspendedAt == "" {
		suspendedAt = action.ESCALATION
	}
	completed := []string{suspendedAt}
	next, err := f.commit(ctx, run, state, []stepDelta{{node: suspendedAt, delta: delta}}, completed)
	if err != nil {
		return f.fail(ctx, run, state, suspendedAt, model.FAILURE_STORAGE, err)
	}
	run.Status = model.RUN_RUNNING
	run.SuspendedAt = ""
	run.InterruptReason = ""
	run.InterruptPayload = nil
	if err := f.updateRun(ctx, run); err != nil {
		return nil, err
	}
	logger.Info("run resumed", zap.String("run", runId), zap.String("decision", string(decision.Action)), zap.String("actor", decision.Actor))
	return f.drive(ctx, run, next, completed)
}

// Cancel stops the run. A run driven right now stops after its current step
// commits; any other run that is not terminal is cancelled at once.
func (f *FlowEngine) Cancel(ctx context.Context, runId string) (*model.Outcome, error) {
	run, err := f.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return model.OutcomeOf(run), nil
	}
	if f.requestCancel(runId) {
		logger.Info("run cancel requested", zap.String("run", runId))
		run.CancelRequested = true
		return model.OutcomeOf(run), nil
	}
	defer f.unlock(runId)

	// re-read under the lock, a driver may have finished in between
	run, err = f.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return model.OutcomeOf(run), nil
	}
	cp, err := f.storage.GetLatestCheckpoint(ctx, runId)
	if err != nil {
		logger.Error("error loading checkpoint", zap.String("run", runId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	state := InitialState(run)
	var completed []string
	if cp != nil {
		state = cp.State
		completed = cp.Completed
		run.Sequence = cp.Sequence
	}
	return f.cancel(ctx, run, state, completed)
}

func (f *FlowEngine) cancel(ctx context.Context, run *model.Run, state model.WorkflowState, completed []string) (*model.Outcome, error) {
	delta := model.Delta{Audit: []model.AuditEntry{{Event: "RUN_CANCELLED", Details: map[string]any{"previous_status": string(run.Status)}}}}
	next, err := f.commit(ctx, run, state, []stepDelta{{delta: delta}}, completed)
	if err != nil {
		logger.Error("error committing cancellation", zap.String("run", run.Id), zap.Error(err))
		next = state
	}
	run.Status = model.RUN_CANCELLED
	run.CancelRequested = true
	run.SuspendedAt = ""
	run.InterruptReason = ""
	run.InterruptPayload = nil
	return f.finish(ctx, run, next, "cancelled")
}

func (f *FlowEngine) getRun(ctx context.Context, runId string) (*model.Run, error) {
	run, err := f.storage.GetRun(ctx, runId)
	if err != nil {
		var nf persistence.NotFoundError
		if errors.As(err, &nf) {
			return nil, api.RunNotFoundError{RunId: runId}
		}
		logger.Error("error loading run", zap.String("run", runId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	return run, nil
}

func (f *FlowEngine) updateRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	if err := f.storage.UpdateRun(ctx, run); err != nil {
		logger.Error("error updating run", zap.String("run", run.Id), zap.Error(err))
		return api.StorageLayerError{}
	}
	return nil
}

// finish persists a resting run and runs the handlers of its status.
func (f *FlowEngine) finish(ctx context.Context, run *model.Run, state model.WorkflowState, reason string) (*model.Outcome, error) {
	if err := f.updateRun(ctx, run); err != nil {
		return nil, err
	}
	f.stateHandler.Handle(ctx, run, state)
	analytics.RecordRunOutcome(f.flow.Id, run.Id, string(run.Status), reason)
	recordOutcome(ctx, string(run.Status))
	logger.Info("run at rest", zap.String("flow", f.flow.Id), zap.String("run", run.Id), zap.String("status", string(run.Status)), zap.Int64("sequence", run.Sequence))
	return model.OutcomeOf(run), nil
}

func (f *FlowEngine) fail(ctx context.Context, run *model.Run, state model.WorkflowState, node string, cause model.FailureCause, err error) (*model.Outcome, error) {
	logger.Error("run failed", zap.String("run", run.Id), zap.String("node", node), zap.String("cause", string(cause)), zap.Error(err))
	analytics.RecordNodeFailure(f.flow.Id, run.Id, node, run.Sequence, err.Error())
	run.Status = model.RUN_FAILED
	run.Error = err.Error()
	run.FailureCause = cause
	run.FailedNode = node
	return f.finish(ctx, run, state, string(cause))
}

// InitialState is the state a run starts from before its first checkpoint.
func InitialState(run *model.Run) model.WorkflowState {
	return model.WorkflowState{
		SubjectId:  run.SubjectId,
		Submission: run.Submission.Clone(),
		Audit: []model.AuditEntry{{
			Event:   "RUN_CREATED",
			Details: map[string]any{"run_id": run.Id, "created_by": run.CreatedBy},
			At:      run.CreatedAt,
		}},
	}
}
