package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mohitkumar/govflow/action"
	"github.com/mohitkumar/govflow/analytics"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/state"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type stepDelta struct {
	node  string
	delta model.Delta
}

type nodeOutcome struct {
	node   string
	result action.Result
}

// stepAbort carries the result that stopped a barrier early.
type stepAbort struct {
	outcome nodeOutcome
}

func (s stepAbort) Error() string {
	return fmt.Sprintf("step aborted by %s", s.outcome.node)
}

// drive is the scheduler loop: route, execute the ready set, merge at the
// barrier, commit, repeat until the run rests.
func (f *FlowEngine) drive(ctx context.Context, run *model.Run, current model.WorkflowState, completed []string) (*model.Outcome, error) {
	for {
		for _, name := range completed {
			if status, ok := f.flow.IsTerminal(name); ok {
				run.Status = status
				return f.finish(ctx, run, current, name)
			}
		}
		if f.cancelRequested(run.Id) {
			return f.cancel(ctx, run, current, completed)
		}

		ready := []string{f.flow.Entry}
		if len(completed) > 0 {
			var err error
			ready, err = f.flow.Next(current, completed)
			if err != nil {
				return f.fail(ctx, run, current, completed[0], model.FAILURE_ROUTING, err)
			}
			if len(ready) == 0 {
				return f.fail(ctx, run, current, completed[0], model.FAILURE_ROUTING, fmt.Errorf("no node is ready after %v", completed))
			}
		}

		outcomes, abort := f.executeStep(ctx, run, current, ready)
		if ctx.Err() != nil {
			// the run stays RUNNING and is recovered from its last checkpoint
			logger.Warn("run execution interrupted", zap.String("run", run.Id), zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
		if abort != nil {
			if abort.result.IsSuspend() {
				return f.interrupt(ctx, run, current, abort)
			}
			return f.fail(ctx, run, current, abort.node, failureCauseOf(abort.result.Err), abort.result.Err)
		}

		deltas := make([]stepDelta, 0, len(outcomes))
		for _, o := range outcomes {
			if o.result.Delta.Submission != nil && o.node != f.flow.Entry {
				err := fmt.Errorf("node %s may not modify the submission", o.node)
				return f.fail(ctx, run, current, o.node, model.FAILURE_CONTRACT, err)
			}
			deltas = append(deltas, stepDelta{node: o.node, delta: o.result.Delta})
		}
		next, err := f.commit(ctx, run, current, deltas, ready)
		if err != nil {
			return f.fail(ctx, run, current, ready[0], model.FAILURE_STORAGE, err)
		}
		for _, d := range deltas {
			analytics.RecordNodeSuccess(f.flow.Id, run.Id, d.node, run.Sequence, state.Fields(d.delta))
		}
		if err := f.updateRun(ctx, run); err != nil {
			return nil, err
		}
		current = next
		completed = ready
	}
}

// executeStep runs the ready nodes concurrently, each on its own copy of the
// state. The first fatal or suspending node cancels its siblings.
func (f *FlowEngine) executeStep(ctx context.Context, run *model.Run, current model.WorkflowState, ready []string) ([]nodeOutcome, *nodeOutcome) {
	outcomes := make([]nodeOutcome, len(ready))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range ready {
		i, name := i, name
		input := current.Clone()
		g.Go(func() error {
			outcome := f.executeNode(gctx, run, name, input)
			outcomes[i] = outcome
			if !outcome.result.IsContinue() {
				return stepAbort{outcome: outcome}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var abort stepAbort
		if errors.As(err, &abort) {
			return nil, &abort.outcome
		}
		return nil, &nodeOutcome{node: ready[0], result: action.Fatal(err)}
	}
	return outcomes, nil
}

func (f *FlowEngine) executeNode(ctx context.Context, run *model.Run, name string, input model.WorkflowState) (outcome nodeOutcome) {
	outcome.node = name
	ctx, span := trace.StartSpan(ctx, "govflow.node/"+name)
	span.AddAttributes(
		trace.StringAttribute("run", run.Id),
		trace.StringAttribute("flow", f.flow.Id),
		trace.Int64Attribute("sequence", run.Sequence),
	)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("node panicked", zap.String("run", run.Id), zap.String("node", name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			outcome.result = action.Fatal(fmt.Errorf("node %s panicked: %v", name, r))
		}
		kind := "continue"
		switch {
		case outcome.result.IsSuspend():
			kind = "suspend"
		case outcome.result.IsFatal():
			kind = "fatal"
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: outcome.result.Err.Error()})
		}
		span.End()
		recordNode(ctx, name, kind, time.Since(start))
	}()

	act, ok := f.flow.GetAction(name)
	if !ok {
		outcome.result = action.Fatal(fmt.Errorf("node %s is not part of flow %s", name, f.flow.Id))
		return outcome
	}
	logger.Debug("running node", zap.String("run", run.Id), zap.String("node", name))
	outcome.result = act.Execute(ctx, input)
	if outcome.result.IsFatal() && outcome.result.Err == nil {
		outcome.result = action.Fatal(fmt.Errorf("node %s failed without an error", name))
	}
	return outcome
}

// commit merges the step deltas, stamps their audit entries and writes the
// next checkpoint. It returns the merged state only once it is durable.
func (f *FlowEngine) commit(ctx context.Context, run *model.Run, current model.WorkflowState, deltas []stepDelta, completed []string) (model.WorkflowState, error) {
	now := time.Now().UTC()
	nodeDeltas := make([]state.NodeDelta, 0, len(deltas))
	for _, d := range deltas {
		delta := d.delta
		if len(delta.Audit) > 0 {
			stamped := make([]model.AuditEntry, len(delta.Audit))
			for i, e := range delta.Audit {
				e = e.Clone()
				e.Node = d.node
				e.At = now
				stamped[i] = e
			}
			delta.Audit = stamped
		}
		nodeDeltas = append(nodeDeltas, state.NodeDelta{Node: d.node, Delta: delta})
	}
	next := state.MergeAll(current, nodeDeltas, f.flow.Order)

	// the first checkpoint also carries the entries the run was created with
	from := len(current.Audit)
	if run.Sequence == 0 {
		from = 0
	}
	auditDelta := make([]model.AuditEntry, 0, len(next.Audit)-from)
	for _, e := range next.Audit[from:] {
		auditDelta = append(auditDelta, e.Clone())
	}
	cp := &model.Checkpoint{
		RunId:      run.Id,
		Sequence:   run.Sequence + 1,
		Completed:  append([]string{}, completed...),
		State:      next,
		AuditDelta: auditDelta,
		CreatedAt:  now,
	}
	if err := f.storage.PutCheckpoint(ctx, cp); err != nil {
		return current, err
	}
	run.Sequence = cp.Sequence
	return next, nil
}

// interrupt commits the suspension and leaves the run waiting for a decision.
func (f *FlowEngine) interrupt(ctx context.Context, run *model.Run, current model.WorkflowState, suspended *nodeOutcome) (*model.Outcome, error) {
	delta := model.Delta{
		EscalationRequired: model.Ptr(true),
		PendingDecision:    &model.HumanDecision{},
		Audit: []model.AuditEntry{{Event: "HITL_INTERRUPT", Details: map[string]any{
			"reason":  suspended.result.Reason,
			"payload": suspended.result.Payload,
		}}},
	}
	next, err := f.commit(ctx, run, current, []stepDelta{{node: suspended.node, delta: delta}}, []string{suspended.node})
	if err != nil {
		return f.fail(ctx, run, current, suspended.node, model.FAILURE_STORAGE, err)
	}
	run.Status = model.RUN_INTERRUPTED
	run.SuspendedAt = suspended.node
	run.InterruptReason = suspended.result.Reason
	run.InterruptPayload = suspended.result.Payload
	logger.Info("run interrupted", zap.String("run", run.Id), zap.String("node", suspended.node), zap.String("reason", suspended.result.Reason))
	if f.cancelRequested(run.Id) {
		return f.cancel(ctx, run, next, []string{suspended.node})
	}
	return f.finish(ctx, run, next, suspended.result.Reason)
}

func failureCauseOf(err error) model.FailureCause {
	var verr action.ValidationError
	switch {
	case errors.As(err, &verr):
		return model.FAILURE_VALIDATION
	case governance.IsContractError(err):
		return model.FAILURE_CONTRACT
	default:
		return model.FAILURE_NODE
	}
}
