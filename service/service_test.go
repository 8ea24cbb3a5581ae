package service

import (
	"context"
	"sync"
	"testing"
	"time"

	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/cache"
	"github.com/mohitkumar/govflow/engine"
	"github.com/mohitkumar/govflow/flow"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/metadata"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

var lowRisk = model.Submission{Name: "faq bot", DataClassification: "NON_PCI", DeploymentTarget: "ON_PREM", ModelProvider: "INTERNAL"}
var highRisk = model.Submission{Name: "card assistant", DataClassification: "PCI", DeploymentTarget: "CLOUD", ModelProvider: "EXTERNAL"}

type fixture struct {
	store   persistence.Storage
	engine  *engine.FlowEngine
	cache   *cache.RunStatusCache
	service *RunService
}

func newFixture(t *testing.T) *fixture {
	store := memory.NewMemoryStorage()
	f, err := flow.NewApprovalFlow(flow.Config{MaxRemediationAttempts: 3}, governance.NewStubSystems(store, store))
	require.NoError(t, err)
	eng := engine.NewFlowEngine(f, store)
	statusCache := cache.NewRunStatusCache(time.Minute)
	return &fixture{
		store:   store,
		engine:  eng,
		cache:   statusCache,
		service: NewRunService(eng, metadata.NewMetadataService(store), store, statusCache),
	}
}

func (fx *fixture) submit(t *testing.T, id string, sub model.Submission) {
	_, err := fx.service.RegisterSubmission(context.Background(), model.SubmissionRequest{SubjectId: id, Submission: sub}, "alice")
	require.NoError(t, err)
}

func eventsOf(audit []model.AuditEntry) []string {
	var events []string
	for _, e := range audit {
		events = append(events, e.Event)
	}
	return events
}

func TestRunService(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, fx *fixture){
		"start drives run to rest":         testStart,
		"start of unknown subject":         testStartUnknownSubject,
		"resume records the caller":        testResumeActor,
		"failed run audit ends in failure": testFailedAudit,
		"unknown run is not found":         testUnknownRun,
		"cancel interrupted run":           testCancel,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newFixture(t))
		})
	}
}

func testStart(t *testing.T, fx *fixture) {
	ctx := context.Background()
	fx.submit(t, "uc-low", lowRisk)

	out, err := fx.service.Start(ctx, "uc-low", "alice")
	require.NoError(t, err)
	require.Equal(t, model.RUN_APPROVAL_READY, out.Status)

	status, ok := fx.cache.GetRunStatus(out.RunId)
	require.True(t, ok)
	require.Equal(t, model.RUN_APPROVAL_READY, status)

	view, err := fx.service.GetRun(ctx, out.RunId)
	require.NoError(t, err)
	require.Equal(t, "alice", view.Run.CreatedBy)
	require.Equal(t, model.RISK_LOW, view.State.RiskLevel)

	audit, err := fx.service.Audit(ctx, out.RunId)
	require.NoError(t, err)
	events := eventsOf(audit)
	require.Equal(t, "RUN_CREATED", events[0])
	require.Equal(t, "FINISH", events[len(events)-1])

	cps, err := fx.service.Checkpoints(ctx, out.RunId)
	require.NoError(t, err)
	require.Len(t, cps, int(out.Sequence))
	for i, cp := range cps {
		require.Equal(t, int64(i+1), cp.Sequence)
	}
	require.Contains(t, cps[0].Events, "RUN_CREATED")

	subject, err := fx.service.GetSubmission(ctx, "uc-low")
	require.NoError(t, err)
	require.Equal(t, out.RunId, subject.Governance.LastRunId)
	require.Equal(t, model.RUN_APPROVAL_READY, subject.Governance.LastStatus)

	_, err = fx.service.Artifacts(ctx, "uc-low")
	require.NoError(t, err)
}

func testStartUnknownSubject(t *testing.T, fx *fixture) {
	_, err := fx.service.Start(context.Background(), "missing", "alice")
	require.ErrorAs(t, err, &api.SubjectNotFoundError{})
}

func testResumeActor(t *testing.T, fx *fixture) {
	ctx := context.Background()
	fx.submit(t, "uc-high", highRisk)

	out, err := fx.service.Start(ctx, "uc-high", "alice")
	require.NoError(t, err)
	require.Equal(t, model.RUN_INTERRUPTED, out.Status)

	status, err := fx.service.Status(ctx, out.RunId)
	require.NoError(t, err)
	require.Equal(t, model.RUN_INTERRUPTED, status)

	out, err = fx.service.Resume(ctx, out.RunId, model.HumanDecision{Action: model.DECISION_APPROVE, Comment: "risk accepted"}, "bob")
	require.NoError(t, err)
	require.Equal(t, model.RUN_APPROVAL_READY, out.Status)

	audit, err := fx.service.Audit(ctx, out.RunId)
	require.NoError(t, err)
	var resumed *model.AuditEntry
	for i := range audit {
		if audit[i].Event == "RUN_RESUMED" {
			resumed = &audit[i]
		}
	}
	require.NotNil(t, resumed)
	require.Equal(t, "bob", resumed.Details["actor"])
	require.Equal(t, "APPROVE", resumed.Details["decision"])
}

func testFailedAudit(t *testing.T, fx *fixture) {
	ctx := context.Background()
	// registered around the submission checks, as an older client could have
	require.NoError(t, fx.store.SaveSubject(ctx, &model.Subject{Id: "uc-bad", Submission: model.Submission{DataClassification: "PCI"}}))

	out, err := fx.service.Start(ctx, "uc-bad", "alice")
	require.NoError(t, err)
	require.Equal(t, model.RUN_FAILED, out.Status)

	audit, err := fx.service.Audit(ctx, out.RunId)
	require.NoError(t, err)
	require.Equal(t, []string{"RUN_CREATED", "RUN_FAILED"}, eventsOf(audit))
	require.Equal(t, string(model.FAILURE_VALIDATION), audit[1].Details["cause"])
	require.Equal(t, "entry", audit[1].Node)

	cps, err := fx.service.Checkpoints(ctx, out.RunId)
	require.NoError(t, err)
	require.Empty(t, cps)
}

func testUnknownRun(t *testing.T, fx *fixture) {
	ctx := context.Background()
	_, err := fx.service.GetRun(ctx, "missing")
	require.ErrorAs(t, err, &api.RunNotFoundError{})
	_, err = fx.service.Status(ctx, "missing")
	require.ErrorAs(t, err, &api.RunNotFoundError{})
	_, err = fx.service.Audit(ctx, "missing")
	require.ErrorAs(t, err, &api.RunNotFoundError{})
	_, err = fx.service.Checkpoints(ctx, "missing")
	require.ErrorAs(t, err, &api.RunNotFoundError{})
	_, err = fx.service.Execute(ctx, "missing")
	require.ErrorAs(t, err, &api.RunNotFoundError{})
}

func testCancel(t *testing.T, fx *fixture) {
	ctx := context.Background()
	fx.submit(t, "uc-high", highRisk)
	out, err := fx.service.Start(ctx, "uc-high", "alice")
	require.NoError(t, err)

	out, err = fx.service.Cancel(ctx, out.RunId)
	require.NoError(t, err)
	require.Equal(t, model.RUN_CANCELLED, out.Status)

	status, err := fx.service.Status(ctx, out.RunId)
	require.NoError(t, err)
	require.Equal(t, model.RUN_CANCELLED, status)
}

func TestRecoveryService(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.submit(t, "uc-low", lowRisk)

	// a run a stopped process left RUNNING before its first checkpoint
	orphan, err := fx.engine.Create(ctx, "uc-low", lowRisk, "alice")
	require.NoError(t, err)
	orphan.Status = model.RUN_RUNNING
	require.NoError(t, fx.store.UpdateRun(ctx, orphan))

	// and one created but never started
	stale, err := fx.engine.Create(ctx, "uc-low", lowRisk, "alice")
	require.NoError(t, err)
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, fx.store.UpdateRun(ctx, stale))

	var wg sync.WaitGroup
	r := NewRecoveryService(fx.engine, fx.store, fx.cache, 10*time.Millisecond, 2, &wg)
	require.False(t, r.IsRunning())
	r.Start()
	require.True(t, r.IsRunning())
	stopped := false
	defer func() {
		if !stopped {
			r.Stop()
			wg.Wait()
		}
	}()

	for _, runId := range []string{orphan.Id, stale.Id} {
		runId := runId
		require.Eventually(t, func() bool {
			run, err := fx.store.GetRun(ctx, runId)
			return err == nil && run.Status == model.RUN_APPROVAL_READY
		}, 5*time.Second, 10*time.Millisecond)
	}
	status, ok := fx.cache.GetRunStatus(orphan.Id)
	require.True(t, ok)
	require.Equal(t, model.RUN_APPROVAL_READY, status)

	r.Stop()
	wg.Wait()
	stopped = true
	require.False(t, r.IsRunning())
}
