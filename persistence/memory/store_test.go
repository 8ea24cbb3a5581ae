package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/stretchr/testify/require"
)

func checkpoint(runId string, seq int64) *model.Checkpoint {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Checkpoint{
		RunId:     runId,
		Sequence:  seq,
		Completed: []string{"classify"},
		State: model.WorkflowState{
			SubjectId:      "uc-1",
			Submission:     model.Submission{DataClassification: "PCI", ModelProvider: "EXTERNAL"},
			Classification: map[string]string{"provider_type": "EXTERNAL"},
			RiskLevel:      model.RISK_HIGH,
			EvalMetrics:    map[string]any{"toxicity": 0.08, "netsec_baseline": "PASS"},
			Audit:          []model.AuditEntry{{Node: "classify", Event: "CLASSIFY", Details: map[string]any{"risk_level": "HIGH"}, At: at}},
		},
		AuditDelta: []model.AuditEntry{{Node: "classify", Event: "CLASSIFY", Details: map[string]any{"risk_level": "HIGH"}, At: at}},
		CreatedAt:  at,
	}
}

func TestMemoryStorage(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s *memoryStorage){
		"checkpoint round trip":          testCheckpointRoundTrip,
		"sequence must be monotonic":     testSequenceConflict,
		"latest of unknown run is empty": testLatestAbsent,
		"run lifecycle":                  testRunLifecycle,
		"artifact upsert is idempotent":  testArtifactUpsert,
		"subject not found":              testSubjectNotFound,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewMemoryStorage())
		})
	}
}

func testCheckpointRoundTrip(t *testing.T, s *memoryStorage) {
	ctx := context.Background()
	cp := checkpoint("run-1", 1)
	require.NoError(t, s.PutCheckpoint(ctx, cp))
	latest, err := s.GetLatestCheckpoint(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, cp, latest)

	latest.State.Classification["provider_type"] = "INTERNAL"
	again, err := s.GetLatestCheckpoint(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "EXTERNAL", again.State.Classification["provider_type"])
}

func testSequenceConflict(t *testing.T, s *memoryStorage) {
	ctx := context.Background()
	require.NoError(t, s.PutCheckpoint(ctx, checkpoint("run-1", 1)))
	err := s.PutCheckpoint(ctx, checkpoint("run-1", 1))
	require.ErrorAs(t, err, &persistence.SequenceConflictError{})
	err = s.PutCheckpoint(ctx, checkpoint("run-1", 3))
	require.ErrorAs(t, err, &persistence.SequenceConflictError{})
	require.NoError(t, s.PutCheckpoint(ctx, checkpoint("run-1", 2)))

	cps, err := s.ListCheckpoints(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	require.Equal(t, int64(1), cps[0].Sequence)
	require.Equal(t, int64(2), cps[1].Sequence)
}

func testLatestAbsent(t *testing.T, s *memoryStorage) {
	cp, err := s.GetLatestCheckpoint(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, cp)
}

func testRunLifecycle(t *testing.T, s *memoryStorage) {
	ctx := context.Background()
	run := &model.Run{Id: "run-1", SubjectId: "uc-1", Status: model.RUN_CREATED, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateRun(ctx, run))
	require.Error(t, s.CreateRun(ctx, run))

	run.Status = model.RUN_RUNNING
	require.NoError(t, s.UpdateRun(ctx, run))
	running, err := s.ListRuns(ctx, model.RUN_RUNNING)
	require.NoError(t, err)
	require.Len(t, running, 1)
	failed, err := s.ListRuns(ctx, model.RUN_FAILED)
	require.NoError(t, err)
	require.Empty(t, failed)

	_, err = s.GetRun(ctx, "other")
	require.ErrorAs(t, err, &persistence.NotFoundError{})
	require.ErrorAs(t, s.UpdateRun(ctx, &model.Run{Id: "other"}), &persistence.NotFoundError{})
}

func testArtifactUpsert(t *testing.T, s *memoryStorage) {
	ctx := context.Background()
	require.NoError(t, s.UpsertArtifact(ctx, "uc-1", model.GeneratedArtifact{Type: "THREAT_MODEL", Content: "v1"}))
	require.NoError(t, s.UpsertArtifact(ctx, "uc-1", model.GeneratedArtifact{Type: "THREAT_MODEL", Content: "v2"}))
	require.NoError(t, s.UpsertArtifact(ctx, "uc-1", model.GeneratedArtifact{Type: "REDACTION_PLAN", Content: "v1"}))
	artifacts, err := s.ListArtifacts(ctx, "uc-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	require.Equal(t, "REDACTION_PLAN", artifacts[0].Type)
	require.Equal(t, "v2", artifacts[1].Content)
}

func testSubjectNotFound(t *testing.T, s *memoryStorage) {
	_, err := s.GetSubject(context.Background(), "nope")
	require.ErrorAs(t, err, &persistence.NotFoundError{})
}
