package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *redisStorage {
	conf := Config{
		Addrs:          []string{"localhost:6379"},
		Namespace:      fmt.Sprintf("test-%s", uuid.NewString()),
		PartitionCount: 4,
	}
	s := NewRedisStorage(conf, Codecs{
		Run:        util.NewJsonEncoderDecoder[model.Run](),
		Checkpoint: util.NewMsgpackEncoderDecoder[model.Checkpoint](),
		Subject:    util.NewJsonEncoderDecoder[model.Subject](),
		Artifact:   util.NewJsonEncoderDecoder[model.GeneratedArtifact](),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStorage(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s *redisStorage){
		"checkpoints are monotonic": testCheckpointSequence,
		"runs are partitioned":      testRunsAcrossPartitions,
		"missing run":               testMissingRun,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestStorage(t))
		})
	}
}

func testCheckpointSequence(t *testing.T, s *redisStorage) {
	ctx := context.Background()
	runId := uuid.NewString()
	latest, err := s.GetLatestCheckpoint(ctx, runId)
	require.NoError(t, err)
	require.Nil(t, latest)

	for seq := int64(1); seq <= 3; seq++ {
		cp := &model.Checkpoint{
			RunId:     runId,
			Sequence:  seq,
			Completed: []string{fmt.Sprintf("node-%d", seq)},
			State:     model.WorkflowState{SubjectId: "uc-1", RemediationAttempts: int(seq)},
		}
		require.NoError(t, s.PutCheckpoint(ctx, cp))
	}
	err = s.PutCheckpoint(ctx, &model.Checkpoint{RunId: runId, Sequence: 2})
	require.ErrorAs(t, err, &persistence.SequenceConflictError{})

	latest, err = s.GetLatestCheckpoint(ctx, runId)
	require.NoError(t, err)
	require.Equal(t, int64(3), latest.Sequence)
	require.Equal(t, 3, latest.State.RemediationAttempts)

	all, err := s.ListCheckpoints(ctx, runId)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"node-1"}, all[0].Completed)
}

func testRunsAcrossPartitions(t *testing.T, s *redisStorage) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		run := &model.Run{Id: uuid.NewString(), SubjectId: "uc-1", Status: model.RUN_RUNNING, CreatedAt: time.Now().UTC()}
		require.NoError(t, s.CreateRun(ctx, run))
	}
	runs, err := s.ListRuns(ctx, model.RUN_RUNNING)
	require.NoError(t, err)
	require.Len(t, runs, 10)

	runs[0].Status = model.RUN_FAILED
	require.NoError(t, s.UpdateRun(ctx, runs[0]))
	got, err := s.GetRun(ctx, runs[0].Id)
	require.NoError(t, err)
	require.Equal(t, model.RUN_FAILED, got.Status)
}

func testMissingRun(t *testing.T, s *redisStorage) {
	_, err := s.GetRun(context.Background(), "missing")
	require.ErrorAs(t, err, &persistence.NotFoundError{})
}
