package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *postgresStorage {
	url := os.Getenv("GOVFLOW_POSTGRES_URL")
	if url == "" {
		t.Skip("GOVFLOW_POSTGRES_URL not set")
	}
	s, err := NewPostgresStorage(context.Background(), Config{URL: url}, Codecs{
		Run:        util.NewJsonEncoderDecoder[model.Run](),
		Checkpoint: util.NewJsonEncoderDecoder[model.Checkpoint](),
		Subject:    util.NewJsonEncoderDecoder[model.Subject](),
		Artifact:   util.NewJsonEncoderDecoder[model.GeneratedArtifact](),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresCheckpoints(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	run := &model.Run{Id: uuid.NewString(), SubjectId: "uc-1", Status: model.RUN_RUNNING, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateRun(ctx, run))

	latest, err := s.GetLatestCheckpoint(ctx, run.Id)
	require.NoError(t, err)
	require.Nil(t, latest)

	require.NoError(t, s.PutCheckpoint(ctx, &model.Checkpoint{RunId: run.Id, Sequence: 1, Completed: []string{"entry"}}))
	require.NoError(t, s.PutCheckpoint(ctx, &model.Checkpoint{RunId: run.Id, Sequence: 2, Completed: []string{"classify"}}))
	err = s.PutCheckpoint(ctx, &model.Checkpoint{RunId: run.Id, Sequence: 2})
	require.ErrorAs(t, err, &persistence.SequenceConflictError{})

	latest, err = s.GetLatestCheckpoint(ctx, run.Id)
	require.NoError(t, err)
	require.Equal(t, []string{"classify"}, latest.Completed)

	run.Status = model.RUN_APPROVAL_READY
	require.NoError(t, s.UpdateRun(ctx, run))
	got, err := s.GetRun(ctx, run.Id)
	require.NoError(t, err)
	require.Equal(t, model.RUN_APPROVAL_READY, got.Status)
}
