package persistence

import (
	"context"
	"fmt"

	"github.com/mohitkumar/govflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Entity string
	Id     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Id)
}

// SequenceConflictError is returned when a checkpoint does not directly follow
// the latest committed one.
type SequenceConflictError struct {
	RunId    string
	Expected int64
	Got      int64
}

func (e SequenceConflictError) Error() string {
	return fmt.Sprintf("checkpoint sequence conflict for run %s: expected %d, got %d", e.RunId, e.Expected, e.Got)
}

type RunStorage interface {
	CreateRun(ctx context.Context, run *model.Run) error
	UpdateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runId string) (*model.Run, error)
	ListRuns(ctx context.Context, status model.RunStatus) ([]*model.Run, error)
}

// CheckpointStorage is the checkpoint and audit sink. PutCheckpoint is atomic:
// either the whole checkpoint is durable or nothing is. GetLatestCheckpoint
// returns nil without error when the run has no checkpoint yet.
type CheckpointStorage interface {
	PutCheckpoint(ctx context.Context, cp *model.Checkpoint) error
	GetLatestCheckpoint(ctx context.Context, runId string) (*model.Checkpoint, error)
	ListCheckpoints(ctx context.Context, runId string) ([]*model.Checkpoint, error)
}

type SubjectStorage interface {
	SaveSubject(ctx context.Context, subject *model.Subject) error
	GetSubject(ctx context.Context, subjectId string) (*model.Subject, error)
}

type ArtifactStorage interface {
	UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) error
	ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error)
}

type Storage interface {
	RunStorage
	CheckpointStorage
	SubjectStorage
	ArtifactStorage
	Close() error
}
