package engine

import (
	"context"
	"errors"

	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"go.uber.org/zap"
)

type StateHandler func(ctx context.Context, run *model.Run, state model.WorkflowState) error

// StateHandlerContainer holds what runs when a run comes to rest in a status.
type StateHandlerContainer struct {
	handlers map[model.RunStatus][]StateHandler
	storage  Storage
}

func NewStateHandlerContainer(storage Storage) *StateHandlerContainer {
	hd := &StateHandlerContainer{
		storage:  storage,
		handlers: make(map[model.RunStatus][]StateHandler),
	}
	for _, status := range []model.RunStatus{model.RUN_APPROVAL_READY, model.RUN_REJECTED, model.RUN_INTERRUPTED, model.RUN_FAILED} {
		hd.Register(status, hd.snapshot)
	}
	hd.Register(model.RUN_APPROVAL_READY, hd.persistArtifacts)
	return hd
}

func (s *StateHandlerContainer) Register(status model.RunStatus, handler StateHandler) {
	s.handlers[status] = append(s.handlers[status], handler)
}

// Handle runs every handler of the run's status. Handlers only report
// errors; the run status is already committed.
func (s *StateHandlerContainer) Handle(ctx context.Context, run *model.Run, state model.WorkflowState) {
	for _, handler := range s.handlers[run.Status] {
		if err := handler(ctx, run, state); err != nil {
			logger.Error("error in running state handler", zap.String("run", run.Id), zap.String("status", string(run.Status)), zap.Error(err))
		}
	}
}

// snapshot records the outcome of the run on the subject it evaluated.
func (s *StateHandlerContainer) snapshot(ctx context.Context, run *model.Run, state model.WorkflowState) error {
	subject, err := s.storage.GetSubject(ctx, run.SubjectId)
	if err != nil {
		var nf persistence.NotFoundError
		if errors.As(err, &nf) {
			logger.Debug("run subject not registered, skipping snapshot", zap.String("subject", run.SubjectId))
			return nil
		}
		return err
	}
	subject.Governance = model.SnapshotOf(run, state)
	subject.UpdatedAt = subject.Governance.UpdatedAt
	return s.storage.SaveSubject(ctx, subject)
}

func (s *StateHandlerContainer) persistArtifacts(ctx context.Context, run *model.Run, state model.WorkflowState) error {
	for _, artifact := range state.GeneratedArtifacts {
		if err := s.storage.UpsertArtifact(ctx, run.SubjectId, artifact); err != nil {
			return err
		}
	}
	return nil
}
