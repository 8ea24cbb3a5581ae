package service

import (
	"context"
	"errors"
	"time"

	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/cache"
	"github.com/mohitkumar/govflow/engine"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/metadata"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"go.uber.org/zap"
)

// RunService is the lifecycle surface callers use to submit use cases and
// drive their approval runs.
type RunService struct {
	engine          *engine.FlowEngine
	metadataService metadata.MetadataService
	storage         persistence.Storage
	statusCache     *cache.RunStatusCache
}

func NewRunService(engine *engine.FlowEngine, metadataService metadata.MetadataService, storage persistence.Storage, statusCache *cache.RunStatusCache) *RunService {
	return &RunService{
		engine:          engine,
		metadataService: metadataService,
		storage:         storage,
		statusCache:     statusCache,
	}
}

func (s *RunService) RegisterSubmission(ctx context.Context, req model.SubmissionRequest, actor string) (*model.Subject, error) {
	return s.metadataService.RegisterSubject(ctx, req, actor)
}

func (s *RunService) GetSubmission(ctx context.Context, subjectId string) (*model.Subject, error) {
	return s.metadataService.GetSubject(ctx, subjectId)
}

// Start creates a run for a registered subject and drives it until it rests.
// The run outlives the caller's cancellation; a dropped request does not
// abandon it half way.
func (s *RunService) Start(ctx context.Context, subjectId string, actor string) (*model.Outcome, error) {
	subject, err := s.metadataService.GetSubject(ctx, subjectId)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Start(context.WithoutCancel(ctx), subject.Id, subject.Submission, actor)
	return s.track(out, err)
}

func (s *RunService) Execute(ctx context.Context, runId string) (*model.Outcome, error) {
	out, err := s.engine.Execute(context.WithoutCancel(ctx), runId)
	return s.track(out, err)
}

// Resume records the caller as the decision actor unless the decision names one.
func (s *RunService) Resume(ctx context.Context, runId string, decision model.HumanDecision, actor string) (*model.Outcome, error) {
	if decision.Actor == "" {
		decision.Actor = actor
	}
	out, err := s.engine.Resume(context.WithoutCancel(ctx), runId, decision)
	return s.track(out, err)
}

func (s *RunService) Cancel(ctx context.Context, runId string) (*model.Outcome, error) {
	out, err := s.engine.Cancel(context.WithoutCancel(ctx), runId)
	return s.track(out, err)
}

func (s *RunService) track(out *model.Outcome, err error) (*model.Outcome, error) {
	if err != nil {
		return nil, err
	}
	s.statusCache.SaveRunStatus(out.RunId, out.Status)
	return out, nil
}

// Status answers from the status cache and falls back to storage.
func (s *RunService) Status(ctx context.Context, runId string) (model.RunStatus, error) {
	if status, ok := s.statusCache.GetRunStatus(runId); ok {
		return status, nil
	}
	run, err := s.getRun(ctx, runId)
	if err != nil {
		return "", err
	}
	s.statusCache.SaveRunStatus(run.Id, run.Status)
	return run.Status, nil
}

// GetRun returns the run record together with its latest committed state.
func (s *RunService) GetRun(ctx context.Context, runId string) (*model.RunView, error) {
	run, err := s.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	state, err := s.latestState(ctx, run)
	if err != nil {
		return nil, err
	}
	s.statusCache.SaveRunStatus(run.Id, run.Status)
	return &model.RunView{Run: run, State: &state}, nil
}

// Audit returns the append-only log of the run. A failed run additionally
// gets a RUN_FAILED entry, since failures commit no checkpoint.
func (s *RunService) Audit(ctx context.Context, runId string) ([]model.AuditEntry, error) {
	run, err := s.getRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	state, err := s.latestState(ctx, run)
	if err != nil {
		return nil, err
	}
	audit := state.Audit
	if run.Status == model.RUN_FAILED {
		audit = append(audit, model.AuditEntry{
			Node:  run.FailedNode,
			Event: "RUN_FAILED",
			Details: map[string]any{
				"cause": string(run.FailureCause),
				"error": run.Error,
			},
			At: run.UpdatedAt,
		})
	}
	return audit, nil
}

func (s *RunService) Checkpoints(ctx context.Context, runId string) ([]model.CheckpointView, error) {
	if _, err := s.getRun(ctx, runId); err != nil {
		return nil, err
	}
	cps, err := s.storage.ListCheckpoints(ctx, runId)
	if err != nil {
		logger.Error("error listing checkpoints", zap.String("run", runId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	views := make([]model.CheckpointView, 0, len(cps))
	for _, cp := range cps {
		view := model.CheckpointView{
			Sequence:  cp.Sequence,
			Completed: cp.Completed,
			CreatedAt: cp.CreatedAt.Format(time.RFC3339Nano),
		}
		for _, e := range cp.AuditDelta {
			view.Events = append(view.Events, e.Event)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *RunService) Artifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error) {
	return s.metadataService.ListArtifacts(ctx, subjectId)
}

func (s *RunService) getRun(ctx context.Context, runId string) (*model.Run, error) {
	run, err := s.storage.GetRun(ctx, runId)
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

func (s *RunService) latestState(ctx context.Context, run *model.Run) (model.WorkflowState, error) {
	cp, err := s.storage.GetLatestCheckpoint(ctx, run.Id)
	if err != nil {
		logger.Error("error loading checkpoint", zap.String("run", run.Id), zap.Error(err))
		return model.WorkflowState{}, api.StorageLayerError{}
	}
	if cp == nil {
		return engine.InitialState(run), nil
	}
	return cp.State, nil
}
