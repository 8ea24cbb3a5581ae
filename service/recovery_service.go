package service

import (
	"context"
	"errors"
	"sync"
	"time"

	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/cache"
	"github.com/mohitkumar/govflow/engine"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
	"go.uber.org/zap"
)

// RecoveryService re-drives runs that were left mid-flight, typically by a
// process that stopped while driving them. Runs are continued from their
// latest committed checkpoint.
type RecoveryService struct {
	engine      *engine.FlowEngine
	storage     persistence.RunStorage
	statusCache *cache.RunStatusCache
	tw          *util.TickWorker
	worker      *util.Worker[string]
	// runs left CREATED are only picked up once they are older than this
	staleAfter time.Duration
	mu         sync.Mutex
	queued     map[string]bool
}

func NewRecoveryService(engine *engine.FlowEngine, storage persistence.RunStorage, statusCache *cache.RunStatusCache, interval time.Duration, concurrency int, wg *sync.WaitGroup) *RecoveryService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	r := &RecoveryService{
		engine:      engine,
		storage:     storage,
		statusCache: statusCache,
		staleAfter:  interval,
		queued:      make(map[string]bool),
	}
	r.worker = util.NewWorker("run-recovery", wg, r.recoverRun, concurrency, 1000)
	r.tw = util.NewTickWorker("run-recovery-sweep", interval, r.Sweep, wg)
	return r
}

func (r *RecoveryService) Start() {
	r.worker.Start()
	r.tw.Start()
}

func (r *RecoveryService) Stop() {
	r.tw.Stop()
	r.worker.Stop()
}

// IsRunning reports whether the periodic sweep is active.
func (r *RecoveryService) IsRunning() bool {
	return r.tw.IsRunning()
}

// Sweep queues every RUNNING run this process is not driving, and every
// CREATED run that was never started.
func (r *RecoveryService) Sweep() {
	ctx := context.Background()
	running, err := r.storage.ListRuns(ctx, model.RUN_RUNNING)
	if err != nil {
		logger.Error("error listing running runs", zap.Error(err))
		return
	}
	created, err := r.storage.ListRuns(ctx, model.RUN_CREATED)
	if err != nil {
		logger.Error("error listing created runs", zap.Error(err))
		return
	}
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	for _, run := range created {
		if run.UpdatedAt.Before(cutoff) {
			running = append(running, run)
		}
	}
	for _, run := range running {
		if r.engine.IsActive(run.Id) || !r.markQueued(run.Id) {
			continue
		}
		if !r.worker.Submit(run.Id) {
			r.unmarkQueued(run.Id)
			logger.Warn("recovery queue full", zap.String("run", run.Id))
		}
	}
}

func (r *RecoveryService) markQueued(runId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queued[runId] {
		return false
	}
	r.queued[runId] = true
	return true
}

func (r *RecoveryService) unmarkQueued(runId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queued, runId)
}

func (r *RecoveryService) recoverRun(ctx context.Context, runId string) error {
	defer r.unmarkQueued(runId)
	logger.Info("recovering run", zap.String("run", runId))
	out, err := r.engine.Execute(ctx, runId)
	if err != nil {
		var busy api.RunBusyError
		if errors.As(err, &busy) {
			return nil
		}
		return err
	}
	r.statusCache.SaveRunStatus(out.RunId, out.Status)
	logger.Info("run recovered", zap.String("run", runId), zap.String("status", string(out.Status)))
	return nil
}
