package util

import (
	"context"
	"sync"

	"github.com/mohitkumar/govflow/logger"
	"go.uber.org/zap"
)

// Worker drains a buffered channel of jobs with a fixed number of goroutines.
type Worker[T any] struct {
	name        string
	concurrency int
	stop        chan struct{}
	wg          *sync.WaitGroup
	handler     func(context.Context, T) error
	jobs        chan T
	stopOnce    sync.Once
}

func NewWorker[T any](name string, wg *sync.WaitGroup, handler func(context.Context, T) error, concurrency int, capacity int) *Worker[T] {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker[T]{
		name:        name,
		concurrency: concurrency,
		stop:        make(chan struct{}),
		wg:          wg,
		handler:     handler,
		jobs:        make(chan T, capacity),
	}
}

func (w *Worker[T]) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case job := <-w.jobs:
					if err := w.handler(ctx, job); err != nil {
						logger.Error("error in executing job in worker", zap.String("worker", w.name), zap.Any("job", job), zap.Error(err))
					}
				case <-w.stop:
					return
				}
			}
		}()
	}
	go func() {
		<-w.stop
		cancel()
	}()
	logger.Info("worker started", zap.String("worker", w.name), zap.Int("concurrency", w.concurrency))
}

// Submit enqueues a job without blocking. It reports false when the queue is full.
func (w *Worker[T]) Submit(job T) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

func (w *Worker[T]) Stop() {
	w.stopOnce.Do(func() {
		logger.Info("stopping worker", zap.String("worker", w.name))
		close(w.stop)
	})
}
