package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type scheduleFunc func()

type Scheduler interface {
	Schedule(f scheduleFunc)
	// Wait blocks until all in-flight tasks complete.
	Wait()
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      *semaphore.Weighted // nil: unlimited

	wg sync.WaitGroup

	actorID string
	metrics ActorMetrics
}

func (s *scheduler) Schedule(f scheduleFunc) {
	// Don't schedule if context is already cancelled
	if s.ctx.Err() != nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return
			}
			defer s.sem.Release(1)
		}

		s.metrics.SchedulerInflight(s.actorID, int(s.inflight.Add(1)))
		defer func() {
			s.metrics.SchedulerInflight(s.actorID, int(s.inflight.Add(-1)))
		}()

		s.runTask(f)
	}()
}

func (s *scheduler) runTask(f scheduleFunc) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()

	f()
	s.metrics.SchedulerTaskCompleted(true)
}

func (s *scheduler) Wait() {
	s.wg.Wait()
}

// NewScheduler limits the number of concurrently running tasks to max.
// If max <= 0, concurrency is unlimited. Tasks that have not started when
// ctx is cancelled are dropped.
func NewScheduler(max int, ctx context.Context) Scheduler {
	return NewSchedulerWithMetrics(max, ctx, "", NopActorMetrics(), nil)
}

func NewSchedulerWithMetrics(max int, ctx context.Context, actorID string, metrics ActorMetrics, log *slog.Logger) Scheduler {
	var sem *semaphore.Weighted
	if max > 0 {
		sem = semaphore.NewWeighted(int64(max))
	}
	if metrics == nil {
		metrics = NopActorMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		log:     log,
		actorID: actorID,
		metrics: metrics,
	}
}
