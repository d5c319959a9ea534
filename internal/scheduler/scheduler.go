// Package scheduler runs fire-and-forget background tasks on a bounded
// worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("scheduler stopped")

type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

type Scheduler struct {
	jobs    chan job
	workers int
	timeout time.Duration

	startOnce sync.Once
	mu        sync.RWMutex
	stopped   bool
	pending   sync.WaitGroup
	wg        sync.WaitGroup
}

// New creates a scheduler with the given number of workers. Each task runs
// under its own context bounded by timeout.
func New(workers int, timeout time.Duration) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		jobs:    make(chan job, workers*4),
		workers: workers,
		timeout: timeout,
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (s *Scheduler) Start() {
	s.startOnce.Do(s.spawn)
}

func (s *Scheduler) spawn() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			for j := range s.jobs {
				s.run(workerID, j)
			}
		}(i)
	}
	log.Info().Int("workers", s.workers).Msg("scheduler started")
}

// RunAfter queues task to run once delay has passed. The caller does not
// wait for the task, and its errors are only logged.
func (s *Scheduler) RunAfter(delay time.Duration, name string, task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}

	s.pending.Add(1)
	j := job{name: name, task: task}
	if delay <= 0 {
		go func() { s.jobs <- j }()
		return nil
	}
	time.AfterFunc(delay, func() { s.jobs <- j })
	return nil
}

// Stop rejects new tasks and returns after every queued task has finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	// tasks queued before Start still need workers to drain them
	s.Start()
	s.pending.Wait()
	close(s.jobs)
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(workerID int, j job) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return j.task(ctx)
	}()

	if err != nil {
		log.Error().
			Err(err).
			Str("task", j.name).
			Int("worker", workerID).
			Dur("duration", time.Since(start)).
			Msg("scheduled task failed")
		return
	}
	log.Debug().Str("task", j.name).Dur("duration", time.Since(start)).Msg("scheduled task completed")
}
