package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/config"
	"github.com/supportdesk/support-server-go/internal/service"
)

// ExpiredSessionCleaner is satisfied by *service.ContactSessionService.
type ExpiredSessionCleaner interface {
	CleanupExpired(ctx context.Context) (service.CleanupResult, error)
}

type CleanupJob struct {
	sessions ExpiredSessionCleaner
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCleanupJob(sessions ExpiredSessionCleaner, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		interval: interval,
		timeout:  config.CleanupJobTimeout,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop waits for an in-flight run to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.sessions.CleanupExpired(ctx); err != nil {
		log.Error().Err(err).Msg("failed to cleanup expired contact sessions")
	}
}
