package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/supportdesk/support-server-go/internal/service"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpired(ctx context.Context) (service.CleanupResult, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return service.CleanupResult{}, errors.New("missing deadline")
	}
	return service.CleanupResult{DeletedCount: 2, Timestamp: time.Now()}, c.err
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(&countingCleaner{}, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		cleaner := &countingCleaner{}
		job := NewCleanupJob(cleaner, time.Hour)

		job.Start()
		assert.Eventually(t, func() bool { return cleaner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("runs on every tick", func(t *testing.T) {
		cleaner := &countingCleaner{}
		job := NewCleanupJob(cleaner, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("failures do not stop the job", func(t *testing.T) {
		cleaner := &countingCleaner{err: errors.New("db down")}
		job := NewCleanupJob(cleaner, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		job.Stop()
		job.Stop()
	})
}
