package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRebuilder struct {
	calls    atomic.Int32
	failures int32 // calls that fail before succeeding
	block    chan struct{}
}

func (f *fakeRebuilder) RebuildAll(ctx context.Context) (*catalogapp.RebuildResponse, error) {
	n := f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failures {
		return nil, errors.New("database unavailable")
	}
	return &catalogapp.RebuildResponse{Roots: 2, NodesUpdated: 7}, nil
}

func startScheduler(t *testing.T, cfg Config, rebuilder TreeRebuilder) *RebuildScheduler {
	t.Helper()
	s := NewRebuildScheduler(cfg, rebuilder, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestJobLifecycle(t *testing.T) {
	job := NewJob("manual", 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.True(t, job.ShouldRetry())
	job.RetryCount++
	assert.False(t, job.ShouldRetry())

	job.Start()
	assert.Empty(t, job.Error)
	job.Complete(3)
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, 3, job.NodesUpdated)
}

func TestRebuildScheduler_Trigger(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	s := startScheduler(t, DefaultConfig(), rebuilder)

	job, err := s.Trigger("manual")
	require.NoError(t, err)
	assert.Equal(t, "manual", job.Trigger)

	require.Eventually(t, func() bool { return s.LastJob() != nil }, time.Second, 5*time.Millisecond)
	last := s.LastJob()
	assert.Equal(t, job.ID, last.ID)
	assert.Equal(t, JobStatusSuccess, last.Status)
	assert.Equal(t, JobStatusPending, job.Status, "returned job is a snapshot the worker never touches")
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, 7, last.NodesUpdated)
	assert.Equal(t, int32(1), rebuilder.calls.Load())
}

func TestRebuildScheduler_NotRunning(t *testing.T) {
	s := NewRebuildScheduler(DefaultConfig(), &fakeRebuilder{}, nil)
	_, err := s.Trigger("manual")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	assert.NoError(t, s.Stop(context.Background()))
}

func TestRebuildScheduler_QueueHoldsOneSweep(t *testing.T) {
	rebuilder := &fakeRebuilder{block: make(chan struct{})}
	s := startScheduler(t, DefaultConfig(), rebuilder)

	_, err := s.Trigger("manual")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rebuilder.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.Trigger("manual")
	require.NoError(t, err)
	_, err = s.Trigger("manual")
	assert.ErrorIs(t, err, ErrJobQueueFull)

	close(rebuilder.block)
	require.Eventually(t, func() bool { return rebuilder.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRebuildScheduler_Retry(t *testing.T) {
	rebuilder := &fakeRebuilder{failures: 2}
	s := startScheduler(t, Config{RetryAttempts: 3, RetryDelay: 5 * time.Millisecond}, rebuilder)

	_, err := s.Trigger("manual")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		last := s.LastJob()
		return last != nil && last.Status == JobStatusSuccess
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, s.LastJob().RetryCount)
	assert.Equal(t, int32(3), rebuilder.calls.Load())
}

func TestRebuildScheduler_GivesUpAfterRetries(t *testing.T) {
	rebuilder := &fakeRebuilder{failures: 100}
	s := startScheduler(t, Config{RetryAttempts: 1, RetryDelay: time.Millisecond}, rebuilder)

	_, err := s.Trigger("manual")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.LastJob() != nil }, time.Second, 5*time.Millisecond)
	last := s.LastJob()
	assert.Equal(t, JobStatusFailed, last.Status)
	assert.Equal(t, "database unavailable", last.Error)
	assert.Equal(t, int32(2), rebuilder.calls.Load())
}

func TestRebuildScheduler_Interval(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	startScheduler(t, Config{Interval: 10 * time.Millisecond}, rebuilder)

	assert.Eventually(t, func() bool { return rebuilder.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestRebuildScheduler_StopCancelsSweep(t *testing.T) {
	rebuilder := &fakeRebuilder{block: make(chan struct{})}
	s := NewRebuildScheduler(DefaultConfig(), rebuilder, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))

	_, err := s.Trigger("manual")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rebuilder.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, err = s.Trigger("manual")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}
