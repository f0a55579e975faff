// Package scheduler runs the periodic category path repair sweep. Each sweep
// calls RebuildAll, which restores every stored path and level from the
// parent links after manual data fixes or interrupted writes.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"go.uber.org/zap"
)

// JobStatus represents the status of a sweep
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one rebuild sweep
type Job struct {
	ID           uuid.UUID
	Trigger      string // "interval" or "manual"
	Status       JobStatus
	Error        string
	NodesUpdated int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RetryCount   int
	MaxRetries   int
}

// NewJob creates a pending job
func NewJob(trigger string, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Trigger:    trigger,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(nodesUpdated int) {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
	j.NodesUpdated = nodesUpdated
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// TreeRebuilder recomputes every category path
type TreeRebuilder interface {
	RebuildAll(ctx context.Context) (*catalogapp.RebuildResponse, error)
}

// Config holds scheduler configuration
type Config struct {
	// Interval between sweeps; zero runs sweeps only on Trigger.
	Interval      time.Duration
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Interval:      0,
		JobTimeout:    5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// RebuildScheduler runs rebuild sweeps on a single worker. At most one
// sweep waits behind the running one; further triggers are rejected since
// the queued sweep will cover them.
type RebuildScheduler struct {
	config    Config
	rebuilder TreeRebuilder
	logger    *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastJob   *Job
}

// NewRebuildScheduler creates a new scheduler instance
func NewRebuildScheduler(config Config, rebuilder TreeRebuilder, logger *zap.Logger) *RebuildScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &RebuildScheduler{
		config:    config,
		rebuilder: rebuilder,
		logger:    logger,
	}
}

// Start starts the worker and, when an interval is configured, the ticker
func (s *RebuildScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *Job, 1)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx, s.jobs)
	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.runLoop(ctx)
	}

	s.logger.Info("Category rebuild scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the running sweep and waits for the worker to exit
func (s *RebuildScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Category rebuild scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Category rebuild scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger queues a sweep and returns a snapshot of the queued job. The
// worker owns the queued job; use LastJob to observe its outcome.
func (s *RebuildScheduler) Trigger(trigger string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil, ErrSchedulerNotRunning
	}

	job := NewJob(trigger, s.config.RetryAttempts)
	snapshot := *job
	select {
	case s.jobs <- job:
		s.logger.Debug("Rebuild job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", trigger),
		)
		return &snapshot, nil
	default:
		return nil, ErrJobQueueFull
	}
}

// LastJob returns a copy of the most recently finished job, or nil
func (s *RebuildScheduler) LastJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastJob == nil {
		return nil
	}
	job := *s.lastJob
	return &job
}

func (s *RebuildScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Trigger("interval"); err != nil && !errors.Is(err, ErrJobQueueFull) {
				s.logger.Warn("Failed to schedule rebuild sweep", zap.Error(err))
			}
		}
	}
}

func (s *RebuildScheduler) worker(ctx context.Context, jobs <-chan *Job) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job)
			s.mu.Lock()
			s.lastJob = job
			s.mu.Unlock()
		}
	}
}

// processJob runs a sweep, retrying after RetryDelay until MaxRetries
func (s *RebuildScheduler) processJob(ctx context.Context, job *Job) {
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", job.Trigger),
	)

	for {
		job.Start()
		jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
		result, err := s.rebuilder.RebuildAll(jobCtx)
		cancel()

		if err == nil {
			job.Complete(result.NodesUpdated)
			log.Info("Category rebuild sweep completed",
				zap.Int("roots", result.Roots),
				zap.Int("nodes_updated", result.NodesUpdated),
			)
			return
		}

		job.Fail(err.Error())
		log.Error("Category rebuild sweep failed", zap.Int("retry_count", job.RetryCount), zap.Error(err))
		if !job.ShouldRetry() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.RetryDelay):
			job.RetryCount++
		}
	}
}
