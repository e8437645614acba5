// Package queue serializes page builds requested by long running commands.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
)

// BuildType represents what requested a build job.
type BuildType string

const (
	BuildTypeManual   BuildType = "manual"   // Requested by the user
	BuildTypeChange   BuildType = "change"   // Source files changed
	BuildTypeInterval BuildType = "interval" // Periodic rebuild
)

// BuildStatus represents the current status of a build job.
type BuildStatus string

const (
	BuildStatusQueued    BuildStatus = "queued"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCanceled  BuildStatus = "canceled"
)

var (
	// ErrQueueFull is returned by Enqueue when no slot is free. With a
	// queue of size one it means a build is already pending.
	ErrQueueFull = errors.New("build queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("build queue stopped")
)

// BuildJob represents a single build job in the queue.
type BuildJob struct {
	ID          string
	Type        BuildType
	Status      BuildStatus
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Error       string

	cancel context.CancelFunc
}

// NewJob returns a job of type t with a fresh id.
func NewJob(t BuildType) *BuildJob {
	return &BuildJob{ID: uuid.NewString(), Type: t, CreatedAt: time.Now()}
}

// Builder executes a build job.
type Builder interface {
	Build(ctx context.Context, job *BuildJob) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, job *BuildJob) error

func (f BuilderFunc) Build(ctx context.Context, job *BuildJob) error { return f(ctx, job) }

// BuildQueue manages the queue of build jobs.
type BuildQueue struct {
	jobs        chan *BuildJob
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*BuildJob
	history     []*BuildJob
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	builder     Builder
	logger      *slog.Logger
}

// New creates a build queue with the given capacity and worker count.
func New(maxSize, workers int, builder Builder) *BuildQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	if builder == nil {
		panic("queue.New: builder is required")
	}
	return &BuildQueue{
		jobs:        make(chan *BuildJob, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*BuildJob),
		historySize: 50,
		stopChan:    make(chan struct{}),
		builder:     builder,
		logger:      slog.Default(),
	}
}

// SetLogger replaces the logger.
func (bq *BuildQueue) SetLogger(l *slog.Logger) {
	if l != nil {
		bq.logger = l
	}
}

// Start begins processing jobs with the configured number of workers.
func (bq *BuildQueue) Start(ctx context.Context) {
	bq.logger.DebugContext(ctx, "Starting build queue", "workers", bq.workers, "max_size", bq.maxSize)
	for i := range bq.workers {
		bq.wg.Add(1)
		go bq.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// are dropped.
func (bq *BuildQueue) Stop(_ context.Context) {
	bq.stopOnce.Do(func() { close(bq.stopChan) })

	bq.mu.Lock()
	for _, job := range bq.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	bq.mu.Unlock()

	bq.wg.Wait()
}

// Length returns the current queue length.
func (bq *BuildQueue) Length() int {
	return len(bq.jobs)
}

// GetActiveJobs returns copies of the currently running jobs.
func (bq *BuildQueue) GetActiveJobs() []BuildJob {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	active := make([]BuildJob, 0, len(bq.active))
	for _, job := range bq.active {
		active = append(active, *job)
	}
	return active
}

// Enqueue adds a job without blocking.
func (bq *BuildQueue) Enqueue(job *BuildJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if job.ID == "" {
		return errors.New("job ID is required")
	}
	select {
	case <-bq.stopChan:
		return ErrStopped
	default:
	}

	bq.mu.Lock()
	job.Status = BuildStatusQueued
	bq.mu.Unlock()

	select {
	case bq.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// JobSnapshot returns a copy of a job (active first, then history).
func (bq *BuildQueue) JobSnapshot(id string) (*BuildJob, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if j, ok := bq.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range bq.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

// History returns copies of the finished jobs, oldest first.
func (bq *BuildQueue) History() []BuildJob {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	out := make([]BuildJob, len(bq.history))
	for i, j := range bq.history {
		out[i] = *j
	}
	return out
}

func (bq *BuildQueue) worker(ctx context.Context, workerID string) {
	defer bq.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-bq.stopChan:
			return
		case job := <-bq.jobs:
			if job != nil {
				bq.processJob(ctx, job, workerID)
			}
		}
	}
}

func (bq *BuildQueue) processJob(ctx context.Context, job *BuildJob, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := time.Now()
	bq.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &startTime
	job.Status = BuildStatusRunning
	bq.active[job.ID] = job
	bq.mu.Unlock()

	bq.logger.DebugContext(ctx, "Build job started", "job_id", job.ID, "worker", workerID, logfields.Trigger(string(job.Type)))
	err := bq.builder.Build(jobCtx, job)
	bq.markJobCompleted(job, err)
}

func (bq *BuildQueue) markJobCompleted(job *BuildJob, err error) {
	endTime := time.Now()
	bq.mu.Lock()
	defer bq.mu.Unlock()

	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	job.cancel = nil
	delete(bq.active, job.ID)
	switch {
	case err == nil:
		job.Status = BuildStatusCompleted
	case errors.Is(err, context.Canceled):
		job.Status = BuildStatusCanceled
		job.Error = err.Error()
	default:
		job.Status = BuildStatusFailed
		job.Error = err.Error()
	}
	bq.addToHistory(job)
}

func (bq *BuildQueue) addToHistory(job *BuildJob) {
	bq.history = append(bq.history, job)
	if len(bq.history) > bq.historySize {
		copy(bq.history, bq.history[len(bq.history)-bq.historySize:])
		bq.history = bq.history[:bq.historySize]
	}
}
