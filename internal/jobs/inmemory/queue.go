package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-planner/internal/jobs"
)

// DefaultWorkers is the number of delivery workers when none is configured.
const DefaultWorkers = 2

// Queue is an in-memory scheduler, publisher and consumer for reminder jobs.
// Each job waits on a timer until its FireAt, then goes to the worker
// channel. Suitable for a single instance; pending timers are lost on
// restart and are rebuilt by rescheduling from the ledger.
type Queue struct {
	jobChan   chan *jobs.ReminderJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int

	timersMu sync.Mutex
	timers   map[string]*scheduled

	now     func() time.Time
	backoff func(retry int) time.Duration
}

type scheduled struct {
	timer *time.Timer
	job   *jobs.ReminderJob
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many due jobs can wait for a worker.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		jobChan:   make(chan *jobs.ReminderJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		timers:    make(map[string]*scheduled),
		now:       time.Now,
		backoff: func(retry int) time.Duration {
			return time.Duration(retry) * time.Second
		},
	}
}

// PublishReminder implements the Publisher interface. A job with the same id
// that has not fired yet is replaced.
func (q *Queue) PublishReminder(ctx context.Context, job *jobs.ReminderJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("queue is closed")
	}
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	job.Status = jobs.JobStatusScheduled
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	q.timersMu.Lock()
	defer q.timersMu.Unlock()
	if prev, ok := q.timers[job.JobID]; ok {
		prev.timer.Stop()
	}
	delay := job.FireAt.Sub(q.now())
	q.timers[job.JobID] = &scheduled{
		job: job,
		timer: time.AfterFunc(delay, func() {
			q.fire(job)
		}),
	}
	return nil
}

// CancelPayment implements the Publisher interface.
func (q *Queue) CancelPayment(ctx context.Context, paymentID string) (int, error) {
	q.timersMu.Lock()
	var cancelled []string
	for id, s := range q.timers {
		if s.job.PaymentID != paymentID {
			continue
		}
		if s.timer.Stop() {
			cancelled = append(cancelled, id)
		}
		delete(q.timers, id)
	}
	q.timersMu.Unlock()

	if q.store != nil {
		for _, id := range cancelled {
			if err := q.store.UpdateJobStatus(ctx, id, jobs.JobStatusCancelled, ""); err != nil {
				return len(cancelled), fmt.Errorf("failed to update job %s: %w", id, err)
			}
		}
	}
	return len(cancelled), nil
}

// Pending returns the number of jobs still waiting for their fire time.
func (q *Queue) Pending() int {
	q.timersMu.Lock()
	defer q.timersMu.Unlock()
	return len(q.timers)
}

// fire moves a due job to the worker channel.
func (q *Queue) fire(job *jobs.ReminderJob) {
	q.timersMu.Lock()
	if s, ok := q.timers[job.JobID]; ok && s.job == job {
		delete(q.timers, job.JobID)
	}
	q.timersMu.Unlock()

	job.Status = jobs.JobStatusPending
	if q.store != nil {
		_ = q.store.SaveJob(context.Background(), job)
	}
	q.enqueue(job)
}

func (q *Queue) enqueue(job *jobs.ReminderJob) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return
	}

	select {
	case q.jobChan <- job:
	case <-q.closeChan:
	}
}

// Start implements the Consumer interface.
// Jobs are handled concurrently by the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ReminderJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := q.now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := q.now()
	job.CompletedAt = &completedAt

	retry := false
	if err != nil {
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			retry = true
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if retry {
		// Re-enqueue with linear backoff.
		time.AfterFunc(q.backoff(job.RetryCount), func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			q.enqueue(job)
		})
	}
}

// Stop implements the Consumer interface.
// It drops pending timers and waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	q.timersMu.Lock()
	for id, s := range q.timers {
		s.timer.Stop()
		delete(q.timers, id)
	}
	q.timersMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
