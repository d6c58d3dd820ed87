package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// MemoryJobQueue keeps download jobs in process memory. Jobs do not survive
// a restart. Stored jobs are copied in and out and never shared with callers.
type MemoryJobQueue struct {
	mu      sync.RWMutex
	byID    map[domain.JobID]*domain.Job
	ready   []domain.JobID
	waiting map[domain.JobID]bool
}

// NewMemoryJobQueue returns an empty queue.
func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{
		byID:    make(map[domain.JobID]*domain.Job),
		waiting: make(map[domain.JobID]bool),
	}
}

func runnable(s domain.JobStatus) bool {
	return s == domain.JobStatusQueued || s == domain.JobStatusRetrying
}

// push appends id to the ready list once. Caller holds mu.
func (q *MemoryJobQueue) push(id domain.JobID) {
	if q.waiting[id] {
		return
	}
	q.waiting[id] = true
	q.ready = append(q.ready, id)
}

// Enqueue stores a new job. A job that is not runnable is stored but never
// handed to a worker.
func (q *MemoryJobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.byID[job.ID]; dup {
		return domain.ErrJobExists
	}
	c := *job
	q.byID[job.ID] = &c
	if runnable(c.Status) {
		q.push(c.ID)
	}
	return nil
}

// Dequeue claims the oldest runnable job for a worker.
func (q *MemoryJobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.ready) > 0 {
		id := q.ready[0]
		q.ready = q.ready[1:]
		delete(q.waiting, id)

		job, ok := q.byID[id]
		if !ok || !runnable(job.Status) {
			continue
		}
		job.MarkProcessing()
		c := *job
		return &c, nil
	}
	return nil, domain.ErrNoJobs
}

// Update replaces the stored job. A job moved back to retrying goes to the
// end of the line.
func (q *MemoryJobQueue) Update(ctx context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	c := *job
	q.byID[job.ID] = &c
	if c.Status == domain.JobStatusRetrying {
		q.push(c.ID)
	}
	return nil
}

// Get returns a copy of the job.
func (q *MemoryJobQueue) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.byID[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	c := *job
	return &c, nil
}

// ListPending returns runnable jobs, oldest first.
func (q *MemoryJobQueue) ListPending(ctx context.Context) ([]*domain.Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pending := make([]*domain.Job, 0, len(q.ready))
	for _, job := range q.byID {
		if runnable(job.Status) {
			c := *job
			pending = append(pending, &c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}

// Stats counts jobs per status.
func (q *MemoryJobQueue) Stats(ctx context.Context) (*QueueStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	counts := make(map[domain.JobStatus]int, 5)
	for _, job := range q.byID {
		counts[job.Status]++
	}
	return &QueueStats{
		Queued:     counts[domain.JobStatusQueued],
		Processing: counts[domain.JobStatusProcessing],
		Completed:  counts[domain.JobStatusCompleted],
		Failed:     counts[domain.JobStatusFailed],
		Retrying:   counts[domain.JobStatusRetrying],
	}, nil
}
