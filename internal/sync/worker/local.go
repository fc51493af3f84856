package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"notion-sync-backend/internal/sync/domain"
)

var (
	ErrQueueFull = errors.New("sync queue is full")
	ErrStopped   = errors.New("sync worker is stopped")
)

// JobHandler runs a single sync job to completion.
type JobHandler func(ctx context.Context, job domain.SyncJob)

// LocalDispatcher runs sync jobs on a fixed pool of in-process workers
type LocalDispatcher struct {
	handler     JobHandler
	jobQueue    chan domain.SyncJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// NewLocalDispatcher creates a new worker pool with a bounded queue
func NewLocalDispatcher(workerCount, queueSize int) *LocalDispatcher {
	if workerCount <= 0 {
		workerCount = 3 // Default to 3 workers
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &LocalDispatcher{
		jobQueue:    make(chan domain.SyncJob, queueSize),
		workerCount: workerCount,
	}
}

// Start starts the workers. Jobs submitted earlier are picked up once started.
func (d *LocalDispatcher) Start(handler JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return
	}

	d.handler = handler
	for i := 0; i < d.workerCount; i++ {
		d.workerWg.Add(1)
		go d.worker(i)
	}
	d.started = true
	log.Printf("[SyncWorker] Started %d workers", d.workerCount)
}

// Stop stops accepting jobs and waits for queued ones to finish
func (d *LocalDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.workerWg.Wait()
	log.Println("[SyncWorker] All workers stopped")
}

func (d *LocalDispatcher) worker(id int) {
	defer d.workerWg.Done()

	for job := range d.jobQueue {
		d.processJob(job)
	}

	log.Printf("[SyncWorker] Worker %d stopped", id)
}

func (d *LocalDispatcher) processJob(job domain.SyncJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SyncWorker] Job %s panicked: %v", job.ID, r)
		}
	}()
	// Runs detach from the request that queued them.
	d.handler(context.Background(), job)
}

// Submit queues a job without blocking. The handle is the job id.
func (d *LocalDispatcher) Submit(ctx context.Context, job domain.SyncJob) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return "", ErrStopped
	}

	select {
	case d.jobQueue <- job:
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}
