package scheduler

import (
	"context"
	"log"
	"time"

	"notion-sync-backend/internal/sync/repository"
)

const abandonedMessage = "sync run was interrupted before it finished"

// StaleRunSweeper fails runs that stayed pending longer than maxAge, so a crashed
// worker never leaves a user polling a pending status forever. A run whose worker
// still refreshes its lock is alive and left alone.
type StaleRunSweeper struct {
	runRepo    repository.RunRepository
	statusRepo repository.StatusRepository
	lockRepo   repository.LockRepository
	maxAge     time.Duration
	interval   time.Duration
	now        func() time.Time
	stopChan   chan struct{}
}

// NewStaleRunSweeper creates a new sweeper
func NewStaleRunSweeper(
	runRepo repository.RunRepository,
	statusRepo repository.StatusRepository,
	lockRepo repository.LockRepository,
	maxAge time.Duration,
) *StaleRunSweeper {
	return &StaleRunSweeper{
		runRepo:    runRepo,
		statusRepo: statusRepo,
		lockRepo:   lockRepo,
		maxAge:     maxAge,
		interval:   1 * time.Minute, // Check every minute
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the sweeper loop
func (s *StaleRunSweeper) Start() {
	log.Printf("[SyncSweeper] Starting stale run sweeper (interval: %s, max age: %s)", s.interval, s.maxAge)

	go func() {
		// Run immediately on start
		s.Sweep(context.Background())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopChan:
				log.Println("[SyncSweeper] Sweeper stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper
func (s *StaleRunSweeper) Stop() {
	close(s.stopChan)
}

// Sweep fails every abandoned run still pending past maxAge and returns how many it closed.
func (s *StaleRunSweeper) Sweep(ctx context.Context) int {
	now := s.now().UTC()

	runs, err := s.runRepo.ListStale(ctx, now.Add(-s.maxAge))
	if err != nil {
		log.Printf("[SyncSweeper] Error finding stale runs: %v", err)
		return 0
	}
	if len(runs) == 0 {
		return 0
	}

	log.Printf("[SyncSweeper] Found %d stale runs", len(runs))

	closed := 0
	for _, run := range runs {
		alive, err := s.lockRepo.HeldBy(ctx, run.UserID, run.PageID, run.ID)
		if err != nil {
			log.Printf("[SyncSweeper] Error checking lock of run %s: %v", run.ID, err)
			continue
		}
		if alive {
			continue
		}

		// Only touch the user's status when it still belongs to this run.
		if _, err := s.statusRepo.FailRun(ctx, run.UserID, run.StartedAt, abandonedMessage); err != nil {
			log.Printf("[SyncSweeper] Error failing status for user %s: %v", run.UserID, err)
			continue
		}
		if err := s.runRepo.Finish(ctx, run.ID, nil, abandonedMessage, now); err != nil {
			log.Printf("[SyncSweeper] Error closing run %s: %v", run.ID, err)
			continue
		}
		closed++
	}
	return closed
}
