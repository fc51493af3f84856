package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"notion-sync-backend/internal/sync/domain"

	"gorm.io/gorm"
)

// RunRepository keeps the history of sync runs
type RunRepository interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	// Finish closes a run that is still pending; closed runs are left as they are.
	Finish(ctx context.Context, id string, results *domain.SyncResults, errMsg string, completedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)
	// ListStale returns runs still pending that started before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]*domain.SyncRun, error)
}

// gormRunRepository implements RunRepository using GORM
type gormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GORM-based RunRepository
func NewGormRunRepository(db *gorm.DB) RunRepository {
	return &gormRunRepository{db: db}
}

func (r *gormRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *gormRunRepository) Finish(ctx context.Context, id string, results *domain.SyncResults, errMsg string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.SyncRun{}).Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(finishFields(results, errMsg, completedAt)).Error
}

func (r *gormRunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (r *gormRunRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	err := r.db.WithContext(ctx).Where("status = ? AND started_at < ?", domain.StatusPending, cutoff).
		Order("started_at ASC").Find(&runs).Error
	return runs, err
}

func finishFields(results *domain.SyncResults, errMsg string, completedAt time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"completed_at": completedAt,
		"updated_at":   time.Now(),
	}
	if results != nil {
		fields["status"] = domain.StatusComplete
		fields["courses_created"] = results.CoursesCreated
		fields["new_assignments_created"] = results.NewAssignmentsCreated
		fields["skipped_assignments"] = results.SkippedAssignments
		fields["failed_assignments"] = results.FailedAssignments
	} else {
		fields["status"] = domain.StatusError
		fields["error"] = errMsg
	}
	return fields
}

// memoryRunRepository keeps history in process when Postgres is not configured.
type memoryRunRepository struct {
	mu   sync.Mutex
	runs map[string]*domain.SyncRun
}

// NewMemoryRunRepository creates an in-process RunRepository
func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepository{runs: map[string]*domain.SyncRun{}}
}

func (r *memoryRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *memoryRunRepository) Finish(ctx context.Context, id string, results *domain.SyncResults, errMsg string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status != domain.StatusPending {
		return nil
	}
	run.CompletedAt = &completedAt
	run.UpdatedAt = time.Now()
	if results != nil {
		run.Status = domain.StatusComplete
		run.CoursesCreated = results.CoursesCreated
		run.NewAssignmentsCreated = results.NewAssignmentsCreated
		run.SkippedAssignments = results.SkippedAssignments
		run.FailedAssignments = results.FailedAssignments
	} else {
		run.Status = domain.StatusError
		run.Error = errMsg
	}
	return nil
}

func (r *memoryRunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var runs []*domain.SyncRun
	for _, run := range r.runs {
		if run.UserID == userID {
			copied := *run
			runs = append(runs, &copied)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *memoryRunRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var runs []*domain.SyncRun
	for _, run := range r.runs {
		if run.Status == domain.StatusPending && run.StartedAt.Before(cutoff) {
			copied := *run
			runs = append(runs, &copied)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}
