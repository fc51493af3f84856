package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/pkg/database"
)

// StatusRepository tracks the state of a user's latest sync run.
// Every write replaces the whole status object.
type StatusRepository interface {
	SetPending(ctx context.Context, userID string, totalAssignments, totalCourses int) (domain.SyncStatus, error)
	SetComplete(ctx context.Context, userID string, results domain.SyncResults) error
	SetError(ctx context.Context, userID string, message string) error
	// CompleteRun and FailRun write the terminal status only while the stored
	// status is still the pending record of the run started at startedAt.
	// They report whether the write happened.
	CompleteRun(ctx context.Context, userID string, startedAt time.Time, results domain.SyncResults) (bool, error)
	FailRun(ctx context.Context, userID string, startedAt time.Time, message string) (bool, error)
	// Get returns nil when the user has never synced.
	Get(ctx context.Context, userID string) (*domain.SyncStatus, error)
}

type statusRepository struct {
	store database.Store
	now   func() time.Time
}

// NewStatusRepository creates a StatusRepository writing to users/{uid}/syncStatus
func NewStatusRepository(store database.Store) StatusRepository {
	return &statusRepository{
		store: store,
		now:   time.Now,
	}
}

func statusPath(userID string) string {
	return "users/" + userID + "/syncStatus"
}

func (r *statusRepository) SetPending(ctx context.Context, userID string, totalAssignments, totalCourses int) (domain.SyncStatus, error) {
	status := domain.NewPendingStatus(r.now().UTC(), totalAssignments, totalCourses)
	if err := r.store.Set(ctx, statusPath(userID), status); err != nil {
		return domain.SyncStatus{}, err
	}
	return status, nil
}

func (r *statusRepository) SetComplete(ctx context.Context, userID string, results domain.SyncResults) error {
	return r.store.Set(ctx, statusPath(userID), domain.NewCompleteStatus(r.now().UTC(), results))
}

func (r *statusRepository) SetError(ctx context.Context, userID string, message string) error {
	return r.store.Set(ctx, statusPath(userID), domain.NewErrorStatus(r.now().UTC(), message))
}

func (r *statusRepository) CompleteRun(ctx context.Context, userID string, startedAt time.Time, results domain.SyncResults) (bool, error) {
	return r.finishRun(ctx, userID, startedAt, domain.NewCompleteStatus(r.now().UTC(), results))
}

func (r *statusRepository) FailRun(ctx context.Context, userID string, startedAt time.Time, message string) (bool, error) {
	return r.finishRun(ctx, userID, startedAt, domain.NewErrorStatus(r.now().UTC(), message))
}

func (r *statusRepository) finishRun(ctx context.Context, userID string, startedAt time.Time, terminal domain.SyncStatus) (bool, error) {
	err := r.store.Transaction(ctx, statusPath(userID), func(current json.RawMessage) (interface{}, error) {
		var stored domain.SyncStatus
		if len(current) == 0 || string(current) == "null" {
			return nil, database.ErrAbortTransaction
		}
		if err := json.Unmarshal(current, &stored); err != nil || !stored.IsPendingRun(startedAt) {
			return nil, database.ErrAbortTransaction
		}
		return terminal, nil
	})
	if errors.Is(err, database.ErrAbortTransaction) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *statusRepository) Get(ctx context.Context, userID string) (*domain.SyncStatus, error) {
	var status domain.SyncStatus
	found, err := r.store.Get(ctx, statusPath(userID), &status)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &status, nil
}
