package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/pkg/database"
)

// LockRepository provides per-(user, page) mutual exclusion for sync runs.
type LockRepository interface {
	// Acquire fails with domain.ErrSyncInProgress while another owner holds an unexpired lock.
	Acquire(ctx context.Context, userID, pageID, owner string, ttl time.Duration) error
	// Release removes the lock if it is still held by owner.
	Release(ctx context.Context, userID, pageID, owner string) error
	// Refresh pushes the expiry of owner's lock to now+ttl. It fails with
	// domain.ErrLockLost once the lock expired or passed to another owner.
	Refresh(ctx context.Context, userID, pageID, owner string, ttl time.Duration) error
	// HeldBy reports whether owner holds an unexpired lock.
	HeldBy(ctx context.Context, userID, pageID, owner string) (bool, error)
}

type lockMarker struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type lockRepository struct {
	store database.Store
	now   func() time.Time
}

// NewLockRepository stores lock markers under syncLocks/{uid}/{pageId}
func NewLockRepository(store database.Store) LockRepository {
	return &lockRepository{
		store: store,
		now:   time.Now,
	}
}

var keyReplacer = strings.NewReplacer(".", "_", "$", "_", "#", "_", "[", "_", "]", "_", "/", "_")

func lockPath(userID, pageID string) string {
	return "syncLocks/" + userID + "/" + keyReplacer.Replace(pageID)
}

func (r *lockRepository) Acquire(ctx context.Context, userID, pageID, owner string, ttl time.Duration) error {
	now := r.now().UTC()
	return r.store.Transaction(ctx, lockPath(userID, pageID), func(current json.RawMessage) (interface{}, error) {
		var held lockMarker
		if len(current) > 0 && string(current) != "null" {
			if err := json.Unmarshal(current, &held); err == nil && held.Owner != owner && held.ExpiresAt.After(now) {
				return nil, domain.ErrSyncInProgress
			}
		}
		return lockMarker{Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}, nil
	})
}

func (r *lockRepository) Release(ctx context.Context, userID, pageID, owner string) error {
	err := r.store.Transaction(ctx, lockPath(userID, pageID), func(current json.RawMessage) (interface{}, error) {
		var held lockMarker
		if len(current) == 0 || string(current) == "null" {
			return nil, database.ErrAbortTransaction
		}
		if err := json.Unmarshal(current, &held); err != nil || held.Owner != owner {
			return nil, database.ErrAbortTransaction
		}
		return nil, nil
	})
	if errors.Is(err, database.ErrAbortTransaction) {
		return nil
	}
	return err
}

func (r *lockRepository) Refresh(ctx context.Context, userID, pageID, owner string, ttl time.Duration) error {
	now := r.now().UTC()
	err := r.store.Transaction(ctx, lockPath(userID, pageID), func(current json.RawMessage) (interface{}, error) {
		var held lockMarker
		if len(current) == 0 || string(current) == "null" {
			return nil, database.ErrAbortTransaction
		}
		if err := json.Unmarshal(current, &held); err != nil || held.Owner != owner || !held.ExpiresAt.After(now) {
			return nil, database.ErrAbortTransaction
		}
		held.ExpiresAt = now.Add(ttl)
		return held, nil
	})
	if errors.Is(err, database.ErrAbortTransaction) {
		return domain.ErrLockLost
	}
	return err
}

func (r *lockRepository) HeldBy(ctx context.Context, userID, pageID, owner string) (bool, error) {
	var held lockMarker
	found, err := r.store.Get(ctx, lockPath(userID, pageID), &held)
	if err != nil || !found {
		return false, err
	}
	return held.Owner == owner && held.ExpiresAt.After(r.now().UTC()), nil
}
