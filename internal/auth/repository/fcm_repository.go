package repository

import (
	"context"
	"time"

	authdomain "notion-sync-backend/internal/auth/domain"
	"notion-sync-backend/pkg/database"

	"github.com/google/uuid"
)

// FCMTokenRepository defines the interface for FCM token operations
type FCMTokenRepository interface {
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	GetTokensByUserID(ctx context.Context, userID string) ([]authdomain.FCMToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
}

// fcmTokenRepository stores tokens under users/{uid}/fcmTokens/{tokenID}
type fcmTokenRepository struct {
	store database.Store
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(store database.Store) FCMTokenRepository {
	return &fcmTokenRepository{
		store: store,
	}
}

func tokensPath(userID string) string {
	return userPath(userID) + "/fcmTokens"
}

// tokenID is stable per token so registering the same device twice is an upsert.
func tokenID(token string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(token)).String()
}

func (r *fcmTokenRepository) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	path := tokensPath(userID) + "/" + tokenID(token)
	now := time.Now().UTC()

	var existing authdomain.FCMToken
	found, err := r.store.Get(ctx, path, &existing)
	if err != nil {
		return err
	}
	createdAt := now
	if found {
		createdAt = existing.CreatedAt
	}

	return r.store.Set(ctx, path, authdomain.FCMToken{
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	})
}

func (r *fcmTokenRepository) GetTokensByUserID(ctx context.Context, userID string) ([]authdomain.FCMToken, error) {
	var byID map[string]authdomain.FCMToken
	if _, err := r.store.Get(ctx, tokensPath(userID), &byID); err != nil {
		return nil, err
	}
	tokens := make([]authdomain.FCMToken, 0, len(byID))
	for id, t := range byID {
		t.ID = id
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (r *fcmTokenRepository) DeleteToken(ctx context.Context, userID, token string) error {
	return r.store.Remove(ctx, tokensPath(userID)+"/"+tokenID(token))
}
