package usecase

import (
	"context"

	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/internal/sync/dto"
	"notion-sync-backend/pkg/fcm"
)

// SyncUsecase defines the interface for Canvas to Notion sync business logic
type SyncUsecase interface {
	// TriggerSync validates the request, marks the user's status pending and hands the run
	// to the dispatcher. It returns before the run starts.
	TriggerSync(ctx context.Context, req domain.SyncRequest) (*dto.SyncInfo, error)

	// RunSync executes a queued job and records its terminal status
	RunSync(ctx context.Context, job domain.SyncJob)

	// Compare reports which assignments are not yet in Notion, without writing
	Compare(ctx context.Context, req domain.SyncRequest) (domain.Comparison, error)

	// GetStatus returns the latest sync status of the user with this email
	GetStatus(ctx context.Context, email string) (*domain.SyncStatus, error)

	// History lists the user's most recent runs, newest first
	History(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)

	// SetPushSender enables push notifications when a run finishes
	SetPushSender(push PushSender)
}

// Dispatcher hands a job to something that runs it independently of the caller
type Dispatcher interface {
	Submit(ctx context.Context, job domain.SyncJob) (string, error)
}

// PushSender delivers a notification to device tokens and returns the ones that failed
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}
