package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	authrepo "notion-sync-backend/internal/auth/repository"
	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/internal/sync/dto"
	"notion-sync-backend/internal/sync/repository"
	"notion-sync-backend/pkg/fcm"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// syncUsecase implements SyncUsecase interface
type syncUsecase struct {
	engine     *Engine
	userRepo   authrepo.UserRepository
	statusRepo repository.StatusRepository
	lockRepo   repository.LockRepository
	runRepo    repository.RunRepository
	fcmRepo    authrepo.FCMTokenRepository
	dispatcher Dispatcher
	push       PushSender
	lockTTL    time.Duration
	now        func() time.Time
}

// NewSyncUsecase creates a new instance of syncUsecase
func NewSyncUsecase(
	engine *Engine,
	userRepo authrepo.UserRepository,
	statusRepo repository.StatusRepository,
	lockRepo repository.LockRepository,
	runRepo repository.RunRepository,
	fcmRepo authrepo.FCMTokenRepository,
	dispatcher Dispatcher,
	lockTTL time.Duration,
) SyncUsecase {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &syncUsecase{
		engine:     engine,
		userRepo:   userRepo,
		statusRepo: statusRepo,
		lockRepo:   lockRepo,
		runRepo:    runRepo,
		fcmRepo:    fcmRepo,
		dispatcher: dispatcher,
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

// SetPushSender enables push notifications when a run finishes
func (u *syncUsecase) SetPushSender(push PushSender) {
	u.push = push
}

func validateRequest(req *domain.SyncRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.PageID = strings.TrimSpace(req.PageID)

	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.PageID == "" {
		missing = append(missing, "pageId")
	}
	if req.Courses == nil {
		missing = append(missing, "courses")
	}
	if req.Assignments == nil {
		missing = append(missing, "assignments")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}

	for i, c := range req.Courses {
		if c.ID == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: courses[%d] needs an id and a name", domain.ErrValidation, i)
		}
	}
	for i, a := range req.Assignments {
		if a.URLKey() == "" {
			return fmt.Errorf("%w: assignments[%d] needs an html_url", domain.ErrValidation, i)
		}
	}
	return nil
}

func (u *syncUsecase) resolveUser(ctx context.Context, email string) (string, error) {
	user, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", domain.ErrUserNotFound
	}
	if !user.Connected() {
		return "", domain.ErrNotConnected
	}
	return user.ID, nil
}

func (u *syncUsecase) TriggerSync(ctx context.Context, req domain.SyncRequest) (*dto.SyncInfo, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	userID, err := u.resolveUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	job := domain.SyncJob{
		ID:          uuid.New().String(),
		UserID:      userID,
		SyncRequest: req,
	}

	if err := u.lockRepo.Acquire(ctx, userID, req.PageID, job.ID, u.lockTTL); err != nil {
		return nil, err
	}

	status, err := u.statusRepo.SetPending(ctx, userID, len(req.Assignments), len(req.Courses))
	if err != nil {
		u.releaseLock(job)
		return nil, fmt.Errorf("failed to record pending status: %w", err)
	}
	job.StartedAt = *status.StartedAt

	if err := u.runRepo.Create(ctx, &domain.SyncRun{
		ID:               job.ID,
		UserID:           userID,
		PageID:           req.PageID,
		Status:           domain.StatusPending,
		TotalCourses:     len(req.Courses),
		TotalAssignments: len(req.Assignments),
		StartedAt:        *status.StartedAt,
	}); err != nil {
		log.Printf("[Sync] Failed to record run %s in history: %v", job.ID, err)
	}

	info := &dto.SyncInfo{
		JobID:            job.ID,
		TotalAssignments: len(req.Assignments),
		TotalCourses:     len(req.Courses),
		SyncStatus:       domain.StatusPending,
		StartedAt:        *status.StartedAt,
	}

	handle, err := u.dispatcher.Submit(ctx, job)
	if err != nil {
		// The caller is told the sync was accepted either way; the failure shows up on poll.
		log.Printf("[Sync] Failed to dispatch job %s for user %s: %v", job.ID, userID, err)
		u.finish(context.Background(), job, nil, fmt.Errorf("failed to schedule sync: %w", err))
		return info, nil
	}

	log.Printf("[Sync] Accepted job %s (handle %s): %d assignments across %d courses for user %s",
		job.ID, handle, info.TotalAssignments, info.TotalCourses, userID)
	return info, nil
}

func (u *syncUsecase) RunSync(ctx context.Context, job domain.SyncJob) {
	if !u.ownsStatus(ctx, job) {
		log.Printf("[Sync] Skipping job %s: its run was already closed", job.ID)
		return
	}
	// Re-taking the lock is a no-op for the trigger that queued this job, and
	// reclaims it when the job waited in the queue past the lock TTL.
	if err := u.lockRepo.Acquire(ctx, job.UserID, job.PageID, job.ID, u.lockTTL); err != nil {
		log.Printf("[Sync] Skipping job %s: %v", job.ID, err)
		return
	}

	stopHeartbeat := u.keepLock(job)
	var (
		result *domain.SyncResult
		runErr error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("sync panicked: %v", r)
			}
		}()
		log.Printf("[Sync] Running job %s for user %s", job.ID, job.UserID)
		result, runErr = u.engine.Sync(ctx, job.SyncRequest)
	}()
	stopHeartbeat()

	if runErr != nil && ctx.Err() != nil {
		// Shutdown cut the run short. The status stays pending and the lock stays
		// with this job, so a redelivered copy resumes it; otherwise the sweeper
		// closes it once the lock expires.
		log.Printf("[Sync] Job %s interrupted: %v", job.ID, runErr)
		return
	}

	u.finish(ctx, job, result, runErr)
}

// ownsStatus reports whether the user's status is still the pending record of job.
// A read failure counts as ownership; the terminal write is conditional anyway.
func (u *syncUsecase) ownsStatus(ctx context.Context, job domain.SyncJob) bool {
	status, err := u.statusRepo.Get(ctx, job.UserID)
	if err != nil {
		log.Printf("[Sync] Failed to read status for job %s: %v", job.ID, err)
		return true
	}
	return status != nil && status.IsPendingRun(job.StartedAt)
}

// keepLock refreshes the job's lock every third of its TTL until stop is called.
func (u *syncUsecase) keepLock(job domain.SyncJob) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(u.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := u.lockRepo.Refresh(context.Background(), job.UserID, job.PageID, job.ID, u.lockTTL); err != nil {
					log.Printf("[Sync] Failed to refresh lock for job %s: %v", job.ID, err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// finish writes the single terminal status of a run and releases everything it holds.
// Nothing is written when the run was already closed by someone else.
func (u *syncUsecase) finish(ctx context.Context, job domain.SyncJob, result *domain.SyncResult, runErr error) {
	// The terminal writes must land even if the worker is shutting down.
	ctx = context.WithoutCancel(ctx)
	completedAt := u.now().UTC()

	var (
		notification fcm.NotificationData
		applied      bool
		err          error
	)
	if runErr != nil {
		log.Printf("[Sync] Job %s failed: %v", job.ID, runErr)
		applied, err = u.statusRepo.FailRun(ctx, job.UserID, job.StartedAt, runErr.Error())
		if err != nil {
			log.Printf("[Sync] Failed to record error status for user %s: %v", job.UserID, err)
		}
		if applied || err != nil {
			if err := u.runRepo.Finish(ctx, job.ID, nil, runErr.Error(), completedAt); err != nil {
				log.Printf("[Sync] Failed to finish run %s in history: %v", job.ID, err)
			}
		}
		notification = fcm.NotificationData{
			Title: "Notion sync failed",
			Body:  domain.NewErrorStatus(completedAt, runErr.Error()).Message(),
		}
	} else {
		summary := result.Summary()
		log.Printf("[Sync] Job %s complete: %d created, %d skipped, %d failed, %d new courses",
			job.ID, summary.NewAssignmentsCreated, summary.SkippedAssignments, summary.FailedAssignments, summary.CoursesCreated)
		applied, err = u.statusRepo.CompleteRun(ctx, job.UserID, job.StartedAt, summary)
		if err != nil {
			log.Printf("[Sync] Failed to record complete status for user %s: %v", job.UserID, err)
		}
		if applied || err != nil {
			if err := u.runRepo.Finish(ctx, job.ID, &summary, "", completedAt); err != nil {
				log.Printf("[Sync] Failed to finish run %s in history: %v", job.ID, err)
			}
		}
		notification = fcm.NotificationData{
			Title: "Notion sync complete",
			Body:  domain.NewCompleteStatus(completedAt, summary).Message(),
		}
	}

	u.releaseLock(job)

	if !applied && err == nil {
		log.Printf("[Sync] Job %s finished after its run was closed, keeping the recorded outcome", job.ID)
		return
	}

	notification.Data = map[string]string{
		"type":   "sync_finished",
		"job_id": job.ID,
	}
	u.notify(ctx, job.UserID, notification)
}

func (u *syncUsecase) releaseLock(job domain.SyncJob) {
	if err := u.lockRepo.Release(context.Background(), job.UserID, job.PageID, job.ID); err != nil {
		log.Printf("[Sync] Failed to release lock for user %s page %s: %v", job.UserID, job.PageID, err)
	}
}

func (u *syncUsecase) notify(ctx context.Context, userID string, notification fcm.NotificationData) {
	if u.push == nil || u.fcmRepo == nil {
		return
	}

	tokens, err := u.fcmRepo.GetTokensByUserID(ctx, userID)
	if err != nil {
		log.Printf("[Sync] Error getting FCM tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := u.push.SendToDevices(ctx, tokenStrings, notification)
	if err != nil {
		log.Printf("[Sync] Error sending push to user %s: %v", userID, err)
		return
	}

	for _, token := range failedTokens {
		if err := u.fcmRepo.DeleteToken(ctx, userID, token); err != nil {
			log.Printf("[Sync] Failed to remove stale FCM token: %v", err)
		}
	}
}

func (u *syncUsecase) Compare(ctx context.Context, req domain.SyncRequest) (domain.Comparison, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	if _, err := u.resolveUser(ctx, req.Email); err != nil {
		return nil, err
	}
	return u.engine.Compare(ctx, req)
}

func (u *syncUsecase) GetStatus(ctx context.Context, email string) (*domain.SyncStatus, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: missing required fields: email", domain.ErrValidation)
	}

	user, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	status, err := u.statusRepo.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync status: %w", err)
	}
	if status == nil {
		return nil, domain.ErrStatusNotFound
	}
	return status, nil
}

func (u *syncUsecase) History(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return u.runRepo.ListByUser(ctx, userID, limit)
}
