package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	authdomain "notion-sync-backend/internal/auth/domain"
	authrepo "notion-sync-backend/internal/auth/repository"
	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/internal/sync/repository"
	"notion-sync-backend/internal/sync/scheduler"
	"notion-sync-backend/pkg/database"
	"notion-sync-backend/pkg/fcm"
)

type recordingDispatcher struct {
	jobs []domain.SyncJob
	err  error
}

func (d *recordingDispatcher) Submit(ctx context.Context, job domain.SyncJob) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.jobs = append(d.jobs, job)
	return "handle-" + job.ID, nil
}

type recordingPush struct {
	sent   []fcm.NotificationData
	tokens [][]string
	failed []string
}

func (p *recordingPush) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	p.sent = append(p.sent, n)
	p.tokens = append(p.tokens, tokens)
	return p.failed, nil
}

// cancelAwareStore fails writes on a cancelled context like the Firebase client does.
type cancelAwareStore struct {
	database.Store
}

func (s cancelAwareStore) Set(ctx context.Context, path string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Set(ctx, path, v)
}

func (s cancelAwareStore) Transaction(ctx context.Context, path string, fn database.TransactionFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Transaction(ctx, path, fn)
}

type syncFixture struct {
	usecase    SyncUsecase
	fake       *fakeNotion
	dispatcher *recordingDispatcher
	statusRepo repository.StatusRepository
	lockRepo   repository.LockRepository
	runRepo    repository.RunRepository
	fcmRepo    authrepo.FCMTokenRepository
	users      authrepo.UserRepository
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	return newSyncFixtureOn(t, database.NewMemoryStore())
}

func newSyncFixtureOn(t *testing.T, store database.Store) *syncFixture {
	t.Helper()
	ctx := context.Background()
	users := authrepo.NewUserRepository(store)
	if _, err := users.EnsureUser(ctx, "uid-1", "student@example.edu"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := users.SaveNotionConnection(ctx, "uid-1", authdomain.NotionConnection{AccessToken: "secret_abc"}); err != nil {
		t.Fatalf("SaveNotionConnection: %v", err)
	}
	if _, err := users.EnsureUser(ctx, "uid-2", "offline@example.edu"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	fake := newFakeNotion("parent")
	engine := NewEngine(users, func(string) ContentAPI { return fake })
	f := &syncFixture{
		fake:       fake,
		dispatcher: &recordingDispatcher{},
		statusRepo: repository.NewStatusRepository(store),
		lockRepo:   repository.NewLockRepository(store),
		runRepo:    repository.NewMemoryRunRepository(),
		fcmRepo:    authrepo.NewFCMTokenRepository(store),
		users:      users,
	}
	f.usecase = NewSyncUsecase(engine, users, f.statusRepo, f.lockRepo, f.runRepo, f.fcmRepo, f.dispatcher, time.Minute)
	return f
}

func TestTriggerSyncThenRunCompletes(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	info, err := f.usecase.TriggerSync(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if info.SyncStatus != domain.StatusPending || info.TotalAssignments != 3 || info.TotalCourses != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}

	status, err := f.usecase.GetStatus(ctx, "student@example.edu")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != domain.StatusPending || status.TotalAssignments != 3 || status.TotalCourses != 2 {
		t.Fatalf("expected pending status, got %+v", status)
	}

	if len(f.dispatcher.jobs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(f.dispatcher.jobs))
	}
	job := f.dispatcher.jobs[0]
	if job.UserID != "uid-1" || job.PageID != "parent" || len(job.Assignments) != 3 || job.ID != info.JobID {
		t.Fatalf("job must carry the request and the resolved user: %+v", job)
	}

	f.usecase.RunSync(ctx, job)

	status, _ = f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusComplete || status.Results == nil {
		t.Fatalf("expected complete status, got %+v", status)
	}
	r := status.Results
	if r.NewAssignmentsCreated+r.SkippedAssignments != r.TotalAssignments || r.TotalAssignments != 3 {
		t.Fatalf("created + skipped must equal total: %+v", r)
	}
	if !strings.HasPrefix(status.Message(), "Sync completed: 3 new assignments created") {
		t.Fatalf("unexpected message %q", status.Message())
	}

	runs, _ := f.usecase.History(ctx, "uid-1", 0)
	if len(runs) != 1 || runs[0].Status != domain.StatusComplete || runs[0].NewAssignmentsCreated != 3 {
		t.Fatalf("unexpected history: %+v", runs)
	}

	// The lock is released, so the same page can be synced again.
	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("second TriggerSync: %v", err)
	}
}

func TestTriggerSyncRejectsOverlappingRun(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if len(f.dispatcher.jobs) != 1 {
		t.Fatalf("overlapping trigger must not dispatch")
	}
}

func TestTriggerSyncValidationAndConnection(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	tests := []struct {
		name string
		req  func() domain.SyncRequest
		want error
	}{
		{"missing email", func() domain.SyncRequest { r := sampleRequest(); r.Email = " "; return r }, domain.ErrValidation},
		{"missing page", func() domain.SyncRequest { r := sampleRequest(); r.PageID = ""; return r }, domain.ErrValidation},
		{"missing courses", func() domain.SyncRequest { r := sampleRequest(); r.Courses = nil; return r }, domain.ErrValidation},
		{"blank course name", func() domain.SyncRequest { r := sampleRequest(); r.Courses[1].Name = "  "; return r }, domain.ErrValidation},
		{"assignment without url", func() domain.SyncRequest {
			r := sampleRequest()
			r.Assignments[0].HTMLURL = "  "
			return r
		}, domain.ErrValidation},
		{"unknown user", func() domain.SyncRequest { r := sampleRequest(); r.Email = "ghost@example.edu"; return r }, domain.ErrUserNotFound},
		{"not connected", func() domain.SyncRequest { r := sampleRequest(); r.Email = "offline@example.edu"; return r }, domain.ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.usecase.TriggerSync(ctx, tt.req()); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if len(f.dispatcher.jobs) != 0 {
		t.Fatalf("rejected requests must not dispatch")
	}
	if status, _ := f.statusRepo.Get(ctx, "uid-2"); status != nil {
		t.Fatalf("rejected requests must not write status, got %+v", status)
	}
}

func TestTriggerSyncDispatchFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	f.dispatcher.err = errors.New("queue unavailable")

	info, err := f.usecase.TriggerSync(ctx, sampleRequest())
	if err != nil || info == nil {
		t.Fatalf("dispatch failure must still be accepted, got %v", err)
	}

	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusError || !strings.Contains(status.Error, "queue unavailable") {
		t.Fatalf("expected error status, got %+v", status)
	}
	f.dispatcher.err = nil
	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("lock must be released after a dispatch failure, got %v", err)
	}
}

func TestRunSyncRecordsErrorAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	push := &recordingPush{failed: []string{"stale-token"}}
	f.usecase.SetPushSender(push)
	_ = f.fcmRepo.SaveToken(ctx, "uid-1", "device-token", "chrome")
	_ = f.fcmRepo.SaveToken(ctx, "uid-1", "stale-token", "firefox")

	req := sampleRequest()
	req.PageID = "not-shared"
	if _, err := f.usecase.TriggerSync(ctx, req); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	f.usecase.RunSync(ctx, f.dispatcher.jobs[0])

	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusError || !strings.Contains(status.Error, domain.ErrNoPageAccess.Error()) {
		t.Fatalf("expected no-page-access error status, got %+v", status)
	}
	if f.fake.dbCreates != 0 {
		t.Fatalf("nothing may be written without page access")
	}

	if len(push.sent) != 1 || push.sent[0].Title != "Notion sync failed" || len(push.tokens[0]) != 2 {
		t.Fatalf("expected one failure notification to both devices, got %+v", push.sent)
	}
	tokens, _ := f.fcmRepo.GetTokensByUserID(ctx, "uid-1")
	if len(tokens) != 1 || tokens[0].Token != "device-token" {
		t.Fatalf("stale token must be removed, got %+v", tokens)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	if _, err := f.usecase.GetStatus(ctx, "student@example.edu"); !errors.Is(err, domain.ErrStatusNotFound) {
		t.Fatalf("expected ErrStatusNotFound, got %v", err)
	}
	if _, err := f.usecase.GetStatus(ctx, "ghost@example.edu"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTriggerSyncKeepsCourseNamesAsSent(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	req := sampleRequest()
	req.Courses[0].Name = "Algorithms "

	if _, err := f.usecase.TriggerSync(ctx, req); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	job := f.dispatcher.jobs[0]
	if job.Courses[0].Name != "Algorithms " {
		t.Fatalf("course name must reach the run unchanged, got %q", job.Courses[0].Name)
	}

	f.usecase.RunSync(ctx, job)
	coursesDB := f.fake.databaseID("parent", CoursesDatabaseTitle)
	if rows := f.fake.rows[coursesDB]; len(rows) != 2 || rows[0].Title != "Algorithms " {
		t.Fatalf("course page must carry the name as sent, got %+v", rows)
	}
}

func TestSweeperLeavesRunningSyncAlone(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	// Every run is past the age limit; only a live lock protects it.
	sweeper := scheduler.NewStaleRunSweeper(f.runRepo, f.statusRepo, f.lockRepo, -time.Hour)

	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	swept := -1
	f.fake.onRetrieve = func() { swept = sweeper.Sweep(ctx) }

	f.usecase.RunSync(ctx, f.dispatcher.jobs[0])

	if swept != 0 {
		t.Fatalf("a running sync must not be swept, closed %d", swept)
	}
	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusComplete {
		t.Fatalf("expected complete status, got %+v", status)
	}
	runs, _ := f.usecase.History(ctx, "uid-1", 0)
	if runs[0].Status != domain.StatusComplete || runs[0].NewAssignmentsCreated != 3 {
		t.Fatalf("expected completed history, got %+v", runs[0])
	}
}

func TestRunClosedBySweeperKeepsItsOutcome(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	push := &recordingPush{}
	f.usecase.SetPushSender(push)
	_ = f.fcmRepo.SaveToken(ctx, "uid-1", "device-token", "chrome")
	sweeper := scheduler.NewStaleRunSweeper(f.runRepo, f.statusRepo, f.lockRepo, -time.Hour)

	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	job := f.dispatcher.jobs[0]

	// The lock lapses mid-run and the sweeper closes the run.
	f.fake.onRetrieve = func() {
		_ = f.lockRepo.Release(ctx, job.UserID, job.PageID, job.ID)
		if closed := sweeper.Sweep(ctx); closed != 1 {
			t.Errorf("expected the unlocked run to be swept, closed %d", closed)
		}
	}
	f.usecase.RunSync(ctx, job)

	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusError {
		t.Fatalf("the first terminal status must stick, got %+v", status)
	}
	runs, _ := f.usecase.History(ctx, "uid-1", 0)
	if runs[0].Status != domain.StatusError || runs[0].NewAssignmentsCreated != 0 {
		t.Fatalf("history must keep the sweeper's outcome, got %+v", runs[0])
	}
	if len(push.sent) != 0 {
		t.Fatalf("a run closed elsewhere must not notify, got %+v", push.sent)
	}
}

func TestRunSyncSkipsJobClosedWhileQueued(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	job := f.dispatcher.jobs[0]
	_ = f.lockRepo.Release(ctx, job.UserID, job.PageID, job.ID)
	scheduler.NewStaleRunSweeper(f.runRepo, f.statusRepo, f.lockRepo, -time.Hour).Sweep(ctx)

	f.usecase.RunSync(ctx, job)

	if f.fake.dbCreates != 0 || f.fake.creates != 0 {
		t.Fatalf("a closed run must not touch Notion")
	}
	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusError {
		t.Fatalf("expected the sweeper's error status, got %+v", status)
	}
}

func TestRunSyncInterruptedByShutdownStaysPending(t *testing.T) {
	f := newSyncFixture(t)

	if _, err := f.usecase.TriggerSync(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	job := f.dispatcher.jobs[0]

	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	f.usecase.RunSync(stopped, job)

	ctx := context.Background()
	status, _ := f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusPending {
		t.Fatalf("an interrupted run must stay pending for redelivery, got %+v", status)
	}
	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("the interrupted run must keep its lock, got %v", err)
	}

	// Redelivery finishes the same run.
	f.usecase.RunSync(ctx, job)
	status, _ = f.usecase.GetStatus(ctx, "student@example.edu")
	if status.Status != domain.StatusComplete {
		t.Fatalf("redelivered run must complete, got %+v", status)
	}
}

func TestRunSyncRecordsOutcomeAfterCancellation(t *testing.T) {
	f := newSyncFixtureOn(t, cancelAwareStore{database.NewMemoryStore()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.usecase.TriggerSync(ctx, sampleRequest()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	// Shutdown begins after the page check; the remaining Notion calls still succeed.
	f.fake.onRetrieve = cancel

	f.usecase.RunSync(ctx, f.dispatcher.jobs[0])

	status, err := f.statusRepo.Get(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Status != domain.StatusComplete || status.Results.NewAssignmentsCreated != 3 {
		t.Fatalf("terminal status must be written despite cancellation, got %+v", status)
	}
	if err := f.lockRepo.Acquire(context.Background(), "uid-1", "parent", "next-run", time.Minute); err != nil {
		t.Fatalf("lock must be released, got %v", err)
	}
}
