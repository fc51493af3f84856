package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"notion-sync-backend/internal/sync/domain"
)

func TestLocalDispatcherRunsSubmittedJobs(t *testing.T) {
	d := NewLocalDispatcher(2, 10)

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	wg.Add(3)
	d.Start(func(ctx context.Context, job domain.SyncJob) {
		defer wg.Done()
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
	})

	for _, id := range []string{"a", "b", "c"} {
		handle, err := d.Submit(context.Background(), domain.SyncJob{ID: id, UserID: "u1"})
		if err != nil || handle != id {
			t.Fatalf("Submit(%s) = %q, %v", id, handle, err)
		}
	}
	wg.Wait()
	d.Stop()

	if len(seen) != 3 {
		t.Fatalf("expected 3 jobs processed, got %v", seen)
	}
	if _, err := d.Submit(context.Background(), domain.SyncJob{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after Stop, got %v", err)
	}
}

func TestLocalDispatcherRejectsWhenQueueIsFull(t *testing.T) {
	d := NewLocalDispatcher(1, 1)

	if _, err := d.Submit(context.Background(), domain.SyncJob{ID: "first"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := d.Submit(context.Background(), domain.SyncJob{ID: "second"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	done := make(chan string, 1)
	d.Start(func(ctx context.Context, job domain.SyncJob) { done <- job.ID })
	if got := <-done; got != "first" {
		t.Fatalf("expected queued job to run after start, got %s", got)
	}
	d.Stop()
}

func TestLocalDispatcherSurvivesPanickingJob(t *testing.T) {
	d := NewLocalDispatcher(1, 4)
	done := make(chan string, 2)
	d.Start(func(ctx context.Context, job domain.SyncJob) {
		if job.ID == "boom" {
			panic("engine exploded")
		}
		done <- job.ID
	})

	_, _ = d.Submit(context.Background(), domain.SyncJob{ID: "boom"})
	_, _ = d.Submit(context.Background(), domain.SyncJob{ID: "ok"})
	if got := <-done; got != "ok" {
		t.Fatalf("expected worker to keep running, got %s", got)
	}
	d.Stop()
}

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob([]byte(`{"jobId":"j1","userId":"u1","email":"a@b.c","pageId":"p","courses":[{"id":7,"name":"CS"}],"assignments":[]}`))
	if err != nil {
		t.Fatalf("decodeJob: %v", err)
	}
	if job.ID != "j1" || job.PageID != "p" || job.Courses[0].ID != "7" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if _, err := decodeJob([]byte(`{"email":"a@b.c"}`)); err == nil {
		t.Fatalf("expected error for job without id")
	}
}

type recordedAck struct {
	acked, nacked bool
}

func (r *recordedAck) Ack()  { r.acked = true }
func (r *recordedAck) Nack() { r.nacked = true }

func TestSettleNacksJobsInterruptedByShutdown(t *testing.T) {
	live := context.Background()
	stopped, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		wantAck  bool
		wantNack bool
	}{
		{"handled", live, true, false},
		{"shutdown during handler", stopped, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &recordedAck{}
			settle(tt.ctx, msg)
			if msg.acked != tt.wantAck || msg.nacked != tt.wantNack {
				t.Fatalf("expected ack=%v nack=%v, got %+v", tt.wantAck, tt.wantNack, msg)
			}
		})
	}
}

func TestDecodeJobKeepsStartedAt(t *testing.T) {
	job, err := decodeJob([]byte(`{"jobId":"j1","userId":"u1","startedAt":"2024-03-01T10:00:00.123456789Z","pageId":"p"}`))
	if err != nil {
		t.Fatalf("decodeJob: %v", err)
	}
	if job.StartedAt.Nanosecond() != 123456789 {
		t.Fatalf("startedAt must survive the queue, got %s", job.StartedAt)
	}
}
