package store

import (
	"context"
	"testing"
	"time"

	"github.com/skillsync/skillsync/internal/model"
)

func TestRecordAndFinalizeRun(t *testing.T) {
	ctx := context.Background()
	r := NewSyncHistoryRepository(newTestDB(t))

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &model.SyncRun{RunID: r.NewRunID(), StartedAt: start}

	if err := r.RecordStart(ctx, run); err != nil {
		t.Fatalf("record start: %v", err)
	}

	runs, err := r.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != model.StatusRunning {
		t.Errorf("expected running, got %q", runs[0].Status)
	}
	if runs[0].FinishedAt != nil {
		t.Error("expected nil finished_at before finalize")
	}

	end := start.Add(2 * time.Second)
	run.FinishedAt = &end
	run.Status = model.StatusSuccess
	run.Added = 3
	run.Unchanged = 7
	if err := r.Finalize(ctx, run); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	runs, _ = r.ListRecent(ctx, 10)
	got := runs[0]
	if got.Status != model.StatusSuccess || got.Added != 3 || got.Unchanged != 7 {
		t.Errorf("unexpected finalized run: %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(end) {
		t.Errorf("expected finished_at %v, got %v", end, got.FinishedAt)
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewSyncHistoryRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &model.SyncRun{RunID: r.NewRunID(), StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := r.RecordStart(ctx, run); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	runs, err := r.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("expected newest first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	r := NewSyncHistoryRepository(newTestDB(t))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run id %q", id)
		}
		seen[id] = true
	}
}
